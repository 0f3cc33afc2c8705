package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/vburojevic/hostlog/internal/domain"
)

// ContractVersion is bumped when the meaning of existing fields changes
const ContractVersion = 1

// NDJSONWriter writes display events as NDJSON
type NDJSONWriter struct {
	w       io.Writer
	encoder *json.Encoder
}

// NewNDJSONWriter creates a new NDJSON writer
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false) // relayed lines are shell output, keep them readable
	return &NDJSONWriter{
		w:       w,
		encoder: enc,
	}
}

// DisplayOutput is a free-form progress message
type DisplayOutput struct {
	Type          string `json:"type"` // Always "display"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
	RunID         string `json:"run_id,omitempty"`
}

// BannerOutput marks the start of a playbook section
type BannerOutput struct {
	Type          string `json:"type"` // Always "banner"
	SchemaVersion int    `json:"schemaVersion"`
	Title         string `json:"title"`
	RunID         string `json:"run_id,omitempty"`
}

// ResultOutput is a per-host task outcome
type ResultOutput struct {
	Type          string `json:"type"` // Always "result"
	SchemaVersion int    `json:"schemaVersion"`
	Status        string `json:"status"`
	Host          string `json:"host,omitempty"`
	Message       string `json:"message"`
	RunID         string `json:"run_id,omitempty"`
}

// RelayStatusOutput reports relay worker progress for a host
type RelayStatusOutput struct {
	Type          string `json:"type"` // Always "relay_status"
	SchemaVersion int    `json:"schemaVersion"`
	Host          string `json:"host"`
	Status        string `json:"status"`
	Attempt       int    `json:"attempt,omitempty"`
	RunID         string `json:"run_id,omitempty"`
}

// RelayLineOutput is one line of remote console output
type RelayLineOutput struct {
	Type          string `json:"type"` // Always "relay_line"
	SchemaVersion int    `json:"schemaVersion"`
	Timestamp     string `json:"timestamp"`
	Host          string `json:"host"`
	Line          string `json:"line"`
	RunID         string `json:"run_id,omitempty"`
}

// RecapOutput carries the final per-host counters
type RecapOutput struct {
	Type          string             `json:"type"` // Always "recap"
	SchemaVersion int                `json:"schemaVersion"`
	Hosts         []domain.HostStats `json:"hosts"`
	RunID         string             `json:"run_id,omitempty"`
}

// WarningOutput represents a warning message
type WarningOutput struct {
	Type          string `json:"type"` // Always "warning"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
	RunID         string `json:"run_id,omitempty"`
}

// MetadataOutput describes runtime/tool metadata
type MetadataOutput struct {
	Type            string `json:"type"` // Always "metadata"
	SchemaVersion   int    `json:"schemaVersion"`
	Version         string `json:"version"`
	Commit          string `json:"commit"`
	BuildDate       string `json:"build_date,omitempty"`
	ContractVersion int    `json:"contract_version,omitempty"`
}

// MarkerOutput describes a relay marker left on disk
type MarkerOutput struct {
	Type          string `json:"type"` // Always "marker"
	SchemaVersion int    `json:"schemaVersion"`
	Host          string `json:"host"`
	Path          string `json:"path"`
	Created       string `json:"created,omitempty"`
}

// MarkersClearedOutput reports the outcome of clearing markers
type MarkersClearedOutput struct {
	Type          string   `json:"type"` // Always "markers_cleared"
	SchemaVersion int      `json:"schemaVersion"`
	Dir           string   `json:"dir"`
	Hosts         []string `json:"hosts"`
}

// WriteDisplay outputs a progress message
func (w *NDJSONWriter) WriteDisplay(message, runID string) error {
	return w.encoder.Encode(&DisplayOutput{
		Type:          "display",
		SchemaVersion: SchemaVersion,
		Message:       message,
		RunID:         runID,
	})
}

// WriteBanner outputs a section banner
func (w *NDJSONWriter) WriteBanner(title, runID string) error {
	return w.encoder.Encode(&BannerOutput{
		Type:          "banner",
		SchemaVersion: SchemaVersion,
		Title:         title,
		RunID:         runID,
	})
}

// WriteResult outputs a task result
func (w *NDJSONWriter) WriteResult(status domain.Status, host, message, runID string) error {
	return w.encoder.Encode(&ResultOutput{
		Type:          "result",
		SchemaVersion: SchemaVersion,
		Status:        string(status),
		Host:          host,
		Message:       message,
		RunID:         runID,
	})
}

// WriteRelayStatus outputs a relay lifecycle notice
func (w *NDJSONWriter) WriteRelayStatus(host string, status domain.RelayStatus, attempt int, runID string) error {
	return w.encoder.Encode(&RelayStatusOutput{
		Type:          "relay_status",
		SchemaVersion: SchemaVersion,
		Host:          host,
		Status:        string(status),
		Attempt:       attempt,
		RunID:         runID,
	})
}

// WriteRelayLine outputs one relayed line
func (w *NDJSONWriter) WriteRelayLine(line domain.RelayLine, runID string) error {
	return w.encoder.Encode(&RelayLineOutput{
		Type:          "relay_line",
		SchemaVersion: SchemaVersion,
		Timestamp:     line.Timestamp.Format(time.RFC3339Nano),
		Host:          line.Host,
		Line:          line.Text,
		RunID:         runID,
	})
}

// WriteRecap outputs the final per-host counters
func (w *NDJSONWriter) WriteRecap(stats []domain.HostStats, runID string) error {
	if stats == nil {
		stats = []domain.HostStats{}
	}
	return w.encoder.Encode(&RecapOutput{
		Type:          "recap",
		SchemaVersion: SchemaVersion,
		Hosts:         stats,
		RunID:         runID,
	})
}

// WriteError outputs an error
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	err := domain.NewErrorOutput(code, message)
	if len(hint) > 0 {
		err.Hint = hint[0]
	}
	err.SchemaVersion = SchemaVersion
	return w.encoder.Encode(err)
}

// WriteWarning outputs a warning message
func (w *NDJSONWriter) WriteWarning(message, runID string) error {
	return w.encoder.Encode(&WarningOutput{
		Type:          "warning",
		SchemaVersion: SchemaVersion,
		Message:       message,
		RunID:         runID,
	})
}

// WriteMetadata outputs runtime metadata
func (w *NDJSONWriter) WriteMetadata(version, commit, buildDate string) error {
	return w.encoder.Encode(&MetadataOutput{
		Type:            "metadata",
		SchemaVersion:   SchemaVersion,
		Version:         version,
		Commit:          commit,
		BuildDate:       buildDate,
		ContractVersion: ContractVersion,
	})
}

// WriteMarker outputs one relay marker; a zero created time is omitted
func (w *NDJSONWriter) WriteMarker(host, path string, created time.Time) error {
	out := &MarkerOutput{
		Type:          "marker",
		SchemaVersion: SchemaVersion,
		Host:          host,
		Path:          path,
	}
	if !created.IsZero() {
		out.Created = created.UTC().Format(time.RFC3339)
	}
	return w.encoder.Encode(out)
}

// WriteMarkersCleared outputs the hosts whose markers were removed
func (w *NDJSONWriter) WriteMarkersCleared(dir string, hosts []string) error {
	if hosts == nil {
		hosts = []string{}
	}
	return w.encoder.Encode(&MarkersClearedOutput{
		Type:          "markers_cleared",
		SchemaVersion: SchemaVersion,
		Dir:           dir,
		Hosts:         hosts,
	})
}

// WriteRaw outputs raw JSON data
func (w *NDJSONWriter) WriteRaw(v interface{}) error {
	return w.encoder.Encode(v)
}
