package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vburojevic/hostlog/internal/config"
	"github.com/vburojevic/hostlog/internal/relay"
)

// DoctorCmd checks configuration, marker bookkeeping and log server reachability
type DoctorCmd struct {
	Address []string `arg:"" optional:"" help:"Log server addresses to probe (host or host:port)"`
}

// checkResult represents a single diagnostic check
type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// doctorReport is the complete diagnostic report
type doctorReport struct {
	Type       string        `json:"type"`
	Timestamp  string        `json:"timestamp"`
	Checks     []checkResult `json:"checks"`
	AllPassed  bool          `json:"all_passed"`
	ErrorCount int           `json:"error_count"`
	WarnCount  int           `json:"warn_count"`
}

// Run executes the doctor command
func (c *DoctorCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}

	checks := []checkResult{c.checkConfig(globals, cfg)}
	checks = append(checks, c.checkMarkers(cfg.Relay)...)
	for _, addr := range c.Address {
		checks = append(checks, c.checkServer(ctx, globals, cfg.Relay, addr))
	}

	errorCount := 0
	warnCount := 0
	for _, check := range checks {
		if check.Status == "error" {
			errorCount++
		} else if check.Status == "warning" {
			warnCount++
		}
	}

	report := doctorReport{
		Type:       "doctor",
		Timestamp:  time.Now().Format(time.RFC3339),
		Checks:     checks,
		AllPassed:  errorCount == 0,
		ErrorCount: errorCount,
		WarnCount:  warnCount,
	}

	if globals.Format == "ndjson" {
		encoder := json.NewEncoder(globals.Stdout)
		return encoder.Encode(report)
	}

	fmt.Fprintln(globals.Stdout, "hostlog doctor")
	fmt.Fprintln(globals.Stdout, "==============")
	fmt.Fprintln(globals.Stdout)

	for _, check := range checks {
		var icon string
		switch check.Status {
		case "ok":
			icon = "✓"
		case "warning":
			icon = "⚠"
		case "error":
			icon = "✗"
		}

		fmt.Fprintf(globals.Stdout, "%s %s\n", icon, check.Name)
		if check.Message != "" {
			fmt.Fprintf(globals.Stdout, "  %s\n", check.Message)
		}
		if check.Details != "" {
			fmt.Fprintf(globals.Stdout, "  %s\n", check.Details)
		}
	}

	fmt.Fprintln(globals.Stdout)
	if errorCount == 0 && warnCount == 0 {
		fmt.Fprintln(globals.Stdout, "All checks passed!")
	} else {
		fmt.Fprintf(globals.Stdout, "Errors: %d, Warnings: %d\n", errorCount, warnCount)
	}

	return nil
}

func (c *DoctorCmd) checkConfig(globals *Globals, cfg *config.Config) checkResult {
	if err := cfg.Validate(); err != nil {
		return checkResult{
			Name:    "Config",
			Status:  "error",
			Message: "Configuration is invalid",
			Details: err.Error(),
		}
	}

	details := fmt.Sprintf("Format: %s, Port: %d, Actions: %s", cfg.Format, cfg.Relay.Port, strings.Join(cfg.Relay.Actions, ", "))
	if globals.ConfigFile == "" {
		return checkResult{
			Name:    "Config",
			Status:  "ok",
			Message: "Using defaults (no config file)",
			Details: details,
		}
	}

	absPath, _ := filepath.Abs(globals.ConfigFile)
	return checkResult{
		Name:    "Config",
		Status:  "ok",
		Message: fmt.Sprintf("Loaded from: %s", absPath),
		Details: details,
	}
}

func (c *DoctorCmd) checkMarkers(cfg config.RelayConfig) []checkResult {
	if cfg.MarkerStore == config.MarkerStoreMemory {
		return []checkResult{{
			Name:    "Markers",
			Status:  "warning",
			Message: "In-memory marker store",
			Details: "Concurrent hostlog processes will each start their own relays",
		}}
	}

	store, err := relay.NewFileStore(cfg.MarkerDir)
	if err != nil {
		return []checkResult{{
			Name:    "Marker directory",
			Status:  "error",
			Message: err.Error(),
			Details: hintForMarkerDir(err),
		}}
	}
	if !c.checkWritePermission(store.Dir()) {
		return []checkResult{{
			Name:    "Marker directory",
			Status:  "error",
			Message: fmt.Sprintf("%s is not writable", store.Dir()),
			Details: hintForMarkerDir(os.ErrPermission),
		}}
	}
	results := []checkResult{{
		Name:    "Marker directory",
		Status:  "ok",
		Message: store.Dir(),
	}}

	hosts, err := store.List()
	switch {
	case err != nil:
		results = append(results, checkResult{Name: "Markers", Status: "error", Message: "Failed to list markers", Details: err.Error()})
	case len(hosts) > 0:
		results = append(results, checkResult{
			Name:    "Markers",
			Status:  "warning",
			Message: fmt.Sprintf("%d marker(s) present: %s", len(hosts), strings.Join(hosts, ", ")),
			Details: "Left by a running or crashed run; relays for these hosts will not start. Clear with: hostlog markers clear",
		})
	default:
		results = append(results, checkResult{Name: "Markers", Status: "ok", Message: "No markers present"})
	}
	return results
}

func (c *DoctorCmd) checkServer(ctx context.Context, globals *Globals, cfg config.RelayConfig, addr string) checkResult {
	target := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		target = net.JoinHostPort(addr, strconv.Itoa(cfg.Port))
	}
	name := "Log server " + target
	globals.Debug("probing log server %s", target)

	dialer := &net.Dialer{Timeout: cfg.DialTimeoutDuration()}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return checkResult{
			Name:    name,
			Status:  "error",
			Message: "Not reachable",
			Details: err.Error(),
		}
	}
	_ = conn.Close()
	return checkResult{Name: name, Status: "ok", Message: "Accepting connections"}
}

// checkWritePermission checks if we can write to a directory
func (c *DoctorCmd) checkWritePermission(path string) bool {
	testFile := filepath.Join(path, ".hostlog_test_"+fmt.Sprint(os.Getpid()))
	f, err := os.Create(testFile)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(testFile)
	return true
}
