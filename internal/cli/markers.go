package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/vburojevic/hostlog/internal/relay"
	"go.uber.org/zap"
)

// MarkersCmd inspects the relay markers shared between processes
type MarkersCmd struct {
	List  MarkersListCmd  `cmd:"" default:"withargs" help:"List hosts with a relay marker"`
	Clear MarkersClearCmd `cmd:"" help:"Remove relay markers so hosts get relayed again"`
}

// MarkersListCmd lists relay markers
type MarkersListCmd struct {
	Dir string `type:"path" help:"Marker directory (default from config)"`
}

// Run executes the markers list command
func (c *MarkersListCmd) Run(globals *Globals) error {
	store, err := openMarkers(globals, c.Dir)
	if err != nil {
		return err
	}
	hosts, err := store.List()
	if err != nil {
		return outputErrorCommon(globals, "MARKER_STORE", err.Error(), hintForMarkerDir(err))
	}

	if globals.Format == "ndjson" {
		w := newWriter(globals)
		for _, host := range hosts {
			if err := w.WriteMarker(host, store.Path(host), markerCreated(store, host)); err != nil {
				return err
			}
		}
		return nil
	}

	if len(hosts) == 0 {
		fmt.Fprintf(globals.Stdout, "No relay markers in %s\n", store.Dir())
		return nil
	}

	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("Host", "Created", "Path")
	for _, host := range hosts {
		created := "-"
		if t := markerCreated(store, host); !t.IsZero() {
			created = t.Local().Format(time.DateTime)
		}
		if err := table.Append([]string{host, created, store.Path(host)}); err != nil {
			return err
		}
	}
	return table.Render()
}

// MarkersClearCmd removes relay markers
type MarkersClearCmd struct {
	Hosts []string `arg:"" optional:"" help:"Hosts to clear (default: all)"`
	Dir   string   `type:"path" help:"Marker directory (default from config)"`
}

// Run executes the markers clear command
func (c *MarkersClearCmd) Run(globals *Globals) error {
	store, err := openMarkers(globals, c.Dir)
	if err != nil {
		return err
	}
	hosts := c.Hosts
	if len(hosts) == 0 {
		if hosts, err = store.List(); err != nil {
			return outputErrorCommon(globals, "MARKER_STORE", err.Error(), hintForMarkerDir(err))
		}
	}

	if err := relay.NewRegistry(store, globals.Log()).ForgetAll(hosts); err != nil {
		return outputErrorCommon(globals, "MARKER_STORE", err.Error(), "Check permissions on "+store.Dir())
	}
	globals.Log().Debug("markers cleared", zap.Strings("hosts", hosts), zap.String("dir", store.Dir()))

	if globals.Format == "ndjson" {
		return newWriter(globals).WriteMarkersCleared(store.Dir(), hosts)
	}
	fmt.Fprintf(globals.Stdout, "Cleared %d relay marker(s) in %s\n", len(hosts), store.Dir())
	return nil
}

func openMarkers(globals *Globals, dir string) (*relay.FileStore, error) {
	if dir == "" {
		dir = globals.Config.Relay.MarkerDir
	}
	store, err := relay.NewFileStore(dir)
	if err != nil {
		return nil, outputErrorCommon(globals, "MARKER_STORE", err.Error(), "Pass --dir or set relay.marker_dir")
	}
	return store, nil
}

func markerCreated(store *relay.FileStore, host string) time.Time {
	info, err := os.Stat(store.Path(host))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
