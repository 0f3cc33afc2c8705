package cli

import (
	"fmt"

	"github.com/vburojevic/hostlog/internal/output"
)

// newEmitter builds the display sink for a command run
func newEmitter(globals *Globals, runID string) *output.Emitter {
	format := output.FormatText
	if globals.Format == "ndjson" {
		format = output.FormatNDJSON
	}
	return output.NewEmitter(globals.Stdout, output.EmitterOptions{
		Format: format,
		RunID:  runID,
		Color:  format == output.FormatText && output.ColorEnabled(globals.Stdout),
		Quiet:  globals.Quiet,
	})
}

// emitWarning respects format/quiet.
func emitWarning(globals *Globals, emitter *output.Emitter, msg string) {
	if globals.Quiet {
		return
	}
	if globals.Format == "ndjson" && emitter != nil {
		_ = emitter.Warning(msg)
		return
	}
	fmt.Fprintf(globals.Stderr, "Warning: %s\n", msg)
}
