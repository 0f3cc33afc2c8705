package cli

import (
	"fmt"

	"github.com/vburojevic/hostlog/internal/output"
)

// CLIError is a failure that was already reported to the user in the
// selected format. main only sets the exit status for it.
type CLIError struct {
	Code    string
	Message string
	Hint    string
}

func (e *CLIError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// ExitCode is 2 for usage and configuration mistakes, 1 for everything else
func (e *CLIError) ExitCode() int {
	switch e.Code {
	case "INVALID_FLAGS", "INVALID_CONFIG":
		return 2
	default:
		return 1
	}
}

func newWriter(globals *Globals) *output.NDJSONWriter {
	return output.NewNDJSONWriter(globals.Stdout)
}

// outputErrorCommon normalizes error emission across commands, respecting
// ndjson vs text formats so scripted callers always get machine-readable failures.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	h := ""
	if len(hint) > 0 {
		h = hint[0]
	}
	if globals != nil && globals.Format == "ndjson" {
		_ = newWriter(globals).WriteError(code, message, h)
	} else if globals != nil {
		fmt.Fprintf(globals.Stderr, "Error [%s]: %s\n", code, message)
		if h != "" {
			fmt.Fprintf(globals.Stderr, "Hint: %s\n", h)
		}
	}
	return &CLIError{Code: code, Message: message, Hint: h}
}
