// Package logging builds the diagnostic logger. Diagnostics are kept apart
// from display output and always go to stderr.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the logger level
type Options struct {
	Verbosity int
	Quiet     bool
	// Output defaults to stderr
	Output io.Writer
}

// Level maps CLI verbosity to a log level: -vvv enables debug, --quiet
// keeps only warnings and errors
func Level(verbosity int, quiet bool) zapcore.Level {
	switch {
	case quiet:
		return zapcore.WarnLevel
	case verbosity >= 3:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// New creates a console logger
func New(opts Options) *zap.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(out),
		Level(opts.Verbosity, opts.Quiet),
	)
	return zap.New(core)
}
