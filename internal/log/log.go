// Package log constructs the process-wide zap logger. Grounded on
// pobradovic08-route-beacon-ri's style of threading an explicit
// *zap.Logger into constructors rather than reaching for a package-level
// global; bgpgrep's own per-file diagnostics (spec §6's exact
// "<prog>: message" / "<source>:<lineno>: message" formats) are written
// directly to stderr and never go through zap, since their format is
// part of the external contract and must not pick up zap's own framing.
// Per-record filter execution errors are logged through zap.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger for normal operation: human-readable console output
// on stderr, info level by default, debug when verbose is set (the -d
// bytecode dump implies verbose lifecycle logging too).
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

// Nop returns a logger that discards everything, for tests and library
// callers that don't want bgpgrep's lifecycle chatter.
func Nop() *zap.Logger { return zap.NewNop() }
