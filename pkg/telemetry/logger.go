// Package telemetry wires structured logging and Prometheus metrics
// for the deployment pipeline.
package telemetry

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig controls the global logger.
type LogConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string

	// JSON emits machine-readable output instead of the console format.
	JSON bool

	// Output defaults to stderr.
	Output io.Writer
}

// SetupLogger configures the global zerolog logger. Called once at
// process start.
func SetupLogger(cfg LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
