// Package obslog is the logging facility the core consumes per the
// Observability Contract (§6): four severities (debug, info, warn,
// error) with a tag, backed by github.com/rs/zerolog.
package obslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Tags for the components that log, mirroring the original firmware's
// per-module TAG_* constants.
const (
	TagMain     = "MAIN"
	TagSensor   = "SENSOR"
	TagPower    = "POWER"
	TagAnomaly  = "ANOMALY"
	TagRelay    = "RELAY"
	TagPublish  = "PUBLISH"
	TagWatchdog = "WATCHDOG"
)

// New builds the root logger, writing to w in zerolog's compact JSON
// form.
func New(w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(w).With().Timestamp().Logger()
}

// Default is New(os.Stderr), the logger cmd/monitor installs.
func Default() zerolog.Logger {
	return New(os.Stderr)
}

// For returns a child logger tagged for one component, e.g.
// obslog.For(root, obslog.TagRelay).
func For(root zerolog.Logger, tag string) zerolog.Logger {
	return root.With().Str("tag", tag).Logger()
}
