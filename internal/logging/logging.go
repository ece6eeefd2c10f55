// Package logging builds the server's structured zerolog logger, the same
// way the teacher's monitoring package does: JSON by default, an optional
// console-pretty mode for local development, timestamp and caller on every
// record.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the logger's output encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatPretty
)

// Config configures New.
type Config struct {
	Level  zerolog.Level
	Format Format
}

// New builds a Logger tagged with service=chat-server.
func New(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level)

	var output = os.Stdout
	base := zerolog.New(output)
	if cfg.Format == FormatPretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return base.With().
		Timestamp().
		Caller().
		Str("service", "chat-server").
		Logger()
}
