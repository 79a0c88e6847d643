// Recengine - Popularity Scoring and Recommendation Serving
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recengine

package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every line written by a logger from New.
const ServiceName = "recengine"

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, fatal, panic, disabled.
	Level string

	// Format is json (default) or console.
	Format string

	// Caller adds file:line to each line.
	Caller bool

	// Timestamp adds an RFC3339 "time" field.
	Timestamp bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	mu     sync.RWMutex
	global zerolog.Logger
)

//nolint:gochecknoinits // package-level helpers must work before Init
func init() {
	Init(DefaultConfig())
}

// New builds a logger from cfg without touching global state.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	lc := zerolog.New(out).Level(parseLevel(cfg.Level)).With().Str("service", ServiceName)
	if cfg.Timestamp {
		lc = lc.Timestamp()
	}
	if cfg.Caller {
		lc = lc.Caller()
	}
	return lc.Logger()
}

// Init replaces the process-wide logger. Loggers handed out by Component
// before the call keep their old configuration.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.MessageFieldName = "message"

	l := New(cfg)

	mu.Lock()
	global = l
	zerolog.DefaultContextLogger = &l
	mu.Unlock()
}

// Logger returns the process-wide logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Component returns the process-wide logger tagged with component=name.
//
//	store.Open(ctx, cfg, logging.Component("store"))
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// ValidLevel reports whether level names a zerolog level. The empty string
// is not a level.
func ValidLevel(level string) bool {
	level = normalizeLevel(level)
	if level == "" {
		return false
	}
	_, err := zerolog.ParseLevel(level)
	return err == nil
}

// parseLevel falls back to info for anything zerolog does not recognize.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(normalizeLevel(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return "warn"
	}
	return level
}

// Debug starts a debug event on the process-wide logger.
func Debug() *zerolog.Event {
	l := Logger()
	return l.Debug()
}

// Info starts an info event on the process-wide logger.
//
//	logging.Info().Str("addr", addr).Msg("Starting supervisor tree")
func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

// Warn starts a warn event on the process-wide logger.
func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

// Error starts an error event on the process-wide logger.
func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}

// Fatal starts a fatal event; the process exits with status 1 after it is written.
func Fatal() *zerolog.Event {
	l := Logger()
	return l.Fatal()
}
