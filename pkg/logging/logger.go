// Package logging configures the zerolog logger shared by the sync engine.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentClient     = "marketplace-client"
	ComponentPagination = "history-fetcher"
	ComponentEnrichment = "stock-enrichment"
	ComponentStore      = "store"
	ComponentSync       = "sync"
	ComponentAPI        = "api"
	ComponentRateLimit  = "ratelimit"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON lines.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger tagged with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-attempt and per-item flow
//   - every upstream attempt (attempt, endpoint, elapsed)
//   - every fetched page, every enrichment outcome
//   - cache hits and misses
//
// Info: run summaries
//   - refresh finished (items, pages, complete)
//   - stock sync finished (updated, unchanged, failed)
//   - server startup/shutdown
//
// Warn: degraded but continuing
//   - rate limited, retrying after backoff
//   - partial history fetch
//   - corrupt store document replaced by an empty dataset
//   - orders dropped because the upstream no longer returns them
//
// Error: the run failed
//   - retry attempts exhausted
//   - store write failed
//   - configuration errors
//
// Context Fields:
//   - run_id: id of one refresh or stock sync run
//   - endpoint: upstream path
//   - status: HTTP status code
//   - attempt: attempt number starting at 1
//   - error_class: rate_limit, client, server, network
//   - page, total_pages: pagination progress
//   - product_id, order_id: entity identity
