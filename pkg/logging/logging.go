// Package logging configures the process-wide structured logger on log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the handler built by Setup.
type Config struct {
	// Level is the minimum level emitted.
	Level slog.Level
	// JSON switches from the human-readable text handler to JSON lines.
	JSON bool
	// Output receives the log stream. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig builds the configuration from the environment:
// LOG_LEVEL (DEBUG, INFO, WARN, ERROR; default INFO) and
// LOG_FORMAT ("json" for JSON lines; anything else means text).
func DefaultConfig() Config {
	return Config{
		Level:  levelFromEnv(os.Getenv("LOG_LEVEL")),
		JSON:   strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),
		Output: os.Stderr,
	}
}

func levelFromEnv(value string) slog.Level {
	switch strings.ToUpper(value) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger from cfg and installs it as the slog default, so
// packages that log through the package-level slog functions share the
// same handler.
func Setup(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
