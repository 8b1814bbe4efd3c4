// Package logging configures structured logging for the game builder
// backend using log/slog.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// serviceName tags every record so log aggregation can tell this
// backend apart from the sandbox and deploy services.
const serviceName = "gamebuilder-api"

// Level is a package-level LevelVar that allows runtime log level changes.
var Level slog.LevelVar

// Setup initialises the default slog logger from environment variables:
//
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, text (default: json)
//
// It also bridges the standard library "log" package so that http.Server
// and other log.Printf callers are captured in structured format.
func Setup() {
	SetupWithConfig(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stderr)
}

// SetupWithConfig configures slog with explicit parameters (useful for testing).
func SetupWithConfig(levelStr, formatStr string, w io.Writer) {
	Level.Set(ParseLevel(levelStr))

	opts := &slog.HandlerOptions{Level: &Level}
	if Level.Level() <= slog.LevelDebug {
		// Call sites are cheap to record once the level is this chatty
		// and save a round of grepping when debugging stream teardown.
		opts.AddSource = true
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(formatStr)) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler).With("service", serviceName)
	slog.SetDefault(logger)

	// Bridge stdlib log -> slog so that log.Printf calls from net/http
	// and third-party code are captured with structured output.
	log.SetOutput(&slogWriter{logger: logger})
	log.SetFlags(0) // slog handles timestamps
}

// ParseLevel converts a string to slog.Level. Defaults to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// slogWriter adapts slog.Logger to io.Writer for the stdlib log bridge.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimRight(string(p), "\n")
	// http.Server reports dropped connections and TLS noise through
	// log.Printf with an "http:" prefix. Those are worth surfacing.
	if strings.HasPrefix(msg, "http:") {
		w.logger.Warn(msg, "source", "stdlib")
	} else {
		w.logger.Info(msg, "source", "stdlib")
	}
	return len(p), nil
}
