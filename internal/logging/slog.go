package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// Indirection over os.Stdout so tests can capture console output.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager owns the application logger: a session log file (or stdout
// when none is given) plus an optional GELF sink for Graylog.
type SlogManager struct {
	logger     *slog.Logger
	gelfWriter *gelf.Writer
}

// NewSlogManager creates an unconfigured logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. Records go to file when one is
// provided, to stdout otherwise, and additionally to Graylog when gelfAddr
// is non-empty. A non-nil provider injects dynamic attributes (current mode,
// replay tick) into every record.
func (m *SlogManager) Setup(file io.Writer, level string, gelfAddr string, provider ContextProvider) error {
	lvl := parseLevel(level)

	// RFC3339 timestamps in every sink
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if gelfAddr != "" {
		w, err := gelf.NewWriter(gelfAddr)
		if err != nil {
			return fmt.Errorf("creating GELF writer for %s: %w", gelfAddr, err)
		}
		m.gelfWriter = w
		handlers = append(handlers, slog.NewJSONHandler(w, handlerOpts))
	}

	var root slog.Handler = NewMultiHandler(handlers...)
	if provider != nil {
		root = NewContextHandler(root, provider)
	}

	m.logger = slog.New(root)
	m.logger.Info("Logging initialized", "level", level, "graylog", gelfAddr != "")
	return nil
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}
