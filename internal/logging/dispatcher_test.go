package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(dl *DispatcherLogger)
		level string
		msg   string
		key   string
		want  any
	}{
		{
			name:  "debug",
			log:   func(dl *DispatcherLogger) { dl.Debug("handling event", "command", "start-recording") },
			level: "DEBUG",
			msg:   "handling event",
			key:   "command",
			want:  "start-recording",
		},
		{
			name:  "info",
			log:   func(dl *DispatcherLogger) { dl.Info("event complete", "status", "ok") },
			level: "INFO",
			msg:   "event complete",
			key:   "status",
			want:  "ok",
		},
		{
			name:  "error",
			log:   func(dl *DispatcherLogger) { dl.Error("event failed", "code", 500) },
			level: "ERROR",
			msg:   "event failed",
			key:   "code",
			want:  float64(500), // JSON numbers are float64
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			dl := NewDispatcherLogger(logger)

			tt.log(dl)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("failed to parse log output: %v", err)
			}
			if entry["level"] != tt.level {
				t.Errorf("expected level %q, got %v", tt.level, entry["level"])
			}
			if entry["msg"] != tt.msg {
				t.Errorf("expected msg %q, got %v", tt.msg, entry["msg"])
			}
			if entry[tt.key] != tt.want {
				t.Errorf("expected %s=%v, got %v", tt.key, tt.want, entry[tt.key])
			}
		})
	}
}

func TestDispatcherLogger_ImplementsInterface(t *testing.T) {
	dl := NewDispatcherLogger(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))

	var _ interface {
		Debug(msg string, keysAndValues ...any)
		Info(msg string, keysAndValues ...any)
		Error(msg string, keysAndValues ...any)
	} = dl
}
