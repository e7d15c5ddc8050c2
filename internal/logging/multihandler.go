package logging

import (
	"context"
	"log/slog"
)

// MultiHandler fans one record out to several handlers, letting the session
// log file, stdout and the GELF sink receive the same stream. Nil handlers
// are dropped at construction so callers can pass optional sinks directly.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a handler fanning out to every non-nil handler.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	valid := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h == nil {
			continue
		}
		valid = append(valid, h)
	}
	return &MultiHandler{handlers: valid}
}

// Enabled reports whether at least one sink wants records at this level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every enabled sink. A failing sink never
// stops delivery to the others; one dead sink must not silence the rest.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		_ = h.Handle(ctx, r.Clone())
	}
	return nil
}

// WithAttrs applies the attributes to every sink.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: next}
}

// WithGroup applies the group to every sink. The empty group is a no-op per
// the slog.Handler contract.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: next}
}
