// Package logging provides an slog.Handler that tees log records into the
// store's logs table so they are queryable through /api/logs.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LogSink is the slice of the store this handler needs.
type LogSink interface {
	InsertLog(level, logger, message string) error
}

// StoreHandler forwards every record to an inner handler and persists
// records at or above minLevel. Insert failures are dropped silently;
// logging the logger would recurse.
type StoreHandler struct {
	inner    slog.Handler
	sink     LogSink
	minLevel slog.Level
	group    string
}

// NewStoreHandler wraps inner. minLevel controls which records are
// persisted; console output keeps the inner handler's own level.
func NewStoreHandler(inner slog.Handler, sink LogSink, minLevel slog.Level) *StoreHandler {
	return &StoreHandler{
		inner:    inner,
		sink:     sink,
		minLevel: minLevel,
	}
}

// ParseLevel maps a config string to an slog.Level. "off" (or anything
// unknown) effectively disables persistence by returning a huge level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.Level(100)
	}
}

func (h *StoreHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level) || level >= h.minLevel
}

func (h *StoreHandler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= h.minLevel {
		component := h.group
		var b strings.Builder
		b.WriteString(rec.Message)
		rec.Attrs(func(a slog.Attr) bool {
			if a.Key == "component" {
				component = a.Value.String()
				return true
			}
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		})
		_ = h.sink.InsertLog(rec.Level.String(), component, b.String())
	}

	if h.inner.Enabled(ctx, rec.Level) {
		return h.inner.Handle(ctx, rec)
	}
	return nil
}

func (h *StoreHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	for _, a := range attrs {
		if a.Key == "component" {
			clone.group = a.Value.String()
		}
	}
	return &clone
}

func (h *StoreHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	return &clone
}
