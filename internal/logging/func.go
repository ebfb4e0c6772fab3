package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// FuncHandler is a slog.Handler that renders each record as a single
// human-readable line and passes it to a callback. It is how a host UI
// receives the engine's log stream.
type FuncHandler struct {
	mu    *sync.Mutex
	fn    func(string)
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewFuncHandler returns a handler delivering lines at or above level to fn.
func NewFuncHandler(fn func(string), level slog.Leveler) *FuncHandler {
	return &FuncHandler{mu: &sync.Mutex{}, fn: fn, level: level}
}

// NewFuncLogger is a shortcut for NewSlogLogger(slog.New(NewFuncHandler(...))).
func NewFuncLogger(fn func(string), level slog.Leveler) *SlogLogger {
	return NewSlogLogger(slog.New(NewFuncHandler(fn, level)))
}

func (h *FuncHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *FuncHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if r.Level != slog.LevelInfo {
		b.WriteString("[")
		b.WriteString(r.Level.String())
		b.WriteString("] ")
	}
	b.WriteString(r.Message)

	write := func(a slog.Attr) {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Resolve())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.fn(b.String())
	return nil
}

func (h *FuncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &nh
}

func (h *FuncHandler) WithGroup(name string) slog.Handler {
	nh := *h
	if nh.group != "" {
		nh.group += "." + name
	} else {
		nh.group = name
	}
	return &nh
}
