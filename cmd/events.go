// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Event log entry shown in the panel
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for warnings and errors
}

// eventHandler is a slog.Handler that feeds records into the panel's event
// log. Records are dropped rather than blocking the simulator when the UI
// falls behind.
type eventHandler struct {
	ch    chan eventLogEntry
	level slog.Level
	attrs []slog.Attr
	group string
}

func newEventHandler(buffer int, level slog.Level) *eventHandler {
	return &eventHandler{ch: make(chan eventLogEntry, buffer), level: level}
}

func (h *eventHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *eventHandler) Handle(_ context.Context, r slog.Record) error {
	var s strings.Builder
	s.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&s, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&s, h.group, a)
		return true
	})

	select {
	case h.ch <- eventLogEntry{timestamp: r.Time, message: s.String(), isError: r.Level >= slog.LevelWarn}:
	default:
	}
	return nil
}

func (h *eventHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		// Qualify now so later groups do not apply to earlier attributes
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *eventHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		name = clone.group + "." + name
	}
	clone.group = name
	return &clone
}

func writeAttr(s *strings.Builder, group string, a slog.Attr) {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	fmt.Fprintf(s, " %s=%v", key, a.Value.Resolve())
}

// waitForEvent delivers the next log record to the panel
func waitForEvent(ch <-chan eventLogEntry) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

type eventMsg eventLogEntry
