// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inspectorui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a slog record to the bubbletea model for
// display in the status bar.
type logRecordMsg struct {
	// Summary is the human-readable one-line message for the status bar.
	Summary string

	// Level is the slog level for styling (warn vs error).
	Level slog.Level
}

// logRecordFadeMsg clears a log message from the status bar. Sequence
// matches the record it was scheduled for, so that an older fade does
// not clear a newer message.
type logRecordFadeMsg struct {
	Sequence int
}

// logRecordFadeDelay is how long log messages stay visible in the
// status bar before fading back to the keyboard help line.
const logRecordFadeDelay = 5 * time.Second

// sender is the part of *tea.Program the handler uses.
type sender interface {
	Send(message tea.Msg)
}

// TUILogHandler is a slog.Handler that routes log records into a
// bubbletea program as messages. Records below the configured level
// are not shown. A tee handler, if given, receives every record the
// tee itself enables, whether or not the program is running; the
// command uses it to write JSON records to a file.
//
// Call SetProgram once the tea.Program is created. Records arriving
// before that reach only the tee. All handlers derived via
// WithAttrs/WithGroup share the same program pointer.
type TUILogHandler struct {
	level   slog.Level
	program *atomic.Pointer[sender]
	tee     slog.Handler
	attrs   []slog.Attr
	groups  []string
}

// NewTUILogHandler creates a handler that delivers log records at or
// above level to the bubbletea program. tee may be nil.
func NewTUILogHandler(level slog.Level, tee slog.Handler) *TUILogHandler {
	return &TUILogHandler{
		level:   level,
		program: &atomic.Pointer[sender]{},
		tee:     tee,
	}
}

// SetProgram sets the bubbletea program that receives log messages.
// Safe to call from any goroutine.
func (handler *TUILogHandler) SetProgram(program *tea.Program) {
	handler.setSender(program)
}

func (handler *TUILogHandler) setSender(target sender) {
	handler.program.Store(&target)
}

// Enabled reports whether the handler or its tee is interested in
// records at the given level.
func (handler *TUILogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= handler.level {
		return true
	}
	return handler.tee != nil && handler.tee.Enabled(ctx, level)
}

// Handle forwards the record to the tee and, at or above the level,
// formats it and sends it to the bubbletea program.
func (handler *TUILogHandler) Handle(ctx context.Context, record slog.Record) error {
	var teeErr error
	if handler.tee != nil && handler.tee.Enabled(ctx, record.Level) {
		teeErr = handler.tee.Handle(ctx, record)
	}

	program := handler.program.Load()
	if program == nil || record.Level < handler.level {
		return teeErr
	}

	(*program).Send(logRecordMsg{
		Summary: handler.summarize(record),
		Level:   record.Level,
	})
	return teeErr
}

// summarize builds the status bar line: "message (key=value, ...)".
func (handler *TUILogHandler) summarize(record slog.Record) string {
	prefix := ""
	if len(handler.groups) > 0 {
		prefix = strings.Join(handler.groups, ".") + "."
	}

	var attrParts []string
	for _, attr := range handler.attrs {
		attrParts = append(attrParts, fmt.Sprintf("%s=%s", attr.Key, attr.Value))
	}
	record.Attrs(func(attr slog.Attr) bool {
		attrParts = append(attrParts, fmt.Sprintf("%s%s=%s", prefix, attr.Key, attr.Value))
		return true
	})

	if len(attrParts) == 0 {
		return record.Message
	}
	return record.Message + " (" + strings.Join(attrParts, ", ") + ")"
}

// WithAttrs returns a new handler with the given attributes appended.
func (handler *TUILogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := &TUILogHandler{
		level:   handler.level,
		program: handler.program,
		tee:     handler.tee,
		attrs:   append(sliceClone(handler.attrs), attrs...),
		groups:  sliceClone(handler.groups),
	}
	if handler.tee != nil {
		derived.tee = handler.tee.WithAttrs(attrs)
	}
	return derived
}

// WithGroup returns a new handler with the given group name appended.
func (handler *TUILogHandler) WithGroup(name string) slog.Handler {
	derived := &TUILogHandler{
		level:   handler.level,
		program: handler.program,
		tee:     handler.tee,
		attrs:   sliceClone(handler.attrs),
		groups:  append(sliceClone(handler.groups), name),
	}
	if handler.tee != nil {
		derived.tee = handler.tee.WithGroup(name)
	}
	return derived
}

// ParseLevel parses a level name as written in configuration.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, errors.Join(fmt.Errorf("invalid log level %q", name), err)
	}
	return level, nil
}

// sliceClone returns a shallow copy of a slice. Avoids aliasing when
// building derived handlers with WithAttrs/WithGroup.
func sliceClone[T any](source []T) []T {
	if source == nil {
		return nil
	}
	result := make([]T, len(source))
	copy(result, source)
	return result
}
