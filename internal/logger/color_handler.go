package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
)

var _ slog.Handler = (*ColorHandler)(nil)

// ColorHandler is a slog.Handler that renders level-colored, single-line
// records to a terminal. Used in development; production uses slog's JSON
// handler instead.
type ColorHandler struct {
	level     slog.Level
	outStream io.Writer
	errStream io.Writer
	attrs     []slog.Attr
	groups    []string
}

func NewColorHandler(level slog.Level, out, errw io.Writer) *ColorHandler {
	return &ColorHandler{level: level, outStream: out, errStream: errw}
}

func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	timestamp := r.Time.Format("15:04:05")

	var levelText string
	switch r.Level {
	case slog.LevelDebug:
		levelText = color.New(color.FgCyan).Sprint("DEBUG")
	case slog.LevelInfo:
		levelText = color.New(color.FgGreen).Sprint("INFO")
	case slog.LevelWarn:
		levelText = color.New(color.FgYellow).Sprint("WARN")
	case slog.LevelError:
		levelText = color.New(color.FgRed).Sprint("ERROR")
	default:
		levelText = r.Level.String()
	}

	msg := fmt.Sprintf("[%s] %-5s %s", timestamp, levelText, r.Message)

	var attrs []slog.Attr
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)
		return true
	})

	for _, attr := range attrs {
		msg += fmt.Sprintf(" %s=%v", color.New(color.Faint).Sprint(attr.Key), attr.Value)
	}

	out := h.outStream
	if r.Level >= slog.LevelError {
		out = h.errStream
	}
	_, err := fmt.Fprintln(out, msg)
	return err
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}
