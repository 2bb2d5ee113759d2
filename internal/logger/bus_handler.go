package logger

import (
	"context"
	"log/slog"

	"github.com/tokenpulse/tokenpulse/internal/eventbus"
)

var _ slog.Handler = (*BusHandler)(nil)

// BusHandler wraps another slog.Handler and additionally forwards every
// record carrying a "stage" attribute to the EventBus as a ScrapeLog event,
// matching spec.md §6.5's "stage output becomes each stage's slog output
// routed through a slog.Handler that also forwards records to the
// EventBus" contract. Records with no "stage" attribute (ordinary process
// logs) pass through to next but are never broadcast.
type BusHandler struct {
	next  slog.Handler
	bus   *eventbus.Bus
	attrs []slog.Attr
}

func NewBusHandler(next slog.Handler, bus *eventbus.Bus) *BusHandler {
	return &BusHandler{next: next, bus: bus}
}

func (h *BusHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *BusHandler) Handle(ctx context.Context, r slog.Record) error {
	if stage, ok := h.stage(r); ok {
		h.bus.Publish(eventbus.ScrapeLog{Stage: stage, Line: r.Message, Timestamp: r.Time})
	}
	return h.next.Handle(ctx, r)
}

func (h *BusHandler) stage(r slog.Record) (string, bool) {
	for _, a := range h.attrs {
		if a.Key == "stage" {
			return a.Value.String(), true
		}
	}
	var stage string
	found := false
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "stage" {
			stage = a.Value.String()
			found = true
		}
		return true
	})
	return stage, found
}

func (h *BusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BusHandler{
		next:  h.next.WithAttrs(attrs),
		bus:   h.bus,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *BusHandler) WithGroup(name string) slog.Handler {
	return &BusHandler{next: h.next.WithGroup(name), bus: h.bus, attrs: h.attrs}
}
