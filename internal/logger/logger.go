// Package logger selects and constructs the process-wide slog handler.
package logger

import (
	"log/slog"
	"os"

	"github.com/tokenpulse/tokenpulse/internal/eventbus"
)

// New builds the root slog.Logger: a colorized single-line handler in
// development, structured JSON everywhere else. When bus is non-nil, every
// record carrying a "stage" attribute is additionally forwarded to it as a
// ScrapeLog event (see BusHandler), giving /ws subscribers the pipeline's
// line-buffered stage output.
func New(env string, level slog.Level, bus *eventbus.Bus) *slog.Logger {
	var handler slog.Handler
	if env == "development" || env == "" {
		handler = NewColorHandler(level, os.Stdout, os.Stderr)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	if bus != nil {
		handler = NewBusHandler(handler, bus)
	}
	return slog.New(handler)
}
