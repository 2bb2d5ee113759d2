// Package httpapi implements the REST control plane (spec.md §6) and the
// /ws duplex channel, grounded on the teacher's internal/api/router.go
// (chi.NewRouter + cors.Handler) and internal/api/websocket_handler.go.
package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/tokenpulse/tokenpulse/internal/eventbus"
)

// Router wires the control-plane routes and the /ws handler.
type Router struct {
	handlers *ScraperHandlers
	ws       *WebSocketHandler
	origins  []string
}

func NewRouter(handlers *ScraperHandlers, bus *eventbus.Bus, corsOrigins string, initialSnapshot func() eventbus.Event) *Router {
	return &Router{
		handlers: handlers,
		ws:       NewWebSocketHandler(bus, initialSnapshot),
		origins:  splitOrigins(corsOrigins),
	}
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// Setup builds the chi mux: request-ID + structured logging + panic
// recovery + CORS, then the routes themselves.
func (rt *Router) Setup(wsPath string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger)
	r.Use(panicRecovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("tokenpulse pipeline service"))
	})

	r.Route("/api/scraper", func(api chi.Router) {
		api.Post("/start", rt.handlers.Start)
		api.Post("/stop", rt.handlers.Stop)
		api.Get("/status", rt.handlers.Status)
		api.Get("/data", rt.handlers.Data)
	})

	r.Get(wsPath, rt.ws.Handle)

	return r
}

// requestLogger is adapted from the teacher's
// internal/middleware/request_logger.go, simplified from logrus.Fields to
// structured slog attrs (logrus itself is dropped, see DESIGN.md).
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid := chimiddleware.GetReqID(r.Context())
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Info("http request",
			slog.String("request_id", rid),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// panicRecovery is adapted from the teacher's
// internal/middleware/panic_recovery.go, generalized from a connect-RPC
// unary interceptor to a plain http.Handler wrapper.
func panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in http handler",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
				)
				respondJSON(w, http.StatusInternalServerError, map[string]any{
					"success": false,
					"message": "internal server error",
					"id":      uuid.NewString(),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
