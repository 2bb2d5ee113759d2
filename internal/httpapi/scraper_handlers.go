package httpapi

import (
	"context"
	"net/http"

	"github.com/tokenpulse/tokenpulse/internal/model"
)

// Supervisor is the narrow surface the control plane needs from
// internal/supervisor.
type Supervisor interface {
	Start(ctx context.Context) error
	Stop() error
	State() model.PipelineStateName
}

// PostStore is the narrow read/reset surface the control plane needs from
// internal/store for /api/scraper/data and the empty-array reset on start.
type PostStore interface {
	Read() ([]model.Post, error)
	Replace(items []model.Post) error
}

// ScraperHandlers implements the /api/scraper/* REST surface (spec.md §6).
type ScraperHandlers struct {
	supervisor Supervisor
	posts      PostStore
	// baseCtx outlives any single request; the scrape stage it launches must
	// keep running after this handler returns and net/http cancels
	// r.Context(), so Start is seeded from this instead of the request.
	baseCtx context.Context
}

func NewScraperHandlers(ctx context.Context, supervisor Supervisor, posts PostStore) *ScraperHandlers {
	return &ScraperHandlers{supervisor: supervisor, posts: posts, baseCtx: ctx}
}

// Start overwrites the ScrapeStore with an empty array (spec.md §6's
// documented start side effect) and launches the scraper stage.
func (h *ScraperHandlers) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Replace(nil); err != nil {
		respondError(w, err)
		return
	}
	if err := h.supervisor.Start(h.baseCtx); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *ScraperHandlers) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.Stop(); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "stop requested"})
}

func (h *ScraperHandlers) Status(w http.ResponseWriter, r *http.Request) {
	state := h.supervisor.State()
	respondJSON(w, http.StatusOK, map[string]any{"running": state == model.StateScraping})
}

func (h *ScraperHandlers) Data(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Read()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(posts), "data": posts})
}
