package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tokenpulse/tokenpulse/internal/apperrors"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", slog.Any("err", err))
	}
}

func respondError(w http.ResponseWriter, err error) {
	if ae, ok := err.(*apperrors.AppError); ok {
		respondJSON(w, ae.Code, map[string]any{"success": false, "message": ae.Message})
		return
	}
	respondJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": err.Error()})
}
