package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"ptbridge/models"
	"ptbridge/services/history"
)

type historyService interface {
	List(ctx context.Context, limit int) ([]models.DownloadHistoryItem, error)
	Remove(ctx context.Context, ids []string) error
	Clear(ctx context.Context) error
}

var _ historyService = (*history.Service)(nil)

type HistoryHandler struct {
	Service historyService
}

func NewHistoryHandler(s historyService) *HistoryHandler {
	return &HistoryHandler{Service: s}
}

// List handles GET /api/history?limit=...
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	items, err := h.Service.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []models.DownloadHistoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Remove handles DELETE /api/history with {"ids": [...]} in the body.
func (h *HistoryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Service.Remove(r.Context(), req.IDs); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles POST /api/history/clear.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HistoryHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
