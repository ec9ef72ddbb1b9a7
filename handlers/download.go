package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"ptbridge/models"
	"ptbridge/services/download"
)

type downloadService interface {
	Dispatch(context.Context, models.DownloadRequest) models.DownloadOutcome
	FreeSpace(ctx context.Context, clientID, path string) (int64, error)
}

var _ downloadService = (*download.Service)(nil)

type DownloadHandler struct {
	Service downloadService
}

func NewDownloadHandler(s downloadService) *DownloadHandler {
	return &DownloadHandler{Service: s}
}

// Dispatch handles POST /api/download with a DownloadRequest body. The
// response always carries a definitive outcome; invalid requests answer 400,
// everything else 200 with the outcome's own classification.
func (h *DownloadHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req models.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome := h.Service.Dispatch(r.Context(), req)

	status := http.StatusOK
	if outcome.Error == models.ErrorKindInvalidRequest {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, outcome)
}

// FreeSpace handles GET /api/download/freespace?clientId=...&path=...
func (h *DownloadHandler) FreeSpace(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
	path := strings.TrimSpace(r.URL.Query().Get("path"))

	bytes, err := h.Service.FreeSpace(r.Context(), clientID, path)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"sizeBytes": bytes})
}

func (h *DownloadHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
