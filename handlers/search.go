package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ptbridge/models"
	"ptbridge/services/search"
)

type searchService interface {
	Search(context.Context, search.SearchOptions) (models.SearchOutcome, error)
}

var _ searchService = (*search.Service)(nil)

type SearchHandler struct {
	Service searchService
}

func NewSearchHandler(s searchService) *SearchHandler {
	return &SearchHandler{Service: s}
}

// Search handles GET /api/search?q=...&site=a&site=b&timeoutSec=...
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	opts := search.SearchOptions{
		Query: query,
		Sites: r.URL.Query()["site"],
	}
	if raw := r.URL.Query().Get("timeoutSec"); raw != "" {
		if sec, err := strconv.Atoi(raw); err == nil && sec > 0 {
			opts.Timeout = time.Duration(sec) * time.Second
		}
	}

	outcome, err := h.Service.Search(r.Context(), opts)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, search.ErrNoTargetSites) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *SearchHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
