package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"ptbridge/config"
)

// registryInvalidator drops cached backend connections after a settings save.
type registryInvalidator interface {
	Invalidate()
}

type SettingsHandler struct {
	Manager  *config.Manager
	Registry registryInvalidator
}

func NewSettingsHandler(m *config.Manager, registry registryInvalidator) *SettingsHandler {
	return &SettingsHandler{Manager: m, Registry: registry}
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// Update handles PUT /api/settings. Saving invalidates cached backend
// connections so new client configs take effect on the next dispatch.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var settings config.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings body")
		return
	}

	if err := h.Manager.Save(settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.Registry != nil {
		h.Registry.Invalidate()
	}
	log.Printf("[settings] configuration saved: %d site(s), %d client(s)", len(settings.Sites), len(settings.Clients))
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
