package handlers

import (
	"net/http"
	"strconv"

	"github.com/voicekey/voicekey/internal/models"
	"github.com/voicekey/voicekey/internal/store"
)

type AdminHandler struct {
	store *store.ProfileStore
}

func NewAdminHandler(st *store.ProfileStore) *AdminHandler {
	return &AdminHandler{store: st}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) RecentAttempts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	attempts, err := h.store.RecentAttempts(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if attempts == nil {
		attempts = []models.AuthenticationAttempt{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts, "count": len(attempts)})
}
