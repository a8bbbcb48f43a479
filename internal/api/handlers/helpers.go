package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voicekey/voicekey/internal/analysis"
	"github.com/voicekey/voicekey/internal/feature"
	"github.com/voicekey/voicekey/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the domain error taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feature.ErrInvalidVector):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrProfileNotFound), errors.Is(err, store.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrProfileInactive), errors.Is(err, store.ErrUsernameTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, analysis.ErrTranscriptionUnavailable), errors.Is(err, analysis.ErrAnalysisUnavailable):
		// Degradation is handled inside the core; reaching here means a
		// handler required the service outright.
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
