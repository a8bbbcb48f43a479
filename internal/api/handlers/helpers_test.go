package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voicekey/voicekey/internal/analysis"
	"github.com/voicekey/voicekey/internal/feature"
	"github.com/voicekey/voicekey/internal/store"
)

func TestWriteDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid vector", feature.ErrInvalidVector, http.StatusBadRequest},
		{"wrapped invalid vector", fmt.Errorf("first vector: %w", feature.ErrInvalidVector), http.StatusBadRequest},
		{"profile not found", store.ErrProfileNotFound, http.StatusNotFound},
		{"session not found", store.ErrSessionNotFound, http.StatusNotFound},
		{"profile inactive", store.ErrProfileInactive, http.StatusConflict},
		{"username taken", store.ErrUsernameTaken, http.StatusConflict},
		{"transcription down", analysis.ErrTranscriptionUnavailable, http.StatusBadGateway},
		{"analysis down", analysis.ErrAnalysisUnavailable, http.StatusBadGateway},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeDomainError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}
