package handlers

import (
	"net/http"

	"github.com/voicekey/voicekey/internal/engine"
	"github.com/voicekey/voicekey/internal/feature"
)

type AuthenticateHandler struct {
	engine *engine.Engine
}

func NewAuthenticateHandler(e *engine.Engine) *AuthenticateHandler {
	return &AuthenticateHandler{engine: e}
}

type authenticateRequest struct {
	Vector feature.Vector `json:"vector"`
	// ClaimedUser selects verification mode; empty means identification.
	ClaimedUser string `json:"claimed_user,omitempty"`
	Audio       []byte `json:"audio,omitempty"`
	AudioFormat string `json:"audio_format,omitempty"`
}

func (h *AuthenticateHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.engine.Authenticate(r.Context(), engine.Request{
		Vector:      req.Vector,
		ClaimedUser: req.ClaimedUser,
		Audio:       req.Audio,
		AudioFormat: req.AudioFormat,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
