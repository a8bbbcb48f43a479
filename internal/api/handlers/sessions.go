package handlers

import (
	"net/http"

	"github.com/voicekey/voicekey/internal/enroll"
	"github.com/voicekey/voicekey/internal/feature"
	"github.com/voicekey/voicekey/internal/store"
)

type SessionHandler struct {
	store  *store.ProfileStore
	enroll *enroll.Service
}

func NewSessionHandler(st *store.ProfileStore, es *enroll.Service) *SessionHandler {
	return &SessionHandler{store: st, enroll: es}
}

type addSampleRequest struct {
	Vector feature.Vector `json:"vector"`
	// Audio is the base64-encoded raw recording; optional. When present it
	// is transcribed and the transcript stored with the sample.
	Audio       []byte `json:"audio,omitempty"`
	AudioFormat string `json:"audio_format,omitempty"`
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	sess, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) AddSample(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req addSampleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, sample, err := h.enroll.AddSample(r.Context(), id, req.Vector, req.Audio, req.AudioFormat)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": sess,
		"sample":  sample,
	})
}

func (h *SessionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.enroll.Abandon(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}
