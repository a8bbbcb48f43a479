package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/voicekey/voicekey/internal/enroll"
	"github.com/voicekey/voicekey/internal/models"
	"github.com/voicekey/voicekey/internal/store"
)

type ProfileHandler struct {
	store  *store.ProfileStore
	enroll *enroll.Service
}

func NewProfileHandler(st *store.ProfileStore, es *enroll.Service) *ProfileHandler {
	return &ProfileHandler{store: st, enroll: es}
}

type createProfileRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Create registers a profile and opens its enrollment session.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	profile, sess, err := h.enroll.Begin(r.Context(), req.Username, req.FullName, req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"profile": profile,
		"session": sess,
	})
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	profiles, err := h.store.ListProfiles(r.Context(), activeOnly)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles, "count": len(profiles)})
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	profile, err := h.store.GetProfile(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Deactivate soft-deletes a profile. Its attempt history stays readable.
func (h *ProfileHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Deactivate(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *ProfileHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	attempts, err := h.store.AttemptsForProfile(r.Context(), id, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if attempts == nil {
		attempts = []models.AuthenticationAttempt{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts, "count": len(attempts)})
}

// StartSession opens a new enrollment session for an existing profile.
func (h *ProfileHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	sess, err := h.enroll.BeginForProfile(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
