package models

import (
	"time"

	"github.com/google/uuid"
)

// Verdict is the outcome of one authentication request.
type Verdict string

const (
	// VerdictAccept means the top candidate cleared both the similarity and
	// fused-confidence gates.
	VerdictAccept Verdict = "accept"
	// VerdictReject is returned in verification mode when the hinted
	// profile failed a gate.
	VerdictReject Verdict = "reject"
	// VerdictUnknown is returned in identification mode when no candidate
	// cleared both gates (including the zero-candidates case).
	VerdictUnknown Verdict = "unknown"
)

// AuthenticationAttempt is one append-only audit record. Written exactly
// once per authentication request, never mutated or deleted.
type AuthenticationAttempt struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	ProfileID    *uuid.UUID `json:"profile_id,omitempty" db:"profile_id"` // nil = no match
	ClaimedUser  string     `json:"claimed_user,omitempty" db:"claimed_user"`
	Similarity   float64    `json:"similarity" db:"similarity"`
	AIConfidence float64    `json:"ai_confidence" db:"ai_confidence"`
	FusedScore   float64    `json:"fused_score" db:"fused_score"`
	Verdict      Verdict    `json:"verdict" db:"verdict"`
	AISkipped    bool       `json:"ai_skipped" db:"ai_skipped"`
	Commentary   string     `json:"commentary,omitempty" db:"commentary"`
	Transcript   string     `json:"transcript,omitempty" db:"transcript"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
