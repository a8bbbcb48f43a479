package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/voicekey/voicekey/internal/feature"
)

// Profile is one enrolled user. Profiles are soft-deleted: IsActive flips
// to false but the row and its authentication history stay.
type Profile struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	FullName     string    `json:"full_name,omitempty" db:"full_name"`
	Email        string    `json:"email,omitempty" db:"email"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	AICommentary string    `json:"ai_commentary,omitempty" db:"ai_commentary"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`

	// Samples are the enrolled voice samples in insertion order. Loaded on
	// demand; nil means not loaded, not zero samples.
	Samples []VoiceSample `json:"samples,omitempty" db:"-"`
}

// EnrollmentComplete reports whether the profile has collected at least the
// required number of samples. Derived, never stored.
func (p *Profile) EnrollmentComplete(minSamples int) bool {
	return len(p.Samples) >= minSamples
}

// VoiceSample is one enrolled feature vector. SampleIndex preserves
// insertion order within a profile.
type VoiceSample struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	ProfileID   uuid.UUID      `json:"profile_id" db:"profile_id"`
	SampleIndex int            `json:"sample_index" db:"sample_index"`
	Vector      feature.Vector `json:"vector" db:"vector"`
	Transcript  string         `json:"transcript,omitempty" db:"transcript"`
	Quality     float64        `json:"quality" db:"quality"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}
