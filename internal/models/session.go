package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus tracks the lifecycle of an enrollment session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// EnrollmentSession supervises sample collection for one profile until the
// required count is reached. Transient: completed and abandoned sessions
// are kept only for bookkeeping and swept by the worker.
type EnrollmentSession struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	ProfileID        uuid.UUID     `json:"profile_id" db:"profile_id"`
	Status           SessionStatus `json:"status" db:"status"`
	SamplesCollected int           `json:"samples_collected" db:"samples_collected"`
	RequiredSamples  int           `json:"required_samples" db:"required_samples"`
	Quality          float64       `json:"quality" db:"quality"` // mean pairwise similarity, set on completion
	StartedAt        time.Time     `json:"started_at" db:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
}
