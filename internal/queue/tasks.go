package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TypeProfileDescribe generates AI commentary for a freshly enrolled
	// profile. Off the authentication path, so it runs in the worker.
	TypeProfileDescribe = "profile:describe"
	// TypeSessionSweep abandons enrollment sessions that stalled.
	TypeSessionSweep = "session:sweep"
)

type ProfileDescribePayload struct {
	ProfileID string `json:"profile_id"`
}

type SessionSweepPayload struct {
	MaxAgeMinutes int `json:"max_age_minutes"`
}

// NewSessionSweepTask builds the periodic sweep task registered with the
// scheduler. Sweeps run on the low-priority queue.
func NewSessionSweepTask(payload SessionSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeSessionSweep, data, asynq.Queue("low")), nil
}
