package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voicekey/voicekey/internal/models"
)

func (s *ProfileStore) CreateSession(ctx context.Context, profileID uuid.UUID, requiredSamples int) (*models.EnrollmentSession, error) {
	sess := &models.EnrollmentSession{
		ID:              uuid.New(),
		ProfileID:       profileID,
		Status:          models.SessionInProgress,
		RequiredSamples: requiredSamples,
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO enrollment_sessions (id, user_id, status, required_samples)
		 VALUES ($1, $2, $3, $4)
		 RETURNING started_at`,
		sess.ID, profileID, sess.Status, requiredSamples,
	).Scan(&sess.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *ProfileStore) GetSession(ctx context.Context, id uuid.UUID) (*models.EnrollmentSession, error) {
	var sess models.EnrollmentSession
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, status, samples_collected, required_samples, quality, started_at, completed_at
		 FROM enrollment_sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.ProfileID, &sess.Status, &sess.SamplesCollected,
		&sess.RequiredSamples, &sess.Quality, &sess.StartedAt, &sess.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &sess, nil
}

// BumpSessionSamples increments the collected counter and returns the new
// count. Only in-progress sessions can be bumped.
func (s *ProfileStore) BumpSessionSamples(ctx context.Context, id uuid.UUID) (int, error) {
	var collected int
	err := s.db.QueryRow(ctx,
		`UPDATE enrollment_sessions
		 SET samples_collected = samples_collected + 1
		 WHERE id = $1 AND status = $2
		 RETURNING samples_collected`,
		id, models.SessionInProgress,
	).Scan(&collected)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("bump session: %w", err)
	}
	return collected, nil
}

// FinishSession marks a session completed or abandoned and records the
// enrollment quality. Idempotent for already-finished sessions.
func (s *ProfileStore) FinishSession(ctx context.Context, id uuid.UUID, status models.SessionStatus, quality float64) error {
	_, err := s.db.Exec(ctx,
		`UPDATE enrollment_sessions
		 SET status = $2, quality = $3, completed_at = now()
		 WHERE id = $1 AND status = $4`,
		id, status, quality, models.SessionInProgress)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// AbandonStaleSessions marks in-progress sessions older than maxAge as
// abandoned and returns how many were swept. Called by the worker.
func (s *ProfileStore) AbandonStaleSessions(ctx context.Context, maxAge time.Duration) (int, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE enrollment_sessions
		 SET status = $1, completed_at = now()
		 WHERE status = $2 AND started_at < now() - make_interval(secs => $3)`,
		models.SessionAbandoned, models.SessionInProgress, maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("abandon stale sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
