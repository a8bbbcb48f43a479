package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/voicekey/voicekey/internal/models"
)

// RecordAttempt appends one audit record. A single INSERT: either the whole
// record lands or nothing does, and a database trigger rejects any later
// UPDATE or DELETE against the table.
func (s *ProfileStore) RecordAttempt(ctx context.Context, a *models.AuthenticationAttempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO authentication_logs
		   (id, user_id, claimed_user, similarity, ai_confidence, fused_score, verdict, ai_skipped, commentary, transcript)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		a.ID, a.ProfileID, a.ClaimedUser, a.Similarity, a.AIConfidence, a.FusedScore,
		a.Verdict, a.AISkipped, a.Commentary, a.Transcript,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert authentication attempt: %w", err)
	}
	return nil
}

// AttemptsForProfile returns a page of a profile's attempt history,
// most recent first. Records survive profile deactivation.
func (s *ProfileStore) AttemptsForProfile(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]models.AuthenticationAttempt, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, claimed_user, similarity, ai_confidence, fused_score, verdict, ai_skipped, commentary, transcript, created_at
		 FROM authentication_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		profileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// RecentAttempts returns the latest attempts across all profiles.
func (s *ProfileStore) RecentAttempts(ctx context.Context, limit int) ([]models.AuthenticationAttempt, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, claimed_user, similarity, ai_confidence, fused_score, verdict, ai_skipped, commentary, transcript, created_at
		 FROM authentication_logs
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent attempts: %w", err)
	}
	defer rows.Close()

	return scanAttempts(rows)
}

// SystemStats summarizes the attempt log and enrolled population.
type SystemStats struct {
	TotalProfiles  int     `json:"total_profiles"`
	ActiveProfiles int     `json:"active_profiles"`
	TotalAttempts  int     `json:"total_attempts"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	Unknown        int     `json:"unknown"`
	SuccessRate    float64 `json:"success_rate"`
}

func (s *ProfileStore) Stats(ctx context.Context) (*SystemStats, error) {
	var st SystemStats

	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users`,
	).Scan(&st.TotalProfiles, &st.ActiveProfiles)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE verdict = 'accept'),
		        COUNT(*) FILTER (WHERE verdict = 'reject'),
		        COUNT(*) FILTER (WHERE verdict = 'unknown')
		 FROM authentication_logs`,
	).Scan(&st.TotalAttempts, &st.Accepted, &st.Rejected, &st.Unknown)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}

	if st.TotalAttempts > 0 {
		st.SuccessRate = float64(st.Accepted) / float64(st.TotalAttempts)
	}
	return &st, nil
}

type attemptRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAttempts(rows attemptRows) ([]models.AuthenticationAttempt, error) {
	var attempts []models.AuthenticationAttempt
	for rows.Next() {
		var a models.AuthenticationAttempt
		if err := rows.Scan(&a.ID, &a.ProfileID, &a.ClaimedUser, &a.Similarity, &a.AIConfidence,
			&a.FusedScore, &a.Verdict, &a.AISkipped, &a.Commentary, &a.Transcript, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
