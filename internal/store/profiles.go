package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/voicekey/voicekey/internal/feature"
	"github.com/voicekey/voicekey/internal/models"
)

const candidatesCacheKey = "voicekey:candidates"
const candidatesCacheTTL = 30 * time.Second

func (s *ProfileStore) CreateProfile(ctx context.Context, username, fullName, email string) (*models.Profile, error) {
	p := &models.Profile{
		ID:       uuid.New(),
		Username: username,
		FullName: fullName,
		Email:    email,
		IsActive: true,
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO users (id, username, full_name, email)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		p.ID, p.Username, p.FullName, p.Email,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.invalidateCandidates(ctx)
	return p, nil
}

func (s *ProfileStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	p, err := s.scanProfile(s.db.QueryRow(ctx,
		`SELECT id, username, full_name, email, is_active, ai_commentary, created_at, updated_at
		 FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	samples, err := s.samplesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Samples = samples
	return p, nil
}

func (s *ProfileStore) GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	p, err := s.scanProfile(s.db.QueryRow(ctx,
		`SELECT id, username, full_name, email, is_active, ai_commentary, created_at, updated_at
		 FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, err
	}

	samples, err := s.samplesFor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Samples = samples
	return p, nil
}

// ListProfiles returns profiles without their samples, newest first.
// Inactive profiles are included when activeOnly is false.
func (s *ProfileStore) ListProfiles(ctx context.Context, activeOnly bool) ([]models.Profile, error) {
	query := `SELECT id, username, full_name, email, is_active, ai_commentary, created_at, updated_at
	          FROM users`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p, err := s.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// ListActiveCandidates returns every active profile with its enrolled
// samples in insertion order, for identification-mode matching. Results are
// cached briefly; every profile write invalidates the cache.
func (s *ProfileStore) ListActiveCandidates(ctx context.Context) ([]models.Profile, error) {
	if s.cache != nil {
		var cached []models.Profile
		if err := s.cache.Get(ctx, candidatesCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	profiles, err := s.ListProfiles(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(profiles))
	byID := make(map[uuid.UUID]*models.Profile, len(profiles))
	for i := range profiles {
		ids[i] = profiles[i].ID
		byID[profiles[i].ID] = &profiles[i]
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, sample_index, features, transcript, quality, created_at
		 FROM voice_profiles WHERE user_id = ANY($1)
		 ORDER BY user_id, sample_index`, ids)
	if err != nil {
		return nil, fmt.Errorf("query voice samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		if p, ok := byID[sample.ProfileID]; ok {
			p.Samples = append(p.Samples, *sample)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, candidatesCacheKey, profiles, candidatesCacheTTL); err != nil {
			slog.Warn("candidate cache set failed", "error", err)
		}
	}
	return profiles, nil
}

// NearestProfiles returns the IDs of the active profiles whose closest
// enrolled sample is nearest to the probe MFCC block, best first. Used as a
// prefilter before exact scoring when the enrolled population is large.
func (s *ProfileStore) NearestProfiles(ctx context.Context, probeMFCC []float32, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT u.id, MIN(vp.mfcc <=> $1) AS dist
		 FROM voice_profiles vp
		 JOIN users u ON u.id = vp.user_id
		 WHERE u.is_active
		 GROUP BY u.id
		 ORDER BY dist
		 LIMIT $2`,
		pgvector.NewVector(probeMFCC), limit)
	if err != nil {
		return nil, fmt.Errorf("nearest profiles: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, fmt.Errorf("scan nearest profile: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AppendVector enrolls one more sample. The owning user row is locked for
// the duration of the transaction so concurrent enrollments against the
// same profile cannot interleave sample indexes.
func (s *ProfileStore) AppendVector(ctx context.Context, profileID uuid.UUID, vec feature.Vector, transcript string) (*models.VoiceSample, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var isActive bool
	err = tx.QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1 FOR UPDATE`, profileID).Scan(&isActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock user row: %w", err)
	}
	if !isActive {
		return nil, fmt.Errorf("%w: %s", ErrProfileInactive, profileID)
	}

	var nextIndex int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM voice_profiles WHERE user_id = $1`, profileID,
	).Scan(&nextIndex); err != nil {
		return nil, fmt.Errorf("count samples: %w", err)
	}

	features, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}

	sample := &models.VoiceSample{
		ID:          uuid.New(),
		ProfileID:   profileID,
		SampleIndex: nextIndex,
		Vector:      vec.Clone(),
		Transcript:  transcript,
		Quality:     vec.QualityScore(),
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO voice_profiles (id, user_id, sample_index, mfcc, features, transcript, quality)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		sample.ID, profileID, nextIndex, pgvector.NewVector(vec.MFCC32()), features, transcript, sample.Quality,
	).Scan(&sample.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert voice sample: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET updated_at = now() WHERE id = $1`, profileID); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.invalidateCandidates(ctx)
	return sample, nil
}

// Deactivate soft-deletes a profile. Idempotent: deactivating an already
// inactive profile succeeds. Attempt history is untouched.
func (s *ProfileStore) Deactivate(ctx context.Context, profileID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET is_active = FALSE, updated_at = now() WHERE id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}

	s.invalidateCandidates(ctx)
	return nil
}

// SetAICommentary stores the AI-generated voice description produced by the
// background worker after enrollment completes.
func (s *ProfileStore) SetAICommentary(ctx context.Context, profileID uuid.UUID, commentary string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET ai_commentary = $2, updated_at = now() WHERE id = $1`, profileID, commentary)
	if err != nil {
		return fmt.Errorf("set commentary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}
	return nil
}

func (s *ProfileStore) samplesFor(ctx context.Context, profileID uuid.UUID) ([]models.VoiceSample, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, sample_index, features, transcript, quality, created_at
		 FROM voice_profiles WHERE user_id = $1
		 ORDER BY sample_index`, profileID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []models.VoiceSample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *sample)
	}
	return samples, rows.Err()
}

func (s *ProfileStore) scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Email, &p.IsActive, &p.AICommentary, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &p, nil
}

func scanSample(row pgx.Row) (*models.VoiceSample, error) {
	var sample models.VoiceSample
	var features []byte
	if err := row.Scan(&sample.ID, &sample.ProfileID, &sample.SampleIndex, &features,
		&sample.Transcript, &sample.Quality, &sample.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan sample: %w", err)
	}
	if err := json.Unmarshal(features, &sample.Vector); err != nil {
		return nil, fmt.Errorf("unmarshal features: %w", err)
	}
	return &sample, nil
}

func (s *ProfileStore) invalidateCandidates(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, candidatesCacheKey); err != nil {
		slog.Warn("candidate cache invalidation failed", "error", err)
	}
}
