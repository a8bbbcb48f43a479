// Package enroll supervises sample collection for a profile until the
// configured minimum is reached.
package enroll

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voicekey/voicekey/internal/analysis"
	"github.com/voicekey/voicekey/internal/config"
	"github.com/voicekey/voicekey/internal/feature"
	"github.com/voicekey/voicekey/internal/models"
	"github.com/voicekey/voicekey/internal/queue"
	"github.com/voicekey/voicekey/internal/similarity"
	"github.com/voicekey/voicekey/internal/store"
	"github.com/voicekey/voicekey/pkg/audiometa"
)

// Store is the slice of the profile store enrollment depends on.
type Store interface {
	CreateProfile(ctx context.Context, username, fullName, email string) (*models.Profile, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	CreateSession(ctx context.Context, profileID uuid.UUID, requiredSamples int) (*models.EnrollmentSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.EnrollmentSession, error)
	AppendVector(ctx context.Context, profileID uuid.UUID, vec feature.Vector, transcript string) (*models.VoiceSample, error)
	BumpSessionSamples(ctx context.Context, id uuid.UUID) (int, error)
	FinishSession(ctx context.Context, id uuid.UUID, status models.SessionStatus, quality float64) error
}

type Service struct {
	store    Store
	scorer   *similarity.Scorer
	analyzer analysis.Analyzer
	queue    *queue.Client
	cfg      config.MatchingConfig
}

func NewService(st Store, scorer *similarity.Scorer, analyzer analysis.Analyzer, qc *queue.Client, cfg config.MatchingConfig) *Service {
	return &Service{store: st, scorer: scorer, analyzer: analyzer, queue: qc, cfg: cfg}
}

// Begin creates a profile and opens its enrollment session.
func (s *Service) Begin(ctx context.Context, username, fullName, email string) (*models.Profile, *models.EnrollmentSession, error) {
	profile, err := s.store.CreateProfile(ctx, username, fullName, email)
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.store.CreateSession(ctx, profile.ID, s.cfg.MinSampleCount)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("enrollment started", "username", username, "profile_id", profile.ID, "session_id", sess.ID)
	return profile, sess, nil
}

// BeginForProfile opens a session to collect more samples for an existing
// profile. Profiles may exceed the minimum sample count.
func (s *Service) BeginForProfile(ctx context.Context, profileID uuid.UUID) (*models.EnrollmentSession, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		return nil, store.ErrProfileInactive
	}
	return s.store.CreateSession(ctx, profileID, s.cfg.MinSampleCount)
}

// AddSample validates and stores one sample under the session's profile.
// When the session reaches its required count it is completed, its quality
// (mean pairwise similarity across the profile's samples) recorded, and AI
// profile commentary generation queued. Transcription failure degrades to an
// empty transcript rather than failing the sample.
func (s *Service) AddSample(ctx context.Context, sessionID uuid.UUID, vec feature.Vector, audio []byte, audioFormat string) (*models.EnrollmentSession, *models.VoiceSample, error) {
	if err := vec.Validate(s.cfg.MinSampleDuration); err != nil {
		return nil, nil, err
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status != models.SessionInProgress {
		return nil, nil, fmt.Errorf("%w: session already %s", store.ErrSessionNotFound, sess.Status)
	}

	transcript := ""
	if len(audio) > 0 {
		if info, err := audiometa.ParseWAV(audio); err == nil {
			drift := info.Duration.Seconds() - vec.Duration
			if drift > 1 || drift < -1 {
				slog.Warn("sample duration disagrees with recording",
					"session_id", sessionID,
					"vector_duration", vec.Duration,
					"audio_duration", info.Duration.Seconds(),
				)
			}
		}

		t, err := s.analyzer.Transcribe(ctx, audio, audioFormat)
		if err != nil {
			slog.Warn("transcription unavailable during enrollment", "session_id", sessionID, "error", err)
		} else {
			transcript = t.Text
		}
	}

	sample, err := s.store.AppendVector(ctx, sess.ProfileID, vec, transcript)
	if err != nil {
		return nil, nil, err
	}

	collected, err := s.store.BumpSessionSamples(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	sess.SamplesCollected = collected

	if collected >= sess.RequiredSamples {
		if err := s.complete(ctx, sess); err != nil {
			return nil, nil, err
		}
	}

	return sess, sample, nil
}

// Abandon closes a session without completing it. The profile keeps any
// samples already collected.
func (s *Service) Abandon(ctx context.Context, sessionID uuid.UUID) error {
	return s.store.FinishSession(ctx, sessionID, models.SessionAbandoned, 0)
}

func (s *Service) complete(ctx context.Context, sess *models.EnrollmentSession) error {
	profile, err := s.store.GetProfile(ctx, sess.ProfileID)
	if err != nil {
		return err
	}

	vectors := make([]feature.Vector, len(profile.Samples))
	for i, sample := range profile.Samples {
		vectors[i] = sample.Vector
	}

	quality, err := s.scorer.MeanPairwise(vectors)
	if err != nil {
		return fmt.Errorf("enrollment quality: %w", err)
	}

	if err := s.store.FinishSession(ctx, sess.ID, models.SessionCompleted, quality); err != nil {
		return err
	}
	sess.Status = models.SessionCompleted
	sess.Quality = quality

	if s.queue != nil {
		if err := s.queue.EnqueueProfileDescribe(queue.ProfileDescribePayload{ProfileID: sess.ProfileID.String()}); err != nil {
			// Commentary is cosmetic; enrollment stands without it.
			slog.Warn("enqueue profile describe failed", "profile_id", sess.ProfileID, "error", err)
		}
	}

	slog.Info("enrollment completed",
		"profile_id", sess.ProfileID,
		"samples", sess.SamplesCollected,
		"quality", quality,
	)
	return nil
}
