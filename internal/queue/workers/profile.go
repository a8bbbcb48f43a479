package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/voicekey/voicekey/internal/analysis"
	"github.com/voicekey/voicekey/internal/queue"
	"github.com/voicekey/voicekey/internal/store"
)

// ProfileWorker generates the AI voice description for a profile once its
// enrollment completes. The description is cosmetic: failures are retried
// by asynq but never affect authentication.
type ProfileWorker struct {
	store    *store.ProfileStore
	analyzer analysis.Analyzer
}

func NewProfileWorker(st *store.ProfileStore, analyzer analysis.Analyzer) *ProfileWorker {
	return &ProfileWorker{store: st, analyzer: analyzer}
}

func (w *ProfileWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ProfileDescribePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	profileID, err := uuid.Parse(payload.ProfileID)
	if err != nil {
		return fmt.Errorf("parse profile id: %w", err)
	}

	profile, err := w.store.GetProfile(ctx, profileID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			slog.Warn("profile gone before describe ran", "profile_id", profileID)
			return nil
		}
		return err
	}
	if len(profile.Samples) == 0 {
		slog.Warn("profile has no samples to describe", "profile_id", profileID)
		return nil
	}

	// Describe from the most recent sample; it best reflects the voice.
	latest := profile.Samples[len(profile.Samples)-1]
	commentary, err := w.analyzer.DescribeVoice(ctx, analysis.ProfileRequest{
		Username:   profile.Username,
		Vector:     latest.Vector,
		Transcript: latest.Transcript,
	})
	if err != nil {
		return fmt.Errorf("describe voice for %s: %w", profile.Username, err)
	}

	if err := w.store.SetAICommentary(ctx, profileID, commentary); err != nil {
		return err
	}

	slog.Info("profile commentary stored", "profile_id", profileID, "username", profile.Username)
	return nil
}
