package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/voicekey/voicekey/internal/queue"
)

const defaultSessionMaxAge = 30 * time.Minute

type sessionStore interface {
	AbandonStaleSessions(ctx context.Context, maxAge time.Duration) (int, error)
}

// SessionWorker sweeps enrollment sessions that were started but never
// finished, marking them abandoned so their profiles can be re-enrolled.
type SessionWorker struct {
	store sessionStore
}

func NewSessionWorker(st sessionStore) *SessionWorker {
	return &SessionWorker{store: st}
}

func (w *SessionWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.SessionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	maxAge := defaultSessionMaxAge
	if payload.MaxAgeMinutes > 0 {
		maxAge = time.Duration(payload.MaxAgeMinutes) * time.Minute
	}

	n, err := w.store.AbandonStaleSessions(ctx, maxAge)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("abandoned stale enrollment sessions", "count", n, "max_age", maxAge)
	}
	return nil
}
