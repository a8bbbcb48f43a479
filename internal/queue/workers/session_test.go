package workers

import (
	"context"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicekey/voicekey/internal/queue"
)

type fakeSessionStore struct {
	maxAge time.Duration
	calls  int
}

func (fs *fakeSessionStore) AbandonStaleSessions(_ context.Context, maxAge time.Duration) (int, error) {
	fs.calls++
	fs.maxAge = maxAge
	return 2, nil
}

func sweepTask(t *testing.T, minutes int) *asynq.Task {
	t.Helper()
	task, err := queue.NewSessionSweepTask(queue.SessionSweepPayload{MaxAgeMinutes: minutes})
	require.NoError(t, err)
	return task
}

func TestSessionWorkerProcessTask(t *testing.T) {
	t.Run("sweeps with the payload max age", func(t *testing.T) {
		fs := &fakeSessionStore{}
		w := NewSessionWorker(fs)

		require.NoError(t, w.ProcessTask(context.Background(), sweepTask(t, 45)))
		assert.Equal(t, 45*time.Minute, fs.maxAge)
		assert.Equal(t, 1, fs.calls)
	})

	t.Run("zero max age falls back to the default", func(t *testing.T) {
		fs := &fakeSessionStore{}
		w := NewSessionWorker(fs)

		require.NoError(t, w.ProcessTask(context.Background(), sweepTask(t, 0)))
		assert.Equal(t, defaultSessionMaxAge, fs.maxAge)
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		fs := &fakeSessionStore{}
		w := NewSessionWorker(fs)

		err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeSessionSweep, []byte("{not json")))
		assert.Error(t, err)
		assert.Zero(t, fs.calls)
	})
}
