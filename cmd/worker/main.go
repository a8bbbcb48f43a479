package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/voicekey/voicekey/internal/analysis"
	"github.com/voicekey/voicekey/internal/config"
	"github.com/voicekey/voicekey/internal/database"
	"github.com/voicekey/voicekey/internal/queue"
	"github.com/voicekey/voicekey/internal/queue/workers"
	"github.com/voicekey/voicekey/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	profileStore := store.NewProfileStore(db, nil)
	gateway := analysis.NewGateway(cfg.Analysis)

	registry := queue.NewHandlersRegistry()

	// Register workers
	profileWorker := workers.NewProfileWorker(profileStore, gateway)
	sessionWorker := workers.NewSessionWorker(profileStore)

	registry.Register(queue.TypeProfileDescribe, asynq.HandlerFunc(profileWorker.ProcessTask))
	registry.Register(queue.TypeSessionSweep, asynq.HandlerFunc(sessionWorker.ProcessTask))

	// Periodic sweep of stalled enrollment sessions.
	scheduler := asynq.NewScheduler(redisOpt, nil)
	sweepTask, err := queue.NewSessionSweepTask(queue.SessionSweepPayload{MaxAgeMinutes: 30})
	if err != nil {
		slog.Error("failed to build session sweep task", "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.Register("@every 10m", sweepTask); err != nil {
		slog.Error("failed to register session sweep", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			slog.Error("scheduler error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
