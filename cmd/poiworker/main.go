package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/app"
	"github.com/yourorg/poi-engine/internal/batch"
	"github.com/yourorg/poi-engine/internal/config"
	"github.com/yourorg/poi-engine/internal/logger"
)

const lockKey = "poiworker:lock"

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(rootCtx, cfg, logr.Logger)
	if err != nil {
		logr.Fatal("failed to open backends", zap.Error(err))
	}
	defer a.Close()

	syncOpts, err := a.SyncOptions()
	if err != nil {
		logr.Fatal("invalid SYNC_CATEGORIES", zap.Error(err))
	}

	// analyses run here must still evict the API's cached scores
	go a.Invalidator().Run(rootCtx)

	job := &batch.Job{
		Syncer:   a.Syncer,
		Analyzer: a.Batch,
		Locker:   a.Locker(lockKey, cfg.WorkerLockTTL),
		Logger:   logr.Named("worker"),
		Config: batch.JobConfig{
			Interval:    cfg.WorkerInterval,
			Sync:        cfg.WorkerSync,
			SyncOptions: syncOpts,
			Batch:       batch.Options{ForceRefresh: cfg.BatchForceRefresh, Limit: cfg.BatchLimit},
		},
	}

	if cfg.WorkerRunOnce {
		if err := job.RunOnce(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Fatal("poi worker run failed", zap.Error(err))
		}
		return
	}

	if err := job.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Fatal("poi worker stopped with error", zap.Error(err))
	}
}
