package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poisync"
)

type Syncer interface {
	SyncPois(ctx context.Context, opts poisync.Options) (poisync.Result, error)
}

// Locker guards an iteration across worker replicas. acquired is false when another
// replica holds the lease.
type Locker interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

type JobConfig struct {
	Interval    time.Duration
	Sync        bool
	SyncOptions poisync.Options
	Batch       Options
}

// Job is the scheduled worker loop: an optional POI sync followed by a batch analysis.
type Job struct {
	Syncer   Syncer
	Analyzer *Analyzer
	Locker   Locker
	Logger   *zap.Logger
	Config   JobConfig
}

func (j *Job) validate() error {
	if j == nil {
		return errors.New("nil batch job")
	}
	if j.Analyzer == nil {
		return errors.New("batch job requires an analyzer")
	}
	if j.Config.Sync && j.Syncer == nil {
		return errors.New("batch job sync enabled without a syncer")
	}
	j.Logger = logger.OrNop(j.Logger)
	return nil
}

// Run executes RunOnce immediately and then on every interval tick until ctx is done.
// A non-positive interval runs once.
func (j *Job) Run(ctx context.Context) error {
	if err := j.validate(); err != nil {
		return err
	}
	interval := j.Config.Interval
	if interval <= 0 {
		return j.RunOnce(ctx)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	j.Logger.Info("batch job starting", zap.Duration("interval", interval), zap.Bool("sync", j.Config.Sync))
	if err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.Logger.Error("batch job initial run", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			j.Logger.Info("batch job stopping", zap.Error(ctx.Err()))
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				j.Logger.Error("batch job iteration", zap.Error(err))
			}
		}
	}
}

// RunOnce syncs (when enabled) and analyzes. A failed sync does not prevent analysis of
// the POIs already stored; both errors are joined.
func (j *Job) RunOnce(ctx context.Context) error {
	if err := j.validate(); err != nil {
		return err
	}
	if j.Locker != nil {
		release, ok, err := j.Locker.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire worker lock: %w", err)
		}
		if !ok {
			j.Logger.Info("batch job skipped, lock held elsewhere")
			return nil
		}
		defer release()
	}
	var joined error
	if j.Config.Sync {
		res, err := j.Syncer.SyncPois(ctx, j.Config.SyncOptions)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			joined = errors.Join(joined, fmt.Errorf("poi sync: %w", err))
		} else {
			j.Logger.Info("poi sync done", zap.String("job_id", res.JobID), zap.Int("fetched", res.Counts.Fetched))
		}
	}
	if _, err := j.Analyzer.BatchAnalyzeProperties(ctx, j.Config.Batch); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		joined = errors.Join(joined, fmt.Errorf("batch analysis: %w", err))
	}
	return joined
}
