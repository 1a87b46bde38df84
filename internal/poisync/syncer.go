// Package poisync ingests POIs from the map-data source into the store and keeps the
// sync job audit trail.
package poisync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/events"
	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
)

var (
	ErrUnknownDistrict = errors.New("poisync: unknown district")
	ErrInvalidBounds   = errors.New("poisync: invalid bounding box")
	ErrAlreadyRunning  = errors.New("poisync: a sync is already running")
)

// maxReportedErrors caps Result.Errors; the skipped count stays exact.
const maxReportedErrors = 20

type Fetcher interface {
	FetchAllPois(ctx context.Context, cats []poi.Category, bbox poi.BBox) ([]poi.POI, error)
}

type Store interface {
	UpsertPOI(ctx context.Context, p poi.POI) (string, bool, error)
	FindPOI(ctx context.Context, externalID, source string) (poi.POI, error)
	CreateSyncJob(ctx context.Context, j poi.SyncJob) (poi.SyncJob, error)
	FinishSyncJob(ctx context.Context, j poi.SyncJob) error
}

type Options struct {
	Categories   []poi.Category `json:"categories,omitempty"`
	District     string         `json:"district,omitempty"`
	BoundingBox  *poi.BBox      `json:"bounding_box,omitempty"`
	ForceRefresh bool           `json:"force_refresh,omitempty"`
}

type Result struct {
	Success    bool           `json:"success"`
	JobID      string         `json:"job_id"`
	Counts     poi.SyncCounts `json:"counts"`
	DurationMs int64          `json:"duration_ms"`
	Errors     []string       `json:"errors,omitempty"`
}

type Syncer struct {
	fetcher  Fetcher
	store    Store
	pub      events.Publisher
	log      *zap.Logger
	freshFor time.Duration
	now      func() time.Time
	running  atomic.Bool
}

type Option func(*Syncer)

func WithLogger(l *zap.Logger) Option { return func(s *Syncer) { s.log = logger.OrNop(l) } }

func WithPublisher(p events.Publisher) Option { return func(s *Syncer) { s.pub = p } }

// WithFreshFor sets how recently a POI must have been synced to be skipped without
// ForceRefresh. Zero disables skipping.
func WithFreshFor(d time.Duration) Option { return func(s *Syncer) { s.freshFor = d } }

func WithClock(now func() time.Time) Option { return func(s *Syncer) { s.now = now } }

func New(f Fetcher, st Store, opts ...Option) *Syncer {
	s := &Syncer{
		fetcher:  f,
		store:    st,
		pub:      events.Nop{},
		log:      zap.NewNop(),
		freshFor: 24 * time.Hour,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Running reports whether a SyncPois call is in progress.
func (s *Syncer) Running() bool { return s.running.Load() }

// SyncPois runs one ingestion. Per-record failures are counted as skipped; a fetch that
// produced nothing at all fails the job and is returned as an error.
func (s *Syncer) SyncPois(ctx context.Context, opts Options) (Result, error) {
	run, err := s.begin(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	return run.execute(ctx)
}

// Start creates the job and runs the ingestion in the background, returning the job id.
// done, when non-nil, receives the outcome.
func (s *Syncer) Start(ctx context.Context, opts Options, done func(Result, error)) (string, error) {
	run, err := s.begin(ctx, opts)
	if err != nil {
		return "", err
	}
	go func() {
		res, err := run.execute(ctx)
		if done != nil {
			done(res, err)
		}
	}()
	return run.job.ID, nil
}

type syncRun struct {
	s     *Syncer
	opts  Options
	job   poi.SyncJob
	cats  []poi.Category
	bbox  poi.BBox
	start time.Time
	log   *zap.Logger
}

// begin takes the single-flight slot and records the RUNNING job. The slot is released by
// execute, or here on error.
func (s *Syncer) begin(ctx context.Context, opts Options) (_ *syncRun, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer func() {
		if err != nil {
			s.running.Store(false)
		}
	}()

	start := s.now()
	bbox, err := resolveBounds(opts)
	if err != nil {
		return nil, err
	}

	job := poi.SyncJob{Type: poi.JobFullSync, District: opts.District, StartedAt: start}
	cats := opts.Categories
	if len(cats) > 0 {
		job.Type = poi.JobCategorySync
		names := make([]string, len(cats))
		for i, c := range cats {
			names[i] = string(c)
		}
		job.Category = strings.Join(names, ",")
	} else {
		cats = poi.HighPriority
	}

	job, err = s.store.CreateSyncJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("create sync job: %w", err)
	}
	log := s.log.With(zap.String("job_id", job.ID), zap.String("job_type", string(job.Type)))
	log.Info("poi sync started", zap.Int("categories", len(cats)), zap.String("district", opts.District))
	return &syncRun{s: s, opts: opts, job: job, cats: cats, bbox: bbox, start: start, log: log}, nil
}

func (r *syncRun) execute(ctx context.Context) (Result, error) {
	s := r.s
	defer s.running.Store(false)
	res := Result{JobID: r.job.ID}

	pois, err := s.fetcher.FetchAllPois(ctx, r.cats, r.bbox)
	if err != nil {
		return r.fail(ctx, res, err)
	}
	res.Counts.Fetched = len(pois)

	for _, p := range pois {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, res, err)
		}
		if !r.opts.ForceRefresh && s.isFresh(ctx, p) {
			res.Counts.Skipped++
			continue
		}
		_, created, err := s.store.UpsertPOI(ctx, p)
		if err != nil {
			res.Counts.Skipped++
			r.log.Warn("poi upsert failed", zap.String("external_id", p.ExternalID), zap.Error(err))
			if len(res.Errors) < maxReportedErrors {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", p.ExternalID, err))
			}
			continue
		}
		if created {
			res.Counts.Created++
		} else {
			res.Counts.Updated++
		}
	}

	job := r.job
	job.Status = poi.JobCompleted
	job.Counts = res.Counts
	done := s.now()
	job.CompletedAt = &done
	if err := s.store.FinishSyncJob(ctx, job); err != nil {
		r.log.Error("finish sync job", zap.Error(err))
		return r.result(res, false), fmt.Errorf("finish sync job %s: %w", job.ID, err)
	}
	s.pub.PublishPoisSynced(ctx, events.PoisSynced{JobID: job.ID, Status: job.Status, Counts: job.Counts, At: done})

	res = r.result(res, true)
	r.log.Info("poi sync completed",
		zap.Int("fetched", res.Counts.Fetched),
		zap.Int("created", res.Counts.Created),
		zap.Int("updated", res.Counts.Updated),
		zap.Int("skipped", res.Counts.Skipped),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return res, nil
}

func (s *Syncer) isFresh(ctx context.Context, p poi.POI) bool {
	if s.freshFor <= 0 {
		return false
	}
	existing, err := s.store.FindPOI(ctx, p.ExternalID, p.Source)
	if err != nil {
		return false
	}
	return s.now().Sub(existing.LastSyncedAt) < s.freshFor
}

// fail records the terminal FAILED state. The job update uses a fresh context so a
// cancelled caller still leaves a finished audit record.
func (r *syncRun) fail(ctx context.Context, res Result, cause error) (Result, error) {
	s := r.s
	msg := cause.Error()
	job := r.job
	job.Status = poi.JobFailed
	job.Counts = res.Counts
	job.ErrorMessage, _, _ = strings.Cut(msg, "\n")
	job.ErrorStack = msg
	done := s.now()
	job.CompletedAt = &done

	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.store.FinishSyncJob(finishCtx, job); err != nil {
		r.log.Error("finish failed sync job", zap.Error(err))
	}
	s.pub.PublishPoisSynced(finishCtx, events.PoisSynced{JobID: job.ID, Status: job.Status, Counts: job.Counts, At: done})
	r.log.Error("poi sync failed", zap.Error(cause))

	res.Errors = append(res.Errors, msg)
	return r.result(res, false), fmt.Errorf("sync job %s: %w", job.ID, cause)
}

func (r *syncRun) result(res Result, ok bool) Result {
	res.Success = ok
	res.DurationMs = r.s.now().Sub(r.start).Milliseconds()
	return res
}

func resolveBounds(opts Options) (poi.BBox, error) {
	if opts.BoundingBox != nil && !opts.BoundingBox.IsZero() {
		b := *opts.BoundingBox
		if b.South >= b.North || b.West >= b.East {
			return poi.BBox{}, fmt.Errorf("%w: %+v", ErrInvalidBounds, b)
		}
		return b, nil
	}
	if opts.District != "" {
		b, ok := poi.DistrictBounds(opts.District)
		if !ok {
			return poi.BBox{}, fmt.Errorf("%w: %q", ErrUnknownDistrict, opts.District)
		}
		return b, nil
	}
	return poi.RegionBounds, nil
}
