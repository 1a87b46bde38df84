package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/logger"
)

// Job asks for one property to be re-analyzed.
type Job struct {
	PropertyID string
}

// Refresher is a bounded on-demand analysis queue. A property is queued at most once
// at a time, and with a single worker two analyses of it never overlap.
type Refresher struct {
	ch      chan Job
	inFly   sync.Map // property id -> struct{}
	do      func(ctx context.Context, j Job) error
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex // guards closed and sends on ch
	closed bool
}

type Option func(*Refresher)

func WithLogger(l *zap.Logger) Option { return func(r *Refresher) { r.log = logger.OrNop(l) } }

func WithTimeout(d time.Duration) Option {
	return func(r *Refresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func New(capacity int, workerCount int, do func(ctx context.Context, j Job) error, opts ...Option) *Refresher {
	if capacity <= 0 {
		capacity = 256
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	r := &Refresher{ch: make(chan Job, capacity), do: do, log: zap.NewNop(), timeout: 2 * time.Minute}
	for _, o := range opts {
		o(r)
	}
	r.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go r.worker()
	}
	return r
}

// Enqueue reports whether the job was accepted. A property already queued or running
// is not queued again, and the job is dropped when the queue is full or closed.
func (r *Refresher) Enqueue(j Job) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	if _, exists := r.inFly.LoadOrStore(j.PropertyID, struct{}{}); exists {
		return false
	}
	select {
	case r.ch <- j:
		return true
	default:
		r.inFly.Delete(j.PropertyID)
		r.log.Warn("refresh queue full", zap.String("property_id", j.PropertyID))
		return false
	}
}

// Pending reports whether the property is queued or being analyzed.
func (r *Refresher) Pending(propertyID string) bool {
	_, ok := r.inFly.Load(propertyID)
	return ok
}

// Close stops accepting work and waits for queued jobs to drain.
func (r *Refresher) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Refresher) worker() {
	defer r.wg.Done()
	for j := range r.ch {
		r.run(j)
	}
}

func (r *Refresher) run(j Job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer func() {
		r.inFly.Delete(j.PropertyID)
		cancel()
	}()
	if r.do == nil {
		return
	}
	if err := r.do(ctx, j); err != nil {
		r.log.Error("on-demand analysis failed", zap.String("property_id", j.PropertyID), zap.Error(err))
	}
}
