// Package ratelimit provides the minimum-interval gates used in front of the
// external geocoding and map-data services.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Waiter is what the external clients depend on.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Gate enforces a minimum interval between consecutive calls. One Gate is meant to be
// shared by every caller of a given upstream so the interval is process-wide.
type Gate struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Gate)

// WithClock swaps the time source and the sleeper, mostly for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

func NewGate(interval time.Duration, opts ...Option) *Gate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	g := &Gate{
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Wait blocks until the interval since the previous admitted call has elapsed.
func (g *Gate) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	now := g.now()
	r := g.limiter.ReserveN(now, 1)
	// rounded up to whole milliseconds; the interval is a lower bound
	delay := ceilMillis(r.DelayFrom(now))
	g.mu.Unlock()
	if delay <= 0 {
		return nil
	}
	if err := g.sleep(ctx, delay); err != nil {
		g.mu.Lock()
		r.CancelAt(g.now())
		g.mu.Unlock()
		return err
	}
	return nil
}

func ceilMillis(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if r := d % time.Millisecond; r != 0 {
		d += time.Millisecond - r
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FakeClock is a manual clock whose Sleep advances time instantly.
type FakeClock struct {
	mu  sync.Mutex
	t   time.Time
	log []time.Duration
}

func NewFakeClock(start time.Time) *FakeClock { return &FakeClock{t: start} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.log = append(c.log, d)
	c.mu.Unlock()
	return nil
}

// Sleeps returns every duration passed to Sleep, in order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.log...)
}
