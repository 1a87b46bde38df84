package scorecache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/internal/redisx"
)

const (
	keyPrefix = "scores:"
	genPrefix = "scoregen:"
)

const (
	SourceCache = "cache"
	SourceStore = "store"
)

type Store interface {
	GetProperty(ctx context.Context, id string) (poi.Property, error)
	NearbyPOIs(ctx context.Context, propertyID string, f poi.NearbyFilter) ([]poi.NearbyPOI, error)
}

// Payload is what the scores endpoint serves for one property.
type Payload struct {
	PropertyID       string          `json:"property_id"`
	Scores           poi.Scores      `json:"scores"`
	SeaView          poi.SeaView     `json:"sea_view"`
	PoisCalculatedAt *time.Time      `json:"pois_calculated_at,omitempty"`
	Highlights       []poi.NearbyPOI `json:"highlights"`
	Stale            bool            `json:"stale"`
}

// Cache keeps score payloads in redis. Entries are removed by the Invalidator when the
// property is re-analyzed; the TTL only bounds memory.
type Cache struct {
	kv         redisx.KV
	store      Store
	log        *zap.Logger
	ttl        time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

type Option func(*Cache)

func WithLogger(l *zap.Logger) Option { return func(c *Cache) { c.log = logger.OrNop(l) } }

func WithTTL(d time.Duration) Option { return func(c *Cache) { c.ttl = d } }

func WithStaleAfter(d time.Duration) Option { return func(c *Cache) { c.staleAfter = d } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func New(kv redisx.KV, st Store, opts ...Option) *Cache {
	c := &Cache{
		kv:         kv,
		store:      st,
		log:        zap.NewNop(),
		ttl:        time.Hour,
		staleAfter: 7 * 24 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func Key(propertyID string) string { return keyPrefix + propertyID }

// Get returns the payload and where it came from. Redis failures fall back to the store.
func (c *Cache) Get(ctx context.Context, propertyID string) (Payload, string, error) {
	var p Payload
	ok, err := redisx.GetJSON(ctx, c.kv, Key(propertyID), &p)
	if err != nil {
		c.log.Warn("score cache read", zap.String("property_id", propertyID), zap.Error(err))
	}
	if ok {
		p.Stale = c.isStale(p.PoisCalculatedAt)
		return p, SourceCache, nil
	}

	gen := c.generation(ctx, propertyID)
	p, err = c.load(ctx, propertyID)
	if err != nil {
		return Payload{}, "", err
	}
	c.fill(ctx, propertyID, gen, p)
	p.Stale = c.isStale(p.PoisCalculatedAt)
	return p, SourceStore, nil
}

// fill writes p unless an invalidation landed after gen was read. The check runs after
// the write: an invalidation seen there deletes the entry here, and one not yet seen
// deletes it itself.
func (c *Cache) fill(ctx context.Context, propertyID, gen string, p Payload) {
	log := c.log.With(zap.String("property_id", propertyID))
	if err := redisx.SetJSON(ctx, c.kv, Key(propertyID), p, c.ttl); err != nil {
		log.Warn("score cache write", zap.Error(err))
		return
	}
	if c.generation(ctx, propertyID) == gen {
		return
	}
	log.Debug("score cache fill raced an invalidation")
	if err := c.kv.Del(ctx, Key(propertyID)); err != nil {
		log.Warn("score cache drop", zap.Error(err))
	}
}

func (c *Cache) generation(ctx context.Context, propertyID string) string {
	gen, err := c.kv.Get(ctx, genPrefix+propertyID)
	if err != nil && !redisx.IsMiss(err) {
		c.log.Warn("score cache generation", zap.String("property_id", propertyID), zap.Error(err))
	}
	return gen
}

// Invalidate bumps the property's generation before dropping its entry, so a fill that
// loaded from the store before the bump does not survive.
func (c *Cache) Invalidate(ctx context.Context, propertyID string) error {
	if err := c.kv.Set(ctx, genPrefix+propertyID, uuid.NewString(), c.ttl); err != nil {
		return err
	}
	return c.kv.Del(ctx, Key(propertyID))
}

func (c *Cache) load(ctx context.Context, propertyID string) (Payload, error) {
	prop, err := c.store.GetProperty(ctx, propertyID)
	if err != nil {
		return Payload{}, err
	}
	highlights, err := c.store.NearbyPOIs(ctx, propertyID, poi.NearbyFilter{HighlightOnly: true})
	if err != nil {
		return Payload{}, fmt.Errorf("load highlights for %s: %w", propertyID, err)
	}
	if highlights == nil {
		highlights = []poi.NearbyPOI{}
	}
	return Payload{
		PropertyID:       prop.ID,
		Scores:           prop.Scores,
		SeaView:          prop.SeaView,
		PoisCalculatedAt: prop.PoisCalculatedAt,
		Highlights:       highlights,
	}, nil
}

// never analyzed counts as stale
func (c *Cache) isStale(at *time.Time) bool {
	return at == nil || c.now().Sub(*at) > c.staleAfter
}
