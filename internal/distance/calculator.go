// Package distance computes and persists the per-property POI distance set.
package distance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/geo"
	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
)

const DefaultMaxMeters = 10000

type Store interface {
	GetProperty(ctx context.Context, id string) (poi.Property, error)
	ActivePOIsInBox(ctx context.Context, b poi.BBox) ([]poi.POI, error)
	ReplacePropertyDistances(ctx context.Context, propertyID string, rows []poi.Distance, at time.Time) error
}

type Calculator struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Calculator)

func WithLogger(l *zap.Logger) Option { return func(c *Calculator) { c.log = logger.OrNop(l) } }

func WithClock(now func() time.Time) Option { return func(c *Calculator) { c.now = now } }

func New(st Store, opts ...Option) *Calculator {
	c := &Calculator{store: st, log: zap.NewNop(), now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CalculatePropertyPoiDistances rebuilds the distance rows of one property and returns how
// many were written. A property without coordinates is left untouched and yields 0.
func (c *Calculator) CalculatePropertyPoiDistances(ctx context.Context, propertyID string, maxMeters int) (int, error) {
	if maxMeters <= 0 {
		maxMeters = DefaultMaxMeters
	}
	p, err := c.store.GetProperty(ctx, propertyID)
	if err != nil {
		return 0, fmt.Errorf("load property %s: %w", propertyID, err)
	}
	if p.Coordinate == nil {
		c.log.Debug("property has no coordinates", zap.String("property_id", propertyID))
		return 0, nil
	}
	origin := *p.Coordinate

	candidates, err := c.store.ActivePOIsInBox(ctx, geo.BoundingBoxAround(origin, maxMeters))
	if err != nil {
		return 0, fmt.Errorf("candidate pois for %s: %w", propertyID, err)
	}

	rows := Compute(propertyID, origin, candidates, maxMeters)
	if err := c.store.ReplacePropertyDistances(ctx, propertyID, rows, c.now()); err != nil {
		return 0, fmt.Errorf("replace distances for %s: %w", propertyID, err)
	}
	c.log.Debug("distances calculated",
		zap.String("property_id", propertyID),
		zap.Int("candidates", len(candidates)),
		zap.Int("rows", len(rows)),
	)
	return len(rows), nil
}

// Compute keeps the active candidates within maxMeters of origin.
func Compute(propertyID string, origin poi.Coordinate, candidates []poi.POI, maxMeters int) []poi.Distance {
	rows := make([]poi.Distance, 0, len(candidates))
	for _, cand := range candidates {
		if !cand.IsActive {
			continue
		}
		d := geo.Distance(origin, cand.Location)
		if d > maxMeters {
			continue
		}
		rows = append(rows, poi.Distance{
			PropertyID:     propertyID,
			PoiID:          cand.ID,
			DistanceMeters: d,
			WalkingMinutes: geo.WalkingMinutes(d),
			DrivingMinutes: geo.DrivingMinutes(d),
			IsHighlight:    poi.IsHighlight(cand.Category, cand.Importance, d),
		})
	}
	return rows
}
