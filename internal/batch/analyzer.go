// Package batch geocodes and analyzes properties in bulk, one property at a time.
package batch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/geocode"
	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/internal/scoring"
)

const (
	DefaultLimit      = 100
	DefaultStaleAfter = 7 * 24 * time.Hour
)

type Store interface {
	GetProperty(ctx context.Context, id string) (poi.Property, error)
	PropertiesMissingCoordinates(ctx context.Context, limit int) ([]poi.Property, error)
	SetPropertyLocation(ctx context.Context, id string, c poi.Coordinate, district string) error
	PropertiesDueForAnalysis(ctx context.Context, staleBefore time.Time, force bool, limit int) ([]poi.Property, error)
}

type Geocoder interface {
	GeocodePropertyLocation(ctx context.Context, location, mapURL string) (*geocode.Result, error)
}

type PropertyAnalyzer interface {
	AnalyzeProperty(ctx context.Context, propertyID string) (scoring.Analysis, error)
}

type Options struct {
	ForceRefresh bool `json:"force_refresh,omitempty"`
	Limit        int  `json:"limit,omitempty"`
}

type Result struct {
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
	Geocoded int `json:"geocoded"`
}

type Analyzer struct {
	store      Store
	geocoder   Geocoder
	engine     PropertyAnalyzer
	log        *zap.Logger
	staleAfter time.Duration
	now        func() time.Time
}

type Option func(*Analyzer)

func WithLogger(l *zap.Logger) Option { return func(a *Analyzer) { a.log = logger.OrNop(l) } }

func WithStaleAfter(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.staleAfter = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(a *Analyzer) { a.now = now } }

func New(st Store, g Geocoder, e PropertyAnalyzer, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:      st,
		geocoder:   g,
		engine:     e,
		log:        zap.NewNop(),
		staleAfter: DefaultStaleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// BatchAnalyzeProperties geocodes what it can, then analyzes every property that is due.
// Individual failures are logged and tallied; only listing failures and cancellation abort.
func (a *Analyzer) BatchAnalyzeProperties(ctx context.Context, opts Options) (Result, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	var res Result

	geocoded, err := a.geocodeMissing(ctx, limit)
	res.Geocoded = geocoded
	if err != nil {
		return res, err
	}

	due, err := a.store.PropertiesDueForAnalysis(ctx, a.now().Add(-a.staleAfter), opts.ForceRefresh, limit)
	if err != nil {
		return res, fmt.Errorf("list properties due for analysis: %w", err)
	}
	for _, p := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := a.engine.AnalyzeProperty(ctx, p.ID); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			res.Failed++
			a.log.Warn("property analysis failed", zap.String("property_id", p.ID), zap.Error(err))
			continue
		}
		res.Analyzed++
	}

	a.log.Info("batch analysis finished",
		zap.Int("analyzed", res.Analyzed),
		zap.Int("failed", res.Failed),
		zap.Int("geocoded", res.Geocoded),
		zap.Bool("force_refresh", opts.ForceRefresh),
	)
	return res, nil
}

func (a *Analyzer) geocodeMissing(ctx context.Context, limit int) (int, error) {
	if a.geocoder == nil {
		return 0, nil
	}
	missing, err := a.store.PropertiesMissingCoordinates(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list properties missing coordinates: %w", err)
	}
	n := 0
	for _, p := range missing {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := a.geocodeProperty(ctx, p)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// geocodeProperty resolves and stores one property's coordinates. Only cancellation is
// returned as an error; every other miss is logged and reported as false.
func (a *Analyzer) geocodeProperty(ctx context.Context, p poi.Property) (bool, error) {
	log := a.log.With(zap.String("property_id", p.ID))
	r, err := a.geocoder.GeocodePropertyLocation(ctx, p.Location, p.MapURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		log.Warn("geocode failed", zap.Error(err))
		return false, nil
	}
	if r == nil {
		log.Info("geocode found no match", zap.String("location", p.Location))
		return false, nil
	}
	if !geocode.IsWithinRegion(r.Coordinate.Lat, r.Coordinate.Lng) {
		log.Warn("geocode result outside region",
			zap.Float64("lat", r.Coordinate.Lat),
			zap.Float64("lng", r.Coordinate.Lng),
			zap.String("source", r.Source),
		)
		return false, nil
	}
	if err := a.store.SetPropertyLocation(ctx, p.ID, r.Coordinate, r.District); err != nil {
		log.Warn("persist coordinates failed", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// AnalyzeOne geocodes the property if it has no coordinates yet and then analyzes it.
func (a *Analyzer) AnalyzeOne(ctx context.Context, propertyID string) (scoring.Analysis, error) {
	p, err := a.store.GetProperty(ctx, propertyID)
	if err != nil {
		return scoring.Analysis{}, err
	}
	if p.Coordinate == nil && a.geocoder != nil {
		if _, err := a.geocodeProperty(ctx, p); err != nil {
			return scoring.Analysis{}, err
		}
	}
	return a.engine.AnalyzeProperty(ctx, propertyID)
}
