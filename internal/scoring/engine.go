package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/events"
	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
)

type Store interface {
	GetProperty(ctx context.Context, id string) (poi.Property, error)
	NearbyPOIs(ctx context.Context, propertyID string, f poi.NearbyFilter) ([]poi.NearbyPOI, error)
	UpdatePropertyScores(ctx context.Context, id string, s poi.Scores) error
	UpdatePropertySeaView(ctx context.Context, id string, v poi.SeaView) error
}

type DistanceCalculator interface {
	CalculatePropertyPoiDistances(ctx context.Context, propertyID string, maxMeters int) (int, error)
}

type SeaViewAnalyzer interface {
	Analyze(location poi.Coordinate) poi.SeaView
}

// Analysis is the outcome of one AnalyzeProperty call.
type Analysis struct {
	PropertyID    string      `json:"property_id"`
	DistanceCount int         `json:"distance_count"`
	Scores        poi.Scores  `json:"scores"`
	SeaView       poi.SeaView `json:"sea_view"`
	Skipped       bool        `json:"skipped,omitempty"`
}

type Engine struct {
	store     Store
	distances DistanceCalculator
	seaView   SeaViewAnalyzer
	pub       events.Publisher
	log       *zap.Logger
	maxMeters int
	now       func() time.Time
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = logger.OrNop(l) } }

func WithPublisher(p events.Publisher) Option { return func(e *Engine) { e.pub = p } }

func WithMaxDistance(m int) Option { return func(e *Engine) { e.maxMeters = m } }

func New(st Store, dc DistanceCalculator, sv SeaViewAnalyzer, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		distances: dc,
		seaView:   sv,
		pub:       events.Nop{},
		log:       zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CalculatePropertyScores scores the stored distance rows and overwrites the property's scores.
func (e *Engine) CalculatePropertyScores(ctx context.Context, propertyID string) (poi.Scores, error) {
	rows, err := e.store.NearbyPOIs(ctx, propertyID, poi.NearbyFilter{})
	if err != nil {
		return poi.Scores{}, fmt.Errorf("load distances for %s: %w", propertyID, err)
	}
	scores := Compute(rows)
	if err := e.store.UpdatePropertyScores(ctx, propertyID, scores); err != nil {
		return poi.Scores{}, fmt.Errorf("save scores for %s: %w", propertyID, err)
	}
	return scores, nil
}

// AnalyzePropertySeaView persists the sea-view estimate. ok is false when the property has
// no coordinates, in which case nothing is written.
func (e *Engine) AnalyzePropertySeaView(ctx context.Context, propertyID string) (poi.SeaView, bool, error) {
	p, err := e.store.GetProperty(ctx, propertyID)
	if err != nil {
		return poi.SeaView{}, false, fmt.Errorf("load property %s: %w", propertyID, err)
	}
	if p.Coordinate == nil {
		return poi.SeaView{}, false, nil
	}
	v := e.seaView.Analyze(*p.Coordinate)
	if err := e.store.UpdatePropertySeaView(ctx, propertyID, v); err != nil {
		return poi.SeaView{}, false, fmt.Errorf("save sea view for %s: %w", propertyID, err)
	}
	return v, true, nil
}

// AnalyzeProperty runs distances, scores and sea view in that order.
func (e *Engine) AnalyzeProperty(ctx context.Context, propertyID string) (Analysis, error) {
	out := Analysis{PropertyID: propertyID}
	p, err := e.store.GetProperty(ctx, propertyID)
	if err != nil {
		return out, fmt.Errorf("load property %s: %w", propertyID, err)
	}
	if p.Coordinate == nil {
		out.Skipped = true
		return out, nil
	}

	n, err := e.distances.CalculatePropertyPoiDistances(ctx, propertyID, e.maxMeters)
	if err != nil {
		return out, err
	}
	out.DistanceCount = n

	if out.Scores, err = e.CalculatePropertyScores(ctx, propertyID); err != nil {
		return out, err
	}
	if out.SeaView, _, err = e.AnalyzePropertySeaView(ctx, propertyID); err != nil {
		return out, err
	}

	e.pub.PublishPropertyAnalyzed(ctx, events.PropertyAnalyzed{
		PropertyID:    propertyID,
		DistanceCount: n,
		Scores:        out.Scores,
		At:            e.now(),
	})
	e.log.Debug("property analyzed",
		zap.String("property_id", propertyID),
		zap.Int("distances", n),
		zap.Int("beach", out.Scores.Beach),
		zap.Int("family", out.Scores.Family),
		zap.Int("convenience", out.Scores.Convenience),
		zap.Int("quietness", out.Scores.Quietness),
	)
	return out, nil
}
