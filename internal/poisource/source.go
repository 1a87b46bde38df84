// Package poisource turns category-scoped Overpass results into normalized POI records.
package poisource

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/overpass"
)

const unknownName = "Unknown"

// Querier runs a raw Overpass QL query.
type Querier interface {
	Query(ctx context.Context, query string) ([]overpass.Element, error)
}

type Source struct {
	client         Querier
	log            *zap.Logger
	timeoutSeconds int
	now            func() time.Time
}

type Option func(*Source)

func WithLogger(l *zap.Logger) Option { return func(s *Source) { s.log = logger.OrNop(l) } }

// WithQueryTimeout sets the server-side [timeout:N] of generated queries.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeoutSeconds = int(d / time.Second)
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Source) { s.now = now } }

func New(client Querier, opts ...Option) *Source {
	s := &Source{client: client, log: zap.NewNop(), timeoutSeconds: 60, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchPoisForCategory queries one category inside bbox. Malformed elements are dropped;
// an error means the upstream could not be reached at all.
func (s *Source) FetchPoisForCategory(ctx context.Context, cat poi.Category, bbox poi.BBox) ([]poi.POI, error) {
	cfg, ok := cat.Config()
	if !ok {
		return nil, fmt.Errorf("%w: %q", poi.ErrUnknownCategory, cat)
	}
	if bbox.IsZero() {
		bbox = poi.RegionBounds
	}
	q := overpass.BuildQuery(cfg.Filters, overpass.Box{South: bbox.South, West: bbox.West, North: bbox.North, East: bbox.East}, s.timeoutSeconds)
	elements, err := s.client.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", cat, err)
	}

	now := s.now().UTC()
	out := make([]poi.POI, 0, len(elements))
	dropped := 0
	for _, el := range elements {
		p, ok := normalize(el, cat, cfg, now)
		if !ok {
			dropped++
			continue
		}
		out = append(out, p)
	}
	s.log.Info("fetched pois",
		zap.String("category", string(cat)),
		zap.Int("elements", len(elements)),
		zap.Int("kept", len(out)),
		zap.Int("dropped", dropped),
	)
	return out, nil
}

// FetchAllPois walks categories one at a time. A failing category is logged and skipped;
// an error is returned only when every category failed. Results are unique by ExternalID.
func (s *Source) FetchAllPois(ctx context.Context, cats []poi.Category, bbox poi.BBox) ([]poi.POI, error) {
	if len(cats) == 0 {
		cats = poi.HighPriority
	}
	seen := make(map[string]struct{})
	var (
		out  []poi.POI
		errs []error
	)
	for _, cat := range cats {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		pois, err := s.FetchPoisForCategory(ctx, cat, bbox)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			s.log.Warn("category fetch failed", zap.String("category", string(cat)), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		for _, p := range pois {
			if _, dup := seen[p.ExternalID]; dup {
				continue
			}
			seen[p.ExternalID] = struct{}{}
			out = append(out, p)
		}
	}
	if len(errs) == len(cats) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func normalize(el overpass.Element, cat poi.Category, cfg poi.CategoryConfig, now time.Time) (poi.POI, bool) {
	pos, ok := el.Position()
	if !ok {
		return poi.POI{}, false
	}
	tags := el.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	name := pickName(tags)
	if name == unknownName && !cfg.KeepUnnamed {
		return poi.POI{}, false
	}

	p := poi.POI{
		ExternalID:   el.Type + "/" + strconv.FormatInt(el.ID, 10),
		Source:       poi.SourceOSM,
		Name:         name,
		NameEn:       tags["name:en"],
		NameTh:       tags["name:th"],
		Category:     cat,
		Location:     poi.Coordinate{Lat: pos.Lat, Lng: pos.Lon},
		Address:      formatAddress(tags),
		District:     firstTag(tags, "addr:suburb", "addr:district", "addr:city"),
		Tags:         tags,
		Importance:   cfg.Importance,
		NoiseLevel:   cfg.NoiseLevel,
		IsActive:     true,
		LastSyncedAt: now,
	}

	if cfg.ClassifiesSchools {
		if IsInternationalSchool(tags) {
			p.Category = poi.InternationalSchool
			p.SubCategory = "international"
		} else {
			p.Category = poi.LocalSchool
			p.SubCategory = "local"
		}
		p.Importance = poi.DefaultImportance(p.Category)
	}

	if cat == poi.Nightclub {
		switch a := tags["amenity"]; a {
		case "bar", "pub":
			p.SubCategory = a
		}
	}
	return p, true
}

var nameKeys = []string{"name:en", "name", "int_name", "name:th", "brand"}

func pickName(tags map[string]string) string {
	if n := firstTag(tags, nameKeys...); n != "" {
		return n
	}
	return unknownName
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}

func formatAddress(tags map[string]string) string {
	var parts []string
	street := strings.TrimSpace(tags["addr:street"])
	if hn := strings.TrimSpace(tags["addr:housenumber"]); hn != "" && street != "" {
		street = hn + " " + street
	}
	for _, v := range []string{street, tags["addr:suburb"], tags["addr:city"], tags["addr:postcode"]} {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}
