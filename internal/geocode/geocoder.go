// Package geocode resolves free-text property locations to coordinates and a district.
// A failed lookup is an expected outcome: it yields a nil result, not an error.
package geocode

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/poi-engine/internal/canon"
	"github.com/yourorg/poi-engine/internal/logger"
	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/nominatim"
)

const DefaultCountry = "Thailand"

const (
	SourceMapURL    = "map_url"
	SourceNominatim = "nominatim"
)

// addressFields are checked, in order, for a known district name.
var addressFields = []string{"suburb", "village", "town", "city_district", "quarter", "city", "county", "municipality"}

type Searcher interface {
	Search(ctx context.Context, p nominatim.SearchParams) ([]nominatim.Place, error)
}

type Waiter interface {
	Wait(ctx context.Context) error
}

type Result struct {
	Coordinate  poi.Coordinate `json:"coordinate"`
	District    string         `json:"district,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Confidence  float64        `json:"confidence"`
	Source      string         `json:"source"`
}

type Geocoder struct {
	client       Searcher
	gate         Waiter
	log          *zap.Logger
	country      string
	countryCodes string
	districts    []string
}

type Option func(*Geocoder)

func WithLogger(l *zap.Logger) Option { return func(g *Geocoder) { g.log = logger.OrNop(l) } }

// WithCountry sets the country appended to property locations.
func WithCountry(c string) Option {
	return func(g *Geocoder) {
		if c != "" {
			g.country = c
		}
	}
}

// WithCountryCodes restricts results, e.g. "th".
func WithCountryCodes(cc string) Option { return func(g *Geocoder) { g.countryCodes = cc } }

func WithDistricts(d []string) Option { return func(g *Geocoder) { g.districts = d } }

// New wires a searcher behind a gate. The gate must be shared by every Geocoder that
// talks to the same upstream.
func New(client Searcher, gate Waiter, opts ...Option) *Geocoder {
	g := &Geocoder{
		client:       client,
		gate:         gate,
		log:          zap.NewNop(),
		country:      DefaultCountry,
		countryCodes: "th",
		districts:    poi.KnownDistricts,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GeocodeAddress performs one rate-limited lookup. Only context errors are returned;
// every other failure is logged and reported as a nil result.
func (g *Geocoder) GeocodeAddress(ctx context.Context, address, country string) (*Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}
	if country == "" {
		country = g.country
	}
	query := address
	if !strings.Contains(strings.ToLower(address), strings.ToLower(country)) {
		query = address + ", " + country
	}

	if g.gate != nil {
		if err := g.gate.Wait(ctx); err != nil {
			return nil, err
		}
	}
	places, err := g.client.Search(ctx, nominatim.SearchParams{Query: query, CountryCodes: g.countryCodes, Limit: 1})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		g.log.Warn("geocode request failed", zap.String("query", query), zap.Error(err))
		return nil, nil
	}
	if len(places) == 0 {
		g.log.Debug("geocode no match", zap.String("query", query))
		return nil, nil
	}

	p := places[0]
	district := g.ExtractDistrict(address)
	if district == "" {
		district = g.districtFromAddress(p.Address)
	}
	return &Result{
		Coordinate:  poi.Coordinate{Lat: p.Lat, Lng: p.Lon},
		District:    district,
		DisplayName: p.DisplayName,
		Confidence:  p.Importance,
		Source:      SourceNominatim,
	}, nil
}

// GeocodePropertyLocation tries the map link, then the raw location, then the location
// with the region name appended. It returns nil when every strategy comes up empty.
func (g *Geocoder) GeocodePropertyLocation(ctx context.Context, location, mapURL string) (*Result, error) {
	if mapURL != "" {
		if c := ExtractCoordsFromMapURL(mapURL); c != nil {
			return &Result{
				Coordinate: *c,
				District:   g.ExtractDistrict(location),
				Confidence: 1,
				Source:     SourceMapURL,
			}, nil
		}
	}
	if strings.TrimSpace(location) == "" {
		return nil, nil
	}

	res, err := g.GeocodeAddress(ctx, location, g.country)
	if err != nil || res != nil {
		return res, err
	}

	if !strings.Contains(strings.ToLower(location), strings.ToLower(poi.RegionName)) {
		res, err = g.GeocodeAddress(ctx, location+", "+poi.RegionName, g.country)
		if err != nil || res != nil {
			return res, err
		}
	}
	return nil, nil
}

// ExtractDistrict returns the first known district named in text, case-insensitively.
func (g *Geocoder) ExtractDistrict(text string) string {
	if text == "" {
		return ""
	}
	for _, d := range g.districts {
		if canon.Contains(text, d) {
			return d
		}
	}
	return ""
}

func (g *Geocoder) districtFromAddress(addr map[string]string) string {
	for _, field := range addressFields {
		v := addr[field]
		if v == "" {
			continue
		}
		if d := g.ExtractDistrict(v); d != "" {
			return d
		}
	}
	return ""
}

// IsWithinRegion is a sanity check that a coordinate lies in the served region.
func IsWithinRegion(lat, lng float64) bool {
	return poi.RegionBounds.Contains(poi.Coordinate{Lat: lat, Lng: lng})
}
