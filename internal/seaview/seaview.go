// Package seaview estimates sea-view likelihood from straight-line proximity to a fixed
// set of coastline reference points. It does not model terrain, buildings or elevation;
// a result is a proximity heuristic, not a line-of-sight computation.
package seaview

import (
	"github.com/yourorg/poi-engine/internal/geo"
	"github.com/yourorg/poi-engine/internal/poi"
)

// ViewThresholdMeters is the distance below which a view is assumed likely.
const ViewThresholdMeters = 1000

type CoastPoint struct {
	Name     string
	Location poi.Coordinate
}

// Coastline is ordered; ties on distance resolve to the earlier entry.
var Coastline = []CoastPoint{
	{"Mai Khao", poi.Coordinate{Lat: 8.1520, Lng: 98.2950}},
	{"Nai Yang", poi.Coordinate{Lat: 8.0872, Lng: 98.2977}},
	{"Nai Thon", poi.Coordinate{Lat: 8.0525, Lng: 98.2776}},
	{"Layan", poi.Coordinate{Lat: 8.0330, Lng: 98.2890}},
	{"Bang Tao", poi.Coordinate{Lat: 8.0026, Lng: 98.2943}},
	{"Surin", poi.Coordinate{Lat: 7.9783, Lng: 98.2797}},
	{"Kamala", poi.Coordinate{Lat: 7.9507, Lng: 98.2819}},
	{"Kalim", poi.Coordinate{Lat: 7.9110, Lng: 98.2950}},
	{"Patong", poi.Coordinate{Lat: 7.8961, Lng: 98.2966}},
	{"Freedom Beach", poi.Coordinate{Lat: 7.8790, Lng: 98.2740}},
	{"Karon", poi.Coordinate{Lat: 7.8472, Lng: 98.2944}},
	{"Kata", poi.Coordinate{Lat: 7.8208, Lng: 98.2976}},
	{"Kata Noi", poi.Coordinate{Lat: 7.8109, Lng: 98.2983}},
	{"Nai Harn", poi.Coordinate{Lat: 7.7767, Lng: 98.3036}},
	{"Rawai", poi.Coordinate{Lat: 7.7731, Lng: 98.3250}},
	{"Chalong Bay", poi.Coordinate{Lat: 7.8230, Lng: 98.3600}},
	{"Cape Panwa", poi.Coordinate{Lat: 7.8100, Lng: 98.4040}},
	{"Ao Yon", poi.Coordinate{Lat: 7.8260, Lng: 98.4070}},
}

// Analyzer holds the reference points so tests and other regions can swap them.
type Analyzer struct {
	Points    []CoastPoint
	Threshold int
}

func New() *Analyzer {
	return &Analyzer{Points: Coastline, Threshold: ViewThresholdMeters}
}

// Nearest returns the closest reference point; the first minimum wins.
func (a *Analyzer) Nearest(location poi.Coordinate) (CoastPoint, int, bool) {
	if len(a.Points) == 0 {
		return CoastPoint{}, 0, false
	}
	best, bestDist := a.Points[0], geo.Distance(location, a.Points[0].Location)
	for _, p := range a.Points[1:] {
		if d := geo.Distance(location, p.Location); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist, true
}

func (a *Analyzer) Analyze(location poi.Coordinate) poi.SeaView {
	nearest, dist, ok := a.Nearest(location)
	if !ok {
		return poi.SeaView{}
	}
	threshold := a.Threshold
	if threshold <= 0 {
		threshold = ViewThresholdMeters
	}
	out := poi.SeaView{Distance: dist, HasSeaView: dist < threshold}
	if out.HasSeaView {
		out.Direction = geo.Cardinal(geo.Bearing(location, nearest.Location))
	}
	return out
}
