// Package scoring turns a property's POI distances into the four 0-100 livability scores.
package scoring

import (
	"math"

	"github.com/yourorg/poi-engine/internal/poi"
)

var (
	schoolCategories      = []poi.Category{poi.InternationalSchool, poi.LocalSchool, poi.Kindergarten}
	healthCategories      = []poi.Category{poi.Hospital, poi.Clinic}
	convenienceCategories = []poi.Category{poi.Supermarket, poi.ShoppingMall, poi.ConvenienceStore, poi.Restaurant}
)

const (
	DensityRadiusMeters = 2000
	DensityPointsEach   = 10
	NoiseRadiusMeters   = 500
	NoisePenaltyEach    = 10
)

// Decay is 100 below full meters, 0 beyond zero meters, and linear in between.
func Decay(d, full, zero int) int {
	switch {
	case d < full:
		return 100
	case d > zero:
		return 0
	}
	return clamp(int(math.Round(100 - float64(d-full)/float64(zero-full)*100)))
}

// BeachScore scores the nearest beach; ok=false means there is none.
func BeachScore(nearest int, ok bool) int {
	if !ok {
		return 0
	}
	return Decay(nearest, 500, 5000)
}

func FamilyScore(school int, schoolOK bool, health int, healthOK bool) int {
	s, h := 0, 0
	if schoolOK {
		s = Decay(school, 1000, 5000)
	}
	if healthOK {
		h = Decay(health, 2000, 10000)
	}
	return average(s, h)
}

// ConvenienceScore blends nearest-shop proximity with a density bonus for shops within 2 km.
func ConvenienceScore(nearest int, ok bool, within2km int) int {
	p := 0
	if ok {
		p = Decay(nearest, 500, 3000)
	}
	density := min(within2km*DensityPointsEach, 100)
	return average(p, density)
}

// QuietnessScore steps down by nearest noise source, then loses NoisePenaltyEach for each
// further source inside NoiseRadiusMeters.
func QuietnessScore(nearest int, ok bool, withinNoiseRadius int) int {
	if !ok {
		return 100
	}
	score := 100
	switch {
	case nearest < 200:
		score = 20
	case nearest < 500:
		score = 50
	case nearest < 1000:
		score = 70
	case nearest < 2000:
		score = 85
	}
	if withinNoiseRadius > 1 {
		score -= (withinNoiseRadius - 1) * NoisePenaltyEach
	}
	return clamp(score)
}

// Compute derives all four scores from a property's distance rows.
func Compute(rows []poi.NearbyPOI) poi.Scores {
	beach, beachOK := nearest(rows, isIn(poi.Beach))
	school, schoolOK := nearest(rows, isIn(schoolCategories...))
	health, healthOK := nearest(rows, isIn(healthCategories...))
	shop, shopOK := nearest(rows, isIn(convenienceCategories...))
	noise, noiseOK := nearest(rows, isNoisy)

	return poi.Scores{
		Beach:       BeachScore(beach, beachOK),
		Family:      FamilyScore(school, schoolOK, health, healthOK),
		Convenience: ConvenienceScore(shop, shopOK, countWithin(rows, isIn(convenienceCategories...), DensityRadiusMeters)),
		Quietness:   QuietnessScore(noise, noiseOK, countWithin(rows, isNoisy, NoiseRadiusMeters)),
	}
}

func isIn(cats ...poi.Category) func(poi.NearbyPOI) bool {
	return func(r poi.NearbyPOI) bool {
		for _, c := range cats {
			if r.Category == c {
				return true
			}
		}
		return false
	}
}

func isNoisy(r poi.NearbyPOI) bool {
	return r.NoiseLevel != "" || r.Category == poi.Nightclub
}

func nearest(rows []poi.NearbyPOI, match func(poi.NearbyPOI) bool) (int, bool) {
	best, ok := 0, false
	for _, r := range rows {
		if !match(r) {
			continue
		}
		if !ok || r.DistanceMeters < best {
			best, ok = r.DistanceMeters, true
		}
	}
	return best, ok
}

func countWithin(rows []poi.NearbyPOI, match func(poi.NearbyPOI) bool, meters int) int {
	n := 0
	for _, r := range rows {
		if match(r) && r.DistanceMeters <= meters {
			n++
		}
	}
	return n
}

func average(a, b int) int { return int(math.Round(float64(a+b) / 2)) }

func clamp(v int) int { return max(0, min(100, v)) }
