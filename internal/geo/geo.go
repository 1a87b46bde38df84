// Package geo holds the pure geometry used by the engine: great-circle distance,
// bearings, compass sectors and linear travel-time estimates.
package geo

import (
	"math"

	"github.com/yourorg/poi-engine/internal/poi"
)

const (
	EarthRadiusMeters = 6371000.0

	// 5 km/h and 30 km/h expressed in meters per minute.
	WalkingMetersPerMinute = 83.33
	DrivingMetersPerMinute = 500.0

	metersPerDegreeLat = 111000.0
)

var cardinals = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(r float64) float64   { return r * 180 / math.Pi }

// Distance returns the haversine distance in whole meters.
func Distance(a, b poi.Coordinate) int {
	dLat := rad(b.Lat - a.Lat)
	dLng := rad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(a.Lat))*math.Cos(rad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return int(math.Round(EarthRadiusMeters * c))
}

// Bearing returns the initial compass bearing from -> to in [0, 360).
func Bearing(from, to poi.Coordinate) float64 {
	lat1, lat2 := rad(from.Lat), rad(to.Lat)
	dLng := rad(to.Lng - from.Lng)
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	b := math.Mod(deg(math.Atan2(y, x))+360, 360)
	if b >= 360 {
		b = 0
	}
	return b
}

// Cardinal maps a bearing to the nearest of the eight 45° compass sectors.
func Cardinal(bearing float64) string {
	b := math.Mod(bearing, 360)
	if b < 0 {
		b += 360
	}
	return cardinals[int(math.Round(b/45))%8]
}

func WalkingMinutes(meters int) int {
	if meters <= 0 {
		return 0
	}
	return int(math.Ceil(float64(meters) / WalkingMetersPerMinute))
}

func DrivingMinutes(meters int) int {
	if meters <= 0 {
		return 0
	}
	return int(math.Ceil(float64(meters) / DrivingMetersPerMinute))
}

// BoundingBoxAround approximates a radius with a lat/lng rectangle. It is a pre-filter
// only: the longitude span uses the center latitude and widens toward the poles.
func BoundingBoxAround(center poi.Coordinate, meters int) poi.BBox {
	latDelta := float64(meters) / metersPerDegreeLat
	cosLat := math.Cos(rad(center.Lat))
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	lngDelta := float64(meters) / (metersPerDegreeLat * cosLat)
	return poi.BBox{
		South: center.Lat - latDelta,
		North: center.Lat + latDelta,
		West:  center.Lng - lngDelta,
		East:  center.Lng + lngDelta,
	}
}
