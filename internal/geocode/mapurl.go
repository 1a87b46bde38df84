package geocode

import (
	"net/url"
	"regexp"
	"strconv"

	"github.com/yourorg/poi-engine/internal/poi"
)

const coordPair = `(-?\d{1,3}(?:\.\d+)?)\s*,\s*(-?\d{1,3}(?:\.\d+)?)`

// Tried in order; the first hit wins.
var mapURLPatterns = []*regexp.Regexp{
	// ?q=7.82,98.29  ?ll=...  &query=...
	regexp.MustCompile(`[?&](?:q|ll|query|center|destination)=` + coordPair),
	// /@7.82,98.29,15z
	regexp.MustCompile(`@` + coordPair + `,\d+(?:\.\d+)?[zm]?`),
	// /place/Some+Name/@7.82,98.29
	regexp.MustCompile(`place/[^/]+/@` + coordPair),
}

// ExtractCoordsFromMapURL pulls a coordinate out of a shared map link without any I/O.
func ExtractCoordsFromMapURL(raw string) *poi.Coordinate {
	if raw == "" {
		return nil
	}
	s := raw
	if u, err := url.QueryUnescape(raw); err == nil {
		s = u
	}
	for _, re := range mapURLPatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		lat, err1 := strconv.ParseFloat(m[1], 64)
		lng, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			continue
		}
		return &poi.Coordinate{Lat: lat, Lng: lng}
	}
	return nil
}
