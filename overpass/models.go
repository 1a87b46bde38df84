package overpass

// Element is one raw node/way/relation from an `out center tags` query.
// Ways and relations carry Center instead of Lat/Lon.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *Point            `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Response struct {
	Version   float64   `json:"version"`
	Generator string    `json:"generator"`
	Remark    string    `json:"remark,omitempty"`
	Elements  []Element `json:"elements"`
}

// Position prefers the element's own point and falls back to its center.
func (e Element) Position() (Point, bool) {
	if e.Lat != nil && e.Lon != nil {
		return Point{Lat: *e.Lat, Lon: *e.Lon}, true
	}
	if e.Center != nil {
		return *e.Center, true
	}
	return Point{}, false
}
