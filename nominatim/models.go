package nominatim

// Place is one candidate from /search?format=json&addressdetails=1.
type Place struct {
	PlaceID     int64             `json:"place_id"`
	OSMType     string            `json:"osm_type"`
	OSMID       int64             `json:"osm_id"`
	Lat         float64           `json:"lat,string"`
	Lon         float64           `json:"lon,string"`
	DisplayName string            `json:"display_name"`
	Class       string            `json:"class"`
	Type        string            `json:"type"`
	Importance  float64           `json:"importance"`
	Address     map[string]string `json:"address"`
}

// SearchParams are the inputs of a forward geocode.
type SearchParams struct {
	Query        string
	CountryCodes string
	Limit        int
}
