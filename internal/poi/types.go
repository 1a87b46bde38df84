package poi

import (
	"time"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BBox is a lat/lng rectangle. Overpass expects (south, west, north, east).
type BBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

func (b BBox) Contains(c Coordinate) bool {
	return c.Lat >= b.South && c.Lat <= b.North && c.Lng >= b.West && c.Lng <= b.East
}

func (b BBox) IsZero() bool { return b == BBox{} }

const SourceOSM = "osm"

const (
	NoiseHigh = "high"
)

// POI is a stored point of interest. Identity is (ExternalID, Source).
type POI struct {
	ID           string            `json:"id"`
	ExternalID   string            `json:"external_id"`
	Source       string            `json:"source"`
	Name         string            `json:"name"`
	NameEn       string            `json:"name_en,omitempty"`
	NameTh       string            `json:"name_th,omitempty"`
	Category     Category          `json:"category"`
	SubCategory  string            `json:"sub_category,omitempty"`
	Location     Coordinate        `json:"location"`
	Address      string            `json:"address,omitempty"`
	District     string            `json:"district,omitempty"`
	Tags         map[string]string `json:"tags,omitempty"`
	Importance   int               `json:"importance"`
	NoiseLevel   string            `json:"noise_level,omitempty"`
	IsActive     bool              `json:"is_active"`
	LastSyncedAt time.Time         `json:"last_synced_at"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Scores are the four composite 0-100 livability metrics.
type Scores struct {
	Beach       int `json:"beach_score"`
	Family      int `json:"family_score"`
	Convenience int `json:"convenience_score"`
	Quietness   int `json:"quietness_score"`
}

// SeaView is the coastal-proximity estimate. Direction is empty unless HasSeaView.
type SeaView struct {
	HasSeaView bool   `json:"has_sea_view"`
	Direction  string `json:"sea_view_direction,omitempty"`
	Distance   int    `json:"sea_distance"`
}

type Property struct {
	ID               string      `json:"id"`
	Title            string      `json:"title,omitempty"`
	Location         string      `json:"location"`
	MapURL           string      `json:"map_url,omitempty"`
	Coordinate       *Coordinate `json:"coordinate,omitempty"`
	District         string      `json:"district,omitempty"`
	Scores           Scores      `json:"scores"`
	SeaView          SeaView     `json:"sea_view"`
	PoisCalculatedAt *time.Time  `json:"pois_calculated_at,omitempty"`
}

// Distance is one property -> POI row; the set for a property is always replaced wholesale.
type Distance struct {
	PropertyID     string `json:"property_id"`
	PoiID          string `json:"poi_id"`
	DistanceMeters int    `json:"distance_meters"`
	WalkingMinutes int    `json:"walking_minutes"`
	DrivingMinutes int    `json:"driving_minutes"`
	IsHighlight    bool   `json:"is_highlight"`
}

// NearbyPOI is a distance row joined with its POI, as read by consumers and the scoring engine.
type NearbyPOI struct {
	Distance
	Name        string     `json:"name"`
	Category    Category   `json:"category"`
	SubCategory string     `json:"sub_category,omitempty"`
	Location    Coordinate `json:"location"`
	Importance  int        `json:"importance"`
	NoiseLevel  string     `json:"noise_level,omitempty"`
}

type NearbyFilter struct {
	Categories    []Category
	HighlightOnly bool
	Limit         int
}

type JobType string

const (
	JobFullSync     JobType = "FULL_SYNC"
	JobCategorySync JobType = "CATEGORY_SYNC"
)

type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

type SyncCounts struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// SyncJob audits one ingestion run. It is created RUNNING and finished exactly once.
type SyncJob struct {
	ID           string     `json:"id"`
	Type         JobType    `json:"job_type"`
	Status       JobStatus  `json:"status"`
	Category     string     `json:"category,omitempty"`
	District     string     `json:"district,omitempty"`
	Counts       SyncCounts `json:"counts"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ErrorStack   string     `json:"error_stack,omitempty"`
}
