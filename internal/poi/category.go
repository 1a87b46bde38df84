package poi

import (
	"errors"
	"fmt"
	"strings"
)

type Category string

const (
	Beach               Category = "BEACH"
	Park                Category = "PARK"
	Viewpoint           Category = "VIEWPOINT"
	GolfCourse          Category = "GOLF_COURSE"
	Marina              Category = "MARINA"
	Temple              Category = "TEMPLE"
	InternationalSchool Category = "INTERNATIONAL_SCHOOL"
	LocalSchool         Category = "LOCAL_SCHOOL"
	Kindergarten        Category = "KINDERGARTEN"
	University          Category = "UNIVERSITY"
	Hospital            Category = "HOSPITAL"
	Clinic              Category = "CLINIC"
	Pharmacy            Category = "PHARMACY"
	Dentist             Category = "DENTIST"
	ShoppingMall        Category = "SHOPPING_MALL"
	Supermarket         Category = "SUPERMARKET"
	ConvenienceStore    Category = "CONVENIENCE_STORE"
	Market              Category = "MARKET"
	Gym                 Category = "GYM"
	Coworking           Category = "COWORKING"
	Bank                Category = "BANK"
	ATM                 Category = "ATM"
	Restaurant          Category = "RESTAURANT"
	Cafe                Category = "CAFE"
	Nightclub           Category = "NIGHTCLUB"
	Airport             Category = "AIRPORT"
	BusStation          Category = "BUS_STATION"
	FerryTerminal       Category = "FERRY_TERMINAL"
	TaxiStand           Category = "TAXI_STAND"
)

var ErrUnknownCategory = errors.New("unknown poi category")

// HighlightMinImportance is the importance a POI needs before it can be flagged as a highlight.
const HighlightMinImportance = 7

// CategoryConfig drives both the source query and the downstream scoring/highlight rules.
// Filters are Overpass tag-filter fragments, applied to nodes, ways and relations.
type CategoryConfig struct {
	Label             string
	Filters           []string
	Importance        int
	HighlightRadius   int
	NoiseLevel        string
	KeepUnnamed       bool
	ClassifiesSchools bool
}

var categories = map[Category]CategoryConfig{
	Beach:               {Label: "Beach", Filters: []string{`["natural"="beach"]`}, Importance: 9, HighlightRadius: 2000},
	Park:                {Label: "Park", Filters: []string{`["leisure"="park"]`}, Importance: 6, HighlightRadius: 1000},
	Viewpoint:           {Label: "Viewpoint", Filters: []string{`["tourism"="viewpoint"]`}, Importance: 6, HighlightRadius: 2000},
	GolfCourse:          {Label: "Golf Course", Filters: []string{`["leisure"="golf_course"]`}, Importance: 7, HighlightRadius: 5000},
	Marina:              {Label: "Marina", Filters: []string{`["leisure"="marina"]`}, Importance: 7, HighlightRadius: 5000},
	Temple:              {Label: "Temple", Filters: []string{`["amenity"="place_of_worship"]["religion"="buddhist"]`}, Importance: 5, HighlightRadius: 1000},
	InternationalSchool: {Label: "International School", Filters: []string{`["amenity"="school"]`}, Importance: 9, HighlightRadius: 5000, ClassifiesSchools: true},
	LocalSchool:         {Label: "Local School", Filters: []string{`["amenity"="school"]`}, Importance: 6, HighlightRadius: 2000, ClassifiesSchools: true},
	Kindergarten:        {Label: "Kindergarten", Filters: []string{`["amenity"="kindergarten"]`}, Importance: 6, HighlightRadius: 1500},
	University:          {Label: "University", Filters: []string{`["amenity"="university"]`, `["amenity"="college"]`}, Importance: 6, HighlightRadius: 5000},
	Hospital:            {Label: "Hospital", Filters: []string{`["amenity"="hospital"]`}, Importance: 9, HighlightRadius: 5000},
	Clinic:              {Label: "Clinic", Filters: []string{`["amenity"="clinic"]`, `["amenity"="doctors"]`}, Importance: 7, HighlightRadius: 2000},
	Pharmacy:            {Label: "Pharmacy", Filters: []string{`["amenity"="pharmacy"]`, `["shop"="chemist"]`}, Importance: 6, HighlightRadius: 1000},
	Dentist:             {Label: "Dentist", Filters: []string{`["amenity"="dentist"]`}, Importance: 5, HighlightRadius: 2000},
	ShoppingMall:        {Label: "Shopping Mall", Filters: []string{`["shop"="mall"]`, `["shop"="department_store"]`}, Importance: 8, HighlightRadius: 3000},
	Supermarket:         {Label: "Supermarket", Filters: []string{`["shop"="supermarket"]`}, Importance: 8, HighlightRadius: 1500},
	ConvenienceStore:    {Label: "Convenience Store", Filters: []string{`["shop"="convenience"]`}, Importance: 5, HighlightRadius: 500},
	Market:              {Label: "Market", Filters: []string{`["amenity"="marketplace"]`}, Importance: 6, HighlightRadius: 2000},
	Gym:                 {Label: "Gym", Filters: []string{`["leisure"="fitness_centre"]`, `["leisure"="sports_centre"]["sport"="fitness"]`}, Importance: 5, HighlightRadius: 1500},
	Coworking:           {Label: "Coworking Space", Filters: []string{`["amenity"="coworking_space"]`, `["office"="coworking"]`}, Importance: 6, HighlightRadius: 2000},
	Bank:                {Label: "Bank", Filters: []string{`["amenity"="bank"]`}, Importance: 5, HighlightRadius: 1000},
	ATM:                 {Label: "ATM", Filters: []string{`["amenity"="atm"]`}, Importance: 3, HighlightRadius: 500, KeepUnnamed: true},
	Restaurant:          {Label: "Restaurant", Filters: []string{`["amenity"="restaurant"]`}, Importance: 4, HighlightRadius: 500},
	Cafe:                {Label: "Cafe", Filters: []string{`["amenity"="cafe"]`}, Importance: 4, HighlightRadius: 500},
	Nightclub:           {Label: "Nightlife", Filters: []string{`["amenity"="nightclub"]`, `["amenity"="bar"]`, `["amenity"="pub"]`}, Importance: 3, HighlightRadius: 500, NoiseLevel: NoiseHigh},
	Airport:             {Label: "Airport", Filters: []string{`["aeroway"="aerodrome"]["iata"]`}, Importance: 8, HighlightRadius: 30000},
	BusStation:          {Label: "Bus Station", Filters: []string{`["amenity"="bus_station"]`, `["highway"="bus_stop"]`}, Importance: 4, HighlightRadius: 500, KeepUnnamed: true},
	FerryTerminal:       {Label: "Ferry Terminal", Filters: []string{`["amenity"="ferry_terminal"]`}, Importance: 6, HighlightRadius: 5000},
	TaxiStand:           {Label: "Taxi Stand", Filters: []string{`["amenity"="taxi"]`}, Importance: 3, HighlightRadius: 500},
}

// order is the closed enumeration in declaration order.
var order = []Category{
	Beach, Park, Viewpoint, GolfCourse, Marina, Temple,
	InternationalSchool, LocalSchool, Kindergarten, University,
	Hospital, Clinic, Pharmacy, Dentist,
	ShoppingMall, Supermarket, ConvenienceStore, Market,
	Gym, Coworking, Bank, ATM, Restaurant, Cafe, Nightclub,
	Airport, BusStation, FerryTerminal, TaxiStand,
}

// HighPriority is synced when a caller does not name categories.
var HighPriority = []Category{
	Beach, InternationalSchool, LocalSchool, Kindergarten,
	Hospital, Clinic, ShoppingMall, Supermarket, ConvenienceStore,
	Restaurant, Nightclub, Airport,
}

func All() []Category { return append([]Category(nil), order...) }

func (c Category) Config() (CategoryConfig, bool) {
	cfg, ok := categories[c]
	return cfg, ok
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

func (c Category) IsSchool() bool {
	return c == InternationalSchool || c == LocalSchool
}

// ParseCategory accepts "beach", "BEACH" or "shopping-mall" style spellings.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

func ParseCategories(vals []string) ([]Category, error) {
	out := make([]Category, 0, len(vals))
	for _, v := range vals {
		if strings.TrimSpace(v) == "" {
			continue
		}
		c, err := ParseCategory(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// IsHighlight reports whether a POI at distance meters is notable for display.
func IsHighlight(c Category, importance, meters int) bool {
	cfg, ok := categories[c]
	if !ok {
		return false
	}
	return meters <= cfg.HighlightRadius && importance >= HighlightMinImportance
}

// DefaultImportance falls back to 5 for categories outside the table.
func DefaultImportance(c Category) int {
	if cfg, ok := categories[c]; ok {
		return cfg.Importance
	}
	return 5
}
