package config

import (
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/poi-engine/internal/env"
)

var DefaultOverpassEndpoints = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
}

// Config is read once at startup. An empty DatabaseURL or RedisAddr selects the
// in-process store or cache.
type Config struct {
	Port        string
	Environment string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Geocoding
	NominatimURL       string
	NominatimUserAgent string
	GeocodeCountry     string
	GeocodeInterval    time.Duration

	// Map data source
	OverpassEndpoints []string
	OverpassInterval  time.Duration
	OverpassTimeout   time.Duration

	// Analysis
	MaxDistanceMeters int
	StaleAfter        time.Duration
	BatchLimit        int
	BatchForceRefresh bool

	// Worker
	WorkerInterval   time.Duration
	WorkerRunOnce    bool
	WorkerLockTTL    time.Duration
	WorkerSync       bool
	SyncCategories   []string
	SyncDistrict     string
	SyncForceRefresh bool
	SyncFreshFor     time.Duration

	// Read API
	CacheTTL           time.Duration
	NegativeTTL        time.Duration
	RateLimitPerMinute int
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	endpoints := env.GetList("OVERPASS_ENDPOINTS")
	if len(endpoints) == 0 {
		endpoints = DefaultOverpassEndpoints
	}

	return &Config{
		Port:        env.Get("APP_PORT", "4002"),
		Environment: env.Get("ENVIRONMENT", "development"),
		DatabaseURL: env.Get("DATABASE_URL", ""),

		RedisAddr:     env.Get("REDIS_ADDR", ""),
		RedisPassword: env.Get("REDIS_PASSWORD", ""),
		RedisDB:       env.GetInt("REDIS_DB", 0),

		NominatimURL:       env.Get("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: env.Get("NOMINATIM_USER_AGENT", "poi-engine/1.0"),
		GeocodeCountry:     env.Get("GEOCODE_COUNTRY", "Thailand"),
		GeocodeInterval:    env.GetDuration("GEOCODE_MIN_INTERVAL", 1100*time.Millisecond),

		OverpassEndpoints: endpoints,
		OverpassInterval:  env.GetDuration("OVERPASS_MIN_INTERVAL", 2*time.Second),
		OverpassTimeout:   env.GetDuration("OVERPASS_TIMEOUT", 90*time.Second),

		MaxDistanceMeters: env.GetInt("MAX_DISTANCE_METERS", 10000),
		StaleAfter:        env.GetDuration("ANALYSIS_STALE_AFTER", 7*24*time.Hour),
		BatchLimit:        env.GetInt("BATCH_LIMIT", 100),
		BatchForceRefresh: env.GetBool("BATCH_FORCE_REFRESH", false),

		WorkerInterval:   env.GetDuration("WORKER_INTERVAL", 6*time.Hour),
		WorkerRunOnce:    env.GetBool("WORKER_RUN_ONCE", false),
		WorkerLockTTL:    env.GetDuration("WORKER_LOCK_TTL", 2*time.Hour),
		WorkerSync:       env.GetBool("WORKER_SYNC", false),
		SyncCategories:   env.GetList("SYNC_CATEGORIES"),
		SyncDistrict:     env.Get("SYNC_DISTRICT", ""),
		SyncForceRefresh: env.GetBool("SYNC_FORCE_REFRESH", false),
		SyncFreshFor:     env.GetDuration("SYNC_FRESH_FOR", 24*time.Hour),

		CacheTTL:           env.GetDuration("CACHE_TTL", time.Hour),
		NegativeTTL:        env.GetDuration("NEGATIVE_TTL", 10*time.Minute),
		RateLimitPerMinute: env.GetInt("RATE_LIMIT_PER_MINUTE", 100),
	}
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }
