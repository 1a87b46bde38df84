package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OVERPASS_ENDPOINTS", "")
	t.Setenv("GEOCODE_MIN_INTERVAL", "")
	t.Setenv("ANALYSIS_STALE_AFTER", "")
	cfg := Load()
	assert.Equal(t, DefaultOverpassEndpoints, cfg.OverpassEndpoints)
	assert.Equal(t, 1100*time.Millisecond, cfg.GeocodeInterval)
	assert.Equal(t, 2*time.Second, cfg.OverpassInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.StaleAfter)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OVERPASS_ENDPOINTS", "http://a/api/interpreter, http://b/api/interpreter")
	t.Setenv("SYNC_CATEGORIES", "BEACH,HOSPITAL")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("MAX_DISTANCE_METERS", "5000")
	cfg := Load()
	assert.Equal(t, []string{"http://a/api/interpreter", "http://b/api/interpreter"}, cfg.OverpassEndpoints)
	assert.Equal(t, []string{"BEACH", "HOSPITAL"}, cfg.SyncCategories)
	assert.Equal(t, 5000, cfg.MaxDistanceMeters)
	assert.True(t, cfg.IsProduction())
}

func TestLoadBackendsOptional(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("APP_PORT", "")
	cfg := Load()
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "4002", cfg.Port)
}
