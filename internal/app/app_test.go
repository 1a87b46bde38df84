package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/poi-engine/internal/config"
	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/internal/redisx"
	"github.com/yourorg/poi-engine/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		NominatimURL:       "http://127.0.0.1:0",
		NominatimUserAgent: "test",
		GeocodeInterval:    time.Millisecond,
		OverpassEndpoints:  []string{"http://127.0.0.1:0/api/interpreter"},
		OverpassInterval:   time.Millisecond,
		MaxDistanceMeters:  10000,
		StaleAfter:         7 * 24 * time.Hour,
		SyncCategories:     []string{"beach", "hospital"},
		SyncDistrict:       "Kata",
	}
}

func TestOpenFallsBackToMemory(t *testing.T) {
	a, err := Open(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.IsType(t, &store.Memory{}, a.Store)
	assert.IsType(t, &redisx.Memory{}, a.KV)
}

func TestEngineAnalyzesOverEmptyStore(t *testing.T) {
	cfg := testConfig()
	mem := store.NewMemory()
	a := New(cfg, nil, mem, redisx.NewMemory())

	c := poi.Coordinate{Lat: 7.8206, Lng: 98.2960}
	id, err := mem.SaveProperty(context.Background(), poi.Property{Coordinate: &c})
	require.NoError(t, err)
	res, err := a.Engine.AnalyzeProperty(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Zero(t, res.DistanceCount)
}

func TestSyncOptionsFromConfig(t *testing.T) {
	a := New(testConfig(), nil, store.NewMemory(), redisx.NewMemory())
	opts, err := a.SyncOptions()
	require.NoError(t, err)
	assert.Equal(t, []poi.Category{poi.Beach, poi.Hospital}, opts.Categories)
	assert.Equal(t, "Kata", opts.District)

	a.Config.SyncCategories = []string{"volcano"}
	_, err = a.SyncOptions()
	assert.ErrorIs(t, err, poi.ErrUnknownCategory)
}

func TestLockerIsExclusive(t *testing.T) {
	a := New(testConfig(), nil, store.NewMemory(), redisx.NewMemory())
	l := a.Locker("poiworker:lock", time.Minute)
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release, ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}
