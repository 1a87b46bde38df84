package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/poi-engine/internal/poi"
)

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*Memory)(nil)
)

func TestMemory(t *testing.T) {
	runContract(t, NewMemory())
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("POI_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("POI_TEST_DATABASE_URL not set")
	}
	s, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	runContract(t, s)
}

func runContract(t *testing.T, s Backend) {
	// unique per run so a shared database does not collide
	run := uuid.NewString()[:8]
	ext := func(n string) string { return "node/" + run + n }

	t.Run("upsert is keyed by external id and source", func(t *testing.T) {
		ctx := context.Background()
		p := poi.POI{
			ExternalID: ext("1"), Source: poi.SourceOSM, Name: "Kata Beach", Category: poi.Beach,
			Location: poi.Coordinate{Lat: 7.82, Lng: 98.29}, Importance: 9,
			Tags: map[string]string{"natural": "beach"},
		}
		id, created, err := s.UpsertPOI(ctx, p)
		require.NoError(t, err)
		assert.True(t, created)

		p.Name = "Kata Yai Beach"
		id2, created, err := s.UpsertPOI(ctx, p)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, id, id2)

		got, err := s.FindPOI(ctx, ext("1"), poi.SourceOSM)
		require.NoError(t, err)
		assert.Equal(t, "Kata Yai Beach", got.Name)
		assert.Equal(t, "beach", got.Tags["natural"])
		assert.True(t, got.IsActive)

		_, err = s.FindPOI(ctx, ext("1"), "other")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("distances replace wholesale and join active pois", func(t *testing.T) {
		ctx := context.Background()
		propID, err := s.SaveProperty(ctx, poi.Property{Title: "Villa", Location: "Kata", Coordinate: &poi.Coordinate{Lat: 7.8208, Lng: 98.2976}})
		require.NoError(t, err)

		beachID, _, err := s.UpsertPOI(ctx, poi.POI{ExternalID: ext("b"), Source: poi.SourceOSM, Name: "Beach", Category: poi.Beach, Location: poi.Coordinate{Lat: 7.822, Lng: 98.2976}, Importance: 9})
		require.NoError(t, err)
		marketID, _, err := s.UpsertPOI(ctx, poi.POI{ExternalID: ext("m"), Source: poi.SourceOSM, Name: "Mart", Category: poi.Supermarket, Location: poi.Coordinate{Lat: 7.823, Lng: 98.2976}, Importance: 8})
		require.NoError(t, err)

		at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		rows := []poi.Distance{
			{PoiID: marketID, DistanceMeters: 300, WalkingMinutes: 4, DrivingMinutes: 1},
			{PoiID: beachID, DistanceMeters: 200, WalkingMinutes: 3, DrivingMinutes: 1, IsHighlight: true},
		}
		require.NoError(t, s.ReplacePropertyDistances(ctx, propID, rows, at))
		require.NoError(t, s.ReplacePropertyDistances(ctx, propID, rows, at))

		all, err := s.NearbyPOIs(ctx, propID, poi.NearbyFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, beachID, all[0].PoiID)
		assert.Equal(t, poi.Beach, all[0].Category)
		assert.Equal(t, 200, all[0].DistanceMeters)

		hl, err := s.NearbyPOIs(ctx, propID, poi.NearbyFilter{HighlightOnly: true})
		require.NoError(t, err)
		assert.Len(t, hl, 1)

		markets, err := s.NearbyPOIs(ctx, propID, poi.NearbyFilter{Categories: []poi.Category{poi.Supermarket}})
		require.NoError(t, err)
		require.Len(t, markets, 1)
		assert.Equal(t, marketID, markets[0].PoiID)

		p, err := s.GetProperty(ctx, propID)
		require.NoError(t, err)
		require.NotNil(t, p.PoisCalculatedAt)
		assert.True(t, at.Equal(*p.PoisCalculatedAt))

		require.NoError(t, s.DeactivatePOI(ctx, marketID))
		left, err := s.NearbyPOIs(ctx, propID, poi.NearbyFilter{})
		require.NoError(t, err)
		assert.Len(t, left, 1)

		// a later upsert of the same place does not bring it back
		again, created, err := s.UpsertPOI(ctx, poi.POI{ExternalID: ext("m"), Source: poi.SourceOSM, Name: "Mart 2", Category: poi.Supermarket, Location: poi.Coordinate{Lat: 7.823, Lng: 98.2976}, Importance: 8})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, marketID, again)
		market, err := s.FindPOI(ctx, ext("m"), poi.SourceOSM)
		require.NoError(t, err)
		assert.False(t, market.IsActive)
		assert.Equal(t, "Mart 2", market.Name)

		box := poi.BBox{South: 7.82, West: 98.29, North: 7.83, East: 98.30}
		active, err := s.ActivePOIsInBox(ctx, box)
		require.NoError(t, err)
		for _, a := range active {
			assert.NotEqual(t, marketID, a.ID)
		}

		require.NoError(t, s.ReplacePropertyDistances(ctx, propID, nil, at))
		none, err := s.NearbyPOIs(ctx, propID, poi.NearbyFilter{})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("property updates", func(t *testing.T) {
		ctx := context.Background()
		id, err := s.SaveProperty(ctx, poi.Property{Title: "Condo", Location: "Soi Bangla, Patong"})
		require.NoError(t, err)

		missing, err := s.PropertiesMissingCoordinates(ctx, 0)
		require.NoError(t, err)
		assert.True(t, containsProperty(missing, id))

		require.NoError(t, s.SetPropertyLocation(ctx, id, poi.Coordinate{Lat: 7.89, Lng: 98.29}, "Patong"))
		require.NoError(t, s.UpdatePropertyScores(ctx, id, poi.Scores{Beach: 90, Family: 40, Convenience: 70, Quietness: 20}))
		require.NoError(t, s.UpdatePropertySeaView(ctx, id, poi.SeaView{HasSeaView: true, Direction: "W", Distance: 400}))

		p, err := s.GetProperty(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, p.Coordinate)
		assert.Equal(t, 7.89, p.Coordinate.Lat)
		assert.Equal(t, "Patong", p.District)
		assert.Equal(t, 90, p.Scores.Beach)
		assert.Equal(t, 20, p.Scores.Quietness)
		assert.Equal(t, "W", p.SeaView.Direction)

		due, err := s.PropertiesDueForAnalysis(ctx, time.Now().Add(-time.Hour), false, 0)
		require.NoError(t, err)
		assert.True(t, containsProperty(due, id))

		require.NoError(t, s.ReplacePropertyDistances(ctx, id, nil, time.Now()))
		due, err = s.PropertiesDueForAnalysis(ctx, time.Now().Add(-time.Hour), false, 0)
		require.NoError(t, err)
		assert.False(t, containsProperty(due, id))

		due, err = s.PropertiesDueForAnalysis(ctx, time.Now().Add(-time.Hour), true, 0)
		require.NoError(t, err)
		assert.True(t, containsProperty(due, id))

		assert.ErrorIs(t, s.UpdatePropertyScores(ctx, uuid.NewString(), poi.Scores{}), ErrNotFound)
		_, err = s.GetProperty(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("sync job finishes once", func(t *testing.T) {
		ctx := context.Background()
		j, err := s.CreateSyncJob(ctx, poi.SyncJob{Type: poi.JobCategorySync, Category: "BEACH"})
		require.NoError(t, err)
		assert.Equal(t, poi.JobRunning, j.Status)
		assert.NotEmpty(t, j.ID)

		j.Status = poi.JobCompleted
		j.Counts = poi.SyncCounts{Fetched: 3, Created: 2, Updated: 1}
		require.NoError(t, s.FinishSyncJob(ctx, j))

		j.Status = poi.JobFailed
		assert.ErrorIs(t, s.FinishSyncJob(ctx, j), ErrJobNotRunning)

		got, err := s.GetSyncJob(ctx, j.ID)
		require.NoError(t, err)
		assert.Equal(t, poi.JobCompleted, got.Status)
		assert.Equal(t, 2, got.Counts.Created)
		assert.NotNil(t, got.CompletedAt)

		_, err = s.GetSyncJob(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func containsProperty(ps []poi.Property, id string) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}
