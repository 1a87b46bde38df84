package distance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/poi-engine/internal/geo"
	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/internal/store"
)

var kata = poi.Coordinate{Lat: 7.8208, Lng: 98.2976}

// north returns a point roughly m meters due north of c.
func north(c poi.Coordinate, m float64) poi.Coordinate {
	return poi.Coordinate{Lat: c.Lat + m/111195, Lng: c.Lng}
}

func seed(t *testing.T, mem *store.Memory, ext string, cat poi.Category, loc poi.Coordinate, importance int) string {
	t.Helper()
	id, _, err := mem.UpsertPOI(context.Background(), poi.POI{
		ExternalID: ext, Source: poi.SourceOSM, Name: ext, Category: cat, Location: loc, Importance: importance,
	})
	require.NoError(t, err)
	return id
}

func TestCalculateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	propID, err := mem.SaveProperty(ctx, poi.Property{Location: "Kata", Coordinate: &kata})
	require.NoError(t, err)

	seed(t, mem, "beach", poi.Beach, north(kata, 200), 9)
	seed(t, mem, "mall", poi.ShoppingMall, north(kata, 4000), 8)
	seed(t, mem, "far", poi.Hospital, north(kata, 9800), 9)
	seed(t, mem, "beyond", poi.Airport, north(kata, 15000), 8)

	c := New(mem)
	n1, err := c.CalculatePropertyPoiDistances(ctx, propID, 0)
	require.NoError(t, err)
	first, err := mem.NearbyPOIs(ctx, propID, poi.NearbyFilter{})
	require.NoError(t, err)

	n2, err := c.CalculatePropertyPoiDistances(ctx, propID, 0)
	require.NoError(t, err)
	second, err := mem.NearbyPOIs(ctx, propID, poi.NearbyFilter{})
	require.NoError(t, err)

	assert.Equal(t, 3, n1)
	assert.Equal(t, n1, n2)
	assert.Equal(t, first, second)
	for _, r := range first {
		assert.LessOrEqual(t, r.DistanceMeters, DefaultMaxMeters)
	}

	p, err := mem.GetProperty(ctx, propID)
	require.NoError(t, err)
	assert.NotNil(t, p.PoisCalculatedAt)
}

func TestCalculateHighlightsAndTravelTimes(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	propID, err := mem.SaveProperty(ctx, poi.Property{Coordinate: &kata})
	require.NoError(t, err)

	seed(t, mem, "beach", poi.Beach, north(kata, 1000), 9)
	seed(t, mem, "cafe", poi.Cafe, north(kata, 300), 4)
	seed(t, mem, "mall", poi.ShoppingMall, north(kata, 3500), 8)

	n, err := New(mem).CalculatePropertyPoiDistances(ctx, propID, 5000)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	rows, err := mem.NearbyPOIs(ctx, propID, poi.NearbyFilter{})
	require.NoError(t, err)
	byCat := map[poi.Category]poi.NearbyPOI{}
	for _, r := range rows {
		byCat[r.Category] = r
	}

	b := byCat[poi.Beach]
	assert.InDelta(t, 1000, b.DistanceMeters, 2)
	assert.True(t, b.IsHighlight, "beach inside its 2000 m radius with importance 9")
	assert.Equal(t, geo.WalkingMinutes(b.DistanceMeters), b.WalkingMinutes)
	assert.Equal(t, geo.DrivingMinutes(b.DistanceMeters), b.DrivingMinutes)

	assert.False(t, byCat[poi.Cafe].IsHighlight, "importance below 7")
	assert.False(t, byCat[poi.ShoppingMall].IsHighlight, "outside the 3000 m mall radius")
}

func TestCalculateExcludesInactiveAndReplaces(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	propID, err := mem.SaveProperty(ctx, poi.Property{Coordinate: &kata})
	require.NoError(t, err)
	a := seed(t, mem, "a", poi.Beach, north(kata, 100), 9)
	seed(t, mem, "b", poi.Beach, north(kata, 300), 9)

	c := New(mem)
	n, err := c.CalculatePropertyPoiDistances(ctx, propID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, mem.DeactivatePOI(ctx, a))
	n, err = c.CalculatePropertyPoiDistances(ctx, propID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := mem.NearbyPOIs(ctx, propID, poi.NearbyFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEqual(t, a, rows[0].PoiID)
}

func TestCalculateWithoutCoordinatesIsNoop(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	propID, err := mem.SaveProperty(ctx, poi.Property{Location: "somewhere"})
	require.NoError(t, err)
	seed(t, mem, "a", poi.Beach, kata, 9)

	n, err := New(mem).CalculatePropertyPoiDistances(ctx, propID, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	p, err := mem.GetProperty(ctx, propID)
	require.NoError(t, err)
	assert.Nil(t, p.PoisCalculatedAt)
}

func TestCalculateUnknownProperty(t *testing.T) {
	_, err := New(store.NewMemory()).CalculatePropertyPoiDistances(context.Background(), "missing", 0)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestComputeDropsBoxCorners(t *testing.T) {
	// the bounding box corner is ~1.41x the radius away
	box := geo.BoundingBoxAround(kata, 1000)
	corner := poi.POI{ID: "c", Category: poi.Beach, Importance: 9, IsActive: true,
		Location: poi.Coordinate{Lat: box.North, Lng: box.East}}
	rows := Compute("p", kata, []poi.POI{corner}, 1000)
	assert.Empty(t, rows)
}
