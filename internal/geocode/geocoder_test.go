package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/poi-engine/internal/ratelimit"
	"github.com/yourorg/poi-engine/nominatim"
)

type fakeSearcher struct {
	clock   *ratelimit.FakeClock
	queries []string
	times   []time.Time
	results map[string][]nominatim.Place
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, p nominatim.SearchParams) ([]nominatim.Place, error) {
	f.queries = append(f.queries, p.Query)
	if f.clock != nil {
		f.times = append(f.times, f.clock.Now())
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[p.Query], nil
}

func kataPlace() nominatim.Place {
	return nominatim.Place{
		Lat:         7.8208,
		Lon:         98.2976,
		DisplayName: "Kata, Karon, Mueang Phuket, Phuket, Thailand",
		Importance:  0.42,
		Address:     map[string]string{"suburb": "Karon", "state": "Phuket"},
	}
}

func TestGeocodeAddressAppendsCountry(t *testing.T) {
	s := &fakeSearcher{results: map[string][]nominatim.Place{
		"Kata Beach, Thailand": {kataPlace()},
	}}
	g := New(s, nil)

	res, err := g.GeocodeAddress(context.Background(), "Kata Beach", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"Kata Beach, Thailand"}, s.queries)
	assert.Equal(t, 7.8208, res.Coordinate.Lat)
	assert.Equal(t, 98.2976, res.Coordinate.Lng)
	assert.Equal(t, "Kata", res.District, "district from the input wins over the address fields")
	assert.Equal(t, 0.42, res.Confidence)
	assert.Equal(t, SourceNominatim, res.Source)
}

func TestGeocodeAddressKeepsCountryWhenPresent(t *testing.T) {
	s := &fakeSearcher{}
	g := New(s, nil)
	_, err := g.GeocodeAddress(context.Background(), "Soi Bangla, thailand", "Thailand")
	require.NoError(t, err)
	assert.Equal(t, []string{"Soi Bangla, thailand"}, s.queries)
}

func TestGeocodeAddressDistrictFromAddressFields(t *testing.T) {
	p := kataPlace()
	s := &fakeSearcher{results: map[string][]nominatim.Place{"88/1 Moo 3, Thailand": {p}}}
	res, err := New(s, nil).GeocodeAddress(context.Background(), "88/1 Moo 3", "Thailand")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Karon", res.District)
}

func TestGeocodeAddressNoMatch(t *testing.T) {
	res, err := New(&fakeSearcher{}, nil).GeocodeAddress(context.Background(), "nowhere", "Thailand")
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestGeocodeAddressTransportErrorIsNoMatch(t *testing.T) {
	s := &fakeSearcher{err: errors.New("connection refused")}
	res, err := New(s, nil).GeocodeAddress(context.Background(), "Kata", "Thailand")
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestGeocodeAddressCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeSearcher{err: context.Canceled}
	gate := ratelimit.NewGate(time.Second)
	_, err := New(s, gate).GeocodeAddress(ctx, "Kata", "Thailand")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.queries)
}

func TestConsecutiveLookupsAreSpaced(t *testing.T) {
	clock := ratelimit.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	gate := ratelimit.NewGate(1100*time.Millisecond, ratelimit.WithClock(clock.Now, clock.Sleep))
	s := &fakeSearcher{clock: clock}
	g := New(s, gate)

	for _, q := range []string{"a", "b", "c"} {
		_, err := g.GeocodeAddress(context.Background(), q, "Thailand")
		require.NoError(t, err)
	}
	require.Len(t, s.times, 3)
	for i := 1; i < len(s.times); i++ {
		assert.GreaterOrEqual(t, s.times[i].Sub(s.times[i-1]), 1100*time.Millisecond)
	}
}

func TestGeocodePropertyLocationPrefersMapURL(t *testing.T) {
	s := &fakeSearcher{}
	g := New(s, nil)
	res, err := g.GeocodePropertyLocation(context.Background(), "Villa in Rawai", "https://www.google.com/maps/@7.7797,98.3251,15z")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Empty(t, s.queries, "map link needs no lookup")
	assert.Equal(t, SourceMapURL, res.Source)
	assert.Equal(t, 7.7797, res.Coordinate.Lat)
	assert.Equal(t, "Rawai", res.District)
}

func TestGeocodePropertyLocationRetriesWithRegion(t *testing.T) {
	s := &fakeSearcher{results: map[string][]nominatim.Place{
		"Kata Hill, Phuket, Thailand": {kataPlace()},
	}}
	res, err := New(s, nil).GeocodePropertyLocation(context.Background(), "Kata Hill", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"Kata Hill, Thailand", "Kata Hill, Phuket, Thailand"}, s.queries)
}

func TestGeocodePropertyLocationNoRetryWhenRegionPresent(t *testing.T) {
	s := &fakeSearcher{}
	res, err := New(s, nil).GeocodePropertyLocation(context.Background(), "Somewhere, Phuket", "")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Len(t, s.queries, 1)
}

func TestGeocodePropertyLocationEmpty(t *testing.T) {
	s := &fakeSearcher{}
	res, err := New(s, nil).GeocodePropertyLocation(context.Background(), "  ", "")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, s.queries)
}

func TestExtractDistrict(t *testing.T) {
	g := New(&fakeSearcher{}, nil)
	assert.Equal(t, "Bang Tao", g.ExtractDistrict("Laguna, BANG TAO, Cherng"))
	assert.Equal(t, "Cherng Talay", g.ExtractDistrict("Bang Tao, Cherng Talay"))
	assert.Equal(t, "Nai Harn", g.ExtractDistrict("nai harn lake"))
	assert.Equal(t, "", g.ExtractDistrict("Bangkok"))
}

func TestIsWithinRegion(t *testing.T) {
	assert.True(t, IsWithinRegion(7.8208, 98.2976))
	assert.False(t, IsWithinRegion(13.7563, 100.5018))
}

func TestExtractCoordsFromMapURL(t *testing.T) {
	cases := []struct {
		url      string
		lat, lng float64
	}{
		{"https://maps.google.com/?q=7.8208,98.2976", 7.8208, 98.2976},
		{"https://maps.google.com/maps?ll=7.9,98.3&z=14", 7.9, 98.3},
		{"https://www.google.com/maps/search/?api=1&query=7.81%2C98.30", 7.81, 98.30},
		{"https://www.google.com/maps/@7.7797,98.3251,15z", 7.7797, 98.3251},
		{"https://www.google.com/maps/place/Kata+Beach/@7.8208,98.2976", 7.8208, 98.2976},
	}
	for _, tc := range cases {
		c := ExtractCoordsFromMapURL(tc.url)
		require.NotNil(t, c, tc.url)
		assert.Equal(t, tc.lat, c.Lat, tc.url)
		assert.Equal(t, tc.lng, c.Lng, tc.url)
	}

	assert.Nil(t, ExtractCoordsFromMapURL(""))
	assert.Nil(t, ExtractCoordsFromMapURL("https://maps.google.com/?q=Kata+Beach"))
	assert.Nil(t, ExtractCoordsFromMapURL("https://maps.google.com/?q=97.1,98.2"))
}
