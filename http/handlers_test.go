package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/poi-engine/internal/poi"
	"github.com/yourorg/poi-engine/internal/poisync"
	"github.com/yourorg/poi-engine/internal/redisx"
	"github.com/yourorg/poi-engine/internal/refresh"
	"github.com/yourorg/poi-engine/internal/scorecache"
	"github.com/yourorg/poi-engine/internal/store"
)

type fakeQueue struct {
	mu      sync.Mutex
	accept  bool
	pending bool
	jobs    []refresh.Job
}

func (q *fakeQueue) Enqueue(j refresh.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, j)
	return q.accept
}

func (q *fakeQueue) Pending(string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

func (q *fakeQueue) set(accept, pending bool) {
	q.mu.Lock()
	q.accept, q.pending = accept, pending
	q.mu.Unlock()
}

type fixture struct {
	mem    *store.Memory
	queue  *fakeQueue
	srv    *httptest.Server
	propID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	c := poi.Coordinate{Lat: 7.82, Lng: 98.30}
	id, err := mem.SaveProperty(ctx, poi.Property{Title: "villa", Coordinate: &c})
	require.NoError(t, err)
	beach, _, err := mem.UpsertPOI(ctx, poi.POI{ExternalID: "node/1", Source: poi.SourceOSM, Name: "Kata", Category: poi.Beach, Location: c, Importance: 9})
	require.NoError(t, err)
	atm, _, err := mem.UpsertPOI(ctx, poi.POI{ExternalID: "node/2", Source: poi.SourceOSM, Name: "ATM", Category: poi.ATM, Location: c, Importance: 3})
	require.NoError(t, err)
	require.NoError(t, mem.ReplacePropertyDistances(ctx, id, []poi.Distance{
		{PropertyID: id, PoiID: beach, DistanceMeters: 300, IsHighlight: true},
		{PropertyID: id, PoiID: atm, DistanceMeters: 100},
	}, time.Now()))

	q := &fakeQueue{accept: true}
	r := chi.NewRouter()
	RegisterProperties(r, PropertiesDeps{
		Scores: scorecache.New(redisx.NewMemory(), mem),
		Store:  mem,
		Queue:  q,
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{mem: mem, queue: q, srv: srv, propID: id}
}

func getJSON(t *testing.T, method, url string, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestScoresEndpoint(t *testing.T) {
	f := newFixture(t)
	status, body := getJSON(t, http.MethodGet, f.srv.URL+"/properties/"+f.propID+"/scores", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, scorecache.SourceStore, body["source"])
	data := body["data"].(map[string]any)
	assert.Equal(t, false, data["stale"])
	assert.Len(t, data["highlights"], 1)

	_, body = getJSON(t, http.MethodGet, f.srv.URL+"/properties/"+f.propID+"/scores", "")
	assert.Equal(t, scorecache.SourceCache, body["source"])

	status, body = getJSON(t, http.MethodGet, f.srv.URL+"/properties/nope/scores", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])
}

func TestNearbyEndpoint(t *testing.T) {
	f := newFixture(t)
	base := f.srv.URL + "/properties/" + f.propID + "/nearby"

	status, body := getJSON(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])
	first := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "ATM", first["name"], "ordered by distance")

	_, body = getJSON(t, http.MethodGet, base+"?category=beach", "")
	assert.EqualValues(t, 1, body["count"])

	_, body = getJSON(t, http.MethodGet, base+"?highlight=true", "")
	assert.EqualValues(t, 1, body["count"])

	_, body = getJSON(t, http.MethodGet, base+"?limit=1", "")
	assert.EqualValues(t, 1, body["count"])

	status, _ = getJSON(t, http.MethodGet, base+"?category=volcano", "")
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = getJSON(t, http.MethodGet, base+"?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = getJSON(t, http.MethodGet, f.srv.URL+"/properties/nope/nearby", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAnalyzeEndpoint(t *testing.T) {
	f := newFixture(t)
	url := f.srv.URL + "/properties/" + f.propID + "/analyze"

	status, body := getJSON(t, http.MethodPost, url, "")
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, true, body["queued"])
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, f.propID, f.queue.jobs[0].PropertyID)

	f.queue.set(false, true)
	status, body = getJSON(t, http.MethodPost, url, "")
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, true, body["in_progress"])

	f.queue.set(false, false)
	status, _ = getJSON(t, http.MethodPost, url, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = getJSON(t, http.MethodPost, f.srv.URL+"/properties/nope/analyze", "")
	assert.Equal(t, http.StatusNotFound, status)
}

type stubFetcher struct {
	pois    []poi.POI
	release chan struct{}
}

func (s *stubFetcher) FetchAllPois(ctx context.Context, _ []poi.Category, _ poi.BBox) ([]poi.POI, error) {
	if s.release != nil {
		<-s.release
	}
	return s.pois, nil
}

func newSyncServer(t *testing.T, f poisync.Fetcher) (*httptest.Server, *store.Memory, *poisync.Syncer) {
	t.Helper()
	mem := store.NewMemory()
	s := poisync.New(f, mem)
	r := chi.NewRouter()
	RegisterSync(r, SyncDeps{Syncer: s, Jobs: mem, BaseContext: context.Background()})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mem, s
}

func TestSyncEndpointStartsJob(t *testing.T) {
	f := &stubFetcher{pois: []poi.POI{{ExternalID: "node/1", Source: poi.SourceOSM, Name: "Kata", Category: poi.Beach, Importance: 9}}}
	srv, _, s := newSyncServer(t, f)

	status, body := getJSON(t, http.MethodPost, srv.URL+"/pois/sync", `{"categories":["beach"],"district":"Kata"}`)
	require.Equal(t, http.StatusAccepted, status)
	id := body["job_id"].(string)
	require.NotEmpty(t, id)

	assert.Eventually(t, func() bool { return !s.Running() }, 2*time.Second, 10*time.Millisecond)
	status, body = getJSON(t, http.MethodGet, srv.URL+"/pois/sync/jobs/"+id, "")
	require.Equal(t, http.StatusOK, status)
	job := body["data"].(map[string]any)
	assert.Equal(t, string(poi.JobCompleted), job["status"])
	assert.Equal(t, string(poi.JobCategorySync), job["job_type"])
}

func TestSyncEndpointRejectsBadInput(t *testing.T) {
	srv, _, _ := newSyncServer(t, &stubFetcher{})
	cases := map[string]string{
		"bad json":         `{`,
		"unknown category": `{"categories":["volcano"]}`,
		"unknown district": `{"district":"Atlantis"}`,
		"inverted box":     `{"bounding_box":{"south":8,"west":98.3,"north":7,"east":98.4}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, _ := getJSON(t, http.MethodPost, srv.URL+"/pois/sync", body)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestSyncEndpointConflictWhileRunning(t *testing.T) {
	f := &stubFetcher{release: make(chan struct{})}
	srv, _, s := newSyncServer(t, f)

	status, _ := getJSON(t, http.MethodPost, srv.URL+"/pois/sync", "")
	require.Equal(t, http.StatusAccepted, status)
	status, body := getJSON(t, http.MethodPost, srv.URL+"/pois/sync", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "sync_in_progress", body["error"])

	close(f.release)
	assert.Eventually(t, func() bool { return !s.Running() }, 2*time.Second, 10*time.Millisecond)
}

func TestSyncJobNotFound(t *testing.T) {
	srv, _, _ := newSyncServer(t, &stubFetcher{})
	status, _ := getJSON(t, http.MethodGet, srv.URL+"/pois/sync/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
}
