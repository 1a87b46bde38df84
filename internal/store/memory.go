package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/poi-engine/internal/poi"
)

// Memory is an in-process store with the same semantics as Store. It backs tests and
// local runs without DATABASE_URL.
type Memory struct {
	mu         sync.RWMutex
	properties map[string]*memProperty
	pois       map[string]*poi.POI
	poiByKey   map[string]string
	distances  map[string][]poi.Distance
	jobs       map[string]*poi.SyncJob
	now        func() time.Time
}

type memProperty struct {
	poi.Property
	createdAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		properties: map[string]*memProperty{},
		pois:       map[string]*poi.POI{},
		poiByKey:   map[string]string{},
		distances:  map[string][]poi.Distance{},
		jobs:       map[string]*poi.SyncJob{},
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func poiKey(externalID, source string) string { return source + "|" + externalID }

func cloneProperty(p poi.Property) poi.Property {
	if p.Coordinate != nil {
		c := *p.Coordinate
		p.Coordinate = &c
	}
	if p.PoisCalculatedAt != nil {
		t := *p.PoisCalculatedAt
		p.PoisCalculatedAt = &t
	}
	return p
}

func (m *Memory) SaveProperty(ctx context.Context, p poi.Property) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if existing, ok := m.properties[p.ID]; ok {
		existing.Title, existing.Location, existing.MapURL, existing.District = p.Title, p.Location, p.MapURL, p.District
		existing.Coordinate = cloneProperty(p).Coordinate
		return p.ID, nil
	}
	m.properties[p.ID] = &memProperty{Property: cloneProperty(p), createdAt: m.now()}
	return p.ID, nil
}

func (m *Memory) GetProperty(ctx context.Context, id string) (poi.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.properties[id]
	if !ok {
		return poi.Property{}, ErrNotFound
	}
	return cloneProperty(p.Property), nil
}

func (m *Memory) SetPropertyLocation(ctx context.Context, id string, c poi.Coordinate, district string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return ErrNotFound
	}
	p.Coordinate = &c
	if district != "" {
		p.District = district
	}
	return nil
}

func (m *Memory) UpdatePropertyScores(ctx context.Context, id string, s poi.Scores) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return ErrNotFound
	}
	p.Scores = s
	return nil
}

func (m *Memory) UpdatePropertySeaView(ctx context.Context, id string, v poi.SeaView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return ErrNotFound
	}
	p.SeaView = v
	return nil
}

func (m *Memory) PropertiesMissingCoordinates(ctx context.Context, limit int) ([]poi.Property, error) {
	return m.selectProperties(limit, func(p *memProperty) bool {
		return p.Coordinate == nil && (p.Location != "" || p.MapURL != "")
	}), nil
}

func (m *Memory) PropertiesDueForAnalysis(ctx context.Context, staleBefore time.Time, force bool, limit int) ([]poi.Property, error) {
	return m.selectProperties(limit, func(p *memProperty) bool {
		if p.Coordinate == nil {
			return false
		}
		return force || p.PoisCalculatedAt == nil || p.PoisCalculatedAt.Before(staleBefore)
	}), nil
}

// selectProperties orders like the SQL queries: never-calculated first, then oldest.
func (m *Memory) selectProperties(limit int, keep func(*memProperty) bool) []poi.Property {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*memProperty
	for _, p := range m.properties {
		if keep(p) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.PoisCalculatedAt == nil && b.PoisCalculatedAt != nil:
			return true
		case a.PoisCalculatedAt != nil && b.PoisCalculatedAt == nil:
			return false
		case a.PoisCalculatedAt != nil && !a.PoisCalculatedAt.Equal(*b.PoisCalculatedAt):
			return a.PoisCalculatedAt.Before(*b.PoisCalculatedAt)
		case !a.createdAt.Equal(b.createdAt):
			return a.createdAt.Before(b.createdAt)
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]poi.Property, len(matched))
	for i, p := range matched {
		out[i] = cloneProperty(p.Property)
	}
	return out
}

func clonePOI(p poi.POI) poi.POI {
	if p.Tags != nil {
		p.Tags = maps.Clone(p.Tags)
	}
	return p
}

func (m *Memory) UpsertPOI(ctx context.Context, p poi.POI) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if p.LastSyncedAt.IsZero() {
		p.LastSyncedAt = now
	}
	key := poiKey(p.ExternalID, p.Source)
	if id, ok := m.poiByKey[key]; ok {
		existing := m.pois[id]
		p.ID = id
		p.IsActive = existing.IsActive
		p.CreatedAt = existing.CreatedAt
		p.UpdatedAt = now
		stored := clonePOI(p)
		m.pois[id] = &stored
		return id, false, nil
	}
	p.ID = uuid.NewString()
	p.IsActive = true
	p.CreatedAt, p.UpdatedAt = now, now
	stored := clonePOI(p)
	m.pois[p.ID] = &stored
	m.poiByKey[key] = p.ID
	return p.ID, true, nil
}

func (m *Memory) FindPOI(ctx context.Context, externalID, source string) (poi.POI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.poiByKey[poiKey(externalID, source)]
	if !ok {
		return poi.POI{}, ErrNotFound
	}
	return clonePOI(*m.pois[id]), nil
}

func (m *Memory) DeactivatePOI(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pois[id]
	if !ok {
		return ErrNotFound
	}
	p.IsActive = false
	p.UpdatedAt = m.now()
	for propID, rows := range m.distances {
		kept := rows[:0:0]
		for _, r := range rows {
			if r.PoiID != id {
				kept = append(kept, r)
			}
		}
		m.distances[propID] = kept
	}
	return nil
}

func (m *Memory) ActivePOIsInBox(ctx context.Context, b poi.BBox) ([]poi.POI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []poi.POI
	for _, p := range m.pois {
		if p.IsActive && b.Contains(p.Location) {
			out = append(out, clonePOI(*p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ReplacePropertyDistances(ctx context.Context, propertyID string, rows []poi.Distance, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[propertyID]
	if !ok {
		return ErrNotFound
	}
	set := make([]poi.Distance, len(rows))
	for i, r := range rows {
		if _, ok := m.pois[r.PoiID]; !ok {
			return fmt.Errorf("distance row references poi %s: %w", r.PoiID, ErrNotFound)
		}
		r.PropertyID = propertyID
		set[i] = r
	}
	m.distances[propertyID] = set
	t := at
	p.PoisCalculatedAt = &t
	return nil
}

func (m *Memory) NearbyPOIs(ctx context.Context, propertyID string, f poi.NearbyFilter) ([]poi.NearbyPOI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := make(map[poi.Category]bool, len(f.Categories))
	for _, c := range f.Categories {
		want[c] = true
	}
	var out []poi.NearbyPOI
	for _, d := range m.distances[propertyID] {
		p, ok := m.pois[d.PoiID]
		if !ok || !p.IsActive {
			continue
		}
		if len(want) > 0 && !want[p.Category] {
			continue
		}
		if f.HighlightOnly && !d.IsHighlight {
			continue
		}
		out = append(out, poi.NearbyPOI{
			Distance:    d,
			Name:        p.Name,
			Category:    p.Category,
			SubCategory: p.SubCategory,
			Location:    p.Location,
			Importance:  p.Importance,
			NoiseLevel:  p.NoiseLevel,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].PoiID < out[j].PoiID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) CreateSyncJob(ctx context.Context, j poi.SyncJob) (poi.SyncJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.ID = uuid.NewString()
	j.Status = poi.JobRunning
	if j.StartedAt.IsZero() {
		j.StartedAt = m.now()
	}
	stored := j
	m.jobs[j.ID] = &stored
	return j, nil
}

func (m *Memory) FinishSyncJob(ctx context.Context, j poi.SyncJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.jobs[j.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Status != poi.JobRunning {
		return ErrJobNotRunning
	}
	completed := m.now()
	if j.CompletedAt != nil {
		completed = *j.CompletedAt
	}
	existing.Status = j.Status
	existing.Counts = j.Counts
	existing.CompletedAt = &completed
	existing.ErrorMessage = j.ErrorMessage
	existing.ErrorStack = j.ErrorStack
	return nil
}

func (m *Memory) GetSyncJob(ctx context.Context, id string) (poi.SyncJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return poi.SyncJob{}, ErrNotFound
	}
	out := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out, nil
}
