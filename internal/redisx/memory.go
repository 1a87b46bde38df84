package redisx

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Memory is a process-local KV with expiry, used when REDIS_ADDR is empty and in tests.
type Memory struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

type memEntry struct {
	val     string
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{data: map[string]memEntry{}, now: time.Now}
}

// SetClock replaces the time source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) live(key string) (memEntry, bool) {
	e, ok := m.data[key]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.data, key)
		return e, false
	}
	return e, true
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", redis.Nil
	}
	return e.val, nil
}

func (m *Memory) Set(_ context.Context, key string, val string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, val, ttl)
	return nil
}

func (m *Memory) put(key, val string, ttl time.Duration) {
	e := memEntry{val: val}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.data[key] = e
}

func (m *Memory) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

func (m *Memory) SetNX(_ context.Context, key string, val string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.put(key, val, ttl)
	return true, nil
}

func (m *Memory) CompareAndDelete(_ context.Context, key, val string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || e.val != val {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}
