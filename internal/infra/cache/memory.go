package cache

import (
	"context"
	"sync"
	"time"

	"homestay/internal/app/middleware"
)

// Memory is an in-process Cache used when no redis address is configured.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
	tags    map[string]map[string]struct{}
	gens    map[string]int64
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
		tags:    make(map[string]map[string]struct{}),
		gens:    make(map[string]int64),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Stamp(_ context.Context, tags []string) (middleware.Stamp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stamp := make(middleware.Stamp, len(tags))
	for _, tag := range tags {
		stamp[tag] = m.gens[tag]
	}
	return stamp, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, stamp middleware.Stamp, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tag, gen := range stamp {
		if m.gens[tag] != gen {
			return false, nil
		}
	}
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	for tag := range stamp {
		keys, ok := m.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return true, nil
}

func (m *Memory) Invalidate(_ context.Context, tags ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tag := range tags {
		m.gens[tag]++
		for key := range m.tags[tag] {
			delete(m.entries, key)
		}
		delete(m.tags, tag)
	}
	return nil
}

var _ middleware.Cache = (*Memory)(nil)
