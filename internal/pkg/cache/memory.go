package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
	timer     *time.Timer
}

// MemoryStore is an in-process Store. Each entry owns a timer that evicts it
// at expiry; a Get that races the timer also treats the entry as gone. There
// is no size bound.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		m.removeLocked(key, e)
		m.misses.Add(1)
		return nil, false, nil
	}
	m.hits.Add(1)
	return e.value, true, nil
}

// Set stores value under key. Re-setting a key replaces the value and restarts
// its expiry timer.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[key]; ok {
		old.timer.Stop()
	}

	e := &memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	e.timer = time.AfterFunc(ttl, func() { m.expire(key, e) })
	m.entries[key] = e
	return nil
}

// expire evicts key only if it still maps to e, so a timer belonging to an
// overwritten entry is a no-op.
func (m *MemoryStore) expire(key string, e *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[key]; ok && cur == e {
		delete(m.entries, key)
	}
}

func (m *MemoryStore) removeLocked(key string, e *memoryEntry) {
	e.timer.Stop()
	delete(m.entries, key)
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if e, ok := m.entries[k]; ok {
			m.removeLocked(k, e)
		}
	}
	return nil
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		if strings.HasPrefix(k, prefix) {
			m.removeLocked(k, e)
		}
	}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.entries {
		m.removeLocked(k, e)
	}
	return nil
}

// Len returns the number of live entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) Stats() Stats {
	return Stats{
		Backend: "memory",
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Keys:    int64(m.Len()),
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close stops all timers.
func (m *MemoryStore) Close() error {
	return m.Clear(context.Background())
}
