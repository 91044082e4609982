package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend is the process-local cache tier: a map with per-key expiry
// and a background janitor. It serves the same keys and TTLs as the shared
// tier so reads keep working when Redis is unavailable.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	stop    chan struct{}
	once    sync.Once

	now func() time.Time // test hook
}

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryBackend creates the backend and starts its janitor goroutine.
func NewMemoryBackend() *MemoryBackend {
	m := &MemoryBackend{
		entries: make(map[string]memEntry, 256),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go m.janitor()
	return m
}

// Get returns the cached bytes if present and unexpired.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

// Set stores val under key with the given TTL.
func (m *MemoryBackend) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = memEntry{data: val, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

// Close stops the janitor.
func (m *MemoryBackend) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryBackend) janitor() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for k, e := range m.entries {
				if now.After(e.expiresAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
