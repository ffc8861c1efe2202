package dedup

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	done       bool
	reservedAt time.Time
}

// MemoryBackend keeps processed-document records in process memory. It is
// used for dry runs and tests.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryBackend) HasProcessed(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key].done, nil
}

func (m *MemoryBackend) MarkProcessed(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{done: true}
	return nil
}

func (m *MemoryBackend) Reserve(_ context.Context, key string, staleAfter time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if ok && (e.done || staleAfter <= 0 || m.now().Sub(e.reservedAt) < staleAfter) {
		return false, nil
	}
	m.entries[key] = memoryEntry{reservedAt: m.now()}
	return true, nil
}

func (m *MemoryBackend) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !e.done {
		delete(m.entries, key)
	}
	return nil
}
