package session

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps session records in process. Records expire lazily.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

func (m *MemoryBackend) SaveSession(_ context.Context, id string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = memoryRecord{
		data:      append([]byte(nil), data...),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *MemoryBackend) LoadSession(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	if !m.now().Before(rec.expiresAt) {
		delete(m.records, id)
		return nil, nil
	}
	return append([]byte(nil), rec.data...), nil
}

func (m *MemoryBackend) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// Len returns the number of stored records, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
