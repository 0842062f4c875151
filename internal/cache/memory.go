package cache

import (
	"context"
	"sync"
)

// Memory is the in-process backend, used when no redis address is
// configured and in tests. Entries live until their partition is cleared.
type Memory struct {
	mu         sync.RWMutex
	partitions map[string]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{partitions: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, partition, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.partitions[partition]
	if !ok {
		return nil, false
	}
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

func (m *Memory) Set(ctx context.Context, partition, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partitions[partition]
	if !ok {
		p = make(map[string][]byte)
		m.partitions[partition] = p
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	p[key] = stored
}

func (m *Memory) Clear(ctx context.Context, partition string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.partitions, partition)
}
