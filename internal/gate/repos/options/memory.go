package options

import (
	"context"
	"sync"
)

// memoryBackend keeps every namespace in process memory. It backs tests and
// the "memory" backend setting; nothing survives a restart.
type memoryBackend struct {
	mu     sync.RWMutex
	spaces map[string]map[string][]byte
}

// NewMemory returns an empty in-memory Backend.
func NewMemory() Backend {
	return &memoryBackend{spaces: make(map[string]map[string][]byte)}
}

func (m *memoryBackend) Site(id string) Store {
	return &memoryStore{b: m, ns: SiteNamespace(id)}
}

func (m *memoryBackend) Network() Store {
	return &memoryStore{b: m, ns: NetworkNamespace}
}

func (m *memoryBackend) Close() error { return nil }

type memoryStore struct {
	b  *memoryBackend
	ns string
}

func (s *memoryStore) Namespace() string { return s.ns }

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	v, ok := s.b.spaces[s.ns][key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	space, ok := s.b.spaces[s.ns]
	if !ok {
		space = make(map[string][]byte)
		s.b.spaces[s.ns] = space
	}
	v := make([]byte, len(value))
	copy(v, value)
	space[key] = v
	return nil
}

var _ Backend = (*memoryBackend)(nil)
