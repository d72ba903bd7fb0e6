package lru

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
)

// entry caches both hits and misses so repeated lookups of unset options
// do not reach the backend.
type entry struct {
	value   []byte
	present bool
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Capacity  int
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

var newLRU = func(size int, onEvict func(string, entry)) (*lru.Cache[string, entry], error) {
	return lru.NewWithEvict(size, onEvict)
}

// Backend is a read-through cache in front of another options.Backend.
// All namespaces share one LRU. Writes go through to the wrapped backend
// before the cached entry is replaced. Misses and writes are serialized so a
// slow fill cannot overwrite a newer value.
type Backend struct {
	next      options.Backend
	fillMu    sync.Mutex
	lru       *lru.Cache[string, entry]
	capacity  int
	hits      uint64
	misses    uint64
	evictions uint64
}

// New wraps next with a cache of the given capacity. If size <= 0, next is
// returned unchanged.
func New(next options.Backend, size int) (options.Backend, error) {
	if size <= 0 {
		return next, nil
	}
	b := &Backend{next: next, capacity: size}
	cache, err := newLRU(size, func(string, entry) {
		atomic.AddUint64(&b.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	b.lru = cache
	return b, nil
}

func (b *Backend) Site(id string) options.Store { return b.wrap(b.next.Site(id)) }

func (b *Backend) Network() options.Store { return b.wrap(b.next.Network()) }

// Close purges the cache and closes the wrapped backend.
func (b *Backend) Close() error {
	b.lru.Purge()
	return b.next.Close()
}

// Stats returns cumulative hit/miss/eviction counters.
func (b *Backend) Stats() Stats {
	return Stats{
		Capacity:  b.capacity,
		Size:      b.lru.Len(),
		Hits:      atomic.LoadUint64(&b.hits),
		Misses:    atomic.LoadUint64(&b.misses),
		Evictions: atomic.LoadUint64(&b.evictions),
	}
}

func (b *Backend) wrap(s options.Store) options.Store {
	return &store{next: s, parent: b}
}

type store struct {
	next   options.Store
	parent *Backend
}

func cacheKey(ns, key string) string { return ns + "\x00" + key }

func (s *store) Namespace() string { return s.next.Namespace() }

func (s *store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ck := cacheKey(s.next.Namespace(), key)
	if e, ok := s.parent.lru.Get(ck); ok {
		atomic.AddUint64(&s.parent.hits, 1)
		return clone(e.value), e.present, nil
	}
	atomic.AddUint64(&s.parent.misses, 1)

	s.parent.fillMu.Lock()
	defer s.parent.fillMu.Unlock()
	v, ok, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	s.parent.lru.Add(ck, entry{value: clone(v), present: ok})
	return v, ok, nil
}

func (s *store) Set(ctx context.Context, key string, value []byte) error {
	ck := cacheKey(s.next.Namespace(), key)
	s.parent.fillMu.Lock()
	defer s.parent.fillMu.Unlock()
	if err := s.next.Set(ctx, key, value); err != nil {
		// backend state is unknown; force the next read through
		s.parent.lru.Remove(ck)
		return err
	}
	s.parent.lru.Add(ck, entry{value: clone(value), present: true})
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ options.Backend = (*Backend)(nil)
