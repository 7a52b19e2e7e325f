// Package freecache provides a zero-GC-overhead appcache.KVStore /
// appcache.CacheStorage backend using github.com/coocood/freecache. Useful
// for a worker process that wants a fixed memory ceiling for per-version
// response caches instead of letting them grow unbounded in ordinary maps.
//
// freecache itself cannot enumerate or prefix-scan its keyspace, so Keys
// and namespace deletion are backed by a side set of tracked keys per
// namespace, the same pattern the teacher's stalecache.go uses to track
// staleness metadata the underlying store has no room for.
package freecache

import (
	"context"
	"fmt"
	"sync"

	"github.com/coocood/freecache"

	"github.com/developer-dashboard/appcache2serviceworker"
)

const nsSeparator = "\x00"

// Storage is a freecache-backed appcache.CacheStorage. A single fixed-size
// freecache.Cache is shared across all named namespaces; each namespace is
// a key prefix plus a tracked key set so Delete and Keys can work despite
// freecache's lack of enumeration.
type Storage struct {
	cache *freecache.Cache

	mu    sync.Mutex
	named map[string]*Store
}

// New returns a Storage backed by a freecache.Cache of the given size in
// bytes, shared across every namespace opened from it.
func New(sizeBytes int) *Storage {
	return &Storage{
		cache: freecache.NewCache(sizeBytes),
		named: map[string]*Store{},
	}
}

func (s *Storage) Open(_ context.Context, name string) (appcache.KVStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.named[name]; ok {
		return st, nil
	}
	st := &Store{
		cache:  s.cache,
		prefix: name + nsSeparator,
		keys:   map[string]struct{}{},
	}
	s.named[name] = st
	return st, nil
}

func (s *Storage) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	st, ok := s.named[name]
	delete(s.named, name)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for key := range st.keys {
		s.cache.Del([]byte(st.prefix + key))
	}
	st.keys = map[string]struct{}{}
	return nil
}

func (s *Storage) Has(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.named[name]
	if !ok {
		return false, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.keys) > 0, nil
}

// Store is a freecache-backed appcache.KVStore scoped to a single
// namespace prefix within a shared Storage's cache.
type Store struct {
	cache  *freecache.Cache
	prefix string

	mu   sync.Mutex
	keys map[string]struct{}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, err := s.cache.Get([]byte(s.prefix + key))
	if err != nil {
		if err == freecache.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("freecache: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	if err := s.cache.Set([]byte(s.prefix+key), value, 0); err != nil {
		return fmt.Errorf("freecache: put %q: %w", key, err)
	}
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.cache.Del([]byte(s.prefix + key))
	s.mu.Lock()
	delete(s.keys, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		// freecache may have evicted the entry under memory pressure;
		// only report keys that are still actually present.
		if _, err := s.cache.Get([]byte(s.prefix + k)); err == nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

var (
	_ appcache.KVStore      = (*Store)(nil)
	_ appcache.CacheStorage = (*Storage)(nil)
)
