// Package memorystore provides an in-memory appcache.KVStore and
// appcache.CacheStorage. Ported from the teacher's memorycache.go
// (a mutex-guarded map), generalized with context parameters and Keys(),
// plus a CacheStorage wrapper grounded on wrapper/multicache's
// map-of-named-tiers shape. This is the default backend for tests and
// examples — no external service or disk required.
package memorystore

import (
	"context"
	"sync"

	"github.com/developer-dashboard/appcache2serviceworker"
)

// Store is an in-memory appcache.KVStore.
type Store struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{items: map[string][]byte{}}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	// Defensive copy: callers must not be able to mutate our storage by
	// mutating a returned slice.
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	out := make([]byte, len(value))
	copy(out, value)
	s.mu.Lock()
	s.items[key] = out
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ appcache.KVStore = (*Store)(nil)

// Storage is an in-memory appcache.CacheStorage: a map of named Stores,
// grounded on wrapper/multicache's tier-map shape.
type Storage struct {
	mu    sync.Mutex
	named map[string]*Store
}

// NewStorage returns an empty in-memory Storage.
func NewStorage() *Storage {
	return &Storage{named: map[string]*Store{}}
}

func (s *Storage) Open(_ context.Context, name string) (appcache.KVStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.named[name]
	if !ok {
		st = New()
		s.named[name] = st
	}
	return st, nil
}

func (s *Storage) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.named, name)
	s.mu.Unlock()
	return nil
}

func (s *Storage) Has(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.named[name]
	return ok, nil
}

var _ appcache.CacheStorage = (*Storage)(nil)
