// Package disk provides a persistent, on-disk appcache.KVStore and
// appcache.CacheStorage backed by diskv. Ported from the teacher's
// diskcache/diskcache.go; generalized to add Keys() (diskv's own
// cancelable key-enumeration channel) and a CacheStorage that opens one
// diskv namespace per cache name under a shared base directory — the
// closest on-disk analogue to the browser's own disk-backed Cache
// Storage.
package disk

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/developer-dashboard/appcache2serviceworker"
	"github.com/peterbourgon/diskv"
)

const cacheSizeMax = 100 * 1024 * 1024 // 100MB in-memory LRU layer per namespace

// Store is a diskv-backed appcache.KVStore.
type Store struct {
	d *diskv.Diskv
}

// New returns a Store that persists entries under basePath.
func New(basePath string) *Store {
	return &Store{d: diskv.New(diskv.Options{
		BasePath:     basePath,
		CacheSizeMax: cacheSizeMax,
	})}
}

// NewWithDiskv returns a Store using an already-configured *diskv.Diskv.
func NewWithDiskv(d *diskv.Diskv) *Store {
	return &Store{d: d}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, err := s.d.Read(keyToFilename(key))
	if err != nil {
		return nil, false, nil // missing file is a miss, not an error
	}
	return val, true, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	if err := s.d.WriteStream(keyToFilename(key), bytes.NewReader(value), true); err != nil {
		return fmt.Errorf("disk: write key: %w", err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	_ = s.d.Erase(keyToFilename(key)) //nolint:errcheck // missing file is acceptable
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	cancel := make(chan struct{})
	defer close(cancel)
	var keys []string
	for k := range s.d.Keys(cancel) {
		select {
		case <-ctx.Done():
			return keys, ctx.Err()
		default:
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func keyToFilename(key string) string {
	h := sha256.New()
	_, _ = io.WriteString(h, key) //nolint:errcheck // io.WriteString to hash.Hash never fails
	return hex.EncodeToString(h.Sum(nil))
}

// Storage is a diskv-backed appcache.CacheStorage: each name gets its own
// diskv namespace rooted at basePath/name.
type Storage struct {
	basePath string

	mu    sync.Mutex
	named map[string]*Store
}

// NewStorage returns a Storage rooted at basePath.
func NewStorage(basePath string) *Storage {
	return &Storage{basePath: basePath, named: map[string]*Store{}}
}

func (s *Storage) Open(_ context.Context, name string) (appcache.KVStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.named[name]; ok {
		return st, nil
	}
	st := New(filepath.Join(s.basePath, name))
	s.named[name] = st
	return st, nil
}

func (s *Storage) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.named, name)
	s.mu.Unlock()
	if err := os.RemoveAll(filepath.Join(s.basePath, name)); err != nil {
		return fmt.Errorf("disk: delete cache %q: %w", name, err)
	}
	return nil
}

func (s *Storage) Has(_ context.Context, name string) (bool, error) {
	info, err := os.Stat(filepath.Join(s.basePath, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("disk: stat cache %q: %w", name, err)
	}
	return info.IsDir(), nil
}

var (
	_ appcache.KVStore     = (*Store)(nil)
	_ appcache.CacheStorage = (*Storage)(nil)
)
