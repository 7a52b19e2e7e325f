// Package natskv provides a NATS JetStream Key/Value appcache.KVStore and
// appcache.CacheStorage. Ported from the teacher's natskv/natskv.go, which
// wrapped a single fixed JetStream KV bucket; generalized here to treat a
// cache name as a bucket name directly, since JetStream KV already exposes
// create/delete-by-bucket as a first-class primitive — the closest
// server-side analogue to the browser's own caches.open/caches.delete.
package natskv

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/developer-dashboard/appcache2serviceworker"
)

// Storage is a JetStream-KV-backed appcache.CacheStorage: each cache name
// becomes its own KV bucket within the given JetStream context.
type Storage struct {
	js jetstream.JetStream
}

// New returns a Storage that creates and opens buckets through js.
func New(js jetstream.JetStream) *Storage {
	return &Storage{js: js}
}

func (s *Storage) Open(ctx context.Context, name string) (appcache.KVStore, error) {
	kv, err := s.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: name})
	if err != nil {
		return nil, fmt.Errorf("natskv: open bucket %q: %w", name, err)
	}
	return &Store{kv: kv}, nil
}

func (s *Storage) Delete(ctx context.Context, name string) error {
	if err := s.js.DeleteKeyValue(ctx, name); err != nil {
		if err == jetstream.ErrBucketNotFound {
			return nil
		}
		return fmt.Errorf("natskv: delete bucket %q: %w", name, err)
	}
	return nil
}

func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	_, err := s.js.KeyValue(ctx, name)
	if err != nil {
		if err == jetstream.ErrBucketNotFound {
			return false, nil
		}
		return false, fmt.Errorf("natskv: check bucket %q: %w", name, err)
	}
	return true, nil
}

// Store is a JetStream-KV-backed appcache.KVStore scoped to one bucket.
type Store struct {
	kv jetstream.KeyValue
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("natskv: get %q: %w", key, err)
	}
	return entry.Value(), true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("natskv: put %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil
		}
		return fmt.Errorf("natskv: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("natskv: list keys: %w", err)
	}
	defer lister.Stop() //nolint:errcheck // best effort cleanup

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	return keys, nil
}

var (
	_ appcache.KVStore      = (*Store)(nil)
	_ appcache.CacheStorage = (*Storage)(nil)
)
