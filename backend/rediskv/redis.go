// Package rediskv provides a Redis-backed appcache.KVStore and
// appcache.CacheStorage. Ported from the teacher's redis/redis.go — same
// key-prefixing convention to avoid collisions with other data on the same
// Redis instance — but moved onto github.com/redis/go-redis/v9 (already the
// integration-test dependency the teacher pulls in) so that context
// cancellation actually reaches the wire, which the redigo-based original
// could not do.
//
// Redis is the natural stand-in for the persistent stores and per-version
// response caches in a deployment where the install worker and every page
// agent run as separate processes sharing one cache: a cache name becomes a
// Redis Set tracking its member keys, since Redis itself has no notion of
// "delete everything under this prefix" as a single atomic primitive.
package rediskv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/developer-dashboard/appcache2serviceworker"
)

const keyPrefix = "appcache:"

// Storage is a Redis-backed appcache.CacheStorage. Each named cache is a
// Redis Set (for membership) plus one Redis string key per stored value.
type Storage struct {
	client *redis.Client
}

// New returns a Storage using the given go-redis client. The caller owns
// the client's lifecycle.
func New(client *redis.Client) *Storage {
	return &Storage{client: client}
}

func setKey(name string) string {
	return keyPrefix + "set:" + name
}

func valueKey(name, key string) string {
	return keyPrefix + "val:" + name + ":" + key
}

func (s *Storage) Open(_ context.Context, name string) (appcache.KVStore, error) {
	return &Store{client: s.client, name: name}, nil
}

func (s *Storage) Delete(ctx context.Context, name string) error {
	members, err := s.client.SMembers(ctx, setKey(name)).Result()
	if err != nil {
		return fmt.Errorf("rediskv: list members of %q: %w", name, err)
	}

	pipe := s.client.TxPipeline()
	for _, member := range members {
		pipe.Del(ctx, valueKey(name, member))
	}
	pipe.Del(ctx, setKey(name))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rediskv: delete cache %q: %w", name, err)
	}
	return nil
}

func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	n, err := s.client.Exists(ctx, setKey(name)).Result()
	if err != nil {
		return false, fmt.Errorf("rediskv: check cache %q: %w", name, err)
	}
	return n > 0, nil
}

// Store is a Redis-backed appcache.KVStore scoped to a single named cache.
type Store struct {
	client *redis.Client
	name   string
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, valueKey(s.name, key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("rediskv: get %q: %w", key, err)
	}
	return val, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, valueKey(s.name, key), value, 0)
	pipe.SAdd(ctx, setKey(s.name), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rediskv: put %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, valueKey(s.name, key))
	pipe.SRem(ctx, setKey(s.name), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rediskv: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, setKey(s.name)).Result()
	if err != nil {
		return nil, fmt.Errorf("rediskv: list keys: %w", err)
	}
	return members, nil
}

var (
	_ appcache.KVStore      = (*Store)(nil)
	_ appcache.CacheStorage = (*Storage)(nil)
)
