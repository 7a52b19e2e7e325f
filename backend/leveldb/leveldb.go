// Package leveldb provides the canonical persistent appcache.KVStore /
// appcache.CacheStorage backend: one embedded, ordered, crash-safe
// goleveldb database standing in for IndexedDB. Ported from the
// teacher's leveldbcache/leveldbcache.go (Get/Set/Delete against a
// *leveldb.DB, a batch write to keep "remove the stale marker" atomic
// with "write the fresh value"); generalized here so that one open
// database can back many independent named namespaces — each store or
// per-version response cache gets a key prefix, and Delete(name) is a
// leveldb range delete over that prefix, replacing the teacher's single
// flat keyspace.
package leveldb

import (
	"context"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/developer-dashboard/appcache2serviceworker"
)

const nsSeparator = "\x00"

// DB is a goleveldb-backed appcache.CacheStorage. One DB can serve both
// the three persistent stores (§3) and per-version response caches (§4.1):
// each name becomes a key prefix within the same underlying database
// file, so a single DB instance is enough to back an entire Database
// (see appcache.Open).
type DB struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a goleveldb database at path.
func Open(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %q: %w", path, err)
	}
	return &DB{db: db}, nil
}

// OpenWithDB wraps an already-opened *leveldb.DB.
func OpenWithDB(db *leveldb.DB) *DB {
	return &DB{db: db}
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Open(_ context.Context, name string) (appcache.KVStore, error) {
	return &namespace{db: d.db, prefix: name + nsSeparator}, nil
}

func (d *DB) Delete(_ context.Context, name string) error {
	prefix := []byte(name + nsSeparator)
	iter := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("leveldb: iterate %q for delete: %w", name, err)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := d.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb: delete namespace %q: %w", name, err)
	}
	return nil
}

func (d *DB) Has(_ context.Context, name string) (bool, error) {
	prefix := []byte(name + nsSeparator)
	iter := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	has := iter.Next()
	if err := iter.Error(); err != nil {
		return false, fmt.Errorf("leveldb: check namespace %q: %w", name, err)
	}
	return has, nil
}

// namespace is a key-prefixed appcache.KVStore view over a shared *leveldb.DB.
type namespace struct {
	db     *leveldb.DB
	prefix string
}

func (n *namespace) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, err := n.db.Get([]byte(n.prefix+key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("leveldb: get %q: %w", key, err)
	}
	return val, true, nil
}

func (n *namespace) Put(_ context.Context, key string, value []byte) error {
	if err := n.db.Put([]byte(n.prefix+key), value, nil); err != nil {
		return fmt.Errorf("leveldb: put %q: %w", key, err)
	}
	return nil
}

func (n *namespace) Delete(_ context.Context, key string) error {
	if err := n.db.Delete([]byte(n.prefix+key), nil); err != nil {
		return fmt.Errorf("leveldb: delete %q: %w", key, err)
	}
	return nil
}

func (n *namespace) Keys(_ context.Context) ([]string, error) {
	iter := n.db.NewIterator(util.BytesPrefix([]byte(n.prefix)), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()[len(n.prefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("leveldb: iterate namespace: %w", err)
	}
	return keys, nil
}

var (
	_ appcache.CacheStorage = (*DB)(nil)
	_ appcache.KVStore      = (*namespace)(nil)
)
