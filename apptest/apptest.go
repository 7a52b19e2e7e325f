// Package apptest provides shared compliance suites for [appcache.KVStore]
// and [appcache.CacheStorage] implementations, so every backend package
// gets the same contract tests for free. Ported from the teacher's
// `test/test.go` (`func Cache(t *testing.T, cache httpcache.Cache)`).
package apptest

import (
	"bytes"
	"context"
	"testing"

	"github.com/developer-dashboard/appcache2serviceworker"
)

// KVStore exercises an appcache.KVStore implementation against the basic
// Get/Put/Delete/Keys contract.
func KVStore(t *testing.T, store appcache.KVStore) {
	t.Helper()
	ctx := context.Background()
	key := "testKey"

	_, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("retrieved key before adding it")
	}

	val := []byte("some bytes")
	if err := store.Put(ctx, key, val); err != nil {
		t.Fatalf("error putting key: %v", err)
	}

	retVal, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if !ok {
		t.Fatal("could not retrieve an element we just added")
	}
	if !bytes.Equal(retVal, val) {
		t.Fatal("retrieved a different value than what we put in")
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("error listing keys: %v", err)
	}
	if !containsKey(keys, key) {
		t.Fatalf("Keys() %v did not include %q", keys, key)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("error deleting key: %v", err)
	}

	_, ok, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("error getting key: %v", err)
	}
	if ok {
		t.Fatal("deleted key still present")
	}

	keys, err = store.Keys(ctx)
	if err != nil {
		t.Fatalf("error listing keys after delete: %v", err)
	}
	if containsKey(keys, key) {
		t.Fatalf("Keys() %v still included deleted key %q", keys, key)
	}
}

// CacheStorage exercises an appcache.CacheStorage implementation: opening
// a named store, writing through it, and deleting the whole name.
func CacheStorage(t *testing.T, storage appcache.CacheStorage) {
	t.Helper()
	ctx := context.Background()
	name := "test-cache-name"

	has, err := storage.Has(ctx, name)
	if err != nil {
		t.Fatalf("error checking Has before Open: %v", err)
	}
	if has {
		t.Fatal("Has reported existence before Open")
	}

	kv, err := storage.Open(ctx, name)
	if err != nil {
		t.Fatalf("error opening cache %q: %v", name, err)
	}
	if err := kv.Put(ctx, "/resource", []byte("payload")); err != nil {
		t.Fatalf("error writing into opened cache: %v", err)
	}

	has, err = storage.Has(ctx, name)
	if err != nil {
		t.Fatalf("error checking Has after Open: %v", err)
	}
	if !has {
		t.Fatal("Has reported absence after Open+Put")
	}

	// Re-opening the same name must see previously written data.
	kv2, err := storage.Open(ctx, name)
	if err != nil {
		t.Fatalf("error re-opening cache %q: %v", name, err)
	}
	val, ok, err := kv2.Get(ctx, "/resource")
	if err != nil {
		t.Fatalf("error reading from re-opened cache: %v", err)
	}
	if !ok || !bytes.Equal(val, []byte("payload")) {
		t.Fatalf("re-opened cache lost data: ok=%v val=%q", ok, val)
	}

	if err := storage.Delete(ctx, name); err != nil {
		t.Fatalf("error deleting cache %q: %v", name, err)
	}
	has, err = storage.Has(ctx, name)
	if err != nil {
		t.Fatalf("error checking Has after Delete: %v", err)
	}
	if has {
		t.Fatal("Has reported existence after Delete")
	}

	// Deleting a name that was never opened must not error (§4.1 history note).
	if err := storage.Delete(ctx, "never-opened"); err != nil {
		t.Fatalf("deleting an unopened name returned an error: %v", err)
	}
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
