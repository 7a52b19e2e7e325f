// Package appcache implements the manifest-lifecycle and fetch-resolution
// engine behind a compatibility shim for the deprecated HTML Application
// Cache mechanism, built on top of a Service-Worker-style fetch
// interception layer and two persistent stores: a named response
// [CacheStorage] and a transactional [KVStore] standing in for IndexedDB.
package appcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
)

// Sentinel errors surfaced by the Rule Engine and Installer. See §4.5 and
// §7 of the design for the conditions under which each is returned.
var (
	// ErrNoBinding names the condition of a client URL with no recorded
	// manifest binding. No function in this module returns it: the Rule
	// Engine resolves such a request by a live fetch when no cross-manifest
	// fallback prefix matches either.
	ErrNoBinding = errors.New("appcache: no manifest binding for client")
	// ErrVersionPruned is returned internally when a binding names a hash
	// that no longer appears in the manifest's history (GC'd while a
	// stale client binding persisted). Callers never see it: the Rule
	// Engine falls through to cross-manifest resolution instead (§9).
	ErrVersionPruned = errors.New("appcache: manifest version pruned")
	// ErrNetworkError is the Go analogue of the AppCache-defined
	// Response.error() sentinel (§4.5 case A, final branch / §7): CACHE,
	// FALLBACK and NETWORK all failed to match the request.
	ErrNetworkError = errors.New("appcache: no cache, fallback or network rule matched")
	// ErrCacheMiss is returned when a resolution names a cache entry that
	// should exist (per the install) but does not. Per §4.5 step 3c this
	// is "indistinguishable from a failed cache" and is surfaced, not
	// silently converted to a network fetch.
	ErrCacheMiss = errors.New("appcache: expected cache entry missing")
)

// KVStore is a minimal transactional key-value store: the Go analogue of
// one IndexedDB object store (§3). Implementations back the three
// persistent stores (MANIFEST_URL_TO_CONTENTS, PATH_TO_MANIFEST,
// CLIENT_ID_TO_HASH) as well as, via [CacheStorage], each per-version
// response cache.
//
// All methods are safe for concurrent use. Get returns (nil, false, nil)
// for a missing key, never an error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key currently stored. Order is backend-defined
	// and not guaranteed stable across calls; see DESIGN.md's note on the
	// cross-manifest tie-break ordering source.
	Keys(ctx context.Context) ([]string, error)
}

// CacheStorage is the Go analogue of the browser CacheStorage API
// (`caches.open`, `caches.delete`): a keyed factory of named [KVStore]
// instances. Each ManifestVersion's per-version response cache (§3) is a
// KVStore opened here by hash name.
type CacheStorage interface {
	// Open returns the named store, creating it on first use.
	Open(ctx context.Context, name string) (KVStore, error)
	// Delete removes the named store and everything in it. Deleting a
	// name that was never opened is not an error.
	Delete(ctx context.Context, name string) error
	// Has reports whether name currently exists without creating it.
	Has(ctx context.Context, name string) (bool, error)
}

// Fetcher is the Go analogue of the page/worker `fetch()` primitive: it
// issues an HTTP request and returns its response or a transport error.
// Production callers wire an *http.Client (via http.Client.Do); tests wire
// a stub that never touches the network.
type Fetcher func(ctx context.Context, req *http.Request) (*http.Response, error)

// ClientRegistry is the Go analogue of the worker's `clients.matchAll()`
// and per-client lookup, used by the Client Resolver (§4.4) and GC Sweeper
// (§4.7). A process-local implementation is enough for every consumer in
// this module; nothing here requires an actual browser client.
type ClientRegistry interface {
	// ActiveClientIDs returns the IDs of every client currently considered
	// live. The GC Sweeper treats any ID absent from this set as stale.
	ActiveClientIDs(ctx context.Context) ([]string, error)
	// ClientURL returns the URL of the client with the given ID, if the
	// platform can still resolve it.
	ClientURL(ctx context.Context, clientID string) (url string, ok bool, err error)
}

// Digest returns the stable content digest used both to identify a
// ManifestVersion and to name its per-version response cache (§3, §4.1
// step 1). All components must agree on this function; callers never
// compute it independently of this package.
func Digest(manifestText string) string {
	sum := sha256.Sum256([]byte(manifestText))
	return hex.EncodeToString(sum[:])
}
