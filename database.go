package appcache

import (
	"context"
	"fmt"
)

// Fixed store names (§6: "database name and store names are fixed
// identifiers"). SchemaVersion starts at 1 and increases monotonically if
// the on-disk/store-open schema ever evolves.
const (
	StoreManifestURLToContents = "manifest_url_to_contents"
	StorePathToManifest        = "path_to_manifest"
	StoreClientIDToHash        = "client_id_to_hash"

	SchemaVersion = 1
)

// Database is the single persistent-store handle shared by every
// component. Per §9's design note, the teacher's source memoizes a
// process-scoped singleton database handle; this port re-architects that
// as an explicitly constructed, injected value with no package-level
// mutable state, passed through the call graph (Installer, Association
// Recorder, Rule Engine, GC Sweeper all take a *Database).
//
// Database wraps one [CacheStorage] used for two purposes: opening the
// three fixed-name persistent stores below, and opening the per-version
// response cache named by a ManifestVersion's hash. This mirrors the
// browser reality that IndexedDB and CacheStorage are two independent
// origin-scoped stores; this port lets callers point both at the same
// backend (e.g. backend/leveldb) or two different ones (e.g. leveldb for
// the structured stores, backend/disk for the bulky response bytes) via
// [Open] and [OpenWithResponseCache].
type Database struct {
	stores    CacheStorage
	responses CacheStorage
	security  *securityConfig

	manifests *manifestStore
	bindings  *bindingStore
	clientIDs *clientIDStore
}

// Open creates a Database backed by a single CacheStorage used for both
// the persistent stores and the per-version response caches.
func Open(ctx context.Context, storage CacheStorage, opts ...DatabaseOption) (*Database, error) {
	return OpenWithResponseCache(ctx, storage, storage, opts...)
}

// OpenWithResponseCache creates a Database whose three persistent stores
// are backed by stores, and whose per-version response caches (opened via
// [Database.ResponseCache]) are backed by responses.
func OpenWithResponseCache(ctx context.Context, stores, responses CacheStorage, opts ...DatabaseOption) (*Database, error) {
	d := &Database{stores: stores, responses: responses}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("appcache: apply database option: %w", err)
		}
	}

	manifestKV, err := d.wrappedOpen(ctx, stores, StoreManifestURLToContents)
	if err != nil {
		return nil, err
	}
	bindingKV, err := d.wrappedOpen(ctx, stores, StorePathToManifest)
	if err != nil {
		return nil, err
	}
	clientIDKV, err := d.wrappedOpen(ctx, stores, StoreClientIDToHash)
	if err != nil {
		return nil, err
	}

	d.manifests = newManifestStore(manifestKV)
	d.bindings = newBindingStore(bindingKV)
	d.clientIDs = newClientIDStore(clientIDKV)
	return d, nil
}

func (d *Database) wrappedOpen(ctx context.Context, storage CacheStorage, name string) (KVStore, error) {
	kv, err := storage.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("appcache: open store %q: %w", name, err)
	}
	if d.security == nil {
		return kv, nil
	}
	return newEncryptedStore(kv, d.security.gcm), nil
}

// ResponseCache opens (creating if absent) the per-version response cache
// named by hash (§4.1 step 4). Callers never hand-roll this name.
func (d *Database) ResponseCache(ctx context.Context, hash string) (KVStore, error) {
	kv, err := d.responses.Open(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("appcache: open response cache %q: %w", hash, err)
	}
	return kv, nil
}

// DeleteResponseCache removes the per-version response cache named by
// hash, used by the GC Sweeper (§4.7 step 6).
func (d *Database) DeleteResponseCache(ctx context.Context, hash string) error {
	return d.responses.Delete(ctx, hash)
}

// History returns the ManifestHistory for a manifest URL, or nil if none
// has been installed yet.
func (d *Database) History(ctx context.Context, manifestURL string) (ManifestHistory, error) {
	return d.manifests.History(ctx, manifestURL)
}

// PutHistory persists the ManifestHistory for a manifest URL.
func (d *Database) PutHistory(ctx context.Context, manifestURL string, hist ManifestHistory) error {
	return d.manifests.PutHistory(ctx, manifestURL, hist)
}

// AllManifestHistories returns every manifest URL's history, used by the
// Rule Engine's cross-manifest fallback search (§4.5 case B). Ranging over
// the returned map follows Go's randomized map order, so it gives no stable
// enumeration order for that search's tie-break.
func (d *Database) AllManifestHistories(ctx context.Context) (map[string]ManifestHistory, error) {
	return d.manifests.All(ctx)
}

// Binding returns the manifest binding recorded for a client URL (§4.5
// case A/B).
func (d *Database) Binding(ctx context.Context, clientURL string) (Binding, bool, error) {
	return d.bindings.Get(ctx, clientURL)
}

// PutBinding records the manifest binding for a client URL (§4.2).
func (d *Database) PutBinding(ctx context.Context, clientURL string, b Binding) error {
	return d.bindings.Put(ctx, clientURL, b)
}

// ClientHash returns the hash a clientId is pinned to, if recorded.
func (d *Database) ClientHash(ctx context.Context, clientID string) (string, bool, error) {
	return d.clientIDs.Get(ctx, clientID)
}

// PutClientHash records that clientId committed to hash (§4.5 step 3a).
func (d *Database) PutClientHash(ctx context.Context, clientID, hash string) error {
	return d.clientIDs.Put(ctx, clientID, hash)
}

// DeleteClientHash removes a clientId binding (§4.7 step 3).
func (d *Database) DeleteClientHash(ctx context.Context, clientID string) error {
	return d.clientIDs.Delete(ctx, clientID)
}

// AllClientHashes returns every recorded clientId -> hash binding, used by
// the GC Sweeper (§4.7 step 2).
func (d *Database) AllClientHashes(ctx context.Context) (map[string]string, error) {
	return d.clientIDs.All(ctx)
}
