package appcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/developer-dashboard/appcache2serviceworker/manifest"
)

// ManifestVersion is one installed version of a manifest's text (§3). Hash
// is both its identity and the name of the per-version response cache
// that holds its pre-cached resources.
type ManifestVersion struct {
	Hash   string                  `json:"hash"`
	Text   string                  `json:"text"`
	Parsed manifest.ParsedManifest `json:"parsed"`
}

// ManifestHistory is every installed version of one manifest URL, oldest
// first. The last element is the current version (§3). No two adjacent
// entries share a hash.
type ManifestHistory []ManifestVersion

// Current returns the last (current) version, or false if history is empty.
func (h ManifestHistory) Current() (ManifestVersion, bool) {
	if len(h) == 0 {
		return ManifestVersion{}, false
	}
	return h[len(h)-1], true
}

// Find returns the version with the given hash, or false if none matches
// (the §4.5 step 3b "pruned" case).
func (h ManifestHistory) Find(hash string) (ManifestVersion, bool) {
	for _, v := range h {
		if v.Hash == hash {
			return v, true
		}
	}
	return ManifestVersion{}, false
}

// Binding records which manifest version a client URL committed to when it
// last loaded (§3 ClientBinding).
type Binding struct {
	ManifestURL string `json:"url"`
	Hash        string `json:"hash"`
}

// manifestStore wraps a KVStore holding manifest URL -> ManifestHistory
// (MANIFEST_URL_TO_CONTENTS), centralizing the JSON (de)serialization so
// callers never marshal history records by hand.
type manifestStore struct {
	kv KVStore
}

func newManifestStore(kv KVStore) *manifestStore { return &manifestStore{kv: kv} }

func (s *manifestStore) History(ctx context.Context, manifestURL string) (ManifestHistory, error) {
	raw, ok, err := s.kv.Get(ctx, manifestURL)
	if err != nil {
		return nil, fmt.Errorf("appcache: read manifest history for %q: %w", manifestURL, err)
	}
	if !ok {
		return nil, nil
	}
	var hist ManifestHistory
	if err := json.Unmarshal(raw, &hist); err != nil {
		return nil, fmt.Errorf("appcache: decode manifest history for %q: %w", manifestURL, err)
	}
	return hist, nil
}

func (s *manifestStore) PutHistory(ctx context.Context, manifestURL string, hist ManifestHistory) error {
	raw, err := json.Marshal(hist)
	if err != nil {
		return fmt.Errorf("appcache: encode manifest history for %q: %w", manifestURL, err)
	}
	if err := s.kv.Put(ctx, manifestURL, raw); err != nil {
		return fmt.Errorf("appcache: write manifest history for %q: %w", manifestURL, err)
	}
	return nil
}

// All returns every manifest URL's history currently recorded. The result
// is a map, so ranging over it follows Go's randomized map order, not the
// backing KVStore's Keys order (see DESIGN.md's note on the cross-manifest
// tie-break ordering source).
func (s *manifestStore) All(ctx context.Context) (map[string]ManifestHistory, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("appcache: list manifest URLs: %w", err)
	}
	out := make(map[string]ManifestHistory, len(keys))
	for _, k := range keys {
		hist, err := s.History(ctx, k)
		if err != nil {
			return nil, err
		}
		out[k] = hist
	}
	return out, nil
}

// bindingStore wraps a KVStore holding client URL -> Binding
// (PATH_TO_MANIFEST).
type bindingStore struct {
	kv KVStore
}

func newBindingStore(kv KVStore) *bindingStore { return &bindingStore{kv: kv} }

func (s *bindingStore) Get(ctx context.Context, clientURL string) (Binding, bool, error) {
	raw, ok, err := s.kv.Get(ctx, clientURL)
	if err != nil || !ok {
		return Binding{}, false, err
	}
	var b Binding
	if err := json.Unmarshal(raw, &b); err != nil {
		return Binding{}, false, fmt.Errorf("appcache: decode binding for %q: %w", clientURL, err)
	}
	return b, true, nil
}

func (s *bindingStore) Put(ctx context.Context, clientURL string, b Binding) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("appcache: encode binding for %q: %w", clientURL, err)
	}
	return s.kv.Put(ctx, clientURL, raw)
}

// clientIDStore wraps a KVStore holding clientId -> hash
// (CLIENT_ID_TO_HASH).
type clientIDStore struct {
	kv KVStore
}

func newClientIDStore(kv KVStore) *clientIDStore { return &clientIDStore{kv: kv} }

func (s *clientIDStore) Get(ctx context.Context, clientID string) (string, bool, error) {
	raw, ok, err := s.kv.Get(ctx, clientID)
	if err != nil || !ok {
		return "", false, err
	}
	return string(raw), true, nil
}

func (s *clientIDStore) Put(ctx context.Context, clientID, hash string) error {
	return s.kv.Put(ctx, clientID, []byte(hash))
}

func (s *clientIDStore) Delete(ctx context.Context, clientID string) error {
	return s.kv.Delete(ctx, clientID)
}

func (s *clientIDStore) All(ctx context.Context) (map[string]string, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("appcache: list client ids: %w", err)
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		hash, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = hash
		}
	}
	return out, nil
}
