package installer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/developer-dashboard/appcache2serviceworker"
)

// Associator implements the Association Recorder (§4.2): on every document
// load where a manifest attribute is present, it records which manifest
// version the document committed to and best-effort seeds the document's
// own URL into that version's response cache.
type Associator struct {
	db    *appcache.Database
	fetch appcache.Fetcher
}

// NewAssociator returns an Associator backed by db, issuing seeding
// fetches through fetch.
func NewAssociator(db *appcache.Database, fetch appcache.Fetcher) (*Associator, error) {
	if db == nil {
		return nil, fmt.Errorf("installer: database is required")
	}
	if fetch == nil {
		return nil, fmt.Errorf("installer: fetch is required")
	}
	return &Associator{db: db, fetch: fetch}, nil
}

// Associate records clientURL's binding to manifestURL's current version
// and seeds clientURL into that version's response cache. If manifestURL
// has no installed version yet (the Installer hasn't completed its first
// pass), this is a no-op rather than an error: both agents run in parallel
// per §4.3 and are scheduled to disjoint stores.
func (a *Associator) Associate(ctx context.Context, clientURL, manifestURL string) error {
	history, err := a.db.History(ctx, manifestURL)
	if err != nil {
		return fmt.Errorf("associator: read history for %q: %w", manifestURL, err)
	}
	current, ok := history.Current()
	if !ok {
		return nil
	}

	binding := appcache.Binding{ManifestURL: manifestURL, Hash: current.Hash}
	if err := a.db.PutBinding(ctx, clientURL, binding); err != nil {
		return fmt.Errorf("associator: write binding for %q: %w", clientURL, err)
	}

	cache, err := a.db.ResponseCache(ctx, current.Hash)
	if err != nil {
		return fmt.Errorf("associator: open response cache %q: %w", current.Hash, err)
	}
	// Seeding is best-effort (§4.2 "tolerant of failure"): it must never
	// undo the binding just written.
	a.seed(ctx, cache, clientURL)
	return nil
}

func (a *Associator) seed(ctx context.Context, cache appcache.KVStore, documentURL string) {
	log := appcache.Component("associator")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		log.Warn("build seeding request", "url", documentURL, "error", err)
		return
	}
	req.Header.Set(UseFetchHeader, "true")
	req.Header.Set("Referer", "")

	resp, err := a.fetch(ctx, req)
	if err != nil {
		log.Debug("seeding fetch failed, tolerated", "url", documentURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return
	}
	raw, err := appcache.EncodeResponse(resp)
	if err != nil {
		log.Warn("encode seed response", "url", documentURL, "error", err)
		return
	}
	if err := cache.Put(ctx, documentURL, raw); err != nil {
		log.Warn("store seed response", "url", documentURL, "error", err)
	}
}
