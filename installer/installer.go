// Package installer implements the page-side half of the design: the
// Installer (§4.1), which brings a manifest's persistent state and
// per-version response cache up to date with fresh manifest text, and the
// Association Recorder (§4.2, in associator.go), which binds a document
// URL to the manifest version it loaded under.
//
// Both are grounded on the teacher's Transport.RoundTrip pipeline
// (storeResponseInCache's status-code/Cache-Control branching) and
// wrapper/prewarmer's bounded-worker-pool fan-out over a URL list.
package installer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/developer-dashboard/appcache2serviceworker"
	"github.com/developer-dashboard/appcache2serviceworker/appmetrics"
	"github.com/developer-dashboard/appcache2serviceworker/manifest"
)

// UseFetchHeader is the escape-hatch header (§4.1 step 4, §5 "Recursion
// hazard") set on every conditioning fetch the Installer and Association
// Recorder issue, so an installed Rule Engine passes them through
// untouched instead of recursing back into resolution.
const UseFetchHeader = "X-Use-Fetch"

// Installer implements the manifest install algorithm (§4.1).
type Installer struct {
	db      *appcache.Database
	fetch   appcache.Fetcher
	metrics appmetrics.Collector
	workers int
}

// Option configures an Installer, mirroring the root package's
// DatabaseOption shape (a function that mutates the receiver and can fail).
type Option func(*Installer) error

// WithMetrics attaches a metrics collector. Defaults to
// appmetrics.DefaultCollector (a no-op).
func WithMetrics(c appmetrics.Collector) Option {
	return func(in *Installer) error {
		if c == nil {
			return fmt.Errorf("installer: metrics collector cannot be nil")
		}
		in.metrics = c
		return nil
	}
}

// WithWorkers bounds the concurrency of the per-install pre-caching fetch
// fan-out. Defaults to 4.
func WithWorkers(n int) Option {
	return func(in *Installer) error {
		if n <= 0 {
			return fmt.Errorf("installer: worker count must be positive, got %d", n)
		}
		in.workers = n
		return nil
	}
}

// New returns an Installer backed by db, issuing conditioning fetches
// through fetch.
func New(db *appcache.Database, fetch appcache.Fetcher, opts ...Option) (*Installer, error) {
	if db == nil {
		return nil, fmt.Errorf("installer: database is required")
	}
	if fetch == nil {
		return nil, fmt.Errorf("installer: fetch is required")
	}
	in := &Installer{db: db, fetch: fetch, metrics: appmetrics.DefaultCollector, workers: 4}
	for _, opt := range opts {
		if err := opt(in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// Install brings manifestURL's persistent state in line with
// freshManifestText (§4.1). A history read, manifest parse or store
// failure is returned to the caller, who per §4.1's failure semantics
// should treat it as "installation aborted, previous version remains
// current" — Install never partially mutates ManifestHistory. A failed
// pre-cache fetch for an individual URL is not returned: it is logged and
// that URL's existing cache entry is left as it was.
func (in *Installer) Install(ctx context.Context, manifestURL, freshManifestText string) error {
	start := time.Now()
	err := in.install(ctx, manifestURL, freshManifestText)
	result := appmetrics.ResultSuccess
	if err != nil {
		result = appmetrics.ResultError
	}
	in.metrics.RecordInstall(manifestURL, result, time.Since(start))
	return err
}

func (in *Installer) install(ctx context.Context, manifestURL, freshManifestText string) error {
	hash := appcache.Digest(freshManifestText)

	history, err := in.db.History(ctx, manifestURL)
	if err != nil {
		return fmt.Errorf("installer: read history for %q: %w", manifestURL, err)
	}
	if current, ok := history.Current(); ok && current.Hash == hash {
		return nil // step 2: hash unchanged, no-op
	}

	base, err := url.Parse(manifestURL)
	if err != nil {
		return fmt.Errorf("installer: parse manifest url %q: %w", manifestURL, err)
	}
	parsed, err := manifest.Parse(freshManifestText, base)
	if err != nil {
		return fmt.Errorf("installer: parse manifest %q: %w", manifestURL, err)
	}

	cache, err := in.db.ResponseCache(ctx, hash)
	if err != nil {
		return fmt.Errorf("installer: open response cache %q: %w", hash, err)
	}
	in.precache(ctx, cache, precacheURLs(parsed))

	version := appcache.ManifestVersion{Hash: hash, Text: freshManifestText, Parsed: parsed}
	if err := in.db.PutHistory(ctx, manifestURL, append(history, version)); err != nil {
		return fmt.Errorf("installer: persist history for %q: %w", manifestURL, err)
	}
	return nil
}

// precacheURLs returns the union of parsed.Cache and values(parsed.Fallback)
// (§4.1 step 4), deduplicated. parsed.Cache entries come first, in manifest
// order; parsed.Fallback is a map, so its entries follow in Go's randomized
// map-iteration order — precache fans every URL out to its own worker-pool
// slot regardless, so fetch order here has no bearing on the resulting
// cache contents (§8 "Installation idempotence").
func precacheURLs(parsed manifest.ParsedManifest) []string {
	seen := make(map[string]struct{}, len(parsed.Cache)+len(parsed.Fallback))
	var out []string
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, u := range parsed.Cache {
		add(u)
	}
	for _, u := range parsed.Fallback {
		add(u)
	}
	return out
}

// precache fans the conditioning fetches out over a bounded worker pool,
// grounded on wrapper/prewarmer's PrewarmConcurrentWithCallback shape.
// Individual URL failures never abort the others (§4.1 "must never abort").
func (in *Installer) precache(ctx context.Context, cache appcache.KVStore, urls []string) {
	if len(urls) == 0 {
		return
	}

	urlChan := make(chan string, len(urls))
	for _, u := range urls {
		urlChan <- u
	}
	close(urlChan)

	workers := in.workers
	if workers > len(urls) {
		workers = len(urls)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for u := range urlChan {
				in.precacheOne(ctx, cache, u)
			}
		}()
	}
	wg.Wait()
}

// precacheOne issues one conditioning fetch and applies the three-way
// branching of §4.1 step 4.
func (in *Installer) precacheOne(ctx context.Context, cache appcache.KVStore, rawURL string) {
	start := time.Now()
	result := appmetrics.ResultSuccess
	defer func() { in.metrics.RecordPrecacheFetch(rawURL, result, time.Since(start)) }()

	log := appcache.Component("installer")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		log.Warn("build conditioning request", "url", rawURL, "error", err)
		result = appmetrics.ResultError
		return
	}
	// §4.1 step 4's browser-fetch attributes (credentials included,
	// redirect-manual, referrer suppressed, no-cors) have no Go
	// http.Client equivalent; the header is the one that matters here.
	req.Header.Set(UseFetchHeader, "true")
	req.Header.Set("Referer", "")

	resp, err := in.fetch(ctx, req)
	if err != nil {
		// Network error: leave any existing entry untouched.
		log.Debug("precache fetch failed, tolerated", "url", rawURL, "error", err)
		result = appmetrics.ResultError
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone || isNoStore(resp.Header.Get("Cache-Control")):
		if err := cache.Delete(ctx, rawURL); err != nil {
			log.Warn("evict precache entry", "url", rawURL, "error", err)
		}
		result = appmetrics.ResultMiss
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		raw, err := appcache.EncodeResponse(resp)
		if err != nil {
			log.Warn("encode precache response", "url", rawURL, "error", err)
			result = appmetrics.ResultError
			return
		}
		if err := cache.Put(ctx, rawURL, raw); err != nil {
			log.Warn("store precache entry", "url", rawURL, "error", err)
			result = appmetrics.ResultError
			return
		}
		result = appmetrics.ResultHit
	default:
		// 3xx, 5xx: leave any existing entry untouched.
	}
}

// isNoStore reports whether cacheControl's directive list contains
// "no-store" exactly. Tokenized (split on comma, trimmed, case-insensitive
// exact match) rather than substring-matched, so "no-store-foo" does not
// spuriously trigger eviction (§9 "possible bug", closed per SPEC_FULL.md).
func isNoStore(cacheControl string) bool {
	for _, directive := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(directive), "no-store") {
			return true
		}
	}
	return false
}
