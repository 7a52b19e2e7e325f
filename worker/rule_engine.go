package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/developer-dashboard/appcache2serviceworker"
	"github.com/developer-dashboard/appcache2serviceworker/appmetrics"
	"github.com/developer-dashboard/appcache2serviceworker/installer"
	"github.com/developer-dashboard/appcache2serviceworker/manifest"
)

// Engine implements the Rule Engine (§4.5): given a FetchEvent, produce a
// Response or delegate to live fetch, following the AppCache matching
// order. Reshaped as a linear sequence of awaited steps rather than the
// source's chain of promise continuations (§9 "Callback-chained
// promises").
type Engine struct {
	db       *appcache.Database
	registry appcache.ClientRegistry
	fetch    appcache.Fetcher
	fallback *FallbackBroker
	metrics  appmetrics.Collector
}

// Option configures an Engine.
type Option func(*Engine) error

// WithMetrics attaches a metrics collector. Defaults to
// appmetrics.DefaultCollector.
func WithMetrics(c appmetrics.Collector) Option {
	return func(e *Engine) error {
		if c == nil {
			return fmt.Errorf("worker: metrics collector cannot be nil")
		}
		e.metrics = c
		return nil
	}
}

// New returns an Engine backed by db and registry, issuing live fetches
// through fetch and delegating FALLBACK resolutions to broker.
func New(db *appcache.Database, registry appcache.ClientRegistry, fetch appcache.Fetcher, broker *FallbackBroker, opts ...Option) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("worker: database is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("worker: client registry is required")
	}
	if fetch == nil {
		return nil, fmt.Errorf("worker: fetch is required")
	}
	if broker == nil {
		return nil, fmt.Errorf("worker: fallback broker is required")
	}
	e := &Engine{db: db, registry: registry, fetch: fetch, fallback: broker, metrics: appmetrics.DefaultCollector}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Resolve implements appCacheBehaviorForEvent (§4.5, §6). Any error it
// returns is, per §7's top-level worker rule, meant to be converted by the
// caller into a plain live fetch; Resolve itself never does that
// conversion so callers can distinguish "no CACHE, FALLBACK or NETWORK
// rule matched, and no fetch was made" (appcache.ErrNetworkError) from
// every other failure.
func (e *Engine) Resolve(ctx context.Context, event FetchEvent) (*http.Response, error) {
	start := time.Now()
	var rule string
	defer func() { e.metrics.RecordResolution(rule, time.Since(start)) }()

	// Early-exit (§4.5): never touch requests the Installer/Associator
	// marked as pre-caching or seeding fetches.
	if event.Request.Header.Get(installer.UseFetchHeader) == "true" {
		rule = appmetrics.RuleNetwork
		return e.fetch(ctx, event.Request)
	}

	clientURL, err := ResolveClient(ctx, e.registry, event)
	if err != nil {
		rule = appmetrics.RuleError
		return nil, fmt.Errorf("worker: resolve client: %w", err)
	}

	binding, ok, err := e.db.Binding(ctx, clientURL)
	if err != nil {
		rule = appmetrics.RuleError
		return nil, fmt.Errorf("worker: read binding for %q: %w", clientURL, err)
	}
	if ok {
		resp, r, err := e.resolveWithBinding(ctx, event, clientURL, binding)
		if !errors.Is(err, appcache.ErrVersionPruned) {
			rule = r
			return resp, err
		}
		// Binding names a version GC'd while it persisted (§4.5 step 3b,
		// §9 open question): fall through to Case B exactly as if no
		// binding existed.
	}

	resp, r, err := e.resolveCrossManifest(ctx, event.Request)
	rule = r
	return resp, err
}

// resolveWithBinding implements Case A (§4.5 step 3). A returned
// appcache.ErrVersionPruned is a sentinel meaning "fall through to Case
// B", not a real failure — callers must not surface it.
func (e *Engine) resolveWithBinding(ctx context.Context, event FetchEvent, clientURL string, binding appcache.Binding) (*http.Response, string, error) {
	if event.HasClientID {
		if _, known, err := e.db.ClientHash(ctx, event.ClientID); err != nil {
			return nil, appmetrics.RuleError, fmt.Errorf("worker: read client hash for %q: %w", event.ClientID, err)
		} else if !known {
			if err := e.db.PutClientHash(ctx, event.ClientID, binding.Hash); err != nil {
				return nil, appmetrics.RuleError, fmt.Errorf("worker: record client hash for %q: %w", event.ClientID, err)
			}
		}
	}

	history, err := e.db.History(ctx, binding.ManifestURL)
	if err != nil {
		return nil, appmetrics.RuleError, fmt.Errorf("worker: read history for %q: %w", binding.ManifestURL, err)
	}
	version, found := history.Find(binding.Hash)
	if !found {
		return nil, "", appcache.ErrVersionPruned
	}

	requestURL := event.Request.URL.String()
	if requestURL == clientURL || contains(version.Parsed.Cache, requestURL) {
		resp, err := e.fromCache(ctx, binding.Hash, requestURL)
		return resp, appmetrics.RuleCache, err
	}

	if fallbackKey := longestPrefix(keys(version.Parsed.Fallback), requestURL); fallbackKey != "" {
		resp, err := e.fallback.Fetch(ctx, event.Request, version.Parsed.Fallback[fallbackKey], binding.Hash)
		return resp, appmetrics.RuleFallback, err
	}

	if matchesNetwork(version.Parsed.Network, requestURL) {
		resp, err := e.fetch(ctx, event.Request)
		return resp, appmetrics.RuleNetwork, err
	}

	return nil, appmetrics.RuleError, appcache.ErrNetworkError
}

// resolveCrossManifest implements Case B (§4.5 step 4): search every
// manifest's current version for the longest matching FALLBACK prefix.
func (e *Engine) resolveCrossManifest(ctx context.Context, req *http.Request) (*http.Response, string, error) {
	histories, err := e.db.AllManifestHistories(ctx)
	if err != nil {
		return nil, appmetrics.RuleError, fmt.Errorf("worker: list manifest histories: %w", err)
	}

	requestURL := req.URL.String()
	var bestPrefix, bestFallback, bestHash string
	for _, hist := range histories {
		current, ok := hist.Current()
		if !ok {
			continue
		}
		prefix := longestPrefix(keys(current.Parsed.Fallback), requestURL)
		if prefix == "" {
			continue
		}
		// Ties go to the last candidate encountered (§4.5 "Longest-prefix
		// rule"); map iteration order is the documented, arbitrary
		// ordering source for this tie-break (§9).
		if len(prefix) >= len(bestPrefix) {
			bestPrefix, bestFallback, bestHash = prefix, current.Parsed.Fallback[prefix], current.Hash
		}
	}

	if bestPrefix == "" {
		resp, err := e.fetch(ctx, req)
		return resp, appmetrics.RuleNetwork, err
	}
	resp, err := e.fallback.Fetch(ctx, req, bestFallback, bestHash)
	return resp, appmetrics.RuleFallback, err
}

// fromCache implements §4.5 step 3c's cache lookup.
func (e *Engine) fromCache(ctx context.Context, hash, requestURL string) (*http.Response, error) {
	cache, err := e.db.ResponseCache(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("worker: open response cache %q: %w", hash, err)
	}
	raw, ok, err := cache.Get(ctx, requestURL)
	if err != nil {
		return nil, fmt.Errorf("worker: read cache entry %q/%q: %w", hash, requestURL, err)
	}
	if !ok {
		// "indistinguishable from a failed cache" (§4.5 step 3c): surfaced
		// as an error, not silently converted to a network fetch.
		return nil, appcache.ErrCacheMiss
	}
	return appcache.DecodeResponse(raw, nil)
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// longestPrefix implements §4.5's "Longest-prefix rule": a prefix p
// matches u iff u starts with p as a raw string (no path-segment
// alignment). Among matches, the longest wins; ties go to the last
// candidate encountered, stable with respect to input order.
func longestPrefix(candidates []string, u string) string {
	var best string
	for _, p := range candidates {
		if !strings.HasPrefix(u, p) {
			continue
		}
		if len(p) >= len(best) {
			best = p
		}
	}
	return best
}

func matchesNetwork(network []string, requestURL string) bool {
	for _, n := range network {
		if n == manifest.Wildcard || n == requestURL {
			return true
		}
	}
	return false
}
