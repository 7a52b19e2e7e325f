package worker

import (
	"context"
	"fmt"
	"net/http"

	"github.com/developer-dashboard/appcache2serviceworker"
)

// FallbackBroker implements fetchWithFallback (§4.6): attempt a live
// fetch; on rejection (network failure, DNS, offline — never on a non-2xx
// status) fall back to the stored response named by fallbackURL in the
// per-version cache named cacheName.
type FallbackBroker struct {
	db         *appcache.Database
	fetch      appcache.Fetcher
	resilience *ResilienceConfig
}

// FallbackBrokerOption configures a FallbackBroker.
type FallbackBrokerOption func(*FallbackBroker) error

// WithResilience wraps every live fetch attempt with retry/circuit-breaker
// policies (see execute in resilience.go).
func WithResilience(cfg ResilienceConfig) FallbackBrokerOption {
	return func(b *FallbackBroker) error {
		b.resilience = &cfg
		return nil
	}
}

// NewFallbackBroker returns a FallbackBroker backed by db, issuing live
// fetches through fetch.
func NewFallbackBroker(db *appcache.Database, fetch appcache.Fetcher, opts ...FallbackBrokerOption) (*FallbackBroker, error) {
	if db == nil {
		return nil, fmt.Errorf("worker: database is required")
	}
	if fetch == nil {
		return nil, fmt.Errorf("worker: fetch is required")
	}
	b := &FallbackBroker{db: db, fetch: fetch}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Fetch implements fetchWithFallback(request, fallbackUrl, cacheName).
func (b *FallbackBroker) Fetch(ctx context.Context, req *http.Request, fallbackURL, cacheName string) (*http.Response, error) {
	resp, err := execute(b.resilience, func() (*http.Response, error) {
		return b.fetch(ctx, req)
	})
	if err == nil {
		return resp, nil
	}

	cache, cerr := b.db.ResponseCache(ctx, cacheName)
	if cerr != nil {
		// The cache itself is unreachable: propagate the original
		// rejection (§4.6 "if that lookup misses, propagate the original
		// fetch rejection").
		return nil, err
	}
	raw, ok, gerr := cache.Get(ctx, fallbackURL)
	if gerr != nil || !ok {
		return nil, err
	}
	return appcache.DecodeResponse(raw, req)
}
