package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/developer-dashboard/appcache2serviceworker"
)

// TestFallbackBrokerReturnsLiveResponseOnSuccess covers the non-fallback
// path: a successful live fetch is returned as-is, with no cache lookup.
func TestFallbackBrokerReturnsLiveResponseOnSuccess(t *testing.T) {
	ctx := context.Background()
	db := mustOpenDB(t)

	fetch := newFetcher(map[string]stubResponse{"https://s/api/x": {status: http.StatusOK, body: "live"}})
	b, err := NewFallbackBroker(db, fetch)
	if err != nil {
		t.Fatalf("NewFallbackBroker: %v", err)
	}

	req := newRequest(t, "https://s/api/x", "")
	resp, err := b.Fetch(ctx, req, "https://s/fallback.json", "some-hash")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := readBody(t, resp); got != "live" {
		t.Fatalf("body = %q, want %q", got, "live")
	}
}

// TestFallbackBrokerFallsBackOnFetchRejection covers §4.6: a rejected live
// fetch (not a non-2xx status) falls back to the named cache entry.
func TestFallbackBrokerFallsBackOnFetchRejection(t *testing.T) {
	ctx := context.Background()
	db := mustOpenDB(t)

	cache, err := db.ResponseCache(ctx, "hash-1")
	if err != nil {
		t.Fatalf("ResponseCache: %v", err)
	}
	stored := buildEncodedResponse(t, "https://s/fallback.json", http.StatusOK, "fallback-body")
	if err := cache.Put(ctx, "https://s/fallback.json", stored); err != nil {
		t.Fatalf("Put: %v", err)
	}

	b, err := NewFallbackBroker(db, newErrFetcher(errors.New("offline")))
	if err != nil {
		t.Fatalf("NewFallbackBroker: %v", err)
	}

	req := newRequest(t, "https://s/api/x", "")
	resp, err := b.Fetch(ctx, req, "https://s/fallback.json", "hash-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := readBody(t, resp); got != "fallback-body" {
		t.Fatalf("body = %q, want %q", got, "fallback-body")
	}
}

// TestFallbackBrokerPropagatesOriginalErrorOnCacheMiss covers §4.6's "if
// that lookup misses, propagate the original fetch rejection" clause.
func TestFallbackBrokerPropagatesOriginalErrorOnCacheMiss(t *testing.T) {
	ctx := context.Background()
	db := mustOpenDB(t)

	wantErr := errors.New("offline")
	b, err := NewFallbackBroker(db, newErrFetcher(wantErr))
	if err != nil {
		t.Fatalf("NewFallbackBroker: %v", err)
	}

	req := newRequest(t, "https://s/api/x", "")
	_, err = b.Fetch(ctx, req, "https://s/fallback.json", "never-installed-hash")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

// TestFallbackBrokerWithResilienceRetriesThenSucceedsLive covers
// WithResilience wiring a retry policy around the live fetch: a fetch that
// fails twice then succeeds resolves to the live response, never touching
// the fallback cache.
func TestFallbackBrokerWithResilienceRetriesThenSucceedsLive(t *testing.T) {
	ctx := context.Background()
	db := mustOpenDB(t)

	attempts := 0
	fetch := func(_ context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient origin error")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Proto:      "HTTP/1.1",
			ProtoMajor: 1,
			ProtoMinor: 1,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("live-after-retry")),
			Request:    req,
		}, nil
	}

	retryPolicy := RetryPolicyBuilder().
		WithMaxRetries(3).
		WithBackoff(time.Millisecond, 5*time.Millisecond).
		Build()
	b, err := NewFallbackBroker(db, fetch, WithResilience(ResilienceConfig{RetryPolicy: retryPolicy}))
	if err != nil {
		t.Fatalf("NewFallbackBroker: %v", err)
	}

	req := newRequest(t, "https://s/api/x", "")
	resp, err := b.Fetch(ctx, req, "https://s/fallback.json", "some-hash")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := readBody(t, resp); got != "live-after-retry" {
		t.Fatalf("body = %q, want %q", got, "live-after-retry")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

// TestFallbackBrokerWithResilienceFallsBackWhenCircuitOpen covers
// WithResilience wiring a circuit breaker that is already open: the live
// fetch is rejected without ever being called, and the broker falls back
// to the cached entry exactly as it would for any other fetch rejection.
func TestFallbackBrokerWithResilienceFallsBackWhenCircuitOpen(t *testing.T) {
	ctx := context.Background()
	db := mustOpenDB(t)

	cache, err := db.ResponseCache(ctx, "hash-cb")
	if err != nil {
		t.Fatalf("ResponseCache: %v", err)
	}
	stored := buildEncodedResponse(t, "https://s/fallback.json", http.StatusOK, "fallback-body")
	if err := cache.Put(ctx, "https://s/fallback.json", stored); err != nil {
		t.Fatalf("Put: %v", err)
	}

	cb := CircuitBreakerBuilder().WithDelay(time.Minute).Build()
	for i := 0; i < 5; i++ {
		cb.RecordError(errors.New("origin down"))
	}
	if !cb.IsOpen() {
		t.Fatal("expected circuit to be open before the call under test")
	}

	called := false
	fetch := func(_ context.Context, req *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	}
	b, err := NewFallbackBroker(db, fetch, WithResilience(ResilienceConfig{CircuitBreaker: cb}))
	if err != nil {
		t.Fatalf("NewFallbackBroker: %v", err)
	}

	req := newRequest(t, "https://s/api/x", "")
	resp, err := b.Fetch(ctx, req, "https://s/fallback.json", "hash-cb")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := readBody(t, resp); got != "fallback-body" {
		t.Fatalf("body = %q, want %q", got, "fallback-body")
	}
	if called {
		t.Fatal("fetch should not run while circuit is open")
	}
}

func buildEncodedResponse(t *testing.T, rawURL string, status int, body string) []byte {
	t.Helper()
	req := newRequest(t, rawURL, "")
	resp := &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
	raw, err := appcache.EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	return raw
}
