package worker

import (
	"context"
	"testing"
)

// TestResolveClientPrefersClientID covers §4.4 step 1: when the platform
// reports a clientId the registry recognizes, its registered URL wins over
// both Referer and the request URL.
func TestResolveClientPrefersClientID(t *testing.T) {
	ctx := context.Background()
	registry := &stubRegistry{urls: map[string]string{"client-1": "https://s/from-registry"}}

	req := newRequest(t, "https://s/resource", "https://s/from-referer")
	event := FetchEvent{Request: req, ClientID: "client-1", HasClientID: true}

	got, err := ResolveClient(ctx, registry, event)
	if err != nil {
		t.Fatalf("ResolveClient: %v", err)
	}
	if want := "https://s/from-registry"; got != want {
		t.Fatalf("ResolveClient = %q, want %q", got, want)
	}
}

// TestResolveClientFallsBackToReferrer covers §4.4 step 2: with no
// recognized clientId, the Referer header wins over the request URL.
func TestResolveClientFallsBackToReferrer(t *testing.T) {
	ctx := context.Background()
	registry := &stubRegistry{}

	req := newRequest(t, "https://s/resource", "https://s/from-referer")
	event := FetchEvent{Request: req}

	got, err := ResolveClient(ctx, registry, event)
	if err != nil {
		t.Fatalf("ResolveClient: %v", err)
	}
	if want := "https://s/from-referer"; got != want {
		t.Fatalf("ResolveClient = %q, want %q", got, want)
	}
}

// TestResolveClientFallsBackToRequestURL covers §4.4 step 3: with no
// clientId and no Referer, the request's own URL is used.
func TestResolveClientFallsBackToRequestURL(t *testing.T) {
	ctx := context.Background()
	registry := &stubRegistry{}

	req := newRequest(t, "https://s/resource", "")
	event := FetchEvent{Request: req}

	got, err := ResolveClient(ctx, registry, event)
	if err != nil {
		t.Fatalf("ResolveClient: %v", err)
	}
	if want := "https://s/resource"; got != want {
		t.Fatalf("ResolveClient = %q, want %q", got, want)
	}
}

// TestResolveClientUnrecognizedClientIDFallsThrough covers the
// HasClientID-but-unknown branch: an id the registry does not recognize
// falls through exactly like HasClientID being false.
func TestResolveClientUnrecognizedClientIDFallsThrough(t *testing.T) {
	ctx := context.Background()
	registry := &stubRegistry{}

	req := newRequest(t, "https://s/resource", "https://s/from-referer")
	event := FetchEvent{Request: req, ClientID: "unknown-client", HasClientID: true}

	got, err := ResolveClient(ctx, registry, event)
	if err != nil {
		t.Fatalf("ResolveClient: %v", err)
	}
	if want := "https://s/from-referer"; got != want {
		t.Fatalf("ResolveClient = %q, want %q", got, want)
	}
}
