package pageagent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/developer-dashboard/appcache2serviceworker"
	"github.com/developer-dashboard/appcache2serviceworker/backend/memorystore"
)

type stubResponse struct {
	status int
	body   string
}

func newFetcher(routes map[string]stubResponse) appcache.Fetcher {
	return func(_ context.Context, req *http.Request) (*http.Response, error) {
		route, ok := routes[req.URL.String()]
		if !ok {
			return nil, fmt.Errorf("stub fetcher: no route for %s", req.URL.String())
		}
		return &http.Response{
			StatusCode: route.status,
			Status:     http.StatusText(route.status),
			Proto:      "HTTP/1.1",
			ProtoMajor: 1,
			ProtoMinor: 1,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewBufferString(route.body)),
			Request:    req,
		}, nil
	}
}

type recordingRegistrar struct {
	mu      sync.Mutex
	scripts []string
	err     error
}

func (r *recordingRegistrar) register(_ context.Context, scriptURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts = append(r.scripts, scriptURL)
	return r.err
}

func TestBootInstallsManifestAssociatesAndRegistersWorker(t *testing.T) {
	ctx := context.Background()
	fetch := newFetcher(map[string]stubResponse{
		"https://s/m": {status: 200, body: "CACHE MANIFEST\nCACHE:\n/a\n"},
		"https://s/a": {status: 200, body: "A"},
		"https://s/p": {status: 200, body: "<html></html>"},
	})
	registrar := &recordingRegistrar{}

	agent, err := Boot(ctx, "https://s/p", "https://s/m", "https://s/worker.js", Config{
		Storage:   memorystore.NewStorage(),
		Fetch:     fetch,
		Registrar: registrar.register,
	})
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}

	hist, err := agent.Database().History(ctx, "https://s/m")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("history length = %d, want 1", len(hist))
	}

	if _, ok, err := agent.Database().Binding(ctx, "https://s/p"); err != nil {
		t.Fatalf("Binding: %v", err)
	} else if !ok {
		t.Fatal("expected a binding for the document url")
	}

	registrar.mu.Lock()
	defer registrar.mu.Unlock()
	if len(registrar.scripts) != 1 || registrar.scripts[0] != "https://s/worker.js" {
		t.Fatalf("registered scripts = %v, want [https://s/worker.js]", registrar.scripts)
	}
}

func TestBootWorkerRegistrationFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	fetch := newFetcher(map[string]stubResponse{
		"https://s/m": {status: 200, body: "CACHE MANIFEST\nCACHE:\n/a\n"},
		"https://s/a": {status: 200, body: "A"},
		"https://s/p": {status: 200, body: "<html></html>"},
	})
	registrar := &recordingRegistrar{err: errors.New("registration unavailable")}

	agent, err := Boot(ctx, "https://s/p", "https://s/m", "https://s/worker.js", Config{
		Storage:   memorystore.NewStorage(),
		Fetch:     fetch,
		Registrar: registrar.register,
	})
	if err != nil {
		t.Fatalf("Boot should not fail when registration fails: %v", err)
	}
	if agent == nil {
		t.Fatal("expected a non-nil agent despite registration failure")
	}
}

func TestBootManifestFetchFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	// https://s/m has no route, so the manifest poll fetch fails.
	fetch := newFetcher(map[string]stubResponse{
		"https://s/p": {status: 200, body: "<html></html>"},
	})
	registrar := &recordingRegistrar{}

	agent, err := Boot(ctx, "https://s/p", "https://s/m", "https://s/worker.js", Config{
		Storage:   memorystore.NewStorage(),
		Fetch:     fetch,
		Registrar: registrar.register,
	})
	if err != nil {
		t.Fatalf("Boot should tolerate a manifest fetch failure: %v", err)
	}

	hist, err := agent.Database().History(ctx, "https://s/m")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("history length = %d, want 0 when the manifest poll fails", len(hist))
	}
}

func TestBootRequiresStorageFetchAndRegistrar(t *testing.T) {
	ctx := context.Background()
	fetch := newFetcher(nil)
	registrar := &recordingRegistrar{}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing storage", Config{Fetch: fetch, Registrar: registrar.register}},
		{"missing fetch", Config{Storage: memorystore.NewStorage(), Registrar: registrar.register}},
		{"missing registrar", Config{Storage: memorystore.NewStorage(), Fetch: fetch}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Boot(ctx, "https://s/p", "https://s/m", "https://s/worker.js", tc.cfg); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
