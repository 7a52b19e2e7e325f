// Package pageagent implements the Page Agent entry point (§4.3): on
// document load with a manifest attribute and worker support, it opens the
// database, runs the Association Recorder and Manifest Poller in
// parallel, then registers the service worker script.
package pageagent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/developer-dashboard/appcache2serviceworker"
	"github.com/developer-dashboard/appcache2serviceworker/installer"
)

// WorkerRegistrar registers the named service worker script — the Go
// analogue of navigator.serviceWorker.register(scriptURL). Nothing in this
// module depends on how registration actually happens.
type WorkerRegistrar func(ctx context.Context, scriptURL string) error

// Agent is the page-side entry point: one Agent exists per document load
// that carries a manifest attribute.
type Agent struct {
	db         *appcache.Database
	fetch      appcache.Fetcher
	installer  *installer.Installer
	associator *installer.Associator
	registrar  WorkerRegistrar
}

// Config collects everything one Boot call needs.
type Config struct {
	// Storage backs the three persistent stores and, unless
	// ResponseStorage is set, the per-version response caches too.
	Storage appcache.CacheStorage
	// ResponseStorage, if set, backs the per-version response caches
	// separately from Storage (mirrors appcache.OpenWithResponseCache).
	ResponseStorage appcache.CacheStorage
	// Fetch issues every conditioning, seeding, and manifest-polling
	// request. Required.
	Fetch appcache.Fetcher
	// Registrar registers the worker script. Required.
	Registrar WorkerRegistrar
	// DatabaseOptions configures the opened Database, e.g. WithEncryption.
	DatabaseOptions []appcache.DatabaseOption
	// InstallerOptions configures the Installer, e.g. installer.WithMetrics.
	InstallerOptions []installer.Option
}

// Boot implements §4.3: open the database, run the Association Recorder
// and Manifest Poller concurrently, then (and only then) register the
// worker script. Registration failure is logged, not returned — "[…] is
// not required for the page to continue."
func Boot(ctx context.Context, documentURL, manifestURL, workerScriptURL string, cfg Config) (*Agent, error) {
	if cfg.Storage == nil {
		return nil, fmt.Errorf("pageagent: storage is required")
	}
	if cfg.Fetch == nil {
		return nil, fmt.Errorf("pageagent: fetch is required")
	}
	if cfg.Registrar == nil {
		return nil, fmt.Errorf("pageagent: registrar is required")
	}

	responses := cfg.ResponseStorage
	if responses == nil {
		responses = cfg.Storage
	}
	db, err := appcache.OpenWithResponseCache(ctx, cfg.Storage, responses, cfg.DatabaseOptions...)
	if err != nil {
		return nil, fmt.Errorf("pageagent: open database: %w", err)
	}

	in, err := installer.New(db, cfg.Fetch, cfg.InstallerOptions...)
	if err != nil {
		return nil, fmt.Errorf("pageagent: build installer: %w", err)
	}
	assoc, err := installer.NewAssociator(db, cfg.Fetch)
	if err != nil {
		return nil, fmt.Errorf("pageagent: build associator: %w", err)
	}

	agent := &Agent{db: db, fetch: cfg.Fetch, installer: in, associator: assoc, registrar: cfg.Registrar}
	agent.runAssociationAndPoll(ctx, documentURL, manifestURL)
	agent.registerWorker(ctx, workerScriptURL)
	return agent, nil
}

// Database returns the opened database, for callers that need direct
// access (e.g. to hand the same handle to a worker package).
func (a *Agent) Database() *appcache.Database { return a.db }

// runAssociationAndPoll runs the Association Recorder and Manifest Poller
// concurrently: §5 notes they write to disjoint stores, so no ordering
// between them is required.
func (a *Agent) runAssociationAndPoll(ctx context.Context, documentURL, manifestURL string) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.associator.Associate(ctx, documentURL, manifestURL); err != nil {
			appcache.Component("pageagent").Warn("association recorder failed", "document", documentURL, "manifest", manifestURL, "error", err)
		}
	}()

	go func() {
		defer wg.Done()
		a.poll(ctx, manifestURL)
	}()

	wg.Wait()
}

// poll fetches the manifest's current text and installs it. A fetch,
// status, or parse failure here is swallowed per §4.1's failure
// semantics: the previously installed version, if any, remains current.
func (a *Agent) poll(ctx context.Context, manifestURL string) {
	log := appcache.Component("pageagent")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		log.Warn("build manifest poll request", "manifest", manifestURL, "error", err)
		return
	}
	req.Header.Set(installer.UseFetchHeader, "true")

	resp, err := a.fetch(ctx, req)
	if err != nil {
		log.Warn("manifest poll fetch failed", "manifest", manifestURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("manifest poll returned non-2xx", "manifest", manifestURL, "status", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("read manifest poll body", "manifest", manifestURL, "error", err)
		return
	}

	if err := a.installer.Install(ctx, manifestURL, string(body)); err != nil {
		log.Warn("install failed", "manifest", manifestURL, "error", err)
	}
}

// registerWorker registers the worker script. Failure is logged and
// non-fatal (§4.3).
func (a *Agent) registerWorker(ctx context.Context, scriptURL string) {
	if err := a.registrar(ctx, scriptURL); err != nil {
		appcache.Component("pageagent").Warn("worker registration failed", "script", scriptURL, "error", err)
	}
}
