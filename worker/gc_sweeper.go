package worker

import (
	"context"
	"fmt"

	"github.com/developer-dashboard/appcache2serviceworker"
	"github.com/developer-dashboard/appcache2serviceworker/appmetrics"
)

// Sweeper implements the GC Sweeper (§4.7). Sweep runs one pass each time
// it is called; nothing in this package calls it, and Engine.Resolve does
// not trigger it after navigation fetches.
type Sweeper struct {
	db           *appcache.Database
	registry     appcache.ClientRegistry
	metrics      appmetrics.Collector
	pruneHistory bool
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper) error

// WithSweeperMetrics attaches a metrics collector. Defaults to
// appmetrics.DefaultCollector.
func WithSweeperMetrics(c appmetrics.Collector) SweeperOption {
	return func(s *Sweeper) error {
		if c == nil {
			return fmt.Errorf("worker: metrics collector cannot be nil")
		}
		s.metrics = c
		return nil
	}
}

// WithHistoryPruning enables the supplemented follow-on pass (§9 "open
// design point", closed per SPEC_FULL.md): after deleting a response
// cache, also remove its ManifestHistory entry, under the same safety
// predicate used to decide the cache was safe to delete. Off by default.
func WithHistoryPruning() SweeperOption {
	return func(s *Sweeper) error {
		s.pruneHistory = true
		return nil
	}
}

// NewSweeper returns a Sweeper backed by db and registry.
func NewSweeper(db *appcache.Database, registry appcache.ClientRegistry, opts ...SweeperOption) (*Sweeper, error) {
	if db == nil {
		return nil, fmt.Errorf("worker: database is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("worker: client registry is required")
	}
	s := &Sweeper{db: db, registry: registry, metrics: appmetrics.DefaultCollector}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Sweep implements §4.7 steps 1-6, plus the optional history-pruning pass.
func (s *Sweeper) Sweep(ctx context.Context) error {
	activeIDs, err := s.registry.ActiveClientIDs(ctx)
	if err != nil {
		return fmt.Errorf("worker: list active clients: %w", err)
	}
	active := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = struct{}{}
	}

	clientHashes, err := s.db.AllClientHashes(ctx)
	if err != nil {
		return fmt.Errorf("worker: list client bindings: %w", err)
	}

	// A hash still pinned by any live clientId is never eligible for
	// collection (§8 "GC safety"), even if another, stale clientId also
	// happens to map to the same hash.
	activeHashes := make(map[string]struct{})
	for clientID, hash := range clientHashes {
		if _, ok := active[clientID]; ok {
			activeHashes[hash] = struct{}{}
		}
	}

	hashesNotInUse := make(map[string]struct{})
	for clientID, hash := range clientHashes {
		if _, ok := active[clientID]; ok {
			continue
		}
		if err := s.db.DeleteClientHash(ctx, clientID); err != nil {
			return fmt.Errorf("worker: delete stale client binding %q: %w", clientID, err)
		}
		if _, stillPinned := activeHashes[hash]; !stillPinned {
			hashesNotInUse[hash] = struct{}{}
		}
	}

	histories, err := s.db.AllManifestHistories(ctx)
	if err != nil {
		return fmt.Errorf("worker: list manifest histories: %w", err)
	}

	oldHashes := make(map[string]struct{})
	for _, hist := range histories {
		if len(hist) == 0 {
			continue
		}
		for _, v := range hist[:len(hist)-1] {
			oldHashes[v.Hash] = struct{}{}
		}
	}

	var toDelete []string
	for h := range oldHashes {
		if _, ok := hashesNotInUse[h]; ok {
			toDelete = append(toDelete, h)
		}
	}

	for _, h := range toDelete {
		if err := s.db.DeleteResponseCache(ctx, h); err != nil {
			return fmt.Errorf("worker: delete response cache %q: %w", h, err)
		}
	}

	s.metrics.RecordGCSweep(len(toDelete), len(hashesNotInUse))

	if s.pruneHistory && len(toDelete) > 0 {
		if err := s.pruneHistories(ctx, histories, toDelete); err != nil {
			return err
		}
	}
	return nil
}

// pruneHistories removes ManifestHistory entries whose response cache was
// just deleted. toDelete is already restricted to hashes that are both
// non-current (§4.7 step 4) and unreferenced by any live client binding
// (§4.7 step 5) — the same safety predicate cache deletion used.
func (s *Sweeper) pruneHistories(ctx context.Context, histories map[string]appcache.ManifestHistory, toDelete []string) error {
	deleted := make(map[string]struct{}, len(toDelete))
	for _, h := range toDelete {
		deleted[h] = struct{}{}
	}

	for manifestURL, hist := range histories {
		pruned := make(appcache.ManifestHistory, 0, len(hist))
		changed := false
		for _, v := range hist {
			if _, ok := deleted[v.Hash]; ok {
				changed = true
				continue
			}
			pruned = append(pruned, v)
		}
		if !changed {
			continue
		}
		if err := s.db.PutHistory(ctx, manifestURL, pruned); err != nil {
			return fmt.Errorf("worker: prune history for %q: %w", manifestURL, err)
		}
	}
	return nil
}
