// Package appmetrics defines a metrics-collection interface for the
// manifest installer, the worker's Rule Engine, and the GC Sweeper. It
// mirrors the teacher's metrics package: a dependency-free interface any
// monitoring system can implement, with a zero-overhead NoOpCollector as
// the default so metrics are opt-in.
package appmetrics

import "time"

// Resolution rule names recorded by RecordResolution, one per branch of the
// Rule Engine's request algorithm (§4.5).
const (
	RuleCache    = "cache"
	RuleFallback = "fallback"
	RuleNetwork  = "network"
	RuleError    = "error"
)

// Outcome labels shared across Record* calls.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultHit     = "hit"
	ResultMiss    = "miss"
)

// Collector defines the interface for AppCache metrics collection.
// Implementations can target Prometheus, OpenTelemetry, or any other
// monitoring system without the installer or worker depending on it
// directly.
type Collector interface {
	// RecordInstall records the outcome and duration of a full manifest
	// install (§4.1): result is ResultSuccess or ResultError.
	RecordInstall(manifestURL, result string, duration time.Duration)

	// RecordPrecacheFetch records one resource fetch performed while
	// pre-caching a manifest's CACHE and FALLBACK resources: result is
	// ResultHit (stored), ResultMiss (evicted on 404, 410 or no-store),
	// ResultError (request, fetch, encode or store failure) or
	// ResultSuccess (any other status, existing entry left as it was).
	RecordPrecacheFetch(manifestURL, result string, duration time.Duration)

	// RecordResolution records which rule the Rule Engine used to resolve
	// a single request (§4.5): rule is one of the Rule* constants.
	RecordResolution(rule string, duration time.Duration)

	// RecordGCSweep records the outcome of one GC Sweeper pass (§4.7):
	// cachesDeleted is the number of per-version response caches removed,
	// staleBindingsReaped is the number of client-ID bindings pointing at
	// pruned versions that were cleaned up in the same pass.
	RecordGCSweep(cachesDeleted, staleBindingsReaped int)
}

// NoOpCollector implements Collector with no-op operations. It is the
// default collector when metrics are not configured, so instrumented
// components carry zero overhead until a real Collector is wired in.
type NoOpCollector struct{}

func (NoOpCollector) RecordInstall(manifestURL, result string, duration time.Duration)       {}
func (NoOpCollector) RecordPrecacheFetch(manifestURL, result string, duration time.Duration) {}
func (NoOpCollector) RecordResolution(rule string, duration time.Duration)                   {}
func (NoOpCollector) RecordGCSweep(cachesDeleted, staleBindingsReaped int)                    {}

// DefaultCollector is the no-op collector used when metrics are not enabled.
var DefaultCollector Collector = NoOpCollector{}

var _ Collector = NoOpCollector{}
