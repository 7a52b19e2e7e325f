// Package prometheus provides a Prometheus implementation of
// appmetrics.Collector. Ported from the teacher's metrics/prometheus and
// wrapper/metrics/prometheus packages: the same promauto-factory
// construction and per-metric Vec shape, relabeled for installer/worker
// events instead of HTTP cache operations.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/developer-dashboard/appcache2serviceworker/appmetrics"
)

// Collector implements appmetrics.Collector for Prometheus.
type Collector struct {
	installTotal    *prometheus.CounterVec
	installDuration *prometheus.HistogramVec
	precacheTotal   *prometheus.CounterVec
	precacheLatency *prometheus.HistogramVec
	resolutions     *prometheus.CounterVec
	resolutionTime  *prometheus.HistogramVec
	gcCachesDeleted prometheus.Counter
	gcBindingsReaped prometheus.Counter
}

// Config configures the Prometheus collector's registration.
type Config struct {
	// Registry is the registerer to attach metrics to. Defaults to
	// prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
	// Namespace prefixes every metric name (default "appcache").
	Namespace string
	// Subsystem optionally further scopes metric names.
	Subsystem string
	// ConstLabels are attached to every metric.
	ConstLabels prometheus.Labels
}

// NewCollector returns a Collector registered against the default registry.
func NewCollector() *Collector {
	return NewCollectorWithConfig(Config{})
}

// NewCollectorWithRegistry returns a Collector registered against reg.
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	return NewCollectorWithConfig(Config{Registry: reg})
}

// NewCollectorWithConfig returns a Collector built from config, applying
// defaults for any zero-valued fields.
func NewCollectorWithConfig(config Config) *Collector {
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = "appcache"
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		installTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "installs_total",
			Help:        "Total number of manifest installs, by result.",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
		installDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "install_duration_seconds",
			Help:        "Duration of a full manifest install.",
			Buckets:     []float64{.05, .1, .5, 1, 5, 10, 30, 60},
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
		precacheTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "precache_fetches_total",
			Help:        "Total number of CACHE- and FALLBACK-section resource fetches performed during install.",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
		precacheLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "precache_fetch_duration_seconds",
			Help:        "Duration of a single CACHE- or FALLBACK-section resource fetch.",
			Buckets:     []float64{.01, .05, .1, .5, 1, 5, 10},
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolutions_total",
			Help:        "Total number of fetch resolutions, by the rule that matched.",
			ConstLabels: config.ConstLabels,
		}, []string{"rule"}),
		resolutionTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resolution_duration_seconds",
			Help:        "Duration of a single request resolution.",
			Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			ConstLabels: config.ConstLabels,
		}, []string{"rule"}),
		gcCachesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "gc_caches_deleted_total",
			Help:        "Total number of per-version response caches deleted by the GC Sweeper.",
			ConstLabels: config.ConstLabels,
		}),
		gcBindingsReaped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "gc_stale_bindings_reaped_total",
			Help:        "Total number of client bindings to pruned versions reaped by the GC Sweeper.",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (c *Collector) RecordInstall(_ string, result string, duration time.Duration) {
	c.installTotal.WithLabelValues(result).Inc()
	c.installDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (c *Collector) RecordPrecacheFetch(_ string, result string, duration time.Duration) {
	c.precacheTotal.WithLabelValues(result).Inc()
	c.precacheLatency.WithLabelValues(result).Observe(duration.Seconds())
}

func (c *Collector) RecordResolution(rule string, duration time.Duration) {
	c.resolutions.WithLabelValues(rule).Inc()
	c.resolutionTime.WithLabelValues(rule).Observe(duration.Seconds())
}

func (c *Collector) RecordGCSweep(cachesDeleted, staleBindingsReaped int) {
	c.gcCachesDeleted.Add(float64(cachesDeleted))
	c.gcBindingsReaped.Add(float64(staleBindingsReaped))
}

var _ appmetrics.Collector = (*Collector)(nil)
