// Package metrics exposes Prometheus counters for the render and sync
// engine. All methods are safe to call on a nil *Collector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the engine's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	Renders       *prometheus.CounterVec // outcome: committed, stale, failed
	RenderLatency prometheus.Histogram
	SubRenders    *prometheus.CounterVec // kind, outcome: cached, rendered, failed
	CacheEntries  prometheus.Gauge
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	SyncEvents    *prometheus.CounterVec // source: preview, editor, gutter, click
	Highlights    prometheus.Counter
	LocateMisses  prometheus.Counter
}

// NewCollector creates a collector whose metric names are prefixed with
// namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Render passes by outcome",
		}, []string{"outcome"}),
		RenderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time from render start to commit",
			Buckets:   prometheus.DefBuckets,
		}),
		SubRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sub_renders_total",
			Help:      "Diagram and chart sub-renders by kind and outcome",
		}, []string{"kind", "outcome"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "diagram_cache_entries",
			Help:      "Entries held by the diagram cache",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagram_cache_hits_total",
			Help:      "Diagram cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagram_cache_misses_total",
			Help:      "Diagram cache misses",
		}),
		SyncEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_total",
			Help:      "Programmatic scroll synchronizations by source",
		}, []string{"source"}),
		Highlights: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "highlights_total",
			Help:      "Source highlights applied by the locator",
		}),
		LocateMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locate_misses_total",
			Help:      "Selections with no source match",
		}),
	}
	registry.MustRegister(
		c.Renders,
		c.RenderLatency,
		c.SubRenders,
		c.CacheEntries,
		c.CacheHits,
		c.CacheMisses,
		c.SyncEvents,
		c.Highlights,
		c.LocateMisses,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RenderCommitted records a committed pass started at start.
func (c *Collector) RenderCommitted(start time.Time, now time.Time) {
	if c == nil {
		return
	}
	c.Renders.WithLabelValues("committed").Inc()
	c.RenderLatency.Observe(now.Sub(start).Seconds())
}

// RenderStale records a pass discarded because a newer one was requested.
func (c *Collector) RenderStale() {
	if c == nil {
		return
	}
	c.Renders.WithLabelValues("stale").Inc()
}

// RenderFailed records a pass whose compiler returned an error.
func (c *Collector) RenderFailed() {
	if c == nil {
		return
	}
	c.Renders.WithLabelValues("failed").Inc()
}

// SubRender records one diagram or chart sub-render.
func (c *Collector) SubRender(kind, outcome string) {
	if c == nil {
		return
	}
	c.SubRenders.WithLabelValues(kind, outcome).Inc()
}

// CacheLookup records a diagram cache lookup.
func (c *Collector) CacheLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

// CacheSize records the number of cached diagrams.
func (c *Collector) CacheSize(n int) {
	if c == nil {
		return
	}
	c.CacheEntries.Set(float64(n))
}

// Synced records a programmatic scroll driven from source.
func (c *Collector) Synced(source string) {
	if c == nil {
		return
	}
	c.SyncEvents.WithLabelValues(source).Inc()
}

// Highlighted records an applied source highlight.
func (c *Collector) Highlighted() {
	if c == nil {
		return
	}
	c.Highlights.Inc()
}

// LocateMissed records a selection that matched nothing.
func (c *Collector) LocateMissed() {
	if c == nil {
		return
	}
	c.LocateMisses.Inc()
}
