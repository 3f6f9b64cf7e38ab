package render

import (
	"time"

	"go.uber.org/zap"

	"github.com/rjkroege/markpane/internal/clock"
	"github.com/rjkroege/markpane/internal/metrics"
	"github.com/rjkroege/markpane/rich"
)

// Defaults for the scheduler's tuning constants.
const (
	DefaultDebounce              = 250 * time.Millisecond
	DefaultLargeEditThreshold    = 50
	DefaultMaxParallelSubRenders = 4
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDebounce sets the trailing debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithLargeEditThreshold sets the length change, in bytes, above which a
// mutation renders immediately.
func WithLargeEditThreshold(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.threshold = n
		}
	}
}

// WithMaxParallelSubRenders bounds concurrent rasterizations per pass.
func WithMaxParallelSubRenders(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.parallel = n
		}
	}
}

// WithRasterizer sets the diagram and chart rasterizer. Without one, every
// sub-render fails with ErrRasterizerUnavailable.
func WithRasterizer(r Rasterizer) Option {
	return func(s *Scheduler) { s.rasterizer = r }
}

// WithCache shares a diagram cache with the scheduler.
func WithCache(c *rich.DiagramCache) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Scheduler) { s.metrics = m }
}
