package wind

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/rjkroege/markpane/internal/clock"
	"github.com/rjkroege/markpane/internal/metrics"
	"github.com/rjkroege/markpane/internal/store"
	"github.com/rjkroege/markpane/locate"
	"github.com/rjkroege/markpane/markdown"
	"github.com/rjkroege/markpane/render"
	"github.com/rjkroege/markpane/rich"
	"github.com/rjkroege/markpane/scroll"
)

// EditorSurface is the source text pane.
type EditorSurface interface {
	scroll.Editor
	locate.Editor
	// HasFocus reports whether the user is typing in the pane.
	HasFocus() bool
	// SetText replaces the pane's contents.
	SetText(text string)
}

// TransformStore persists diagram pan/zoom state across sessions.
type TransformStore interface {
	Get(ctx context.Context, id string) (rich.Transform, error)
	Put(ctx context.Context, id string, t rich.Transform) error
}

// Option configures a Window.
type Option func(*Window)

// WithRenderOptions passes options to the render scheduler.
func WithRenderOptions(opts ...render.Option) Option {
	return func(w *Window) { w.renderOpts = append(w.renderOpts, opts...) }
}

// WithSyncOptions passes options to the scroll synchronizer.
func WithSyncOptions(opts ...scroll.Option) Option {
	return func(w *Window) { w.syncOpts = append(w.syncOpts, opts...) }
}

// WithLocateOptions passes options to the selection locator.
func WithLocateOptions(opts ...locate.Option) Option {
	return func(w *Window) { w.locateOpts = append(w.locateOpts, opts...) }
}

// WithLayout sets the preview geometry.
func WithLayout(o rich.LayoutOptions) Option { return func(w *Window) { w.layout = o } }

// WithCompiler replaces the markdown renderer.
func WithCompiler(c render.Compiler) Option { return func(w *Window) { w.compiler = c } }

// WithImageCache shares an image cache with the window.
func WithImageCache(c *rich.ImageCache) Option { return func(w *Window) { w.images = c } }

// WithStore persists diagram transforms in s.
func WithStore(s TransformStore) Option { return func(w *Window) { w.store = s } }

// WithLargeEditThreshold sets the length change above which an edit
// renders immediately and resets the preview to the top.
func WithLargeEditThreshold(n int) Option {
	return func(w *Window) {
		if n >= 0 {
			w.threshold = n
		}
	}
}

// WithClock replaces the wall clock for every component.
func WithClock(c clock.Clock) Option { return func(w *Window) { w.clock = c } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Window) {
		if l != nil {
			w.log = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option { return func(w *Window) { w.metrics = m } }

// Window binds a markdown document's editor and preview panes to the render
// scheduler, scroll synchronizer and locator.
type Window struct {
	path   string
	editor EditorSurface
	view   View

	layout     rich.LayoutOptions
	threshold  int
	compiler   render.Compiler
	images     *rich.ImageCache
	store      TransformStore
	clock      clock.Clock
	log        *zap.Logger
	metrics    *metrics.Collector
	renderOpts []render.Option
	syncOpts   []scroll.Option
	locateOpts []locate.Option

	pane    *Pane
	sched   *render.Scheduler
	sync    *scroll.Synchronizer
	locator *locate.Locator

	// mu orders commits with relayouts started by image loads.
	mu        sync.Mutex
	closeOnce sync.Once
}

// NewWindow returns a window for the document at path.
func NewWindow(path string, editor EditorSurface, view View, opts ...Option) *Window {
	w := &Window{
		path:      path,
		editor:    editor,
		view:      view,
		layout:    rich.DefaultLayoutOptions(),
		threshold: render.DefaultLargeEditThreshold,
		compiler:  &markdown.Renderer{},
		clock:     clock.Real(),
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	if w.images == nil {
		w.images = rich.NewImageCache(64)
	}
	w.log = w.log.With(zap.String("path", path))
	w.pane = NewPane(view, w.layout, w.log)

	ambient := []render.Option{
		render.WithClock(w.clock),
		render.WithLogger(w.log.Named("render")),
		render.WithMetrics(w.metrics),
		render.WithLargeEditThreshold(w.threshold),
	}
	w.sched = render.New(w.compiler, w.committed, append(ambient, w.renderOpts...)...)
	w.sync = scroll.New(editor, view, append([]scroll.Option{
		scroll.WithClock(w.clock),
		scroll.WithLogger(w.log.Named("scroll")),
		scroll.WithMetrics(w.metrics),
	}, w.syncOpts...)...)
	w.locator = locate.New(editor, append([]locate.Option{
		locate.WithClock(w.clock),
		locate.WithLogger(w.log.Named("locate")),
		locate.WithMetrics(w.metrics),
	}, w.locateOpts...)...)
	return w
}

// Path returns the document path.
func (w *Window) Path() string { return w.path }

// Snapshot returns the displayed snapshot, or nil before the first render.
func (w *Window) Snapshot() *Snapshot { return w.pane.Snapshot() }

// Scheduler returns the window's render scheduler.
func (w *Window) Scheduler() *render.Scheduler { return w.sched }

// Synchronizer returns the window's scroll synchronizer.
func (w *Window) Synchronizer() *scroll.Synchronizer { return w.sync }

// Wait blocks until no render pass is in flight.
func (w *Window) Wait() { w.sched.Wait() }

// Close stops rendering and waits for in-flight passes.
func (w *Window) Close() error {
	var err error
	w.closeOnce.Do(func() {
		if err = w.sched.Close(); errors.Is(err, render.ErrClosed) {
			err = nil
		}
	})
	return err
}

// SetWidth relays the preview out for a new width in columns.
func (w *Window) SetWidth(cols int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cols == w.layout.Width {
		return
	}
	w.layout.Width = cols
	if snap := w.pane.SetLayout(w.layout); snap != nil {
		w.sync.ContentChanged(snap.Index)
	}
}

// committed receives each tree the scheduler commits.
func (w *Window) committed(t *rich.Tree) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prepared := t.WithHeights(w.imageHeights(t, true))
	w.restoreTransforms(prepared)
	snap := w.pane.Commit(prepared)
	w.sync.ContentChanged(snap.Index)
}

// restoreTransforms gives diagrams without a pan/zoom state the one saved
// in the store, and remembers it in the diagram cache.
func (w *Window) restoreTransforms(t *rich.Tree) {
	if w.store == nil {
		return
	}
	cache := w.sched.Cache()
	t.Root.Walk(func(n *rich.Node, _ int) bool {
		if !n.Kind.SubRender() || n.Raster == nil || !n.Transform.IsZero() {
			return true
		}
		tr, err := w.store.Get(context.Background(), DiagramID(w.path, n))
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			w.log.Warn("loading diagram transform", zap.Error(err))
		default:
			n.Transform = tr
			cache.SetTransform(n.Source, tr)
		}
		return true
	})
}
