package render

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rjkroege/markpane/internal/clock"
	"github.com/rjkroege/markpane/internal/metrics"
	"github.com/rjkroege/markpane/rich"
)

// CommitFunc receives each committed tree, in increasing generation order.
// It is called from a scheduler goroutine and must not call back into the
// Scheduler.
type CommitFunc func(*rich.Tree)

// Scheduler coalesces source mutations into render passes. See the package
// documentation for the commit rule.
type Scheduler struct {
	compiler   Compiler
	commit     CommitFunc
	rasterizer Rasterizer
	cache      *rich.DiagramCache
	clock      clock.Clock
	log        *zap.Logger
	metrics    *metrics.Collector

	debounce  time.Duration
	threshold int
	parallel  int

	flight singleflight.Group

	mu         sync.Mutex
	idle       *sync.Cond
	state      State
	closed     bool
	started    bool
	lastLen    int
	requested  uint64 // highest generation allocated
	pendingSrc string
	large      bool // a first render or large edit has not committed yet
	timer      clock.Timer
	timerSeq   uint64
	inflight   int

	commitMu  sync.Mutex
	committed atomic.Uint64
}

// New returns a scheduler that compiles with c and hands committed trees to
// commit.
func New(c Compiler, commit CommitFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		compiler:  c,
		commit:    commit,
		clock:     clock.Real(),
		log:       zap.NewNop(),
		debounce:  DefaultDebounce,
		threshold: DefaultLargeEditThreshold,
		parallel:  DefaultMaxParallelSubRenders,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = rich.NewDiagramCache(rich.DefaultDiagramCacheSize)
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Cache returns the scheduler's diagram cache.
func (s *Scheduler) Cache() *rich.DiagramCache { return s.cache }

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Requested returns the highest generation allocated so far.
func (s *Scheduler) Requested() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested
}

// Committed returns the generation of the last committed tree, 0 if none.
func (s *Scheduler) Committed() uint64 { return s.committed.Load() }

// Mutate records a new source text. The first mutation and any mutation
// that changes the length by more than the large-edit threshold render
// immediately; others (re)arm the debounce timer. A generation is allocated
// when a render is first scheduled and shared by the mutations it coalesces.
func (s *Scheduler) Mutate(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delta := len(source) - s.lastLen
	if delta < 0 {
		delta = -delta
	}
	s.lastLen = len(source)
	if s.state != Pending {
		s.requested++
	}
	s.pendingSrc = source

	switch {
	case !s.started:
		s.started = true
		s.large = true
		s.startLocked("first")
	case delta > s.threshold:
		s.large = true
		s.startLocked("large-edit")
	default:
		s.state = Pending
		s.armLocked()
	}
	return nil
}

// Flush starts a pending render without waiting for the debounce timer.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && s.state == Pending {
		s.startLocked("flush")
	}
}

// Wait blocks until no render pass is in flight.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.inflight > 0 {
		s.idle.Wait()
	}
}

// Close stops the debounce timer, drops any pending render and waits for
// in-flight passes. In-flight passes may still commit.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.stopTimerLocked()
	if s.state == Pending {
		s.state = Idle
	}
	s.mu.Unlock()
	s.Wait()
	return nil
}

func (s *Scheduler) armLocked() {
	s.stopTimerLocked()
	seq := s.timerSeq
	s.timer = s.clock.AfterFunc(s.debounce, func() { s.fire(seq) })
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}

func (s *Scheduler) fire(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.timerSeq || s.state != Pending {
		return
	}
	s.startLocked("debounce")
}

func (s *Scheduler) startLocked(trigger string) {
	s.stopTimerLocked()
	gen, src := s.requested, s.pendingSrc
	s.pendingSrc = ""
	s.state = Rendering
	s.inflight++
	s.log.Debug("render started",
		zap.Uint64("generation", gen),
		zap.String("trigger", trigger),
		zap.Int("bytes", len(src)))
	go s.run(gen, src, s.large)
}

func (s *Scheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight > 0 {
		return
	}
	if s.state == Rendering {
		s.state = Idle
		if s.committed.Load() > 0 {
			s.state = Committed
		}
	}
	s.idle.Broadcast()
}

// run performs one render pass for generation gen. large marks a pass that
// includes the first render or a large edit.
func (s *Scheduler) run(gen uint64, src string, large bool) {
	defer s.finish()
	start := s.clock.Now()
	ctx := context.Background()

	root, err := s.compiler.Compile(ctx, src)
	if err != nil {
		s.log.Warn("compile failed", zap.Uint64("generation", gen), zap.Error(err))
		s.metrics.RenderFailed()
		return
	}
	fresh := s.subRender(ctx, root)

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.mu.Lock()
	latest := s.requested
	if gen != latest || gen <= s.committed.Load() {
		s.mu.Unlock()
		s.log.Debug("discarding stale render",
			zap.Uint64("generation", gen),
			zap.Uint64("latest", latest))
		s.metrics.RenderStale()
		return
	}
	s.committed.Store(gen)
	s.large = false
	s.mu.Unlock()

	for _, f := range fresh {
		s.cache.Put(f.source, f.raster)
	}
	s.metrics.CacheSize(s.cache.Len())
	if s.commit != nil {
		t := rich.NewTree(gen, src, root)
		t.Large = large
		s.commit(t)
	}
	s.metrics.RenderCommitted(start, s.clock.Now())
}

type subResult struct {
	raster    rich.Raster
	transform rich.Transform
	cached    bool
	err       error
}

type freshRaster struct {
	source string
	raster rich.Raster
}

// subRender rasterizes every diagram and chart of root in parallel and
// waits for all of them. Identical bodies are rasterized once. Failed blocks
// become error placeholders. It returns the rasters that were not cached;
// they are written to the cache only if the pass commits.
func (s *Scheduler) subRender(ctx context.Context, root *rich.Node) []freshRaster {
	groups := make(map[string][]*rich.Node)
	var order []string
	root.Walk(func(n *rich.Node, _ int) bool {
		if n.Kind.SubRender() {
			k := n.Kind.String() + ":" + rich.CacheKey(n.Source)
			if _, ok := groups[k]; !ok {
				order = append(order, k)
			}
			groups[k] = append(groups[k], n)
		}
		return true
	})
	if len(order) == 0 {
		return nil
	}

	results := make([]subResult, len(order))
	var g errgroup.Group
	g.SetLimit(s.parallel)
	for i, k := range order {
		n := groups[k][0]
		g.Go(func() error {
			results[i] = s.rasterize(ctx, k, n)
			return nil
		})
	}
	_ = g.Wait()

	var fresh []freshRaster
	for i, k := range order {
		r := results[i]
		for _, n := range groups[k] {
			if r.err != nil {
				placeholder(n, r.err)
				continue
			}
			raster := r.raster
			n.Raster = &raster
			n.Transform = r.transform
		}
		if r.err == nil && !r.cached {
			fresh = append(fresh, freshRaster{source: groups[k][0].Source, raster: r.raster})
		}
	}
	return fresh
}

func (s *Scheduler) rasterize(ctx context.Context, key string, n *rich.Node) subResult {
	kind := n.Kind.String()
	if e, ok := s.cache.Get(n.Source); ok {
		s.metrics.CacheLookup(true)
		s.metrics.SubRender(kind, "cached")
		return subResult{raster: e.Raster, transform: e.Transform, cached: true}
	}
	s.metrics.CacheLookup(false)

	v, err, shared := s.flight.Do(key, func() (any, error) {
		if s.rasterizer == nil {
			return nil, ErrRasterizerUnavailable
		}
		return s.rasterizer.Rasterize(ctx, n.Kind, n.Source)
	})
	if err != nil {
		var re *RenderError
		if !errors.As(err, &re) {
			err = &RenderError{Kind: n.Kind, Line: n.LineStart, Err: err}
		}
		s.log.Info("sub-render failed", zap.Int("line", n.LineStart+1), zap.Error(err))
		s.metrics.SubRender(kind, "failed")
		return subResult{err: err}
	}
	if shared {
		s.log.Debug("sub-render shared", zap.Int("line", n.LineStart+1))
	}
	s.metrics.SubRender(kind, "rendered")
	return subResult{raster: v.(rich.Raster)}
}

// placeholder turns a failed block into an error node that still shows the
// original source.
func placeholder(n *rich.Node, err error) {
	n.Kind = rich.KindError
	n.Err = err.Error()
	n.Text = n.Source
	n.Raster = nil
	n.Height = 0
}
