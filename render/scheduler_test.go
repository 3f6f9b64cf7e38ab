package render

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rjkroege/markpane/internal/clock"
	"github.com/rjkroege/markpane/markdown"
	"github.com/rjkroege/markpane/rich"
)

// recorder collects committed trees.
type recorder struct {
	mu    sync.Mutex
	trees []*rich.Tree
	ch    chan *rich.Tree
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan *rich.Tree, 16)}
}

func (r *recorder) commit(t *rich.Tree) {
	r.mu.Lock()
	r.trees = append(r.trees, t)
	r.mu.Unlock()
	r.ch <- t
}

func (r *recorder) generations() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var gens []uint64
	for _, t := range r.trees {
		gens = append(gens, t.Generation)
	}
	return gens
}

func (r *recorder) last() *rich.Tree {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.trees) == 0 {
		return nil
	}
	return r.trees[len(r.trees)-1]
}

// countingCompiler annotates markdown and counts invocations.
type countingCompiler struct {
	calls atomic.Int32
	md    markdown.Renderer
}

func (c *countingCompiler) Compile(ctx context.Context, src string) (*rich.Node, error) {
	c.calls.Add(1)
	return c.md.Compile(ctx, src)
}

func svgRasterizer(calls *atomic.Int32) Rasterizer {
	return RasterizerFunc(func(_ context.Context, _ rich.Kind, src string) (rich.Raster, error) {
		calls.Add(1)
		if strings.Contains(src, "bad") {
			return rich.Raster{}, errors.New("syntax error")
		}
		return rich.Raster{Markup: "<svg/>", Width: 100, Height: 40}, nil
	})
}

func TestSchedulerFirstRenderImmediate(t *testing.T) {
	rec := newRecorder()
	comp := &countingCompiler{}
	s := New(comp, rec.commit, WithClock(clock.NewFake()))

	if err := s.Mutate("# hello"); err != nil {
		t.Fatal(err)
	}
	s.Wait()

	if diff := cmp.Diff([]uint64{1}, rec.generations()); diff != "" {
		t.Errorf("committed generations (-want +got):\n%s", diff)
	}
	if got := s.State(); got != Committed {
		t.Errorf("State() = %v, want committed", got)
	}
	if got := rec.last().Source; got != "# hello" {
		t.Errorf("committed source = %q", got)
	}
}

// TestSchedulerDebounceCoalesces verifies that mutations inside the debounce
// window produce a single render of the last text.
func TestSchedulerDebounceCoalesces(t *testing.T) {
	rec := newRecorder()
	comp := &countingCompiler{}
	clk := clock.NewFake()
	s := New(comp, rec.commit, WithClock(clk))

	s.Mutate("# hi")
	s.Wait()

	s.Mutate("# hi!")
	clk.Advance(100 * time.Millisecond)
	s.Mutate("# hi!!")
	if got := s.State(); got != Pending {
		t.Fatalf("State() = %v, want pending", got)
	}
	clk.Advance(DefaultDebounce - time.Millisecond)
	if got := comp.calls.Load(); got != 1 {
		t.Fatalf("rendered before the quiet period elapsed: %d calls", got)
	}
	clk.Advance(time.Millisecond)
	s.Wait()

	if got := comp.calls.Load(); got != 2 {
		t.Errorf("compiler calls = %d, want 2", got)
	}
	if diff := cmp.Diff([]uint64{1, 2}, rec.generations()); diff != "" {
		t.Errorf("committed generations (-want +got):\n%s", diff)
	}
	if got := rec.last().Source; got != "# hi!!" {
		t.Errorf("committed source = %q", got)
	}
	if !rec.trees[0].Large || rec.last().Large {
		t.Errorf("large marks = %v, %v; want true, false", rec.trees[0].Large, rec.last().Large)
	}
}

func TestSchedulerLargeEditImmediate(t *testing.T) {
	rec := newRecorder()
	comp := &countingCompiler{}
	clk := clock.NewFake()
	s := New(comp, rec.commit, WithClock(clk))

	s.Mutate("short")
	s.Wait()
	s.Mutate(strings.Repeat("long document ", 10))
	s.Wait()

	if got := comp.calls.Load(); got != 2 {
		t.Errorf("compiler calls = %d, want 2", got)
	}
	if clk.Pending() != 0 {
		t.Errorf("large edit armed the debounce timer")
	}
	if !rec.last().Large {
		t.Error("large edit not marked large")
	}
}

// TestSchedulerSmallEditDuringRender verifies that a small edit arriving
// while a pass is in flight waits for the debounce, the in-flight pass is
// discarded, and the debounced generation commits.
func TestSchedulerSmallEditDuringRender(t *testing.T) {
	release := make(chan struct{})
	rec := newRecorder()
	var md markdown.Renderer
	comp := CompilerFunc(func(ctx context.Context, src string) (*rich.Node, error) {
		if src == "slow" {
			<-release
		}
		return md.Compile(ctx, src)
	})
	clk := clock.NewFake()
	s := New(comp, rec.commit, WithClock(clk))

	s.Mutate("slow")
	if got := s.State(); got != Rendering {
		t.Fatalf("State() = %v, want rendering", got)
	}
	s.Mutate("slow!")
	if got := s.State(); got != Pending {
		t.Fatalf("State() after small edit = %v, want pending", got)
	}
	if got := s.Requested(); got != 2 {
		t.Errorf("Requested() = %d, want 2", got)
	}

	close(release)
	s.Wait()
	if got := s.State(); got != Pending {
		t.Errorf("State() after stale pass = %v, want pending", got)
	}
	if got := s.Committed(); got != 0 {
		t.Errorf("Committed() after stale pass = %d, want 0", got)
	}

	clk.Advance(DefaultDebounce)
	s.Wait()
	if diff := cmp.Diff([]uint64{2}, rec.generations()); diff != "" {
		t.Errorf("committed generations (-want +got):\n%s", diff)
	}
	if got := s.State(); got != Committed {
		t.Errorf("State() = %v, want committed", got)
	}
	last := rec.last()
	if last.Source != "slow!" || !last.Large {
		t.Errorf("committed %q large=%v; want the debounced text carrying the first render's mark", last.Source, last.Large)
	}
}

// TestSchedulerMonotonicCommit verifies that an older pass finishing after
// a newer one is discarded.
func TestSchedulerMonotonicCommit(t *testing.T) {
	release := make(chan struct{})
	rec := newRecorder()
	var md markdown.Renderer
	comp := CompilerFunc(func(ctx context.Context, src string) (*rich.Node, error) {
		if src == "slow" {
			<-release
		}
		return md.Compile(ctx, src)
	})
	s := New(comp, rec.commit, WithClock(clock.NewFake()))

	s.Mutate("slow")
	s.Mutate(strings.Repeat("fast ", 20))
	select {
	case tree := <-rec.ch:
		if tree.Generation != 2 {
			t.Fatalf("first commit is generation %d, want 2", tree.Generation)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("newer generation never committed")
	}
	close(release)
	s.Wait()

	if diff := cmp.Diff([]uint64{2}, rec.generations()); diff != "" {
		t.Errorf("committed generations (-want +got):\n%s", diff)
	}
	if s.Committed() != 2 {
		t.Errorf("Committed() = %d, want 2", s.Committed())
	}
}

const diagramDoc = "# T\n\n```mermaid\ngraph TD\nA-->B\n```\n"

// TestSchedulerDiagramRasterizedOnce verifies that an unchanged diagram is
// served from the cache by later generations.
func TestSchedulerDiagramRasterizedOnce(t *testing.T) {
	var calls atomic.Int32
	rec := newRecorder()
	clk := clock.NewFake()
	s := New(&countingCompiler{}, rec.commit, WithClock(clk), WithRasterizer(svgRasterizer(&calls)))

	s.Mutate(diagramDoc)
	s.Wait()
	s.Mutate(diagramDoc + "\nmore\n")
	clk.Advance(DefaultDebounce)
	s.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("rasterizer calls = %d, want 1", got)
	}
	if diff := cmp.Diff([]uint64{1, 2}, rec.generations()); diff != "" {
		t.Fatalf("committed generations (-want +got):\n%s", diff)
	}
	for _, tree := range rec.trees {
		d := tree.Find(func(n *rich.Node) bool { return n.Kind == rich.KindDiagram })
		if d == nil || d.Raster == nil || d.Raster.Height != 40 {
			t.Errorf("generation %d diagram = %+v", tree.Generation, d)
		}
	}
	if st := s.Cache().Stats(); st.Hits != 1 {
		t.Errorf("cache hits = %d, want 1", st.Hits)
	}
}

// TestSchedulerPlaceholderOnFailure verifies that a failing diagram becomes
// an error block and the rest of the tree still commits.
func TestSchedulerPlaceholderOnFailure(t *testing.T) {
	var calls atomic.Int32
	rec := newRecorder()
	s := New(&countingCompiler{}, rec.commit, WithClock(clock.NewFake()), WithRasterizer(svgRasterizer(&calls)))

	src := "intro\n\n```dot\nbad graph\n```\n\n```mermaid\ngraph LR\n```\n\noutro"
	s.Mutate(src)
	s.Wait()

	tree := rec.last()
	if tree == nil {
		t.Fatal("nothing committed")
	}
	var kinds []string
	for _, b := range tree.Blocks() {
		kinds = append(kinds, b.Kind.String())
	}
	want := []string{"paragraph", "error", "diagram-container", "paragraph"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("block kinds (-want +got):\n%s", diff)
	}
	bad := tree.Blocks()[1]
	if bad.Source != "bad graph" || !strings.Contains(bad.Err, "syntax error") {
		t.Errorf("placeholder = source %q err %q", bad.Source, bad.Err)
	}
	if bad.LineStart != 2 || bad.LineEnd != 4 {
		t.Errorf("placeholder anchors = %d-%d, want 2-4", bad.LineStart, bad.LineEnd)
	}
	if s.Cache().Len() != 1 {
		t.Errorf("cache holds %d entries, want only the good diagram", s.Cache().Len())
	}
}

func TestSchedulerDedupsIdenticalDiagrams(t *testing.T) {
	var calls atomic.Int32
	rec := newRecorder()
	s := New(&countingCompiler{}, rec.commit, WithClock(clock.NewFake()), WithRasterizer(svgRasterizer(&calls)))

	s.Mutate(diagramDoc + "\n" + diagramDoc)
	s.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("rasterizer calls = %d, want 1", got)
	}
	n := 0
	rec.last().Root.Walk(func(node *rich.Node, _ int) bool {
		if node.Kind == rich.KindDiagram && node.Raster != nil {
			n++
		}
		return true
	})
	if n != 2 {
		t.Errorf("%d diagrams rastered, want 2", n)
	}
}

func TestSchedulerNoRasterizer(t *testing.T) {
	rec := newRecorder()
	s := New(&countingCompiler{}, rec.commit, WithClock(clock.NewFake()))
	s.Mutate(diagramDoc)
	s.Wait()

	bad := rec.last().Blocks()[1]
	if bad.Kind != rich.KindError || !strings.Contains(bad.Err, ErrRasterizerUnavailable.Error()) {
		t.Errorf("block = %v err %q", bad, bad.Err)
	}
}

func TestSchedulerFlushAndClose(t *testing.T) {
	rec := newRecorder()
	comp := &countingCompiler{}
	clk := clock.NewFake()
	s := New(comp, rec.commit, WithClock(clk))

	s.Mutate("a")
	s.Wait()
	s.Mutate("ab")
	s.Flush()
	s.Wait()
	if got := comp.calls.Load(); got != 2 {
		t.Fatalf("Flush did not render: %d calls", got)
	}

	s.Mutate("abc")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Second)
	if got := comp.calls.Load(); got != 2 {
		t.Errorf("pending render ran after Close: %d calls", got)
	}
	if err := s.Mutate("abcd"); !errors.Is(err, ErrClosed) {
		t.Errorf("Mutate after Close = %v, want ErrClosed", err)
	}
}

func TestRenderErrorUnwrap(t *testing.T) {
	err := error(&RenderError{Kind: rich.KindChart, Line: 4, Err: ErrRasterizerUnavailable})
	if !errors.Is(err, ErrRasterizerUnavailable) {
		t.Error("RenderError should unwrap to its cause")
	}
	if got := err.Error(); got != "render chart-container at line 5: render: rasterizer unavailable" {
		t.Errorf("Error() = %q", got)
	}
}
