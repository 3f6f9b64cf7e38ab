package scroll

import (
	"math"
	"testing"
	"time"

	"github.com/rjkroege/markpane/internal/clock"
	"github.com/rjkroege/markpane/rich"
)

type fakeEditor struct {
	vp         Viewport
	lineHeight float64
	manual     []bool
	sets       int
}

func (e *fakeEditor) Viewport() Viewport { return e.vp }
func (e *fakeEditor) SetScrollTop(top float64) {
	e.vp.Top = top
	e.sets++
}
func (e *fakeEditor) LineOffset(line float64) float64 { return line * e.lineHeight }
func (e *fakeEditor) SetManualScroll(on bool) { e.manual = append(e.manual, on) }

type flash struct {
	node *rich.Node
	d    time.Duration
}

type fakePreview struct {
	vp      Viewport
	flashes []flash
}

func (p *fakePreview) Viewport() Viewport { return p.vp }
func (p *fakePreview) SetScrollTop(top float64) { p.vp.Top = top }
func (p *fakePreview) Flash(n *rich.Node, d time.Duration) {
	p.flashes = append(p.flashes, flash{n, d})
}

func fixed(kind rich.Kind, start, end int, h float64, children ...*rich.Node) *rich.Node {
	n := rich.NewNode(kind, start, end)
	n.Height = h
	n.Children = children
	return n
}

// testIndex lays out a heading (line 0), a table spanning lines 10-40 and
// a paragraph at lines 42-43. Offsets: heading 0-40, table 50-650,
// paragraph 660-1000.
func testIndex() *rich.Index {
	root := rich.NewNode(rich.KindDocument, 0, 43)
	root.Children = []*rich.Node{
		fixed(rich.KindHeading, 0, 0, 40),
		fixed(rich.KindTable, 10, 40, 600),
		fixed(rich.KindParagraph, 42, 43, 340),
	}
	return rich.Layout(rich.NewTree(1, "", root), rich.LayoutOptions{Width: 80, LineHeight: 20, BlockGap: 10})
}

func newTestSync(mode Mode) (*Synchronizer, *fakeEditor, *fakePreview, *clock.Fake) {
	clk := clock.NewFake()
	ed := &fakeEditor{vp: Viewport{Height: 400, Content: 1200}, lineHeight: 20}
	pv := &fakePreview{vp: Viewport{Height: 500, Content: 1000}}
	return New(ed, pv, WithMode(mode), WithClock(clk)), ed, pv, clk
}

// TestPreviewScrolledFraction checks the half-way scenario: a 500px
// preview over 1000px of content scrolled to 250 puts a source pane with
// an 800px scroll range at 400.
func TestPreviewScrolledFraction(t *testing.T) {
	s, ed, pv, _ := newTestSync(ModeFraction)
	pv.vp.Top = 250
	if !s.PreviewScrolled(testIndex()) {
		t.Fatal("scroll ignored")
	}
	if ed.vp.Top != 400 {
		t.Errorf("editor top = %v, want 400", ed.vp.Top)
	}
}

// TestPreviewScrolledMonotonic verifies that scrolling the preview forward
// never moves the source pane backward, in either mode.
func TestPreviewScrolledMonotonic(t *testing.T) {
	for _, mode := range []Mode{ModeFraction, ModeAnchored} {
		t.Run(mode.String(), func(t *testing.T) {
			s, ed, pv, _ := newTestSync(mode)
			ix := testIndex()
			prev := -1.0
			for top := 0.0; top <= pv.vp.MaxScroll(); top += 5 {
				pv.vp.Top = top
				s.PreviewScrolled(ix)
				if ed.vp.Top < prev {
					t.Fatalf("preview %v: editor moved back to %v from %v", top, ed.vp.Top, prev)
				}
				prev = ed.vp.Top
			}
		})
	}
}

func TestPreviewScrolledAnchoredInterpolates(t *testing.T) {
	s, ed, pv, _ := newTestSync(ModeAnchored)
	pv.vp.Top = 350 // half way through the table
	s.PreviewScrolled(testIndex())
	if want := 25.5 * 20; math.Abs(ed.vp.Top-want) > 1e-9 {
		t.Errorf("editor top = %v, want %v (line 25.5)", ed.vp.Top, want)
	}
}

// TestGuardSuppressesEcho verifies that the preview scroll caused by a
// gutter click is not fed back into the source pane.
func TestGuardSuppressesEcho(t *testing.T) {
	s, ed, pv, clk := newTestSync(ModeFraction)
	ix := testIndex()

	if !s.GutterClicked(ix, 10, 0) {
		t.Fatal("gutter click ignored")
	}
	if s.Driving() != EditorSide {
		t.Fatalf("Driving() = %v", s.Driving())
	}
	if s.PreviewScrolled(ix) {
		t.Error("echo preview scroll should be dropped")
	}
	if ed.sets != 0 {
		t.Errorf("editor scrolled %d times by an echo", ed.sets)
	}

	clk.Advance(DefaultGuard)
	if s.Driving() != None {
		t.Fatalf("guard not released: %v", s.Driving())
	}
	pv.vp.Top = 100
	if !s.PreviewScrolled(ix) {
		t.Error("preview scroll after guard should apply")
	}
}

// TestGutterClickAligns checks that the block lands under the click and is
// flashed.
func TestGutterClickAligns(t *testing.T) {
	tests := []struct {
		line    int
		clickY  float64
		wantTop float64
		wantLn  int
	}{
		{0, 0, 0, 0},
		{10, 20, 30, 10},                      // table top at 50
		{25, 100, 50 + 600*15.0/31 - 100, 10}, // interpolated inside the table
		{41, 0, 500, 10},                      // gap line maps to the table bottom, clamped
		{42, 200, 460, 42},
	}
	for _, tt := range tests {
		s, _, pv, _ := newTestSync(ModeFraction)
		s.GutterClicked(testIndex(), tt.line, tt.clickY)
		if math.Abs(pv.vp.Top-tt.wantTop) > 1e-9 {
			t.Errorf("line %d: preview top = %v, want %v", tt.line, pv.vp.Top, tt.wantTop)
		}
		if len(pv.flashes) != 1 || pv.flashes[0].node.LineStart != tt.wantLn || pv.flashes[0].d != DefaultFlashDuration {
			t.Errorf("line %d: flashes = %+v", tt.line, pv.flashes)
		}
	}
}

// TestGutterClickBeforeFirstBlock ignores clicks on source lines that
// precede every rendered block.
func TestGutterClickBeforeFirstBlock(t *testing.T) {
	s, _, pv, _ := newTestSync(ModeFraction)
	root := rich.NewNode(rich.KindDocument, 0, 43)
	root.Children = []*rich.Node{
		fixed(rich.KindParagraph, 5, 8, 80),
		fixed(rich.KindParagraph, 10, 43, 600),
	}
	ix := rich.Layout(rich.NewTree(1, "", root), rich.LayoutOptions{Width: 80, LineHeight: 20, BlockGap: 10})
	pv.vp.Top = 120

	if s.GutterClicked(ix, 2, 0) {
		t.Fatal("click before the first block was handled")
	}
	if pv.vp.Top != 120 {
		t.Errorf("preview top = %v, want 120", pv.vp.Top)
	}
	if len(pv.flashes) != 0 {
		t.Errorf("flashes = %+v, want none", pv.flashes)
	}
	if s.Driving() != None {
		t.Errorf("Driving() = %v, want None", s.Driving())
	}
}

func TestPreviewClicked(t *testing.T) {
	s, ed, pv, _ := newTestSync(ModeFraction)
	pv.vp.Top = 300
	// 300+50 = 350 is inside the table, half way: line 10 + 0.5*31.
	line, ok := s.PreviewClicked(testIndex(), 50)
	if !ok || line != 25 {
		t.Fatalf("PreviewClicked = %d, %v; want 25", line, ok)
	}
	if want := 25.5*20 - 50; math.Abs(ed.vp.Top-want) > 1e-9 {
		t.Errorf("editor top = %v, want %v", ed.vp.Top, want)
	}
}

// TestFallbackFlips verifies that manual source scrolling follows the
// preview's scrollability as content changes.
func TestFallbackFlips(t *testing.T) {
	s, ed, pv, _ := newTestSync(ModeFraction)
	short := rich.Layout(rich.NewTree(1, "", fixed(rich.KindDocument, 0, 0, 0, fixed(rich.KindParagraph, 0, 0, 100))), rich.DefaultLayoutOptions())

	if !s.ContentChanged(short) {
		t.Fatal("short content should activate the fallback")
	}
	pv.vp.Content = 100
	if s.PreviewScrolled(short) {
		t.Error("preview sync should be suspended")
	}
	if !s.EditorScrolled() {
		t.Error("manual editor scroll should be accepted in fallback")
	}

	pv.vp.Content = 1000
	if s.ContentChanged(testIndex()) {
		t.Fatal("tall content should clear the fallback")
	}
	if s.EditorScrolled() {
		t.Error("editor scroll should be ignored while the preview drives")
	}
	s.ContentChanged(testIndex())
	if got := ed.manual; len(got) != 2 || !got[0] || got[1] {
		t.Errorf("SetManualScroll calls = %v, want [true false]", got)
	}
}

func TestViewport(t *testing.T) {
	v := Viewport{Top: 250, Height: 500, Content: 1000}
	if v.MaxScroll() != 500 || v.Fraction() != 0.5 || !v.Scrollable() {
		t.Errorf("viewport = max %v frac %v", v.MaxScroll(), v.Fraction())
	}
	if v.Clamp(900) != 500 || v.Clamp(-3) != 0 {
		t.Error("Clamp out of range")
	}
	fits := Viewport{Height: 500, Content: 500}
	if fits.Scrollable() || fits.Fraction() != 0 {
		t.Error("content equal to the viewport does not scroll")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeFraction, ModeAnchored} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m, got, err)
		}
	}
	if _, err := ParseMode("sideways"); err == nil {
		t.Error("unknown mode should fail")
	}
}
