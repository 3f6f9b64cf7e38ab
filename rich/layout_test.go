package rich

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func fixed(kind Kind, start, end int, h float64, children ...*Node) *Node {
	n := NewNode(kind, start, end)
	n.Height = h
	n.Children = children
	return n
}

// sampleTree is a paragraph (line 0), a table (lines 2-5, rows at 2, 4, 5)
// and a three-line paragraph (lines 7-9), with fixed heights.
func sampleTree() *Tree {
	root := NewNode(KindDocument, 0, 9)
	root.Children = []*Node{
		fixed(KindParagraph, 0, 0, 20),
		fixed(KindTable, 2, 5, 0,
			fixed(KindTableRow, 2, 2, 20),
			fixed(KindTableRow, 4, 4, 20),
			fixed(KindTableRow, 5, 5, 20),
		),
		fixed(KindParagraph, 7, 9, 60),
	}
	return NewTree(3, "", root)
}

func testLayoutOptions() LayoutOptions {
	return LayoutOptions{Width: 40, LineHeight: 20, BlockGap: 10, Indent: 2}
}

func TestLayoutPositions(t *testing.T) {
	ix := Layout(sampleTree(), testLayoutOptions())

	if ix.Generation() != 3 {
		t.Errorf("Generation() = %d, want 3", ix.Generation())
	}
	if ix.ContentHeight() != 160 {
		t.Errorf("ContentHeight() = %v, want 160", ix.ContentHeight())
	}

	type geom struct {
		Kind        string
		Start       int
		Top, Height float64
	}
	var got []geom
	for _, e := range ix.Leaves() {
		got = append(got, geom{e.Node.Kind.String(), e.LineStart(), e.Top, e.Height})
	}
	want := []geom{
		{"paragraph", 0, 0, 20},
		{"table-row", 2, 30, 20},
		{"table-row", 4, 50, 20},
		{"table-row", 5, 70, 20},
		{"paragraph", 7, 100, 60},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("leaves mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexLinePosAt(t *testing.T) {
	ix := Layout(sampleTree(), testLayoutOptions())
	tests := []struct {
		y    float64
		want float64
	}{
		{0, 0},
		{10, 0.5},
		{25, 1},    // gap after line 0
		{30, 2},    // first row
		{45, 2.75}, // inside single-line row
		{60, 4.5},
		{100, 7},
		{130, 8.5}, // interpolated inside lines 7-9
		{500, 10},  // past the end
	}
	for _, tt := range tests {
		got, ok := ix.LinePosAt(tt.y)
		if !ok || math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("LinePosAt(%v) = %v, %v; want %v", tt.y, got, ok, tt.want)
		}
	}
}

// TestIndexLinePosAtMonotonic verifies that scrolling forward through the
// preview never maps to an earlier source line.
func TestIndexLinePosAtMonotonic(t *testing.T) {
	ix := Layout(sampleTree(), testLayoutOptions())
	prev := -1.0
	for y := -10.0; y <= 200; y += 0.5 {
		got, ok := ix.LinePosAt(y)
		if !ok {
			t.Fatalf("LinePosAt(%v) failed", y)
		}
		if got < prev {
			t.Fatalf("LinePosAt(%v) = %v decreased from %v", y, got, prev)
		}
		prev = got
	}
}

func TestIndexOffsetOf(t *testing.T) {
	ix := Layout(sampleTree(), testLayoutOptions())
	tests := []struct {
		line      int
		wantY     float64
		wantStart int
	}{
		{0, 0, 0},
		{1, 20, 0},   // blank line after the paragraph maps to its bottom
		{3, 50, 2},   // separator row belongs to the row before it
		{4, 50, 4},
		{8, 120, 7},  // one third into lines 7-9
		{12, 160, 7}, // past the end
	}
	for _, tt := range tests {
		y, e, ok := ix.OffsetOf(tt.line)
		if !ok || math.Abs(y-tt.wantY) > 1e-9 || e.LineStart() != tt.wantStart {
			t.Errorf("OffsetOf(%d) = %v (node %d), %v; want %v (node %d)",
				tt.line, y, e.LineStart(), ok, tt.wantY, tt.wantStart)
		}
	}
}

// TestIndexLineBeforeFirstNode checks that source lines preceding the first
// anchored node, such as front matter, have no entry.
func TestIndexLineBeforeFirstNode(t *testing.T) {
	root := NewNode(KindDocument, 0, 9)
	root.Children = []*Node{
		fixed(KindParagraph, 4, 5, 40),
		fixed(KindParagraph, 7, 9, 60),
	}
	ix := Layout(NewTree(1, "", root), testLayoutOptions())

	for _, line := range []int{0, 3} {
		if e, ok := ix.EntryForLine(line); ok {
			t.Errorf("EntryForLine(%d) = node %d, want none", line, e.LineStart())
		}
		if _, _, ok := ix.OffsetOf(line); ok {
			t.Errorf("OffsetOf(%d) resolved, want none", line)
		}
	}
	if e, ok := ix.EntryForLine(4); !ok || e.LineStart() != 4 {
		t.Errorf("EntryForLine(4) = node %d, %v; want node 4", e.LineStart(), ok)
	}
	if e, ok := ix.EntryForLine(6); !ok || e.LineStart() != 4 {
		t.Errorf("EntryForLine(6) = node %d, %v; want node 4", e.LineStart(), ok)
	}
}

func TestIndexNearest(t *testing.T) {
	ix := Layout(sampleTree(), testLayoutOptions())
	tests := []struct {
		y         float64
		wantStart int
	}{
		{-5, 0},
		{14, 0},
		{16, 2},
		{95, 7},
		{1000, 7},
	}
	for _, tt := range tests {
		e, ok := ix.Nearest(tt.y)
		if !ok || e.LineStart() != tt.wantStart {
			t.Errorf("Nearest(%v) = line %d, %v; want %d", tt.y, e.LineStart(), ok, tt.wantStart)
		}
	}
}

func TestIndexSkipsUnanchored(t *testing.T) {
	toc := NewUnanchored(KindTOC)
	toc.Children = []*Node{NewUnanchored(KindListItem)}
	toc.Children[0].Height = 20
	root := NewNode(KindDocument, 0, 2)
	root.Children = []*Node{toc, fixed(KindParagraph, 2, 2, 20)}

	ix := Layout(NewTree(1, "", root), testLayoutOptions())
	if n := len(ix.Leaves()); n != 1 {
		t.Fatalf("len(Leaves()) = %d, want 1", n)
	}
	if _, ok := ix.Lookup(toc); !ok {
		t.Error("unanchored node should still be laid out")
	}
	if line, _ := ix.LineAt(0); line != 2 {
		t.Errorf("LineAt(0) = %d, want 2 (first anchored node)", line)
	}
}

func TestLayoutEstimatesHeights(t *testing.T) {
	para := NewNode(KindParagraph, 0, 0)
	para.Content = Plain("hello brave new world")
	h1 := NewNode(KindHeading, 2, 2)
	h1.Level = 1
	h1.Content = Plain("Title")
	code := NewNode(KindCodeBlock, 4, 7)
	code.Text = "a\nb\n"
	diagram := NewNode(KindDiagram, 9, 12)
	diagram.Raster = &Raster{Height: 123.4}

	root := NewNode(KindDocument, 0, 12)
	root.Children = []*Node{para, h1, code, diagram}
	ix := Layout(NewTree(1, "", root), LayoutOptions{Width: 11, LineHeight: 20})

	want := map[*Node]float64{para: 40, h1: 40, code: 40, diagram: 124}
	for n, h := range want {
		e, ok := ix.Lookup(n)
		if !ok || e.Height != h {
			t.Errorf("%v height = %v, want %v", n, e.Height, h)
		}
	}
}
