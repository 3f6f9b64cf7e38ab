package rich

import (
	"math"
	"sort"
)

// Entry is the geometry of one laid-out node.
type Entry struct {
	Node   *Node
	Top    float64
	Height float64
	Depth  int
}

// Bottom returns the offset just past the node.
func (e Entry) Bottom() float64 { return e.Top + e.Height }

// LineStart returns the first source line of the node.
func (e Entry) LineStart() int { return e.Node.LineStart }

// LineEnd returns the last source line of the node.
func (e Entry) LineEnd() int { return e.Node.LineEnd }

// Index maps between vertical offsets in the rendered pane and source lines.
// It is built once per layout of a committed Tree and never mutated, so it
// can be queried without locks.
//
// Queries resolve against the anchored leaves: the innermost anchored
// blocks. Leaves are ordered by both offset and source line, which keeps
// offset->line and line->offset mappings monotonic.
type Index struct {
	gen     uint64
	entries []Entry
	leaves  []Entry
	byNode  map[*Node]int
	height  float64
}

func (ix *Index) finish() {
	ix.byNode = make(map[*Node]int, len(ix.entries))
	for i, e := range ix.entries {
		ix.byNode[e.Node] = i
		if !e.Node.Anchored() {
			continue
		}
		leaf := true
		for _, c := range e.Node.Children {
			if c.Anchored() {
				leaf = false
				break
			}
		}
		if leaf {
			ix.leaves = append(ix.leaves, e)
		}
	}
}

// Generation returns the render generation the index was built from.
func (ix *Index) Generation() uint64 { return ix.gen }

// ContentHeight returns the total laid-out height of the document.
func (ix *Index) ContentHeight() float64 { return ix.height }

// Entries returns every laid-out node in document order.
func (ix *Index) Entries() []Entry { return ix.entries }

// Leaves returns the anchored leaf entries in document order.
func (ix *Index) Leaves() []Entry { return ix.leaves }

// Lookup returns the geometry of n.
func (ix *Index) Lookup(n *Node) (Entry, bool) {
	if ix == nil || ix.byNode == nil {
		return Entry{}, false
	}
	i, ok := ix.byNode[n]
	if !ok {
		return Entry{}, false
	}
	return ix.entries[i], true
}

// Nearest returns the anchored leaf whose top edge is closest to y.
// Ties go to the earlier node.
func (ix *Index) Nearest(y float64) (Entry, bool) {
	if ix == nil || len(ix.leaves) == 0 {
		return Entry{}, false
	}
	i := sort.Search(len(ix.leaves), func(i int) bool { return ix.leaves[i].Top >= y })
	best := -1
	bestDist := math.Inf(1)
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(ix.leaves) {
			continue
		}
		if d := math.Abs(ix.leaves[j].Top - y); d < bestDist {
			best, bestDist = j, d
		}
	}
	return ix.leaves[best], true
}

// containing returns the index of the last leaf whose top is at or above y,
// or -1.
func (ix *Index) containing(y float64) int {
	return sort.Search(len(ix.leaves), func(i int) bool { return ix.leaves[i].Top > y }) - 1
}

// LinePosAt returns the fractional source line displayed at offset y.
// Inside a multi-line node the line is interpolated by the offset's
// position within the node's height; in the gap after a node it is the
// line following the node. The result never decreases as y grows.
func (ix *Index) LinePosAt(y float64) (float64, bool) {
	if ix == nil || len(ix.leaves) == 0 {
		return 0, false
	}
	i := ix.containing(y)
	if i < 0 {
		return float64(ix.leaves[0].LineStart()), true
	}
	e := ix.leaves[i]
	span := float64(e.Node.Span())
	if e.Height <= 0 || y >= e.Bottom() {
		return float64(e.LineEnd() + 1), true
	}
	frac := (y - e.Top) / e.Height
	return float64(e.LineStart()) + frac*span, true
}

// LineAt returns the source line displayed at offset y, clamped to the
// range of the node found there.
func (ix *Index) LineAt(y float64) (int, bool) {
	pos, ok := ix.LinePosAt(y)
	if !ok {
		return 0, false
	}
	return int(math.Floor(pos)), true
}

// EntryForLine returns the leaf whose source range is closest to line
// without starting after it. Lines before the first anchored node have no
// entry.
func (ix *Index) EntryForLine(line int) (Entry, bool) {
	if ix == nil || len(ix.leaves) == 0 {
		return Entry{}, false
	}
	i := sort.Search(len(ix.leaves), func(i int) bool { return ix.leaves[i].LineStart() > line }) - 1
	if i < 0 {
		return Entry{}, false
	}
	return ix.leaves[i], true
}

// OffsetOf returns the vertical offset at which source line is rendered,
// interpolating inside multi-line nodes. A line in the gap after a node maps
// to the node's bottom edge.
func (ix *Index) OffsetOf(line int) (float64, Entry, bool) {
	e, ok := ix.EntryForLine(line)
	if !ok {
		return 0, Entry{}, false
	}
	switch {
	case line <= e.LineStart():
		return e.Top, e, true
	case line > e.LineEnd():
		return e.Bottom(), e, true
	}
	frac := float64(line-e.LineStart()) / float64(e.Node.Span())
	return e.Top + frac*e.Height, e, true
}
