package rich

import "fmt"

// Kind identifies the block-level type of a rendered node.
type Kind int

const (
	KindDocument Kind = iota
	KindParagraph
	KindHeading
	KindListItem
	KindTable
	KindTableRow
	KindBlockquote
	KindCodeBlock
	KindImage
	KindDiagram
	KindChart
	KindRule
	KindTOC
	KindError
)

var kindNames = [...]string{
	KindDocument:   "document",
	KindParagraph:  "paragraph",
	KindHeading:    "heading",
	KindListItem:   "list-item",
	KindTable:      "table",
	KindTableRow:   "table-row",
	KindBlockquote: "blockquote",
	KindCodeBlock:  "code-block",
	KindImage:      "image",
	KindDiagram:    "diagram-container",
	KindChart:      "chart-container",
	KindRule:       "rule",
	KindTOC:        "toc",
	KindError:      "error",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// SubRender reports whether nodes of this kind are produced by an external
// rasterizer after the block tree is built.
func (k Kind) SubRender() bool {
	return k == KindDiagram || k == KindChart
}

// Raster is the output of a diagram or chart rasterizer.
type Raster struct {
	Markup string  // vector markup (e.g. SVG)
	Width  float64 // intrinsic width in pixels, 0 if unknown
	Height float64 // intrinsic height in pixels, 0 if unknown
}

// Transform is the pan/zoom state of a rendered diagram.
type Transform struct {
	PanX float64
	PanY float64
	Zoom float64
}

// IsZero reports whether t is the identity transform left unset.
func (t Transform) IsZero() bool {
	return t == Transform{}
}

// Node is one block-level element of a render tree. LineStart and LineEnd
// are the inclusive source line range that produced it, or -1 when the node
// was synthesized and has no source.
type Node struct {
	Kind      Kind
	Level     int // heading level, 1-6
	LineStart int
	LineEnd   int

	// Height is the post-layout height in pixels. Zero means the height is
	// not known yet and layout estimates it from the text.
	Height float64

	Text    string  // rendered plain text
	Content Content // styled inline runs of Text
	Source  string  // raw source lines of the block
	Lang    string  // fence info string
	Src     string  // image target

	Raster    *Raster
	Transform Transform
	Err       string // rasterizer failure, set on KindError placeholders

	Children []*Node
}

// NewNode returns a node of the given kind anchored to [start, end].
func NewNode(kind Kind, start, end int) *Node {
	return &Node{Kind: kind, LineStart: start, LineEnd: end}
}

// NewUnanchored returns a node with no source range.
func NewUnanchored(kind Kind) *Node {
	return &Node{Kind: kind, LineStart: -1, LineEnd: -1}
}

// Anchored reports whether the node carries a usable source line range.
func (n *Node) Anchored() bool {
	return n != nil && n.LineStart >= 0 && n.LineEnd >= n.LineStart
}

// Contains reports whether line falls inside the node's source range.
func (n *Node) Contains(line int) bool {
	return n.Anchored() && line >= n.LineStart && line <= n.LineEnd
}

// Span returns the number of source lines the node covers.
func (n *Node) Span() int {
	if !n.Anchored() {
		return 0
	}
	return n.LineEnd - n.LineStart + 1
}

// Walk visits n and its descendants in document order. Returning false
// from fn skips the children of the visited node.
func (n *Node) Walk(fn func(n *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Clone returns a deep copy of the subtree rooted at n. If mapping is
// non-nil it records each original node against its copy.
func (n *Node) Clone(mapping map[*Node]*Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Content != nil {
		c.Content = append(Content(nil), n.Content...)
	}
	if n.Raster != nil {
		r := *n.Raster
		c.Raster = &r
	}
	c.Children = nil
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.Clone(mapping))
	}
	if mapping != nil {
		mapping[n] = &c
	}
	return &c
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v[%d:%d]", n.Kind, n.LineStart, n.LineEnd)
}
