package rich

import (
	"math"
	"strings"
)

// LayoutOptions describe the geometry of the preview surface.
type LayoutOptions struct {
	Width      int     // columns available to text
	LineHeight float64 // pixels per text row
	BlockGap   float64 // vertical space between sibling blocks
	Indent     int     // columns consumed by each nesting level
}

// DefaultLayoutOptions returns options for an 80-column, 20px-per-row pane.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{Width: 80, LineHeight: 20, BlockGap: 10, Indent: 2}
}

func (o LayoutOptions) normalized() LayoutOptions {
	if o.Width < 1 {
		o.Width = 1
	}
	if o.LineHeight <= 0 {
		o.LineHeight = 1
	}
	if o.BlockGap < 0 {
		o.BlockGap = 0
	}
	if o.Indent < 0 {
		o.Indent = 0
	}
	return o
}

// Layout assigns a vertical position and height to every block of t and
// returns the resulting geometric index. Nodes with a known Height keep it;
// the rest are estimated by wrapping their text to the pane width.
func Layout(t *Tree, opts LayoutOptions) *Index {
	opts = opts.normalized()
	ix := &Index{}
	if t == nil || t.Root == nil {
		return ix
	}
	ix.gen = t.Generation
	y := 0.0
	for i, n := range t.Root.Children {
		if i > 0 {
			y += opts.BlockGap
		}
		y += place(ix, n, y, 0, opts)
	}
	ix.height = y
	ix.finish()
	return ix
}

// place lays out n at vertical offset top and returns its height.
func place(ix *Index, n *Node, top float64, depth int, opts LayoutOptions) float64 {
	slot := len(ix.entries)
	ix.entries = append(ix.entries, Entry{Node: n, Top: top, Depth: depth})

	var h float64
	if len(n.Children) > 0 {
		gap := opts.BlockGap
		if n.Kind == KindTable || n.Kind == KindTOC {
			gap = 0
		}
		y := top
		for i, c := range n.Children {
			if i > 0 {
				y += gap
			}
			y += place(ix, c, y, depth+1, opts)
		}
		h = y - top
		if n.Height > h {
			h = n.Height
		}
	} else {
		h = measure(n, depth, opts)
	}
	ix.entries[slot].Height = h
	return h
}

// measure returns the rendered height of a leaf node.
func measure(n *Node, depth int, opts LayoutOptions) float64 {
	if n.Height > 0 {
		return n.Height
	}
	width := opts.Width - depth*opts.Indent
	if width < 1 {
		width = 1
	}
	rows := func(c Content) float64 {
		return float64(len(Wrap(c, width)))
	}
	switch n.Kind {
	case KindHeading:
		scale := HeadingStyle(n.Level).Scale
		return rows(n.Content) * opts.LineHeight * scale
	case KindCodeBlock:
		return rows(Plain(strings.TrimSuffix(codeBody(n), "\n"))) * opts.LineHeight
	case KindDiagram, KindChart:
		if n.Raster != nil && n.Raster.Height > 0 {
			return math.Ceil(n.Raster.Height)
		}
		return rows(Plain(codeBody(n))) * opts.LineHeight
	case KindError:
		return (1 + rows(Plain(codeBody(n)))) * opts.LineHeight
	case KindImage, KindRule:
		return opts.LineHeight
	default:
		if len(n.Content) == 0 {
			return rows(Plain(n.Text)) * opts.LineHeight
		}
		return rows(n.Content) * opts.LineHeight
	}
}

// codeBody returns the lines of a fenced block without its fences.
func codeBody(n *Node) string {
	if n.Text != "" {
		return n.Text
	}
	return n.Source
}
