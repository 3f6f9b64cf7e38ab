package rich

import "strings"

// Tree is an immutable snapshot of one committed render generation.
// Readers hold a *Tree for the duration of a query; a commit replaces the
// reference, never the contents.
type Tree struct {
	Generation uint64
	Source     string
	Root       *Node
	// Large is set when the tree replaces the document rather than
	// editing it: the first render, or a render that includes an edit
	// above the large-edit threshold.
	Large bool
}

// NewTree wraps a rendered root for the given generation and source text.
func NewTree(gen uint64, source string, root *Node) *Tree {
	if root == nil {
		root = NewUnanchored(KindDocument)
	}
	return &Tree{Generation: gen, Source: source, Root: root}
}

// Lines returns the number of source lines the tree was rendered from.
func (t *Tree) Lines() int {
	if t == nil || t.Source == "" {
		return 0
	}
	return strings.Count(t.Source, "\n") + 1
}

// Blocks returns the document's top-level nodes.
func (t *Tree) Blocks() []*Node {
	if t == nil || t.Root == nil {
		return nil
	}
	return t.Root.Children
}

// Find returns the node in t for which pred holds, searching in document order.
func (t *Tree) Find(pred func(*Node) bool) *Node {
	if t == nil {
		return nil
	}
	var found *Node
	t.Root.Walk(func(n *Node, _ int) bool {
		if found != nil {
			return false
		}
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// WithHeights returns a copy of t in which each node listed in heights
// (by its identity in t) has its Height replaced. Nodes of t are not
// modified.
func (t *Tree) WithHeights(heights map[*Node]float64) *Tree {
	mapping := make(map[*Node]*Node)
	root := t.Root.Clone(mapping)
	for orig, h := range heights {
		if c, ok := mapping[orig]; ok {
			c.Height = h
		}
	}
	return &Tree{Generation: t.Generation, Source: t.Source, Root: root, Large: t.Large}
}

// CarryHeights copies measured heights from prev into next for blocks whose
// kind and source text are unchanged, so blocks that were measured
// asynchronously keep their size instead of collapsing to an estimate while
// they are measured again. next must not have been published yet. It
// returns the number of nodes updated.
func CarryHeights(prev, next *Tree) int {
	if prev == nil || next == nil || prev.Root == nil || next.Root == nil {
		return 0
	}
	type key struct {
		kind   Kind
		source string
	}
	measured := make(map[key][]float64)
	prev.Root.Walk(func(n *Node, _ int) bool {
		if n.Kind != KindDocument && n.Height > 0 {
			k := key{n.Kind, n.Source}
			measured[k] = append(measured[k], n.Height)
		}
		return true
	})
	if len(measured) == 0 {
		return 0
	}
	count := 0
	next.Root.Walk(func(n *Node, _ int) bool {
		if n.Kind == KindDocument || n.Height > 0 {
			return true
		}
		k := key{n.Kind, n.Source}
		if hs := measured[k]; len(hs) > 0 {
			n.Height = hs[0]
			measured[k] = hs[1:]
			count++
		}
		return true
	})
	return count
}
