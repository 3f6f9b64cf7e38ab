package locate

import "github.com/rjkroege/markpane/rich"

// Block is one block-level node of a flattened tree.
type Block struct {
	Node   *rich.Node
	Parent int // index of the enclosing block, -1 at top level
	Depth  int
}

// Flatten lists the blocks of t in document order with links to their
// enclosing blocks. The document root is not included.
func Flatten(t *rich.Tree) []Block {
	if t == nil || t.Root == nil {
		return nil
	}
	var out []Block
	var walk func(n *rich.Node, parent, depth int)
	walk = func(n *rich.Node, parent, depth int) {
		for _, c := range n.Children {
			out = append(out, Block{Node: c, Parent: parent, Depth: depth})
			walk(c, len(out)-1, depth+1)
		}
	}
	walk(t.Root, -1, 0)
	return out
}

// indexOf returns the position of n in blocks, or -1.
func indexOf(blocks []Block, n *rich.Node) int {
	for i, b := range blocks {
		if b.Node == n {
			return i
		}
	}
	return -1
}

// precedingHeading walks backward from blocks[i] to the nearest heading at
// or before it.
func precedingHeading(blocks []Block, i int) *rich.Node {
	for ; i >= 0; i-- {
		if n := blocks[i].Node; n.Kind == rich.KindHeading && n.Anchored() {
			return n
		}
	}
	return nil
}

// anchoredAncestor returns the nearest anchored block at or above blocks[i].
func anchoredAncestor(blocks []Block, i int) *rich.Node {
	for i >= 0 {
		if blocks[i].Node.Anchored() {
			return blocks[i].Node
		}
		i = blocks[i].Parent
	}
	return nil
}
