package wind

import (
	"fmt"

	"github.com/rjkroege/markpane/rich"
)

// Snapshot is a committed tree and its layout. Snapshots are never
// modified; a commit or relayout publishes a new one.
type Snapshot struct {
	Tree  *rich.Tree
	Index *rich.Index
}

// Generation returns the render generation of the snapshot.
func (s *Snapshot) Generation() uint64 {
	if s == nil || s.Tree == nil {
		return 0
	}
	return s.Tree.Generation
}

// DiagramID names a diagram for persisting its pan/zoom state: the
// document path and the diagram's first source line, 1-based.
func DiagramID(path string, n *rich.Node) string {
	return fmt.Sprintf("%s#L%d", path, n.LineStart+1)
}
