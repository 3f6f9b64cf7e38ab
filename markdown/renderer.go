package markdown

import (
	"context"
	"fmt"

	"github.com/rjkroege/markpane/rich"
)

// Renderer compiles markdown source into annotated block trees. The zero
// value is ready to use and safe for concurrent use.
type Renderer struct {
	// CodeStyle names the chroma style for fenced code; empty selects
	// DefaultCodeStyle.
	CodeStyle string
}

// Compile annotates source. A panic in a lexer is returned as an error
// instead of taking down the render pass.
func (r *Renderer) Compile(ctx context.Context, source string) (root *rich.Node, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			root, err = nil, fmt.Errorf("markdown: compile panicked: %v", p)
		}
	}()
	a := annotator{codeStyle: r.CodeStyle}
	if a.codeStyle == "" {
		a.codeStyle = DefaultCodeStyle
	}
	return a.annotate(source), nil
}
