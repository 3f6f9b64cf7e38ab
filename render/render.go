// Package render schedules render passes over a changing markdown source.
//
// A Scheduler debounces source mutations, compiles the source into an
// annotated block tree, rasterizes diagram and chart blocks in parallel and
// hands the finished tree to a commit function. Only the most recently
// requested generation is ever committed; older passes that finish late are
// dropped.
package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/rjkroege/markpane/rich"
)

// Compiler turns source text into an annotated block tree. It must be safe
// to call concurrently.
type Compiler interface {
	Compile(ctx context.Context, source string) (*rich.Node, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, source string) (*rich.Node, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, source string) (*rich.Node, error) {
	return f(ctx, source)
}

// Rasterizer renders the body of a diagram or chart block to vector markup.
type Rasterizer interface {
	Rasterize(ctx context.Context, kind rich.Kind, source string) (rich.Raster, error)
}

// RasterizerFunc adapts a function to the Rasterizer interface.
type RasterizerFunc func(ctx context.Context, kind rich.Kind, source string) (rich.Raster, error)

// Rasterize calls f.
func (f RasterizerFunc) Rasterize(ctx context.Context, kind rich.Kind, source string) (rich.Raster, error) {
	return f(ctx, kind, source)
}

var (
	// ErrClosed is returned by operations on a closed Scheduler.
	ErrClosed = errors.New("render: scheduler closed")

	// ErrRasterizerUnavailable means no rasterizer can serve the request:
	// the tool is not configured or not installed, or its breaker is open.
	ErrRasterizerUnavailable = errors.New("render: rasterizer unavailable")
)

// RenderError describes a failed sub-render.
type RenderError struct {
	Kind rich.Kind
	Line int // first source line of the block, -1 if unknown
	Err  error
}

func (e *RenderError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("render %v at line %d: %v", e.Kind, e.Line+1, e.Err)
	}
	return fmt.Sprintf("render %v: %v", e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// State is the scheduler's position in its render cycle.
type State int

const (
	Idle      State = iota // nothing scheduled or running
	Pending                // debounce timer armed
	Rendering              // a pass is in flight
	Committed              // the latest pass has been applied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Rendering:
		return "rendering"
	case Committed:
		return "committed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
