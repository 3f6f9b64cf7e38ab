// Package scroll keeps the source pane and the rendered preview in visual
// correspondence.
//
// The preview drives: its scroll position is mapped to the source pane
// either by scroll fraction or through the node index. The source pane
// drives only through gutter clicks. A short-lived driving-side flag
// suppresses the echo scroll event each programmatic scroll produces.
package scroll

import (
	"fmt"
	"math"
)

// Viewport is the scroll geometry of a pane.
type Viewport struct {
	Top     float64 // scroll offset of the first visible pixel
	Height  float64 // visible height
	Content float64 // total content height
}

// MaxScroll returns the largest valid Top.
func (v Viewport) MaxScroll() float64 {
	return math.Max(0, v.Content-v.Height)
}

// Scrollable reports whether the content is taller than the viewport.
func (v Viewport) Scrollable() bool {
	return v.Content > v.Height
}

// Fraction returns Top as a fraction of MaxScroll, 0 when nothing scrolls.
func (v Viewport) Fraction() float64 {
	max := v.MaxScroll()
	if max == 0 {
		return 0
	}
	return clamp(v.Top/max, 0, 1)
}

// Clamp limits top to the valid scroll range.
func (v Viewport) Clamp(top float64) float64 {
	return clamp(top, 0, v.MaxScroll())
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}

// Mode selects how preview scrolling maps to the source pane.
type Mode int

const (
	// ModeFraction maps the preview's scroll fraction to the same fraction
	// of the source pane's scroll range.
	ModeFraction Mode = iota
	// ModeAnchored maps the source line displayed at the top of the
	// preview to the top of the source pane.
	ModeAnchored
)

func (m Mode) String() string {
	switch m {
	case ModeFraction:
		return "fraction"
	case ModeAnchored:
		return "anchored"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name as produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "fraction", "":
		return ModeFraction, nil
	case "anchored":
		return ModeAnchored, nil
	}
	return 0, fmt.Errorf("scroll: unknown sync mode %q", s)
}

// Side identifies the pane currently driving a synchronization.
type Side int

const (
	None Side = iota
	PreviewSide
	EditorSide
)
