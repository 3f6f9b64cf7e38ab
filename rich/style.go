package rich

import "image/color"

// Style holds the inline attributes of a span. A nil colour inherits the
// pane default.
type Style struct {
	Fg, Bg color.Color

	Bold   bool
	Italic bool
	Strike bool
	Code   bool
	Link   bool

	// Scale is the text size relative to body text. Layout gives scaled
	// rows extra height.
	Scale float64
}

// LinkBlue is the foreground of links and image labels.
var LinkBlue = color.RGBA{B: 238, A: 255}

// headingScale is the size of the first three heading levels. Deeper
// headings are body sized.
var headingScale = map[int]float64{1: 2, 2: 1.5, 3: 1.25}

// DefaultStyle returns the body text style.
func DefaultStyle() Style { return Style{Scale: 1} }

// HeadingStyle returns the style of a heading of the given level.
func HeadingStyle(level int) Style {
	s := Style{Bold: true, Scale: 1}
	if sc, ok := headingScale[level]; ok {
		s.Scale = sc
	}
	return s
}

var (
	StyleBold   = Style{Bold: true, Scale: 1}
	StyleItalic = Style{Italic: true, Scale: 1}
	StyleCode   = Style{Code: true, Scale: 1}
	StyleLink   = Style{Link: true, Fg: LinkBlue, Scale: 1}
)

// With returns s with the attributes set in o added. Colours of o replace
// those of s when present; the scale of s is kept.
func (s Style) With(o Style) Style {
	s.Bold = s.Bold || o.Bold
	s.Italic = s.Italic || o.Italic
	s.Strike = s.Strike || o.Strike
	s.Code = s.Code || o.Code
	s.Link = s.Link || o.Link
	if o.Fg != nil {
		s.Fg = o.Fg
	}
	if o.Bg != nil {
		s.Bg = o.Bg
	}
	return s
}
