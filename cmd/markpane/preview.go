package main

import (
	"fmt"
	"image/color"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/rjkroege/markpane/rich"
	"github.com/rjkroege/markpane/scroll"
)

// previewPane draws committed snapshots, one row per layout unit.
type previewPane struct {
	mu         sync.Mutex
	tree       *rich.Tree
	ix         *rich.Index
	top        float64
	height     int
	width      int
	indent     int
	flash      *rich.Node
	flashUntil time.Time
	flashFor   time.Duration
	redraw     func()
}

func newPreviewPane(indent int) *previewPane {
	return &previewPane{indent: indent, redraw: func() {}}
}

func (p *previewPane) Viewport() scroll.Viewport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewportLocked()
}

func (p *previewPane) viewportLocked() scroll.Viewport {
	vp := scroll.Viewport{Top: p.top, Height: float64(p.height)}
	if p.ix != nil {
		vp.Content = p.ix.ContentHeight()
	}
	return vp
}

func (p *previewPane) SetScrollTop(top float64) {
	p.mu.Lock()
	p.top = math.Max(0, math.Min(top, p.viewportLocked().MaxScroll()))
	p.mu.Unlock()
	p.redraw()
}

func (p *previewPane) Flash(n *rich.Node, d time.Duration) {
	p.mu.Lock()
	p.flash = n
	p.flashUntil = time.Now().Add(d)
	p.flashFor = d
	p.mu.Unlock()
	p.redraw()
	for i := 1; i <= flashSteps; i++ {
		time.AfterFunc(d*time.Duration(i)/flashSteps, p.redraw)
	}
}

func (p *previewPane) Replace(t *rich.Tree, ix *rich.Index) {
	p.mu.Lock()
	p.tree, p.ix = t, ix
	p.mu.Unlock()
	p.redraw()
}

// scrollBy moves the view n rows.
func (p *previewPane) scrollBy(n float64) {
	p.mu.Lock()
	top := p.top + n
	p.mu.Unlock()
	p.SetScrollTop(top)
}

func (p *previewPane) setSize(w, h int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width, p.height = w, h
}

// leaf reports whether e is drawn as text.
func leaf(e rich.Entry) bool {
	return len(e.Node.Children) == 0
}

// body returns the text drawn for a leaf.
func body(n *rich.Node, width int) rich.Content {
	switch n.Kind {
	case rich.KindRule:
		return rich.Plain(strings.Repeat("─", max(1, width)))
	case rich.KindImage:
		return rich.Content{{Text: "[Image: " + n.Text + "]", Style: rich.StyleLink}}
	case rich.KindDiagram, rich.KindChart:
		if n.Raster != nil {
			label := fmt.Sprintf("[%s %gx%g", n.Kind, n.Raster.Width, n.Raster.Height)
			if !n.Transform.IsZero() {
				label += fmt.Sprintf(" zoom %g", n.Transform.Zoom)
			}
			return rich.Plain(label + "]")
		}
		return rich.Plain(n.Source)
	case rich.KindError:
		return rich.Content{
			{Text: "! " + n.Err + "\n", Style: rich.Style{Fg: color.RGBA{R: 200, A: 255}, Bold: true, Scale: 1}},
			{Text: n.Text, Style: rich.StyleCode},
		}
	}
	if len(n.Content) > 0 {
		return n.Content
	}
	return rich.Plain(n.Text)
}

func tcellStyle(st rich.Style) tcell.Style {
	ts := tcell.StyleDefault
	if st.Fg != nil {
		ts = ts.Foreground(tcellColor(st.Fg))
	}
	if st.Bg != nil {
		ts = ts.Background(tcellColor(st.Bg))
	}
	return ts.Bold(st.Bold).Italic(st.Italic).StrikeThrough(st.Strike).Underline(st.Link)
}

func tcellColor(c color.Color) tcell.Color {
	r, g, b, _ := c.RGBA()
	return tcell.NewRGBColor(int32(r>>8), int32(g>>8), int32(b>>8))
}

// flashSteps is the number of repaints over which a flash fades out.
const flashSteps = 8

var flashRGB = [3]int32{0x00, 0x8b, 0x8b}

// flashColor returns the flash background with remaining of its duration
// left: dark cyan at 1, fading to black at 0.
func flashColor(remaining float64) tcell.Color {
	f := math.Max(0, math.Min(1, remaining))
	scale := func(c int32) int32 { return int32(math.Round(float64(c) * f)) }
	return tcell.NewRGBColor(scale(flashRGB[0]), scale(flashRGB[1]), scale(flashRGB[2]))
}

// flashRemaining returns the fraction of the current flash still to run.
func (p *previewPane) flashRemaining(now time.Time) float64 {
	if p.flash == nil || p.flashFor <= 0 || !now.Before(p.flashUntil) {
		return 0
	}
	return float64(p.flashUntil.Sub(now)) / float64(p.flashFor)
}

// draw paints the visible part of the snapshot into w by h cells at x0, y0.
func (p *previewPane) draw(s tcell.Screen, x0, y0, w, h int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ix == nil {
		drawString(s, x0, y0, w, "rendering…", gutterStyle)
		return
	}
	remaining := p.flashRemaining(time.Now())
	flashBg := flashColor(remaining)
	top := int(math.Round(p.top))
	for _, e := range p.ix.Entries() {
		if !leaf(e) || int(e.Bottom()) <= top || int(e.Top) >= top+h {
			continue
		}
		indent := e.Depth * p.indent
		width := max(1, p.width-indent)
		for r, row := range rich.Wrap(body(e.Node, width), width) {
			y := int(e.Top) + r - top
			if y < 0 || y >= h {
				continue
			}
			x := x0 + indent
			if e.Node.Kind == rich.KindListItem && r == 0 && indent >= 2 {
				s.SetContent(x-2, y0+y, '•', nil, tcell.StyleDefault)
			}
			for _, b := range row {
				st := tcellStyle(b.Style)
				if remaining > 0 && p.flash.Contains(e.Node.LineStart) {
					st = st.Background(flashBg)
				}
				for _, ch := range b.Text {
					if x >= x0+w {
						break
					}
					s.SetContent(x, y0+y, ch, nil, st)
					x += runewidth.RuneWidth(ch)
				}
			}
		}
	}
}

// hit returns the leaf drawn at row y and column x of the pane and the
// byte offset into its Text under that cell.
func (p *previewPane) hit(x, y int) (*rich.Node, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ix == nil {
		return nil, 0, false
	}
	abs := float64(y) + math.Round(p.top)
	for _, e := range p.ix.Entries() {
		if !leaf(e) || abs < e.Top || abs >= e.Bottom() {
			continue
		}
		indent := e.Depth * p.indent
		width := max(1, p.width-indent)
		rows := rich.Wrap(body(e.Node, width), width)
		return e.Node, textOffset(e.Node.Text, rows, int(abs-e.Top), x-indent), true
	}
	return nil, 0, false
}

// textOffset finds the byte offset in text of the cell at column col of
// wrapped row r. Rows drop the spaces they wrap at, so each box is located
// by searching forward in text.
func textOffset(text string, rows []rich.Row, r, col int) int {
	pos := 0
	for i, row := range rows {
		x := 0
		for _, b := range row {
			if b.Text == "" {
				continue
			}
			at := strings.Index(text[pos:], b.Text)
			if at < 0 {
				return min(pos, len(text))
			}
			start := pos + at
			if i == r && col < x+b.Wid {
				off := start
				for _, ch := range b.Text {
					cw := runewidth.RuneWidth(ch)
					if col < x+cw {
						return off
					}
					x += cw
					off += len(string(ch))
				}
				return off
			}
			x += b.Wid
			pos = start + len(b.Text)
		}
		if i == r {
			return min(pos, len(text))
		}
	}
	return len(text)
}
