package main

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/rjkroege/markpane/scroll"
)

// gutterWidth is the number of columns used for line numbers.
const gutterWidth = 5

// editorPane is a minimal line editor for the markdown source. Offsets are
// byte offsets into the joined text; columns are byte offsets into a line.
type editorPane struct {
	mu         sync.Mutex
	lines      []string
	cx, cy     int
	top        int
	height     int
	focus      bool
	manual     bool
	highlights map[uint64][2]int
	redraw     func()
}

func newEditorPane(text string) *editorPane {
	return &editorPane{
		lines:      strings.Split(text, "\n"),
		focus:      true,
		manual:     true,
		highlights: make(map[uint64][2]int),
		redraw:     func() {},
	}
}

func (e *editorPane) Viewport() scroll.Viewport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return scroll.Viewport{Top: float64(e.top), Height: float64(e.height), Content: float64(len(e.lines))}
}

func (e *editorPane) SetScrollTop(top float64) {
	e.mu.Lock()
	e.setTopLocked(int(math.Round(top)))
	e.mu.Unlock()
	e.redraw()
}

func (e *editorPane) setTopLocked(top int) {
	max := len(e.lines) - e.height
	if top > max {
		top = max
	}
	if top < 0 {
		top = 0
	}
	e.top = top
}

// LineOffset maps a source line to rows: one row per line.
func (e *editorPane) LineOffset(line float64) float64 { return line }

func (e *editorPane) SetManualScroll(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manual = on
}

func (e *editorPane) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.Join(e.lines, "\n")
}

func (e *editorPane) VisibleLines() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.top, e.top + e.height - 1
}

// Reveal moves the cursor to start and centres its line.
func (e *editorPane) Reveal(start, _ int) {
	e.mu.Lock()
	e.cy, e.cx = e.posLocked(start)
	e.setTopLocked(e.cy - e.height/2)
	e.mu.Unlock()
	e.redraw()
}

func (e *editorPane) AddHighlight(id uint64, start, end int) {
	e.mu.Lock()
	e.highlights[id] = [2]int{start, end}
	e.mu.Unlock()
	e.redraw()
}

func (e *editorPane) RemoveHighlight(id uint64) {
	e.mu.Lock()
	delete(e.highlights, id)
	e.mu.Unlock()
	e.redraw()
}

func (e *editorPane) HasFocus() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focus
}

func (e *editorPane) setFocus(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focus = on
}

func (e *editorPane) SetText(text string) {
	e.mu.Lock()
	e.lines = strings.Split(text, "\n")
	e.cy = min(e.cy, len(e.lines)-1)
	e.cx = min(e.cx, len(e.lines[e.cy]))
	e.setTopLocked(e.top)
	e.mu.Unlock()
	e.redraw()
}

// offsetLocked returns the byte offset of line, col.
func (e *editorPane) offsetLocked(line, col int) int {
	off := 0
	for i := 0; i < line && i < len(e.lines); i++ {
		off += len(e.lines[i]) + 1
	}
	return off + col
}

// posLocked returns the line and column of byte offset off.
func (e *editorPane) posLocked(off int) (int, int) {
	for i, l := range e.lines {
		if off <= len(l) {
			return i, off
		}
		off -= len(l) + 1
	}
	last := len(e.lines) - 1
	return last, len(e.lines[last])
}

// insert types s at the cursor.
func (e *editorPane) insert(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.lines[e.cy]
	parts := strings.Split(l[:e.cx]+s+l[e.cx:], "\n")
	tail := len(parts[len(parts)-1]) - len(l[e.cx:])
	e.lines = append(e.lines[:e.cy], append(parts, e.lines[e.cy+1:]...)...)
	e.cy += len(parts) - 1
	e.cx = tail
	e.followLocked()
}

// backspace deletes the rune before the cursor.
func (e *editorPane) backspace() {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.cx > 0:
		l := e.lines[e.cy]
		_, size := utf8.DecodeLastRuneInString(l[:e.cx])
		e.lines[e.cy] = l[:e.cx-size] + l[e.cx:]
		e.cx -= size
	case e.cy > 0:
		prev := e.lines[e.cy-1]
		e.lines[e.cy-1] = prev + e.lines[e.cy]
		e.lines = append(e.lines[:e.cy], e.lines[e.cy+1:]...)
		e.cy--
		e.cx = len(prev)
	}
	e.followLocked()
}

// move shifts the cursor by dx runes and dy lines.
func (e *editorPane) move(dx, dy int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dy != 0 {
		e.cy = max(0, min(len(e.lines)-1, e.cy+dy))
		e.cx = min(e.cx, len(e.lines[e.cy]))
		for e.cx > 0 && !utf8.RuneStart(e.lines[e.cy][e.cx]) {
			e.cx--
		}
	}
	l := e.lines[e.cy]
	for ; dx < 0 && e.cx > 0; dx++ {
		_, size := utf8.DecodeLastRuneInString(l[:e.cx])
		e.cx -= size
	}
	for ; dx > 0 && e.cx < len(l); dx-- {
		_, size := utf8.DecodeRuneInString(l[e.cx:])
		e.cx += size
	}
	e.followLocked()
}

// followLocked scrolls just enough to keep the cursor visible.
func (e *editorPane) followLocked() {
	if e.cy < e.top {
		e.setTopLocked(e.cy)
	} else if e.height > 0 && e.cy >= e.top+e.height {
		e.setTopLocked(e.cy - e.height + 1)
	}
}

// scrollBy scrolls by n lines when manual scrolling is enabled.
func (e *editorPane) scrollBy(n int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.manual {
		return false
	}
	e.setTopLocked(e.top + n)
	return true
}

// click places the cursor at screen cell x, y of the text area.
func (e *editorPane) click(x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cy = max(0, min(len(e.lines)-1, e.top+y))
	l := e.lines[e.cy]
	col, w := 0, 0
	for col < len(l) {
		r, size := utf8.DecodeRuneInString(l[col:])
		if w+runewidth.RuneWidth(r) > x {
			break
		}
		w += runewidth.RuneWidth(r)
		col += size
	}
	e.cx = col
}

func (e *editorPane) setHeight(h int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.height = h
	e.setTopLocked(e.top)
}

var (
	gutterStyle    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	highlightStyle = tcell.StyleDefault.Background(tcell.ColorYellow).Foreground(tcell.ColorBlack)
)

// draw paints the pane into the w by h cells at x0, y0.
func (e *editorPane) draw(s tcell.Screen, x0, y0, w, h int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	spans := make([][2]int, 0, len(e.highlights))
	for _, r := range e.highlights {
		spans = append(spans, r)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	lit := func(off int) bool {
		for _, r := range spans {
			if off >= r[0] && off < r[1] {
				return true
			}
		}
		return false
	}

	for row := 0; row < h; row++ {
		line := e.top + row
		if line >= len(e.lines) {
			break
		}
		drawString(s, x0, y0+row, gutterWidth, padLeft(line+1, gutterWidth-1), gutterStyle)
		base := e.offsetLocked(line, 0)
		x := x0 + gutterWidth
		for i, r := range e.lines[line] {
			if x >= x0+w {
				break
			}
			st := tcell.StyleDefault
			if lit(base + i) {
				st = highlightStyle
			}
			s.SetContent(x, y0+row, r, nil, st)
			x += runewidth.RuneWidth(r)
		}
	}
	if e.focus && e.cy >= e.top && e.cy < e.top+h {
		cx := x0 + gutterWidth + runewidth.StringWidth(e.lines[e.cy][:e.cx])
		s.ShowCursor(min(cx, x0+w-1), y0+e.cy-e.top)
	}
}
