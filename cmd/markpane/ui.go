package main

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/rjkroege/markpane/locate"
	"github.com/rjkroege/markpane/scroll"
	"github.com/rjkroege/markpane/wind"
)

// redrawEvent asks the event loop to repaint.
type redrawEvent struct {
	tcell.EventTime
}

// resyncEvent carries file contents written by another program.
type resyncEvent struct {
	tcell.EventTime
	text string
}

// press is a button-1 press in the preview awaiting its release.
type press struct {
	x, y int
}

type ui struct {
	path    string
	log     *zap.Logger
	screen  tcell.Screen
	editor  *editorPane
	preview *previewPane
	win     *wind.Window

	split   int // first column of the preview
	rows    int // rows available to the panes
	pressed *press
	status  string
}

func newUI(path, text string, indent int, log *zap.Logger) (*ui, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.EnableMouse()
	u := &ui{
		path:    path,
		log:     log,
		screen:  s,
		editor:  newEditorPane(text),
		preview: newPreviewPane(indent),
	}
	u.editor.redraw = u.postRedraw
	u.preview.redraw = u.postRedraw
	return u, nil
}

func (u *ui) attach(w *wind.Window) {
	u.win = w
	u.resize()
	if err := w.Edited(u.editor.Source()); err != nil {
		u.log.Warn("first render", zap.Error(err))
	}
}

func (u *ui) fini() { u.screen.Fini() }

func (u *ui) postRedraw() {
	ev := &redrawEvent{}
	ev.SetEventNow()
	u.screen.PostEvent(ev)
}

func (u *ui) postResync(text string) {
	ev := &resyncEvent{text: text}
	ev.SetEventNow()
	u.screen.PostEvent(ev)
}

func (u *ui) resize() {
	w, h := u.screen.Size()
	u.split = w / 2
	u.rows = max(1, h-1)
	u.editor.setHeight(u.rows)
	u.preview.setSize(w-u.split-1, u.rows)
	u.win.SetWidth(w - u.split - 1)
}

// loop runs until the user quits.
func (u *ui) loop() error {
	u.draw()
	for {
		switch ev := u.screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			u.resize()
			u.screen.Sync()
		case *tcell.EventKey:
			if quit := u.key(ev); quit {
				return nil
			}
		case *tcell.EventMouse:
			u.mouse(ev)
		case *resyncEvent:
			if u.win.Resync(ev.text) {
				u.status = "reloaded from disk"
			}
		case *redrawEvent:
		}
		u.draw()
	}
}

func (u *ui) key(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyCtrlQ, tcell.KeyCtrlC:
		return true
	case tcell.KeyCtrlS:
		u.save()
		return false
	case tcell.KeyTab:
		u.editor.setFocus(!u.editor.HasFocus())
		return false
	case tcell.KeyCtrlG:
		sync := u.win.Synchronizer()
		next := scroll.ModeAnchored
		if sync.Mode() == scroll.ModeAnchored {
			next = scroll.ModeFraction
		}
		sync.SetMode(next)
		u.status = "sync: " + next.String()
		return false
	}
	if !u.editor.HasFocus() {
		u.previewKey(ev)
		return false
	}

	edited := true
	switch ev.Key() {
	case tcell.KeyRune:
		u.editor.insert(string(ev.Rune()))
	case tcell.KeyEnter:
		u.editor.insert("\n")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		u.editor.backspace()
	case tcell.KeyLeft:
		u.editor.move(-1, 0)
		edited = false
	case tcell.KeyRight:
		u.editor.move(1, 0)
		edited = false
	case tcell.KeyUp:
		u.editor.move(0, -1)
		edited = false
	case tcell.KeyDown:
		u.editor.move(0, 1)
		edited = false
	case tcell.KeyPgUp:
		u.editor.move(0, -u.rows)
		edited = false
	case tcell.KeyPgDn:
		u.editor.move(0, u.rows)
		edited = false
	default:
		edited = false
	}
	if edited {
		if err := u.win.Edited(u.editor.Source()); err != nil {
			u.log.Warn("edit", zap.Error(err))
		}
	}
	return false
}

func (u *ui) previewKey(ev *tcell.EventKey) {
	var delta float64
	switch ev.Key() {
	case tcell.KeyUp:
		delta = -1
	case tcell.KeyDown:
		delta = 1
	case tcell.KeyPgUp:
		delta = -float64(u.rows)
	case tcell.KeyPgDn:
		delta = float64(u.rows)
	case tcell.KeyHome:
		delta = -u.preview.Viewport().Top
	case tcell.KeyEnd:
		delta = u.preview.Viewport().MaxScroll()
	default:
		return
	}
	u.preview.scrollBy(delta)
	u.win.PreviewScrolled()
}

func (u *ui) mouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	if y >= u.rows {
		return
	}
	inPreview := x > u.split
	px := x - u.split - 1

	switch btn := ev.Buttons(); {
	case btn&tcell.WheelUp != 0, btn&tcell.WheelDown != 0:
		n := 3
		if btn&tcell.WheelUp != 0 {
			n = -3
		}
		if inPreview {
			u.preview.scrollBy(float64(n))
			u.win.PreviewScrolled()
		} else if u.win.EditorScrolled() {
			u.editor.scrollBy(n)
		}
	case btn&tcell.Button1 != 0:
		if inPreview {
			if u.pressed == nil {
				u.pressed = &press{px, y}
			}
			return
		}
		if x < gutterWidth {
			top, _ := u.editor.VisibleLines()
			u.win.GutterClicked(top+y, float64(y))
			return
		}
		u.editor.setFocus(true)
		u.editor.click(x-gutterWidth, y)
	case btn == tcell.ButtonNone && u.pressed != nil:
		start := *u.pressed
		u.pressed = nil
		if inPreview {
			u.release(start, press{px, y})
		}
	}
}

// release finishes a click or drag in the preview.
func (u *ui) release(from, to press) {
	n, a, ok := u.preview.hit(from.x, from.y)
	if !ok {
		return
	}
	if from == to {
		u.win.PreviewClicked(float64(from.y) + u.preview.Viewport().Top)
		if h, ok := u.win.PreviewWordClicked(locate.Click{Node: n, Offset: a}); ok {
			u.status = fmt.Sprintf("line %d", h.Line+1)
		}
		return
	}
	m, b, ok := u.preview.hit(to.x, to.y)
	if !ok || m != n {
		return
	}
	if a > b {
		a, b = b, a
	}
	if b < len(n.Text) {
		_, size := utf8.DecodeRuneInString(n.Text[b:])
		b += size
	}
	sel := locate.Selection{Node: n, Text: n.Text[a:b], Offset: a}
	if h, ok := u.win.PreviewSelected(sel); ok {
		u.status = fmt.Sprintf("line %d", h.Line+1)
	}
}

func (u *ui) save() {
	if err := os.WriteFile(u.path, []byte(u.editor.Source()), 0o644); err != nil {
		u.status = "save failed: " + err.Error()
		u.log.Error("save", zap.Error(err))
		return
	}
	u.status = "saved"
}

func (u *ui) draw() {
	s := u.screen
	s.Clear()
	s.HideCursor()
	w, h := s.Size()
	u.editor.draw(s, 0, 0, u.split, u.rows)
	for y := 0; y < u.rows; y++ {
		s.SetContent(u.split, y, '│', nil, gutterStyle)
	}
	u.preview.draw(s, u.split+1, 0, w-u.split-1, u.rows)

	focus := "preview"
	if u.editor.HasFocus() {
		focus = "editor"
	}
	line := fmt.Sprintf(" %s  [%s] sync:%s  %s", u.path, focus, u.win.Synchronizer().Mode(), u.status)
	drawString(s, 0, h-1, w, line, tcell.StyleDefault.Reverse(true))
	s.Show()
}

// drawString writes text at x, y, clipped to width cells.
func drawString(s tcell.Screen, x, y, width int, text string, st tcell.Style) {
	end := x + width
	for _, r := range text {
		if x >= end {
			return
		}
		s.SetContent(x, y, r, nil, st)
		x += runewidth.RuneWidth(r)
	}
}

func padLeft(n, width int) string {
	s := fmt.Sprint(n)
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
