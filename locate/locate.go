// Package locate maps a selection or click in the rendered preview back to
// a range of the markdown source and briefly highlights it there.
package locate

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/rjkroege/markpane/internal/clock"
	"github.com/rjkroege/markpane/internal/metrics"
	"github.com/rjkroege/markpane/markdown"
	"github.com/rjkroege/markpane/rich"
)

// DefaultHighlightDuration is how long a located range stays highlighted.
const DefaultHighlightDuration = 1500 * time.Millisecond

// Editor is the source pane as seen by the locator. Offsets are byte
// offsets into Source.
type Editor interface {
	Source() string
	// VisibleLines returns the first and last source lines in view.
	VisibleLines() (first, last int)
	// Reveal selects [start, end) and scrolls it to the centre of the view.
	Reveal(start, end int)
	AddHighlight(id uint64, start, end int)
	RemoveHighlight(id uint64)
}

// Highlight is a transient decoration over a located source range.
type Highlight struct {
	ID         uint64
	Start, End int // byte offsets, End exclusive
	Line       int
	Created    time.Time
}

// Selection is text selected in the preview. Node is the block the
// selection starts in and Offset the byte offset of the selection within
// Node.Text, or -1 when unknown.
type Selection struct {
	Node   *rich.Node
	Text   string
	Offset int
}

// Click is a click on rendered text at byte Offset of Node.Text.
type Click struct {
	Node   *rich.Node
	Offset int
}

// Option configures a Locator.
type Option func(*Locator)

// WithHighlightDuration sets how long a highlight lasts.
func WithHighlightDuration(d time.Duration) Option {
	return func(l *Locator) {
		if d > 0 {
			l.duration = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(l *Locator) { l.clock = c } }

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Locator) {
		if log != nil {
			l.log = log
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option { return func(l *Locator) { l.metrics = m } }

// Locator resolves preview selections to source ranges.
type Locator struct {
	editor   Editor
	duration time.Duration
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.Collector

	mu     sync.Mutex
	nextID uint64
	active map[uint64]Highlight
}

// New returns a Locator driving editor.
func New(editor Editor, opts ...Option) *Locator {
	l := &Locator{
		editor:   editor,
		duration: DefaultHighlightDuration,
		clock:    clock.Real(),
		log:      zap.NewNop(),
		active:   make(map[uint64]Highlight),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LocateSelection finds the source of sel and highlights exactly the
// selected text. The enclosing sentence only steers the search. It reports
// false, doing nothing, when no source text matches.
func (l *Locator) LocateSelection(t *rich.Tree, sel Selection) (Highlight, bool) {
	text := strings.TrimSpace(sel.Text)
	if text == "" {
		return Highlight{}, false
	}
	q := query{raw: text, sentence: text, focus: text}
	if sel.Node != nil {
		off := sel.Offset
		if off >= 0 && off+len(text) <= len(sel.Node.Text) {
			// Offset counts from the untrimmed selection.
			if i := strings.Index(sel.Node.Text[off:], text); i >= 0 {
				off += i
			}
		} else {
			off = strings.Index(sel.Node.Text, text)
		}
		if off >= 0 && off+len(text) <= len(sel.Node.Text) {
			q.sentence = sentenceAround(sel.Node.Text, off, off+len(text))
			q.focusAt = sentenceOffset(sel.Node.Text, q.sentence, off)
		}
	}
	return l.locate(t, sel.Node, q)
}

// LocateClick finds the source of the word under a click. Words of a single
// rune are ignored.
func (l *Locator) LocateClick(t *rich.Tree, c Click) (Highlight, bool) {
	if c.Node == nil {
		return Highlight{}, false
	}
	word, start := wordAt(c.Node.Text, c.Offset)
	if utf8.RuneCountInString(word) < 2 {
		return Highlight{}, false
	}
	sentence := sentenceAround(c.Node.Text, start, start+len(word))
	q := query{raw: word, sentence: sentence, focus: word}
	q.focusAt = sentenceOffset(c.Node.Text, sentence, start)
	return l.locate(t, c.Node, q)
}

// sentenceOffset returns how far off lies into the occurrence of sentence
// in text that contains it.
func sentenceOffset(text, sentence string, off int) int {
	limit := min(len(text), off+len(sentence))
	if i := strings.LastIndex(text[:limit], sentence); i >= 0 && i <= off {
		return off - i
	}
	return 0
}

// query is what the locator searches for. A sentence match is narrowed to
// its focus text, focusAt bytes into the rendered sentence.
type query struct {
	raw      string
	sentence string
	focus    string
	focusAt  int
}

func (l *Locator) locate(t *rich.Tree, node *rich.Node, q query) (Highlight, bool) {
	src := l.editor.Source()
	lines := lineStarts(src)

	var heading *rich.Node
	hint := -1
	if blocks := Flatten(t); node != nil {
		if i := indexOf(blocks, node); i >= 0 {
			heading = precedingHeading(blocks, i)
			if a := anchoredAncestor(blocks, i); a != nil {
				hint = a.LineStart
			}
		} else if node.Anchored() {
			hint = node.LineStart
		}
	}

	first, last := headingRange(src, heading, len(lines))
	if hint > first && hint <= last {
		first = hint
	}
	lo, hi := lines.span(first, last, len(src))
	region := fold(src[lo:hi], lo)

	var match [2]int
	found := false
	for _, needle := range []string{q.sentence, q.raw} {
		if m := region.find(foldNeedle(needle)); len(m) > 0 {
			match, found = m[0], true
			break
		}
	}
	if found && q.focus != "" && q.focus != q.sentence {
		match = narrow(src, match, q)
	}
	if !found {
		all := fold(src, 0).find(foldNeedle(q.raw))
		if len(all) == 0 {
			l.log.Debug("no source match", zap.String("text", q.raw))
			l.metrics.LocateMissed()
			return Highlight{}, false
		}
		vf, vl := l.editor.VisibleLines()
		match = closest(all, lines, float64(vf+vl)/2)
	}
	return l.highlight(match[0], match[1], lines.lineOf(match[0])), true
}

// headingRange returns the source lines owned by heading: from its line to
// the line before the next heading of the same or higher level. Without a
// heading that can be found in the source it is the whole document.
func headingRange(src string, heading *rich.Node, nlines int) (int, int) {
	first, last := 0, nlines-1
	if heading == nil {
		return first, last
	}
	hs := markdown.Headings(src)
	at := -1
	for i, h := range hs {
		if h.Text != heading.Text || h.Level != heading.Level {
			continue
		}
		if at < 0 || abs(h.Line-heading.LineStart) < abs(hs[at].Line-heading.LineStart) {
			at = i
		}
	}
	if at < 0 {
		return first, last
	}
	first = hs[at].Line
	for _, h := range hs[at+1:] {
		if h.Level <= hs[at].Level {
			last = h.Line - 1
			break
		}
	}
	return first, last
}

// narrow shrinks a sentence match to the occurrence of the focus word
// nearest its position in the rendered sentence.
func narrow(src string, m [2]int, q query) [2]int {
	words := fold(src[m[0]:m[1]], m[0]).find(foldNeedle(q.focus))
	if len(words) == 0 {
		return m
	}
	best := words[0]
	for _, w := range words[1:] {
		if abs(w[0]-m[0]-q.focusAt) < abs(best[0]-m[0]-q.focusAt) {
			best = w
		}
	}
	return best
}

func closest(ms [][2]int, lines lineIndex, centre float64) [2]int {
	best := ms[0]
	bestDist := -1.0
	for _, m := range ms {
		d := float64(lines.lineOf(m[0])) - centre
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

func (l *Locator) highlight(start, end, line int) Highlight {
	l.mu.Lock()
	l.nextID++
	h := Highlight{ID: l.nextID, Start: start, End: end, Line: line, Created: l.clock.Now()}
	l.active[h.ID] = h
	l.mu.Unlock()

	l.editor.Reveal(start, end)
	l.editor.AddHighlight(h.ID, start, end)
	l.metrics.Highlighted()
	l.clock.AfterFunc(l.duration, func() { l.clear(h.ID) })
	return h
}

func (l *Locator) clear(id uint64) {
	l.mu.Lock()
	_, ok := l.active[id]
	delete(l.active, id)
	l.mu.Unlock()
	if ok {
		l.editor.RemoveHighlight(id)
	}
}

// Active returns the highlights not yet cleared, oldest first.
func (l *Locator) Active() []Highlight {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Highlight, 0, len(l.active))
	for _, h := range l.active {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// lineIndex holds the byte offset at which each source line starts.
type lineIndex []int

func lineStarts(src string) lineIndex {
	li := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			li = append(li, i+1)
		}
	}
	return li
}

// lineOf returns the line containing byte offset off.
func (li lineIndex) lineOf(off int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > off }) - 1
}

// span returns the byte range covering lines first through last.
func (li lineIndex) span(first, last, size int) (int, int) {
	if first < 0 {
		first = 0
	}
	if first >= len(li) {
		return size, size
	}
	hi := size
	if last+1 < len(li) {
		hi = li[last+1]
	}
	return li[first], hi
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
