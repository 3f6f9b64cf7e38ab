package rich

import (
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Box represents a styled fragment of text positioned on a wrapped row.
// This is the layout model - produced by wrapping Spans to a column width.
type Box struct {
	Text  string
	Nrune int  // Rune count (-1 for newline boxes)
	Bc    rune // Box character: 0 for text, '\n' for newline
	Style Style
	Wid   int // Width in terminal cells
}

// IsNewline returns true if this is a newline box.
func (b *Box) IsNewline() bool {
	return b.Nrune < 0 && b.Bc == '\n'
}

// IsSpace returns true if the box holds only whitespace.
func (b *Box) IsSpace() bool {
	if b.Nrune <= 0 {
		return false
	}
	for _, r := range b.Text {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Row is one wrapped display line.
type Row []Box

// Width returns the total cell width of the row.
func (r Row) Width() int {
	w := 0
	for i := range r {
		w += r[i].Wid
	}
	return w
}

// contentToBoxes converts Content into word, space and newline boxes.
// Word boundaries let Wrap break rows between words.
func contentToBoxes(c Content) []Box {
	var boxes []Box
	for _, span := range c {
		if span.Text == "" {
			continue
		}
		boxes = appendSpanBoxes(boxes, span)
	}
	return boxes
}

// appendSpanBoxes appends boxes from a single span, splitting on newlines and
// on transitions between whitespace and non-whitespace.
func appendSpanBoxes(boxes []Box, span Span) []Box {
	text := span.Text
	start := 0
	emit := func(end int) {
		if end > start {
			s := text[start:end]
			boxes = append(boxes, Box{
				Text:  s,
				Nrune: utf8.RuneCountInString(s),
				Style: span.Style,
				Wid:   runewidth.StringWidth(s),
			})
		}
		start = end
	}
	prevSpace := false
	for i, r := range text {
		if r == '\n' {
			emit(i)
			boxes = append(boxes, Box{Nrune: -1, Bc: '\n', Style: span.Style})
			start = i + 1
			prevSpace = false
			continue
		}
		sp := unicode.IsSpace(r)
		if i > start && sp != prevSpace {
			emit(i)
		}
		prevSpace = sp
	}
	emit(len(text))
	return boxes
}

// Wrap lays Content out into rows no wider than width cells. Words wider
// than a row are split by cell. An empty Content yields a single empty row.
func Wrap(c Content, width int) []Row {
	if width < 1 {
		width = 1
	}
	rows := []Row{nil}
	cur := func() *Row { return &rows[len(rows)-1] }
	x := 0
	wrapped := false
	newRow := func(soft bool) {
		rows = append(rows, nil)
		x = 0
		wrapped = soft
	}
	for _, b := range contentToBoxes(c) {
		switch {
		case b.IsNewline():
			newRow(false)
		case b.IsSpace():
			if x == 0 && wrapped {
				continue
			}
			if x+b.Wid > width {
				newRow(true)
				continue
			}
			*cur() = append(*cur(), b)
			x += b.Wid
		case x+b.Wid <= width:
			*cur() = append(*cur(), b)
			x += b.Wid
		case b.Wid <= width:
			newRow(true)
			*cur() = append(*cur(), b)
			x = b.Wid
		default:
			for _, piece := range splitBox(b, width-x, width) {
				if x+piece.Wid > width {
					newRow(true)
				}
				*cur() = append(*cur(), piece)
				x += piece.Wid
			}
		}
	}
	return rows
}

// splitBox breaks an over-long word into pieces, the first fitting in first
// cells and the rest in width cells each.
func splitBox(b Box, first, width int) []Box {
	var out []Box
	limit := first
	if limit <= 0 {
		limit = width
	}
	piece := Box{Style: b.Style}
	for _, r := range b.Text {
		rw := runewidth.RuneWidth(r)
		if piece.Wid+rw > limit && piece.Nrune > 0 {
			out = append(out, piece)
			piece = Box{Style: b.Style}
			limit = width
		}
		piece.Text += string(r)
		piece.Nrune++
		piece.Wid += rw
	}
	if piece.Nrune > 0 {
		out = append(out, piece)
	}
	return out
}
