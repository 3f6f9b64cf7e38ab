package rich

import "strings"

// Span represents a run of text with uniform style.
// This is the input model - what inline markdown rendering produces.
type Span struct {
	Text  string
	Style Style
}

// Content is a sequence of styled spans making up one block's inline text.
type Content []Span

// Plain creates Content from unstyled text.
func Plain(text string) Content {
	if text == "" {
		return nil
	}
	return Content{{Text: text, Style: DefaultStyle()}}
}

// Len returns total rune count.
func (c Content) Len() int {
	n := 0
	for _, s := range c {
		n += len([]rune(s.Text))
	}
	return n
}

// String returns the concatenated text of all spans.
func (c Content) String() string {
	var sb strings.Builder
	for _, s := range c {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Append adds a span, merging it into the previous one when the styles match.
func (c Content) Append(s Span) Content {
	if s.Text == "" {
		return c
	}
	if n := len(c); n > 0 && c[n-1].Style == s.Style {
		c[n-1].Text += s.Text
		return c
	}
	return append(c, s)
}
