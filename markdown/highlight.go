package markdown

import (
	"image/color"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/rjkroege/markpane/rich"
)

// DefaultCodeStyle is the chroma style used for fenced code blocks.
const DefaultCodeStyle = "github"

// highlight tokenizes code with the lexer for lang and returns coloured
// spans. Unknown languages and lexer failures yield plain code spans.
func highlight(code, lang, styleName string) rich.Content {
	base := rich.StyleCode
	if code == "" {
		return nil
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		return rich.Content{{Text: code, Style: base}}
	}
	lexer = chroma.Coalesce(lexer)
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return rich.Content{{Text: code, Style: base}}
	}
	baseColour := style.Get(chroma.Text).Colour

	var out rich.Content
	for _, tok := range it.Tokens() {
		s := base
		entry := style.Get(tok.Type)
		if entry.Colour.IsSet() && entry.Colour != baseColour {
			s.Fg = color.RGBA{R: entry.Colour.Red(), G: entry.Colour.Green(), B: entry.Colour.Blue(), A: 0xFF}
		}
		s.Bold = entry.Bold == chroma.Yes
		s.Italic = entry.Italic == chroma.Yes
		out = out.Append(rich.Span{Text: tok.Value, Style: s})
	}
	// Lexers that ensure a trailing newline add one the source lacks.
	if n := len(out); n > 0 && !strings.HasSuffix(code, "\n") {
		out[n-1].Text = strings.TrimSuffix(out[n-1].Text, "\n")
		if out[n-1].Text == "" {
			out = out[:n-1]
		}
	}
	return out
}
