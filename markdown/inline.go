package markdown

import (
	"image/color"
	"strings"

	"github.com/rjkroege/markpane/rich"
)

// InlineCodeBg is the background of `code` spans.
var InlineCodeBg = color.RGBA{R: 0xEE, G: 0xEE, B: 0xEE, A: 0xFF}

// emphasis delimiters, longest first so *** wins over ** and *.
var emphasis = []struct {
	delim string
	style rich.Style
}{
	{"***", rich.Style{Bold: true, Italic: true}},
	{"___", rich.Style{Bold: true, Italic: true}},
	{"**", rich.Style{Bold: true}},
	{"__", rich.Style{Bold: true}},
	{"~~", rich.Style{Strike: true}},
	{"*", rich.Style{Italic: true}},
	{"_", rich.Style{Italic: true}},
}

// parseInline renders inline formatting (emphasis, strong, code spans,
// links and inline images) within text to styled spans. When noLinks is
// set, link and image syntax is left literal; it is used for link labels.
func parseInline(text string, base rich.Style, noLinks bool) rich.Content {
	var out rich.Content
	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			out = out.Append(rich.Span{Text: plain.String(), Style: base})
			plain.Reset()
		}
	}

	i := 0
	for i < len(text) {
		c := text[i]

		// Backslash escape.
		if c == '\\' && i+1 < len(text) && strings.IndexByte("\\`*_[]()!#~|>", text[i+1]) >= 0 {
			plain.WriteByte(text[i+1])
			i += 2
			continue
		}

		// Image: ![alt](url)
		if !noLinks && c == '!' && i+1 < len(text) && text[i+1] == '[' {
			if alt, _, n, ok := linkAt(text[i+1:]); ok {
				flush()
				label := "[Image: " + alt + "]"
				if alt == "" {
					label = "[Image]"
				}
				out = out.Append(rich.Span{Text: label, Style: base.With(rich.Style{Fg: rich.LinkBlue})})
				i += 1 + n
				continue
			}
		}

		// Link: [text](url)
		if !noLinks && c == '[' {
			if label, _, n, ok := linkAt(text[i:]); ok {
				flush()
				for _, sp := range parseInline(label, base.With(rich.StyleLink), true) {
					out = out.Append(sp)
				}
				i += n
				continue
			}
		}

		// Code span: `text`
		if c == '`' {
			if end := strings.IndexByte(text[i+1:], '`'); end >= 0 {
				flush()
				s := base.With(rich.Style{Code: true, Bg: InlineCodeBg})
				out = out.Append(rich.Span{Text: text[i+1 : i+1+end], Style: s})
				i += end + 2
				continue
			}
		}

		if c == '*' || c == '~' || c == '_' && !intraword(text, i) {
			if n, ok := emphasisAt(text[i:], base, &out, flush); ok {
				i += n
				continue
			}
		}

		plain.WriteByte(c)
		i++
	}
	flush()
	return out
}

// emphasisAt renders an emphasis run at the start of text, returning the
// number of source bytes consumed.
func emphasisAt(text string, base rich.Style, out *rich.Content, flush func()) (int, bool) {
	for _, e := range emphasis {
		if !strings.HasPrefix(text, e.delim) {
			continue
		}
		end := strings.Index(text[len(e.delim):], e.delim)
		if end <= 0 {
			continue
		}
		inner := text[len(e.delim) : len(e.delim)+end]
		if strings.TrimSpace(inner) != inner {
			continue
		}
		flush()
		for _, sp := range parseInline(inner, base.With(e.style), false) {
			*out = out.Append(sp)
		}
		return 2*len(e.delim) + end, true
	}
	return 0, false
}

// intraword reports whether position i sits between two word characters,
// where underscores do not open emphasis.
func intraword(text string, i int) bool {
	return i > 0 && isWordByte(text[i-1])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// linkAt parses "[label](target ...)" at the start of text and returns the
// label, the target and the number of bytes consumed.
func linkAt(text string) (label, target string, n int, ok bool) {
	if !strings.HasPrefix(text, "[") {
		return "", "", 0, false
	}
	closeBracket := strings.IndexByte(text, ']')
	if closeBracket < 0 || closeBracket+1 >= len(text) || text[closeBracket+1] != '(' {
		return "", "", 0, false
	}
	closeParen := strings.IndexByte(text[closeBracket+2:], ')')
	if closeParen < 0 {
		return "", "", 0, false
	}
	label = text[1:closeBracket]
	target = strings.TrimSpace(text[closeBracket+2 : closeBracket+2+closeParen])
	if sp := strings.IndexAny(target, " \t"); sp >= 0 {
		target = target[:sp] // drop the optional "title"
	}
	return label, target, closeBracket + 2 + closeParen + 1, true
}
