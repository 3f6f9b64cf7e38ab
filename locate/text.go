package locate

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isFullWidthTerminator reports CJK sentence punctuation, which ends a
// sentence wherever it appears.
func isFullWidthTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '…', '｡':
		return true
	}
	return false
}

// isTerminatorAt reports whether the rune at text[i] ends a sentence. Latin
// terminators count only before whitespace or the end of text, so decimals
// and abbreviations such as "e.g." mid-word do not split.
func isTerminatorAt(text string, i int) (bool, int) {
	r, size := utf8.DecodeRuneInString(text[i:])
	if isFullWidthTerminator(r) || r == '\n' {
		return true, size
	}
	switch r {
	case '.', '!', '?', ';':
		next := i + size
		if next >= len(text) {
			return true, size
		}
		nr, _ := utf8.DecodeRuneInString(text[next:])
		return unicode.IsSpace(nr), size
	}
	return false, size
}

// sentenceAround returns the sentence of text that contains the byte range
// [start, end), including its terminator.
func sentenceAround(text string, start, end int) string {
	if start < 0 || end > len(text) || start > end {
		return ""
	}
	from := 0
	for i := 0; i < start; {
		ok, size := isTerminatorAt(text, i)
		if ok {
			from = i + size
		}
		i += size
	}
	to := len(text)
	i := end
	if end > start {
		i = lastRuneStart(text, end)
	}
	for i < len(text) {
		ok, size := isTerminatorAt(text, i)
		if ok {
			to = i + size
			break
		}
		i += size
	}
	return strings.TrimSpace(text[from:to])
}

func lastRuneStart(text string, end int) int {
	_, size := utf8.DecodeLastRuneInString(text[:end])
	return end - size
}

// wordAt expands outward from offset to the nearest whitespace on both
// sides and returns the word and its start.
func wordAt(text string, offset int) (string, int) {
	if offset < 0 || offset > len(text) {
		return "", -1
	}
	start := offset
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsSpace(r) {
			break
		}
		start -= size
	}
	end := offset
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if unicode.IsSpace(r) {
			break
		}
		end += size
	}
	return text[start:end], start
}

// isMarkup reports runes that inline markdown syntax adds to the source but
// the rendered text does not show.
func isMarkup(r rune) bool {
	switch r {
	case '*', '_', '`', '~', '\\':
		return true
	}
	return false
}

// folded is text with whitespace runs collapsed to one space and markup
// runes dropped. pos maps each byte of text back to its source offset.
type folded struct {
	text string
	pos  []int
}

func fold(src string, base int) folded {
	var b strings.Builder
	pos := make([]int, 0, len(src))
	space := false
	for i, r := range src {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case isMarkup(r):
			continue
		}
		if space {
			b.WriteByte(' ')
			pos = append(pos, base+i)
			space = false
		}
		n := utf8.RuneLen(r)
		if n < 0 {
			n = 1 // invalid UTF-8 decodes as a one-byte RuneError
		}
		b.WriteString(src[i : i+n])
		for k := 0; k < n; k++ {
			pos = append(pos, base+i+k)
		}
	}
	return folded{text: b.String(), pos: pos}
}

// foldNeedle normalizes search text the same way as fold.
func foldNeedle(s string) string {
	return fold(s, 0).text
}

// find returns the source byte ranges of every occurrence of needle.
func (f folded) find(needle string) [][2]int {
	if needle == "" {
		return nil
	}
	var out [][2]int
	for from := 0; from <= len(f.text)-len(needle); {
		i := strings.Index(f.text[from:], needle)
		if i < 0 {
			break
		}
		i += from
		last := i + len(needle) - 1
		out = append(out, [2]int{f.pos[i], f.pos[last] + 1})
		from = i + 1
	}
	return out
}
