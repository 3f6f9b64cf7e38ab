package markdown

import (
	"regexp"
	"strings"

	"github.com/rjkroege/markpane/rich"
)

// Annotate renders markdown source to a block tree in which every block
// carries the inclusive source line range that produced it. Synthesized
// blocks (the [TOC] table of contents) are unanchored. Annotate is a pure
// function of source.
func Annotate(source string) *rich.Node {
	return annotator{codeStyle: DefaultCodeStyle}.annotate(source)
}

type annotator struct {
	codeStyle string
}

func (a annotator) annotate(source string) *rich.Node {
	lines := splitLines(source)
	last := len(lines) - 1
	if last < 0 {
		last = 0
	}
	root := rich.NewNode(rich.KindDocument, 0, last)
	root.Source = source
	root.Children = a.scan(lines, 0)
	fillTOC(root)
	return root
}

// splitLines splits source on newlines, dropping carriage returns.
func splitLines(source string) []string {
	if source == "" {
		return nil
	}
	lines := strings.Split(source, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// scan splits lines into blocks. offset is the document line of lines[0];
// blockquote contents are scanned recursively with their own offset.
func (a annotator) scan(lines []string, offset int) []*rich.Node {
	var out []*rich.Node
	i := 0
	for i < len(lines) {
		line := lines[i]
		if isBlank(line) {
			i++
			continue
		}
		var n *rich.Node
		var next int
		switch {
		case isFenceOpen(line):
			n, next = a.fenced(lines, i)
		case isHeading(line):
			n, next = heading(lines, i), i+1
		case isRule(line):
			n, next = rich.NewNode(rich.KindRule, i, i), i+1
			n.Source = line
		case isTOC(line):
			n, next = rich.NewUnanchored(rich.KindTOC), i+1
			n.Source = line
		case isImageLine(line):
			n, next = image(line, i), i+1
		case isTableStart(lines, i):
			n, next = table(lines, i)
		case isQuote(line):
			n, next = a.quote(lines, i, offset)
		case isListItem(line):
			n, next = listItem(lines, i)
		case indentOf(line) >= 4:
			n, next = a.indentedCode(lines, i)
		default:
			n, next = paragraph(lines, i)
		}
		shift(n, offset)
		out = append(out, n)
		i = next
	}
	return out
}

// shift moves the anchors of n (not its children) by offset lines.
func shift(n *rich.Node, offset int) {
	if offset == 0 || !n.Anchored() {
		return
	}
	n.LineStart += offset
	n.LineEnd += offset
	if n.Kind == rich.KindTable {
		for _, row := range n.Children {
			row.LineStart += offset
			row.LineEnd += offset
		}
	}
}

func isBlank(line string) bool { return strings.TrimSpace(line) == "" }

// indentOf returns the width of the leading whitespace, with tab stops
// every four columns.
func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4 - n%4
		default:
			return n
		}
	}
	return n
}

// stripIndent removes up to n columns of leading whitespace.
func stripIndent(line string, n int) string {
	col := 0
	for i, r := range line {
		if col >= n {
			return line[i:]
		}
		switch r {
		case ' ':
			col++
		case '\t':
			col += 4 - col%4
		default:
			return line[i:]
		}
	}
	return ""
}

// startsBlock reports whether line interrupts a paragraph or list item.
func startsBlock(lines []string, i int) bool {
	line := lines[i]
	return isFenceOpen(line) || isHeading(line) || isRule(line) || isTOC(line) ||
		isQuote(line) || isListItem(line) || isTableStart(lines, i)
}

// Headings

func headingLevel(line string) (int, string) {
	if indentOf(line) > 3 {
		return 0, ""
	}
	t := strings.TrimLeft(line, " ")
	n := 0
	for n < len(t) && t[n] == '#' {
		n++
	}
	if n == 0 || n > 6 || n < len(t) && t[n] != ' ' && t[n] != '\t' {
		return 0, ""
	}
	text := strings.TrimSpace(t[n:])
	if trimmed := strings.TrimRight(text, "#"); trimmed != text && (trimmed == "" || strings.HasSuffix(trimmed, " ")) {
		text = strings.TrimSpace(trimmed)
	}
	return n, text
}

func isHeading(line string) bool {
	level, _ := headingLevel(line)
	return level > 0
}

func heading(lines []string, i int) *rich.Node {
	level, text := headingLevel(lines[i])
	return headingNode(level, text, lines[i], i, i)
}

func headingNode(level int, text, source string, start, end int) *rich.Node {
	n := rich.NewNode(rich.KindHeading, start, end)
	n.Level = level
	n.Content = parseInline(text, rich.HeadingStyle(level), false)
	n.Text = n.Content.String()
	n.Source = source
	return n
}

// setextLevel returns 1 for an === underline, 2 for --- and 0 otherwise.
func setextLevel(line string) int {
	if indentOf(line) > 3 {
		return 0
	}
	t := strings.TrimSpace(line)
	switch {
	case t == "":
		return 0
	case strings.Trim(t, "=") == "":
		return 1
	case strings.Trim(t, "-") == "":
		return 2
	}
	return 0
}

// Thematic breaks and synthesized blocks

func isRule(line string) bool {
	if indentOf(line) > 3 {
		return false
	}
	t := strings.TrimSpace(line)
	if len(t) < 3 || t[0] != '-' && t[0] != '*' && t[0] != '_' {
		return false
	}
	count := 0
	for i := 0; i < len(t); i++ {
		switch t[i] {
		case t[0]:
			count++
		case ' ', '\t':
		default:
			return false
		}
	}
	return count >= 3
}

func isTOC(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), "[toc]")
}

var imageLineRE = regexp.MustCompile(`^!\[([^\]]*)\]\(\s*([^\s)]+)(?:\s+"[^"]*")?\s*\)$`)

func isImageLine(line string) bool {
	return indentOf(line) < 4 && imageLineRE.MatchString(strings.TrimSpace(line))
}

func image(line string, i int) *rich.Node {
	m := imageLineRE.FindStringSubmatch(strings.TrimSpace(line))
	n := rich.NewNode(rich.KindImage, i, i)
	n.Text = m[1]
	n.Src = m[2]
	n.Source = line
	return n
}

// Fenced and indented code

type fence struct {
	char   byte
	n      int
	indent int
	info   string
}

func parseFence(line string) (fence, bool) {
	indent := indentOf(line)
	if indent > 3 {
		return fence{}, false
	}
	t := strings.TrimLeft(line, " ")
	if len(t) < 3 || t[0] != '`' && t[0] != '~' {
		return fence{}, false
	}
	n := 0
	for n < len(t) && t[n] == t[0] {
		n++
	}
	if n < 3 {
		return fence{}, false
	}
	info := strings.TrimSpace(t[n:])
	if t[0] == '`' && strings.Contains(info, "`") {
		return fence{}, false
	}
	return fence{char: t[0], n: n, indent: indent, info: info}, true
}

func isFenceOpen(line string) bool {
	_, ok := parseFence(line)
	return ok
}

func (f fence) closes(line string) bool {
	if indentOf(line) > 3 {
		return false
	}
	t := strings.TrimSpace(line)
	if len(t) < f.n {
		return false
	}
	for i := 0; i < len(t); i++ {
		if t[i] != f.char {
			return false
		}
	}
	return true
}

func (f fence) lang() string {
	fields := strings.Fields(f.info)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.Trim(fields[0], "{}."))
}

// fenceKind maps a fence language to the kind of block it renders as.
func fenceKind(lang string) rich.Kind {
	switch lang {
	case "mermaid", "dot", "graphviz", "diagram":
		return rich.KindDiagram
	case "chart", "vega", "vega-lite", "plot":
		return rich.KindChart
	}
	return rich.KindCodeBlock
}

// fenced scans a fenced block starting at lines[i]. An unclosed fence runs
// to the end of lines.
func (a annotator) fenced(lines []string, i int) (*rich.Node, int) {
	f, _ := parseFence(lines[i])
	j := i + 1
	for j < len(lines) && !f.closes(lines[j]) {
		j++
	}
	end := j
	if j == len(lines) {
		end = len(lines) - 1
	}
	body := make([]string, 0, j-i-1)
	for _, l := range lines[i+1 : j] {
		body = append(body, stripIndent(l, f.indent))
	}
	code := strings.Join(body, "\n")

	lang := f.lang()
	n := rich.NewNode(fenceKind(lang), i, end)
	n.Lang = lang
	n.Source = code
	if n.Kind == rich.KindCodeBlock {
		n.Text = code
		n.Content = highlight(code, lang, a.codeStyle)
	}
	return n, end + 1
}

func (a annotator) indentedCode(lines []string, i int) (*rich.Node, int) {
	j := i
	for j < len(lines) && (indentOf(lines[j]) >= 4 || isBlank(lines[j])) {
		j++
	}
	for j > i && isBlank(lines[j-1]) {
		j--
	}
	body := make([]string, 0, j-i)
	for _, l := range lines[i:j] {
		body = append(body, stripIndent(l, 4))
	}
	n := rich.NewNode(rich.KindCodeBlock, i, j-1)
	n.Text = strings.Join(body, "\n")
	n.Source = strings.Join(lines[i:j], "\n")
	n.Content = rich.Content{{Text: n.Text, Style: rich.StyleCode}}
	return n, j
}

// Tables

func tableCells(line string) ([]string, bool) {
	t := strings.TrimSpace(line)
	if !strings.Contains(t, "|") {
		return nil, false
	}
	t = strings.TrimPrefix(t, "|")
	t = strings.TrimSuffix(t, "|")
	cells := strings.Split(t, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells, true
}

func isTableSeparator(line string) bool {
	cells, ok := tableCells(line)
	if !ok {
		return false
	}
	for _, c := range cells {
		c = strings.TrimSuffix(strings.TrimPrefix(c, ":"), ":")
		if c == "" || strings.Trim(c, "-") != "" {
			return false
		}
	}
	return true
}

func isTableStart(lines []string, i int) bool {
	if indentOf(lines[i]) > 3 || i+1 >= len(lines) {
		return false
	}
	_, ok := tableCells(lines[i])
	return ok && isTableSeparator(lines[i+1])
}

// table scans a header row, a separator and the body rows that follow.
// Each row other than the separator becomes a table-row child.
func table(lines []string, i int) (*rich.Node, int) {
	j := i
	for j < len(lines) && !isBlank(lines[j]) {
		if _, ok := tableCells(lines[j]); !ok {
			break
		}
		j++
	}
	n := rich.NewNode(rich.KindTable, i, j-1)
	n.Source = strings.Join(lines[i:j], "\n")
	for k := i; k < j; k++ {
		if k == i+1 {
			continue
		}
		cells, _ := tableCells(lines[k])
		style := rich.DefaultStyle()
		if k == i {
			style = rich.StyleBold
		}
		row := rich.NewNode(rich.KindTableRow, k, k)
		for c, cell := range cells {
			if c > 0 {
				row.Content = row.Content.Append(rich.Span{Text: "  ", Style: style})
			}
			for _, sp := range parseInline(cell, style, false) {
				row.Content = row.Content.Append(sp)
			}
		}
		row.Text = row.Content.String()
		row.Source = lines[k]
		n.Children = append(n.Children, row)
	}
	return n, j
}

// Blockquotes

func quoteBody(line string) (string, bool) {
	if indentOf(line) > 3 {
		return "", false
	}
	t := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(t, ">") {
		return "", false
	}
	t = t[1:]
	return strings.TrimPrefix(t, " "), true
}

func isQuote(line string) bool {
	_, ok := quoteBody(line)
	return ok
}

// quote gathers consecutive '>' lines and scans their contents as a nested
// document anchored at the quote's first line.
func (a annotator) quote(lines []string, i, offset int) (*rich.Node, int) {
	var inner []string
	j := i
	for j < len(lines) {
		body, ok := quoteBody(lines[j])
		if !ok {
			break
		}
		inner = append(inner, body)
		j++
	}
	n := rich.NewNode(rich.KindBlockquote, i, j-1)
	n.Source = strings.Join(lines[i:j], "\n")
	n.Children = a.scan(inner, offset+i)
	return n, j
}

// List items

// listMarker parses a bullet or ordered list marker. It returns the
// indentation of the marker, the column where item text begins and the
// text after the marker.
func listMarker(line string) (indent, content int, text string, ok bool) {
	indent = indentOf(line)
	t := strings.TrimLeft(line, " \t")
	if t == "" {
		return 0, 0, "", false
	}
	i := 0
	switch t[0] {
	case '-', '*', '+':
		i = 1
	default:
		for i < len(t) && i < 9 && t[i] >= '0' && t[i] <= '9' {
			i++
		}
		if i == 0 || i >= len(t) || t[i] != '.' && t[i] != ')' {
			return 0, 0, "", false
		}
		i++
	}
	if i < len(t) && t[i] != ' ' && t[i] != '\t' {
		return 0, 0, "", false
	}
	rest := t[i:]
	text = strings.TrimLeft(rest, " \t")
	content = indent + i + len(rest) - len(text)
	if text == "" {
		content = indent + i + 1
	}
	return indent, content, text, true
}

func isListItem(line string) bool {
	_, _, _, ok := listMarker(line)
	return ok
}

// listItem scans one item: its marker line plus continuation lines. A
// nested item starts a new sibling with a deeper Level so that sibling
// ranges never overlap.
func listItem(lines []string, i int) (*rich.Node, int) {
	indent, content, text, _ := listMarker(lines[i])
	parts := []string{strings.TrimSpace(text)}
	j := i + 1
	for j < len(lines) {
		l := lines[j]
		if isBlank(l) {
			k := j
			for k < len(lines) && isBlank(lines[k]) {
				k++
			}
			if k < len(lines) && indentOf(lines[k]) >= content && !isListItem(lines[k]) {
				j = k
				continue
			}
			break
		}
		if isListItem(l) || indentOf(l) < content && startsBlock(lines, j) {
			break
		}
		parts = append(parts, strings.TrimSpace(l))
		j++
	}
	n := rich.NewNode(rich.KindListItem, i, j-1)
	n.Level = 1 + indent/2
	n.Content = parseInline(strings.Join(parts, " "), rich.DefaultStyle(), false)
	n.Text = n.Content.String()
	n.Source = strings.Join(lines[i:j], "\n")
	return n, j
}

// Paragraphs

// paragraph gathers lines up to a blank line or the start of another
// block. A trailing setext underline turns it into a heading.
func paragraph(lines []string, i int) (*rich.Node, int) {
	j := i + 1
	for j < len(lines) {
		l := lines[j]
		if level := setextLevel(l); level > 0 {
			text := joinTrimmed(lines[i:j])
			return headingNode(level, text, strings.Join(lines[i:j+1], "\n"), i, j), j + 1
		}
		if isBlank(l) || startsBlock(lines, j) {
			break
		}
		j++
	}
	n := rich.NewNode(rich.KindParagraph, i, j-1)
	n.Content = parseInline(joinTrimmed(lines[i:j]), rich.DefaultStyle(), false)
	n.Text = n.Content.String()
	n.Source = strings.Join(lines[i:j], "\n")
	return n, j
}

func joinTrimmed(lines []string) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = strings.TrimSpace(l)
	}
	return strings.Join(parts, " ")
}
