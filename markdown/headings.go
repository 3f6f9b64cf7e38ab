package markdown

import "github.com/rjkroege/markpane/rich"

// Heading is a heading found in the source, with its rendered text.
type Heading struct {
	Line  int
	Level int
	Text  string
}

// Headings returns the headings of source in document order, including
// those nested in blockquotes. Fenced code is not searched.
func Headings(source string) []Heading {
	return HeadingsOf(Annotate(source))
}

// HeadingsOf returns the anchored headings of an annotated tree.
func HeadingsOf(root *rich.Node) []Heading {
	var hs []Heading
	root.Walk(func(n *rich.Node, _ int) bool {
		if n.Kind == rich.KindTOC {
			return false
		}
		if n.Kind == rich.KindHeading && n.Anchored() {
			hs = append(hs, Heading{Line: n.LineStart, Level: n.Level, Text: n.Text})
		}
		return true
	})
	return hs
}

// fillTOC gives every [TOC] block one unanchored entry per heading.
func fillTOC(root *rich.Node) {
	var tocs []*rich.Node
	root.Walk(func(n *rich.Node, _ int) bool {
		if n.Kind == rich.KindTOC {
			tocs = append(tocs, n)
		}
		return true
	})
	if len(tocs) == 0 {
		return
	}
	hs := HeadingsOf(root)
	for _, toc := range tocs {
		toc.Children = toc.Children[:0]
		for _, h := range hs {
			item := rich.NewUnanchored(rich.KindListItem)
			item.Level = h.Level
			item.Text = h.Text
			item.Content = rich.Plain(h.Text)
			toc.Children = append(toc.Children, item)
		}
	}
}
