package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rjkroege/markpane/rich"
)

func TestEditorInsert(t *testing.T) {
	e := newEditorPane("ab\ncd")
	e.setHeight(10)
	e.move(1, 0)
	e.insert("x\ny")

	if got, want := e.Source(), "ax\nyb\ncd"; got != want {
		t.Errorf("Source() = %q, want %q", got, want)
	}
	if e.cy != 1 || e.cx != 1 {
		t.Errorf("cursor = %d,%d, want 1,1", e.cy, e.cx)
	}
}

func TestEditorBackspace(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		dx, dy int
		want   string
	}{
		{"start", "ab\ncd", 0, 0, "ab\ncd"},
		{"rune", "aé\ncd", 2, 0, "a\ncd"},
		{"join", "ab\ncd", 0, 1, "abcd"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEditorPane(tc.text)
			e.setHeight(10)
			e.move(0, tc.dy)
			e.move(tc.dx, 0)
			e.backspace()
			if got := e.Source(); got != tc.want {
				t.Errorf("Source() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEditorOffsets(t *testing.T) {
	e := newEditorPane("one\ntwo\nthree")
	var got [][2]int
	for _, off := range []int{0, 3, 4, 9, 100} {
		l, c := e.posLocked(off)
		got = append(got, [2]int{l, c})
	}
	want := [][2]int{{0, 0}, {0, 3}, {1, 0}, {2, 1}, {2, 5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("posLocked mismatch (-want +got):\n%s", diff)
	}
	if got := e.offsetLocked(2, 1); got != 9 {
		t.Errorf("offsetLocked(2, 1) = %d, want 9", got)
	}
}

func TestEditorReveal(t *testing.T) {
	e := newEditorPane("0\n1\n2\n3\n4\n5\n6\n7\n8\n9")
	e.setHeight(4)
	e.Reveal(12, 13)
	first, last := e.VisibleLines()
	if first != 4 || last != 7 {
		t.Errorf("VisibleLines() = %d, %d, want 4, 7", first, last)
	}
	if !e.scrollBy(1) {
		t.Error("scrollBy refused with manual scrolling on")
	}
	e.SetManualScroll(false)
	if e.scrollBy(1) {
		t.Error("scrollBy applied with manual scrolling off")
	}
}

func TestTextOffset(t *testing.T) {
	rows := []rich.Row{
		{{Text: "hello", Nrune: 5, Wid: 5}},
		{{Text: "world", Nrune: 5, Wid: 5}},
	}
	tests := []struct {
		r, col int
		want   int
	}{
		{0, 0, 0},
		{0, 3, 3},
		{0, 9, 5},
		{1, 2, 8},
		{5, 0, 11},
	}
	for _, tc := range tests {
		if got := textOffset("hello world", rows, tc.r, tc.col); got != tc.want {
			t.Errorf("textOffset(%d, %d) = %d, want %d", tc.r, tc.col, got, tc.want)
		}
	}
}
