package rich

import (
	"strings"
	"testing"
)

func rowText(rows []Row) []string {
	var out []string
	for _, r := range rows {
		var sb strings.Builder
		for _, b := range r {
			sb.WriteString(b.Text)
		}
		out = append(out, sb.String())
	}
	return out
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{
			name:  "empty",
			text:  "",
			width: 10,
			want:  []string{""},
		},
		{
			name:  "fits",
			text:  "hello world",
			width: 20,
			want:  []string{"hello world"},
		},
		{
			name:  "wraps between words",
			text:  "hello brave new world",
			width: 11,
			want:  []string{"hello brave", "new world"},
		},
		{
			name:  "hard newline keeps indentation",
			text:  "a\n  b",
			width: 10,
			want:  []string{"a", "  b"},
		},
		{
			name:  "long word split by cell",
			text:  "abcdefghij",
			width: 4,
			want:  []string{"abcd", "efgh", "ij"},
		},
		{
			name:  "wide runes",
			text:  "世界世界",
			width: 4,
			want:  []string{"世界", "世界"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rowText(Wrap(Plain(tt.text), tt.width))
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Wrap(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestBoxIsSpace(t *testing.T) {
	if !(&Box{Text: "  ", Nrune: 2}).IsSpace() {
		t.Error("spaces should be a space box")
	}
	if (&Box{Text: "a ", Nrune: 2}).IsSpace() {
		t.Error("mixed text is not a space box")
	}
	if (&Box{Nrune: -1, Bc: '\n'}).IsSpace() {
		t.Error("newline box is not a space box")
	}
}
