package splitter

import (
	"errors"
	"strings"
	"testing"

	"github.com/hakobune/bunko/internal/models"
)

func stripWhitespace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestSplit_InvalidArguments(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		max     int
		overlap int
	}{
		{"zero max", "text", 0, 0},
		{"negative max", "text", -1, 0},
		{"negative overlap", "text", 100, -1},
		{"overlap equals max", "text", 100, 100},
		{"empty text", "", 100, 0},
		{"whitespace only", "  \n\t ", 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Split(tc.text, tc.max, tc.overlap)
			if !errors.Is(err, models.ErrSplit) {
				t.Errorf("expected ErrSplit, got %v", err)
			}
		})
	}
}

func TestSplit_SingleChunk(t *testing.T) {
	source := "# Title\n\nfirst paragraph\n\nsecond paragraph"
	chunks, err := Split(source, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].StartOffset != 0 {
		t.Errorf("expected offset 0, got %d", chunks[0].StartOffset)
	}
	if !strings.Contains(chunks[0].Text, "second paragraph") {
		t.Errorf("chunk missing content: %q", chunks[0].Text)
	}
}

func TestSplit_HeadingStartsNewChunk(t *testing.T) {
	source := "# First\n\nalpha body\n\n# Second\n\nbeta body"
	chunks, err := Split(source, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "# First") {
		t.Errorf("chunk 0 should start at first heading: %q", chunks[0].Text)
	}
	if !strings.HasPrefix(chunks[1].Text, "# Second") {
		t.Errorf("chunk 1 should start at second heading: %q", chunks[1].Text)
	}
}

func TestSplit_Reconstruction(t *testing.T) {
	source := "intro text before any heading\n\n# Section\n\n- item one\n- item two\n\n```go\nfunc main() {}\n```\n\n> quoted line\n\nclosing paragraph"
	chunks, err := Split(source, 50, 0)
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	if stripWhitespace(b.String()) != stripWhitespace(source) {
		t.Errorf("chunks do not reconstruct source\ngot:  %q\nwant: %q",
			stripWhitespace(b.String()), stripWhitespace(source))
	}
}

func TestSplit_OffsetsMonotonicAndAnchored(t *testing.T) {
	source := "# One\n\nbody of section one\n\n# Two\n\nbody of section two\n\n# Three\n\nbody of section three"
	chunks, err := Split(source, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	prev := -1
	for i, c := range chunks {
		if c.StartOffset <= prev {
			t.Errorf("chunk %d offset %d not increasing (prev %d)", i, c.StartOffset, prev)
		}
		prev = c.StartOffset
		firstLine := c.Text
		if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
			firstLine = firstLine[:idx]
		}
		at := strings.TrimLeft(source[c.StartOffset:], " \t\r\n")
		if !strings.HasPrefix(at, firstLine) {
			t.Errorf("chunk %d offset %d does not anchor %q", i, c.StartOffset, firstLine)
		}
	}
}

func TestSplit_HardCutOversizedBlock(t *testing.T) {
	source := strings.Repeat("a", 25)
	chunks, err := Split(source, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c.Text)); n > 10 {
			t.Errorf("chunk %d has %d runes, budget is 10", i, n)
		}
	}
}

func TestSplit_RuneBudgetMultibyte(t *testing.T) {
	source := strings.Repeat("あ", 15)
	chunks, err := Split(source, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if n := len([]rune(chunks[0].Text)); n != 10 {
		t.Errorf("expected 10 runes in first chunk, got %d", n)
	}
	if n := len([]rune(chunks[1].Text)); n != 5 {
		t.Errorf("expected 5 runes in second chunk, got %d", n)
	}
}

func TestSplit_Overlap(t *testing.T) {
	source := "# One\n\nfirst section body\n\n# Two\n\nsecond section body"
	base, err := Split(source, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(base) != 2 {
		t.Fatalf("expected 2 base chunks, got %d", len(base))
	}
	overlapped, err := Split(source, 1000, 5)
	if err != nil {
		t.Fatal(err)
	}
	if overlapped[0].Text != base[0].Text {
		t.Errorf("first chunk should not change: %q", overlapped[0].Text)
	}
	tail := []rune(base[0].Text)
	tail = tail[len(tail)-5:]
	want := string(tail) + "\n" + base[1].Text
	if overlapped[1].Text != want {
		t.Errorf("overlap mismatch\ngot:  %q\nwant: %q", overlapped[1].Text, want)
	}
	if overlapped[1].StartOffset != base[1].StartOffset {
		t.Errorf("overlap must not move offsets: got %d, want %d",
			overlapped[1].StartOffset, base[1].StartOffset)
	}
}

func TestSplit_FencedCodeBlockKeepsFence(t *testing.T) {
	source := "leading paragraph\n\n# Code\n\n```go\nfmt.Println(1)\n```"
	chunks, err := Split(source, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	joined := ""
	for _, c := range chunks {
		joined += c.Text
	}
	if !strings.Contains(joined, "```go") {
		t.Errorf("opening fence lost: %q", joined)
	}
}
