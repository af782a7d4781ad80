// Package splitter turns markdown text into an ordered sequence of
// retrievable chunks with position metadata.
package splitter

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/hakobune/bunko/internal/models"
)

// Chunk is a split unit: trimmed text plus the byte offset in the source
// where its non-overlapped content begins. Offsets are strictly increasing
// across the returned sequence.
type Chunk struct {
	Text        string
	StartOffset int
}

// unit is one top-level markdown block: heading, paragraph, list, code
// block, or quote. Units are the semantic boundaries chunks never cut
// through unless a single unit exceeds the size budget.
type unit struct {
	text    string
	start   int
	heading bool
}

// Split divides markdown text into chunks of at most maxChunkSize runes.
// Splits happen on block boundaries first; a heading always starts a new
// chunk; only a single block longer than the budget is hard-cut at rune
// boundaries. When overlap > 0, the trailing overlap runes of each chunk
// are prepended to the next one. Returns ErrSplit for invalid parameters
// or input that is empty after trimming.
func Split(text string, maxChunkSize, overlap int) ([]Chunk, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("%w: max chunk size must be positive, got %d", models.ErrSplit, maxChunkSize)
	}
	if overlap < 0 || overlap >= maxChunkSize {
		return nil, fmt.Errorf("%w: overlap %d out of range [0, %d)", models.ErrSplit, overlap, maxChunkSize)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: input text is empty", models.ErrSplit)
	}

	units := parseUnits(text)
	chunks := assemble(units, maxChunkSize)
	if overlap > 0 {
		chunks = applyOverlap(chunks, overlap)
	}
	return chunks, nil
}

// parseUnits parses the markdown and partitions the source into top-level
// block units. Every byte of the source belongs to exactly one unit, so
// concatenating unit texts reconstructs the document up to whitespace
// trimming between blocks.
func parseUnits(source string) []unit {
	src := []byte(source)
	doc := goldmark.New().Parser().Parse(gtext.NewReader(src))

	type anchor struct {
		offset  int
		heading bool
	}
	var anchors []anchor
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		off, ok := nodeAnchor(src, n)
		if !ok {
			// Marker-only blocks (thematic breaks, empty fences) carry no
			// text segments; they stay merged with the preceding unit.
			continue
		}
		anchors = append(anchors, anchor{offset: off, heading: n.Kind() == ast.KindHeading})
	}
	if len(anchors) == 0 {
		return []unit{{text: strings.TrimSpace(source), start: 0}}
	}
	// Leading bytes before the first anchored block belong to the first unit.
	anchors[0].offset = 0

	units := make([]unit, 0, len(anchors))
	for i, a := range anchors {
		end := len(src)
		if i+1 < len(anchors) {
			end = anchors[i+1].offset
		}
		trimmed := strings.TrimSpace(source[a.offset:end])
		if trimmed == "" {
			continue
		}
		units = append(units, unit{text: trimmed, start: a.offset, heading: a.heading})
	}
	return units
}

// nodeAnchor returns the byte offset of the first source line covered by the
// node's subtree. Scanning back to the line start keeps block markers
// ("#", ">", "-") inside the unit; fenced code blocks extend one line
// further to cover the opening fence, which goldmark excludes from Lines().
func nodeAnchor(src []byte, n ast.Node) (int, bool) {
	start, ok := firstSegmentStart(n)
	if !ok {
		return 0, false
	}
	off := lineStart(src, start)
	if n.Kind() == ast.KindFencedCodeBlock && off > 0 {
		off = lineStart(src, off-1)
	}
	return off, true
}

func firstSegmentStart(n ast.Node) (int, bool) {
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			return lines.At(0).Start, true
		}
	}
	min := -1
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if s, ok := firstSegmentStart(c); ok && (min < 0 || s < min) {
			min = s
		}
	}
	if min < 0 {
		return 0, false
	}
	return min, true
}

func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// assemble packs units into chunks of at most maxChunkSize runes. Headings
// flush the running chunk so a section always begins a fresh chunk.
func assemble(units []unit, maxChunkSize int) []Chunk {
	var (
		chunks   []Chunk
		buf      strings.Builder
		bufRunes int
		bufStart int
	)
	flush := func() {
		if bufRunes == 0 {
			return
		}
		chunks = append(chunks, Chunk{Text: buf.String(), StartOffset: bufStart})
		buf.Reset()
		bufRunes = 0
	}

	for _, u := range units {
		n := len([]rune(u.text))
		if n > maxChunkSize {
			flush()
			chunks = append(chunks, hardCut(u, maxChunkSize)...)
			continue
		}
		sep := 0
		if bufRunes > 0 {
			sep = 2 // "\n\n"
		}
		if u.heading || bufRunes+sep+n > maxChunkSize {
			flush()
		}
		if bufRunes == 0 {
			bufStart = u.start
		} else {
			buf.WriteString("\n\n")
			bufRunes += 2
		}
		buf.WriteString(u.text)
		bufRunes += n
	}
	flush()
	return chunks
}

// hardCut slices an oversized unit into rune windows of maxChunkSize.
// Offsets track the byte position of each window within the source.
func hardCut(u unit, maxChunkSize int) []Chunk {
	var chunks []Chunk
	runes := []rune(u.text)
	byteOff := u.start
	for i := 0; i < len(runes); i += maxChunkSize {
		end := i + maxChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := string(runes[i:end])
		trimmed := strings.TrimSpace(piece)
		if trimmed != "" {
			chunks = append(chunks, Chunk{Text: trimmed, StartOffset: byteOff})
		}
		byteOff += len(piece)
	}
	return chunks
}

// applyOverlap prepends the trailing overlap runes of each chunk's
// non-overlapped text to the following chunk. StartOffset keeps pointing at
// the non-overlapped content so ordinal ordering stays stable.
func applyOverlap(base []Chunk, overlap int) []Chunk {
	out := make([]Chunk, len(base))
	for i, c := range base {
		text := c.Text
		if i > 0 {
			prev := []rune(base[i-1].Text)
			if len(prev) > overlap {
				prev = prev[len(prev)-overlap:]
			}
			text = string(prev) + "\n" + text
		}
		out[i] = Chunk{Text: text, StartOffset: c.StartOffset}
	}
	return out
}
