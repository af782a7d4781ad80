// Package keyword wraps the external keyword extraction service and maintains
// the normalization contract shared by the index and query sides.
package keyword

import (
	"context"
	"strings"
)

// Extractor produces salient keywords for a piece of text. The same extractor
// runs at indexing time and at query time so both sides share one vocabulary.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// Normalize lowercases, trims, and deduplicates keywords, preserving first
// occurrence order. This is the single normalization applied on both the
// index and query sides; the extractor LLM already returns discrete keywords,
// so equality only has to be case- and whitespace-stable.
func Normalize(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
