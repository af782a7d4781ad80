package keyword

import (
	"context"
	"strings"
)

// StaticExtractor is a deterministic extractor for tests: it returns the
// words of the text that appear in its vocabulary.
type StaticExtractor struct {
	vocabulary map[string]bool
}

// NewStaticExtractor returns an extractor recognizing only the given vocabulary.
func NewStaticExtractor(vocabulary ...string) *StaticExtractor {
	vocab := make(map[string]bool, len(vocabulary))
	for _, v := range vocabulary {
		vocab[strings.ToLower(v)] = true
	}
	return &StaticExtractor{vocabulary: vocab}
}

// Extract returns the vocabulary words present in text.
func (e *StaticExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	var out []string
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if e.vocabulary[f] {
			out = append(out, f)
		}
	}
	return out, nil
}

// FuncExtractor adapts a function to the Extractor interface, for tests that
// need to inject failures.
type FuncExtractor func(ctx context.Context, text string) ([]string, error)

// Extract calls the wrapped function.
func (f FuncExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	return f(ctx, text)
}
