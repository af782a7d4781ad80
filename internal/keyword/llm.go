package keyword

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/hakobune/bunko/internal/config"
	"github.com/hakobune/bunko/internal/models"
)

const extractionPromptTemplate = `You are a keyword extraction component of a retrieval system.
Extract up to %d keywords that capture the essential topics of the user's text.
Always include the main subject of the text.
Respond strictly as a JSON object of the form {"keywords": ["keyword1", "keyword2"]} with no other output.`

// LLMExtractor extracts keywords through an OpenAI-compatible chat completion
// with a fixed extraction prompt. Failures wrap ErrExtractionService; the core
// never retries, so a failed call aborts the enclosing document insertion.
type LLMExtractor struct {
	llm         *openai.LLM
	maxKeywords int
}

// NewLLMExtractor creates an extractor from config. The API key is read from
// the environment variable named by cfg.APIKeyEnv.
func NewLLMExtractor(cfg *config.ExtractorConfig) (*LLMExtractor, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: environment variable %s is not set", models.ErrExtractionService, cfg.APIKeyEnv)
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(apiKey),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtractionService, err)
	}
	return &LLMExtractor{llm: llm, maxKeywords: cfg.MaxKeywords}, nil
}

// Extract returns raw keywords for text; callers apply Normalize.
func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, fmt.Sprintf(extractionPromptTemplate, e.maxKeywords)),
		llms.TextParts(schema.ChatMessageTypeHuman, text),
	}
	resp, err := e.llm.GenerateContent(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtractionService, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion returned no choices", models.ErrExtractionService)
	}
	keywords, err := parseKeywordJSON(resp.Choices[0].Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtractionService, err)
	}
	return keywords, nil
}

// parseKeywordJSON pulls the keywords array out of the model response,
// tolerating markdown code fences around the JSON object.
func parseKeywordJSON(content string) ([]string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in completion: %q", content)
	}
	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode keywords: %v", err)
	}
	return parsed.Keywords, nil
}
