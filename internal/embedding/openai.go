package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/hakobune/bunko/internal/config"
	"github.com/hakobune/bunko/internal/models"
)

// OpenAIEmbedder calls an OpenAI-compatible embedding endpoint. The service
// is a collaborator: the core never retries internally, and every failure
// surfaces wrapped in ErrEmbeddingService so it aborts the enclosing
// document insertion.
type OpenAIEmbedder struct {
	impl       *embeddings.EmbedderImpl
	dimensions int
}

// NewOpenAIEmbedder creates an embedder from config. The API key is read
// from the environment variable named by cfg.APIKeyEnv.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: environment variable %s is not set", models.ErrEmbeddingService, cfg.APIKeyEnv)
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(apiKey),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingService, err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingService, err)
	}
	return &OpenAIEmbedder{impl: impl, dimensions: cfg.Dimensions}, nil
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingService, err)
	}
	return vec, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the underlying client is stateless HTTP.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
