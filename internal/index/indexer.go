// Package index orchestrates document ingestion: splitting, embedding,
// keyword extraction, and the final atomic write. All collaborator calls
// happen before the storage transaction opens, so a failed embedding or
// extraction aborts the ingestion with nothing persisted.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hakobune/bunko/internal/config"
	"github.com/hakobune/bunko/internal/embedding"
	"github.com/hakobune/bunko/internal/keyword"
	"github.com/hakobune/bunko/internal/models"
	"github.com/hakobune/bunko/internal/splitter"
	"github.com/hakobune/bunko/internal/storage"
)

// Indexer ingests documents into a project's store.
type Indexer struct {
	store     *storage.Store
	embedder  embedding.Embedder
	extractor keyword.Extractor
	cfg       *config.SearchConfig
	logger    *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Indexer) { i.logger = logger }
}

// NewIndexer creates an indexer over the given store and collaborators.
func NewIndexer(store *storage.Store, embedder embedding.Embedder, extractor keyword.Extractor, cfg *config.SearchConfig, opts ...Option) *Indexer {
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddDocument splits, embeds, and extracts keywords for content, then writes
// the document and all derived data in one transaction. Only markdown is
// accepted. The returned document carries its assigned id and chunk count.
func (i *Indexer) AddDocument(ctx context.Context, projectID, name, path, contentType, content string) (*models.Document, error) {
	if contentType != models.ContentTypeMarkdown {
		return nil, fmt.Errorf("%w: unsupported content type %q", models.ErrInvalidArgument, contentType)
	}
	if _, err := i.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	pieces, err := splitter.Split(content, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]*models.Chunk, 0, len(pieces))
	for seq, piece := range pieces {
		emb, err := i.embedder.Embed(ctx, piece.Text)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d of %q: %w", seq, name, err)
		}
		raw, err := i.extractor.Extract(ctx, piece.Text)
		if err != nil {
			return nil, fmt.Errorf("extract keywords for chunk %d of %q: %w", seq, name, err)
		}
		chunks = append(chunks, &models.Chunk{
			Seq:         seq,
			Content:     piece.Text,
			StartOffset: piece.StartOffset,
			Embedding:   emb,
			Keywords:    keyword.Normalize(raw),
		})
	}

	doc := &models.Document{
		Name:        name,
		Path:        path,
		ContentType: contentType,
		Content:     content,
	}
	if err := i.store.InsertDocument(ctx, projectID, doc, chunks); err != nil {
		return nil, err
	}
	i.logger.Info("document indexed",
		zap.String("project", projectID),
		zap.String("name", name),
		zap.Int64("document_id", doc.ID),
		zap.Int("chunks", len(chunks)))
	return doc, nil
}

// AddDocumentFile reads a markdown file and indexes it. The document name is
// the file's base name and the path is recorded for upsert-by-path.
func (i *Indexer) AddDocumentFile(ctx context.Context, projectID, path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrInvalidArgument, path, err)
	}
	return i.AddDocument(ctx, projectID, filepath.Base(path), path, models.ContentTypeMarkdown, string(data))
}

// RemoveDocument deletes a document and all its derived data.
func (i *Indexer) RemoveDocument(ctx context.Context, projectID string, docID int64) error {
	if err := i.store.DeleteDocument(ctx, projectID, docID); err != nil {
		return err
	}
	i.logger.Info("document removed",
		zap.String("project", projectID),
		zap.Int64("document_id", docID))
	return nil
}

// UpsertByPath replaces any document previously indexed from path with the
// file's current content, or indexes it fresh when the path is new.
func (i *Indexer) UpsertByPath(ctx context.Context, projectID, path string) (*models.Document, error) {
	if existing, err := i.store.DocumentByPath(ctx, projectID, path); err == nil {
		if err := i.store.DeleteDocument(ctx, projectID, existing.ID); err != nil {
			return nil, err
		}
	}
	return i.AddDocumentFile(ctx, projectID, path)
}

// RemoveByPath deletes the document indexed from path, if any. Unknown paths
// are not an error so watcher deletions stay idempotent.
func (i *Indexer) RemoveByPath(ctx context.Context, projectID, path string) error {
	existing, err := i.store.DocumentByPath(ctx, projectID, path)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}
	return i.RemoveDocument(ctx, projectID, existing.ID)
}
