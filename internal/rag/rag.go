// Package rag is the top-level facade: project lifecycle plus per-project
// handles for document ingestion and search. Callers hold a RAG for the
// lifetime of the process and take Project handles as needed; handles stay
// valid until their project is removed.
package rag

import (
	"context"

	"go.uber.org/zap"

	"github.com/hakobune/bunko/internal/config"
	"github.com/hakobune/bunko/internal/embedding"
	"github.com/hakobune/bunko/internal/index"
	"github.com/hakobune/bunko/internal/keyword"
	"github.com/hakobune/bunko/internal/models"
	"github.com/hakobune/bunko/internal/search"
	"github.com/hakobune/bunko/internal/storage"
)

// RAG owns the store and the ingestion/retrieval machinery.
type RAG struct {
	store   *storage.Store
	indexer *index.Indexer
	engine  *search.Engine
	logger  *zap.Logger
}

// New creates a RAG rooted at cfg.Storage.DataDir using the given
// collaborators for embedding and keyword extraction.
func New(cfg *config.Config, embedder embedding.Embedder, extractor keyword.Extractor, logger *zap.Logger) (*RAG, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := storage.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	return &RAG{
		store:   store,
		indexer: index.NewIndexer(store, embedder, extractor, &cfg.Search, index.WithLogger(logger)),
		engine:  search.NewEngine(store, embedder, extractor, &cfg.Search, search.WithLogger(logger)),
		logger:  logger,
	}, nil
}

// CreateProject creates a project and returns a handle to it.
func (r *RAG) CreateProject(ctx context.Context, id, name, description string) (*Project, error) {
	proj, err := r.store.CreateProject(ctx, id, name, description)
	if err != nil {
		return nil, err
	}
	r.logger.Info("project created", zap.String("project", proj.ID), zap.String("name", proj.Name))
	return &Project{rag: r, meta: proj}, nil
}

// Project returns a handle to an existing project.
func (r *RAG) Project(ctx context.Context, id string) (*Project, error) {
	proj, err := r.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Project{rag: r, meta: proj}, nil
}

// Projects lists all projects.
func (r *RAG) Projects(ctx context.Context) ([]*models.Project, error) {
	return r.store.ListProjects(ctx)
}

// RemoveProject deletes a project and everything it owns. Handles to the
// project become invalid.
func (r *RAG) RemoveProject(id string) error {
	if err := r.store.DeleteProject(id); err != nil {
		return err
	}
	r.logger.Info("project removed", zap.String("project", id))
	return nil
}

// Indexer exposes the ingestion pipeline, for the watcher.
func (r *RAG) Indexer() *index.Indexer {
	return r.indexer
}

// Close releases all open project databases.
func (r *RAG) Close() error {
	return r.store.Close()
}

// Project is a handle scoped to one project.
type Project struct {
	rag  *RAG
	meta *models.Project
}

// Meta returns the project's metadata as of when the handle was taken.
func (p *Project) Meta() *models.Project {
	return p.meta
}

// AddDocumentText indexes markdown content under the given name.
func (p *Project) AddDocumentText(ctx context.Context, name, content string) (*models.Document, error) {
	return p.rag.indexer.AddDocument(ctx, p.meta.ID, name, "", models.ContentTypeMarkdown, content)
}

// AddDocument indexes a markdown file.
func (p *Project) AddDocument(ctx context.Context, path string) (*models.Document, error) {
	return p.rag.indexer.AddDocumentFile(ctx, p.meta.ID, path)
}

// RemoveDocument deletes a document and its derived data.
func (p *Project) RemoveDocument(ctx context.Context, docID int64) error {
	return p.rag.indexer.RemoveDocument(ctx, p.meta.ID, docID)
}

// Documents lists the project's documents.
func (p *Project) Documents(ctx context.Context) ([]*models.Document, error) {
	return p.rag.store.ListDocuments(ctx, p.meta.ID)
}

// Document returns one document with its content.
func (p *Project) Document(ctx context.Context, docID int64) (*models.Document, error) {
	return p.rag.store.GetDocument(ctx, p.meta.ID, docID)
}

// Chunks returns a document's chunks in ordinal order, for reconstruction.
func (p *Project) Chunks(ctx context.Context, docID int64) ([]*models.Chunk, error) {
	return p.rag.store.ChunksByDocument(ctx, p.meta.ID, docID)
}

// Search runs a query in the given mode. A k of 0 and a negative alpha fall
// back to configured defaults.
func (p *Project) Search(ctx context.Context, query, mode string, k int, alpha float64) (*models.SearchResponse, error) {
	return p.rag.engine.Search(ctx, p.meta.ID, query, mode, k, alpha)
}

// SearchByVector ranks chunks by embedding similarity to the query.
func (p *Project) SearchByVector(ctx context.Context, query string, k int) ([]*models.SearchResult, error) {
	return p.rag.engine.SearchByVector(ctx, p.meta.ID, query, k)
}

// SearchByKeyword ranks chunks by distinct query keyword overlap.
func (p *Project) SearchByKeyword(ctx context.Context, query string, k int) ([]*models.SearchResult, error) {
	return p.rag.engine.SearchByKeyword(ctx, p.meta.ID, query, k)
}

// SearchHybrid fuses the vector and keyword signals with weight alpha.
func (p *Project) SearchHybrid(ctx context.Context, query string, k int, alpha float64) ([]*models.SearchResult, error) {
	return p.rag.engine.SearchHybrid(ctx, p.meta.ID, query, k, alpha)
}
