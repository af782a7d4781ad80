package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hakobune/bunko/internal/config"
	"github.com/hakobune/bunko/internal/embedding"
	"github.com/hakobune/bunko/internal/keyword"
	"github.com/hakobune/bunko/internal/models"
	"github.com/hakobune/bunko/internal/storage"
)

func testSearchConfig() *config.SearchConfig {
	return &config.SearchConfig{
		ChunkSize:       50,
		ChunkOverlap:    0,
		DefaultK:        10,
		HybridAlpha:     0.65,
		CandidateFactor: 2,
	}
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.CreateProject(context.Background(), "p1", "", ""); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestIndexer_AddDocument(t *testing.T) {
	store := newTestStore(t)
	idx := NewIndexer(store, embedding.NewMockEmbedder(8),
		keyword.NewStaticExtractor("kamakura"), testSearchConfig())
	ctx := context.Background()

	content := "# Kamakura\n\nnotes about kamakura\n\n# Edo\n\nnotes about edo"
	doc, err := idx.AddDocument(ctx, "p1", "history.md", "", models.ContentTypeMarkdown, content)
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID == 0 {
		t.Error("document id should be assigned")
	}
	if doc.ChunkCount < 2 {
		t.Errorf("expected at least 2 chunks, got %d", doc.ChunkCount)
	}

	chunks, err := store.ChunksByDocument(ctx, "p1", doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != doc.ChunkCount {
		t.Errorf("stored %d chunks, document says %d", len(chunks), doc.ChunkCount)
	}
	postings, err := store.PostingsFor(ctx, "p1", "kamakura")
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) == 0 {
		t.Error("expected kamakura postings")
	}
}

func TestIndexer_UnsupportedContentType(t *testing.T) {
	store := newTestStore(t)
	idx := NewIndexer(store, embedding.NewMockEmbedder(8),
		keyword.NewStaticExtractor(), testSearchConfig())

	_, err := idx.AddDocument(context.Background(), "p1", "doc.pdf", "", "pdf", "content")
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestIndexer_EmptyContent(t *testing.T) {
	store := newTestStore(t)
	idx := NewIndexer(store, embedding.NewMockEmbedder(8),
		keyword.NewStaticExtractor(), testSearchConfig())

	_, err := idx.AddDocument(context.Background(), "p1", "empty.md", "", models.ContentTypeMarkdown, "  \n ")
	if !errors.Is(err, models.ErrSplit) {
		t.Errorf("expected ErrSplit, got %v", err)
	}
}

func TestIndexer_ExtractionFailureLeavesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Fail on the second chunk: the first chunk's embedding and keywords are
	// already computed, but nothing may reach storage.
	calls := 0
	failing := keyword.FuncExtractor(func(ctx context.Context, text string) ([]string, error) {
		calls++
		if calls >= 2 {
			return nil, fmt.Errorf("%w: synthetic outage", models.ErrExtractionService)
		}
		return []string{"ok"}, nil
	})
	idx := NewIndexer(store, embedding.NewMockEmbedder(8), failing, testSearchConfig())

	content := "# One\n\nfirst section\n\n# Two\n\nsecond section"
	_, err := idx.AddDocument(ctx, "p1", "doc.md", "", models.ContentTypeMarkdown, content)
	if !errors.Is(err, models.ErrExtractionService) {
		t.Fatalf("expected ErrExtractionService, got %v", err)
	}

	if n, _ := store.CountDocuments(ctx, "p1"); n != 0 {
		t.Errorf("expected 0 documents after failed insert, got %d", n)
	}
	if n, _ := store.CountChunks(ctx, "p1"); n != 0 {
		t.Errorf("expected 0 chunks after failed insert, got %d", n)
	}
	if postings, _ := store.PostingsFor(ctx, "p1", "ok"); len(postings) != 0 {
		t.Errorf("expected no postings after failed insert, got %d", len(postings))
	}
}

func TestIndexer_RemoveDocument(t *testing.T) {
	store := newTestStore(t)
	idx := NewIndexer(store, embedding.NewMockEmbedder(8),
		keyword.NewStaticExtractor(), testSearchConfig())
	ctx := context.Background()

	doc, err := idx.AddDocument(ctx, "p1", "doc.md", "", models.ContentTypeMarkdown, "some markdown text")
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.RemoveDocument(ctx, "p1", doc.ID); err != nil {
		t.Fatal(err)
	}
	if err := idx.RemoveDocument(ctx, "p1", doc.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIndexer_UpsertByPath(t *testing.T) {
	store := newTestStore(t)
	idx := NewIndexer(store, embedding.NewMockEmbedder(8),
		keyword.NewStaticExtractor(), testSearchConfig())
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "note.md")
	if err := os.WriteFile(path, []byte("first version"), 0644); err != nil {
		t.Fatal(err)
	}
	first, err := idx.UpsertByPath(ctx, "p1", path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("second version with more text"), 0644); err != nil {
		t.Fatal(err)
	}
	second, err := idx.UpsertByPath(ctx, "p1", path)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Error("upsert should replace the document")
	}

	docs, err := store.ListDocuments(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("expected 1 document after upsert, got %d", len(docs))
	}

	if err := idx.RemoveByPath(ctx, "p1", path); err != nil {
		t.Fatal(err)
	}
	// Unknown paths stay idempotent.
	if err := idx.RemoveByPath(ctx, "p1", path); err != nil {
		t.Errorf("repeated remove by path should be a no-op, got %v", err)
	}
}
