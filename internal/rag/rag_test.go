package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hakobune/bunko/internal/config"
	"github.com/hakobune/bunko/internal/embedding"
	"github.com/hakobune/bunko/internal/keyword"
	"github.com/hakobune/bunko/internal/models"
	"github.com/hakobune/bunko/internal/search"
)

func newTestRAG(t *testing.T, vocabulary ...string) *RAG {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DataDir = t.TempDir()
	cfg.Search.ChunkSize = 200

	r, err := New(cfg, embedding.NewMockEmbedder(16), keyword.NewStaticExtractor(vocabulary...), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRAG_Lifecycle(t *testing.T) {
	r := newTestRAG(t, "kamakura", "bakufu")
	ctx := context.Background()

	proj, err := r.CreateProject(ctx, "history", "History", "notes on japanese history")
	if err != nil {
		t.Fatal(err)
	}

	doc, err := proj.AddDocumentText(ctx, "kamakura.md",
		"# Kamakura\n\nThe kamakura bakufu governed from 1185.\n\n# Muromachi\n\nA later period.")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ChunkCount == 0 {
		t.Error("expected chunks")
	}

	docs, err := proj.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}

	resp, err := proj.Search(ctx, "kamakura bakufu", search.ModeHybrid, 5, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total == 0 {
		t.Error("expected hybrid hits")
	}

	kwResults, err := proj.SearchByKeyword(ctx, "kamakura", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(kwResults) == 0 {
		t.Error("expected keyword hits")
	}

	if err := proj.RemoveDocument(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveProject("history"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Project(ctx, "history"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRAG_FileIngestion(t *testing.T) {
	r := newTestRAG(t)
	ctx := context.Background()

	proj, err := r.CreateProject(ctx, "files", "", "")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "readme.md")
	if err := os.WriteFile(path, []byte("# Readme\n\nproject overview"), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := proj.AddDocument(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "readme.md" {
		t.Errorf("expected name from file base, got %q", doc.Name)
	}
	if doc.Path != path {
		t.Errorf("expected path recorded, got %q", doc.Path)
	}

	got, err := proj.Document(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content == "" {
		t.Error("expected raw content retained")
	}
}

func TestRAG_ProjectIsolation(t *testing.T) {
	r := newTestRAG(t, "shared")
	ctx := context.Background()

	a, err := r.CreateProject(ctx, "a", "", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.CreateProject(ctx, "b", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.AddDocumentText(ctx, "doc.md", "shared term lives here"); err != nil {
		t.Fatal(err)
	}

	hits, err := b.SearchByKeyword(ctx, "shared", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("project b must not see project a's chunks, got %d hits", len(hits))
	}

	docs, err := b.Documents(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("project b should have no documents, got %d", len(docs))
	}
}

func TestRAG_DuplicateProject(t *testing.T) {
	r := newTestRAG(t)
	ctx := context.Background()

	if _, err := r.CreateProject(ctx, "p1", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.CreateProject(ctx, "p1", "", ""); !errors.Is(err, models.ErrDuplicateProject) {
		t.Errorf("expected ErrDuplicateProject, got %v", err)
	}
}
