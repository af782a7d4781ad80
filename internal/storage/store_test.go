package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/hakobune/bunko/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_ProjectLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	proj, err := store.CreateProject(ctx, "notes", "Notes", "personal notes")
	if err != nil {
		t.Fatal(err)
	}
	if proj.ID != "notes" || proj.Name != "Notes" {
		t.Errorf("got %+v", proj)
	}
	if proj.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetProject(ctx, "notes")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Notes" || got.Description != "personal notes" {
		t.Errorf("got %+v", got)
	}

	list, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != "notes" {
		t.Errorf("got %+v", list)
	}

	if err := store.DeleteProject("notes"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetProject(ctx, "notes"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_DuplicateProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateProject(ctx, "p1", "", ""); err != nil {
		t.Fatal(err)
	}
	_, err := store.CreateProject(ctx, "p1", "other", "")
	if !errors.Is(err, models.ErrDuplicateProject) {
		t.Errorf("expected ErrDuplicateProject, got %v", err)
	}
}

func TestStore_DeleteProjectRepeated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateProject(ctx, "p1", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteProject("p1"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteProject("p1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound on repeated delete, got %v", err)
	}
}

func TestStore_InvalidProjectID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		if _, err := store.CreateProject(ctx, id, "", ""); !errors.Is(err, models.ErrInvalidArgument) {
			t.Errorf("id %q: expected ErrInvalidArgument, got %v", id, err)
		}
	}
}

func TestStore_ListProjectsSorted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		if _, err := store.CreateProject(ctx, id, "", ""); err != nil {
			t.Fatal(err)
		}
	}
	list, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(list) != len(want) {
		t.Fatalf("expected %d projects, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
}

func TestStore_DefaultProjectName(t *testing.T) {
	store := newTestStore(t)
	proj, err := store.CreateProject(context.Background(), "p1", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if proj.Name != "p1" {
		t.Errorf("expected name to default to id, got %q", proj.Name)
	}
}
