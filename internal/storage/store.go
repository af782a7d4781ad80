// Package storage provides durable per-project persistence for documents,
// chunks, embeddings, and keyword postings. Each project lives in its own
// SQLite file under a root data directory; the project is the unit of
// isolation, so operations on different projects never contend.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hakobune/bunko/internal/models"
)

const projectFileSuffix = ".sqlite3"

// Store manages per-project databases under a root directory.
type Store struct {
	dir      string
	mu       sync.Mutex // guards projects
	projects map[string]*projectDB
}

// projectDB is an open handle to one project's database. The RWMutex
// serializes document mutations (one in-flight add/remove per project)
// while letting searches read a consistent snapshot in parallel.
type projectDB struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore opens a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", models.ErrStorage, err)
	}
	return &Store{dir: dir, projects: make(map[string]*projectDB)}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+projectFileSuffix)
}

// validateProjectID rejects ids that would escape the data directory or
// produce unusable filenames.
func validateProjectID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: project id is empty", models.ErrInvalidArgument)
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: project id %q contains path elements", models.ErrInvalidArgument, id)
	}
	return nil
}

// CreateProject creates a new project database. Fails with ErrDuplicateProject
// when the id is already taken.
func (s *Store) CreateProject(ctx context.Context, id, name, description string) (*models.Project, error) {
	if err := validateProjectID(id); err != nil {
		return nil, err
	}
	if name == "" {
		name = id
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(id)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %q", models.ErrDuplicateProject, id)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: stat project: %v", models.ErrStorage, err)
	}

	db, err := openProjectDB(path)
	if err != nil {
		return nil, err
	}
	created := time.Now()
	info := map[string]string{
		"id":          id,
		"name":        name,
		"description": description,
		"created_at":  created.Format(time.RFC3339),
	}
	for k, v := range info {
		if _, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO project_info (key, value) VALUES (?, ?)`, k, v); err != nil {
			_ = db.Close()
			_ = os.Remove(path)
			return nil, fmt.Errorf("%w: write project info: %v", models.ErrStorage, err)
		}
	}
	s.projects[id] = &projectDB{db: db}
	return &models.Project{ID: id, Name: name, Description: description, CreatedAt: created}, nil
}

// GetProject returns project metadata. Fails with ErrNotFound when absent.
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := s.project(id)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows, err := p.db.QueryContext(ctx, `SELECT key, value FROM project_info`)
	if err != nil {
		return nil, fmt.Errorf("%w: read project info: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	info := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: scan project info: %v", models.ErrStorage, err)
		}
		info[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read project info: %v", models.ErrStorage, err)
	}
	proj := &models.Project{ID: id, Name: info["name"], Description: info["description"]}
	if t, err := time.Parse(time.RFC3339, info["created_at"]); err == nil {
		proj.CreatedAt = t
	}
	return proj, nil
}

// ListProjects returns all projects in the data directory, sorted by id.
func (s *Store) ListProjects(ctx context.Context) ([]*models.Project, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read data directory: %v", models.ErrStorage, err)
	}
	var projects []*models.Project
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), projectFileSuffix) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), projectFileSuffix)
		proj, err := s.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		projects = append(projects, proj)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

// DeleteProject removes the project and everything it owns. Fails with
// ErrNotFound when the project does not exist; repeated deletes keep failing.
func (s *Store) DeleteProject(id string) error {
	if err := validateProjectID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: project %q", models.ErrNotFound, id)
		}
		return fmt.Errorf("%w: stat project: %v", models.ErrStorage, err)
	}
	if p, ok := s.projects[id]; ok {
		_ = p.db.Close()
		delete(s.projects, id)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: remove project database: %v", models.ErrStorage, err)
	}
	// WAL sidecars, if present.
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	return nil
}

// project returns the open handle for id, opening the database on first use.
// Fails with ErrNotFound when the project file does not exist.
func (s *Store) project(id string) (*projectDB, error) {
	if err := validateProjectID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.projects[id]; ok {
		return p, nil
	}
	path := s.path(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: project %q", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: stat project: %v", models.ErrStorage, err)
	}
	db, err := openProjectDB(path)
	if err != nil {
		return nil, err
	}
	p := &projectDB{db: db}
	s.projects[id] = p
	return p, nil
}

// Close closes all open project databases.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, p := range s.projects {
		if err := p.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.projects, id)
	}
	return firstErr
}
