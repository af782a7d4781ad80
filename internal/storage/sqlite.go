package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hakobune/bunko/internal/models"
	"github.com/hakobune/bunko/internal/vector"
)

func openProjectDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", models.ErrStorage, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %v", models.ErrStorage, err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %v", models.ErrStorage, err)
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS project_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		path TEXT,
		content_type TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		start_offset INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, seq);

	CREATE TABLE IF NOT EXISTS chunk_vectors (
		chunk_id INTEGER PRIMARY KEY,
		embedding BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS keyword_postings (
		keyword TEXT NOT NULL,
		chunk_id INTEGER NOT NULL,
		PRIMARY KEY (keyword, chunk_id)
	);

	CREATE INDEX IF NOT EXISTS idx_postings_keyword ON keyword_postings(keyword);
	`
	_, err := db.Exec(schema)
	return err
}

// ChunkVector pairs a chunk id with its stored embedding.
type ChunkVector struct {
	ChunkID int64
	Vector  []float32
}

// InsertDocument persists a document with its chunks, embeddings, and keyword
// postings as one transaction. Either everything commits or nothing does;
// chunk and document ids are filled in on success.
func (s *Store) InsertDocument(ctx context.Context, projectID string, doc *models.Document, chunks []*models.Chunk) error {
	p, err := s.project(projectID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin insert: %v", models.ErrStorage, err)
	}
	defer tx.Rollback()

	doc.CreatedAt = time.Now()
	doc.ChunkCount = len(chunks)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (name, path, content_type, content, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.Name, doc.Path, doc.ContentType, doc.Content, doc.ChunkCount, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert document: %v", models.ErrStorage, err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: document id: %v", models.ErrStorage, err)
	}

	chunkStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, seq, content, start_offset) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare chunk insert: %v", models.ErrStorage, err)
	}
	defer chunkStmt.Close()
	vecStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunk_vectors (chunk_id, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare vector insert: %v", models.ErrStorage, err)
	}
	defer vecStmt.Close()
	postStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO keyword_postings (keyword, chunk_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare posting insert: %v", models.ErrStorage, err)
	}
	defer postStmt.Close()

	for _, ch := range chunks {
		res, err := chunkStmt.ExecContext(ctx, docID, ch.Seq, ch.Content, ch.StartOffset)
		if err != nil {
			return fmt.Errorf("%w: insert chunk %d: %v", models.ErrStorage, ch.Seq, err)
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%w: chunk id: %v", models.ErrStorage, err)
		}
		if _, err := vecStmt.ExecContext(ctx, chunkID, vector.Encode(ch.Embedding)); err != nil {
			return fmt.Errorf("%w: insert embedding for chunk %d: %v", models.ErrStorage, ch.Seq, err)
		}
		for _, kw := range ch.Keywords {
			if _, err := postStmt.ExecContext(ctx, kw, chunkID); err != nil {
				return fmt.Errorf("%w: insert posting %q: %v", models.ErrStorage, kw, err)
			}
		}
		ch.ID = chunkID
		ch.DocumentID = docID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit insert: %v", models.ErrStorage, err)
	}
	doc.ID = docID
	return nil
}

// DeleteDocument removes a document and cascades as an explicit ordered
// transaction: postings first, then embeddings, then chunks, then the
// document row, so no posting can outlive its chunk. Fails with ErrNotFound
// when the document is not in the project.
func (s *Store) DeleteDocument(ctx context.Context, projectID string, docID int64) error {
	p, err := s.project(projectID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin delete: %v", models.ErrStorage, err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE id = ?`, docID).Scan(&exists); err != nil {
		return fmt.Errorf("%w: check document: %v", models.ErrStorage, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: document %d in project %q", models.ErrNotFound, docID, projectID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM keyword_postings WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`,
		docID); err != nil {
		return fmt.Errorf("%w: delete postings: %v", models.ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_vectors WHERE chunk_id IN (SELECT id FROM chunks WHERE document_id = ?)`,
		docID); err != nil {
		return fmt.Errorf("%w: delete embeddings: %v", models.ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("%w: delete chunks: %v", models.ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return fmt.Errorf("%w: delete document: %v", models.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit delete: %v", models.ErrStorage, err)
	}
	return nil
}

// GetDocument returns a document by id, including its raw content.
func (s *Store) GetDocument(ctx context.Context, projectID string, docID int64) (*models.Document, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	doc, err := scanDocument(p.db.QueryRowContext(ctx,
		`SELECT id, name, path, content_type, content, chunk_count, created_at
		 FROM documents WHERE id = ?`, docID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: document %d in project %q", models.ErrNotFound, docID, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read document: %v", models.ErrStorage, err)
	}
	return doc, nil
}

// DocumentByPath returns the document whose source path matches, for
// upsert-by-path ingestion. Fails with ErrNotFound when absent.
func (s *Store) DocumentByPath(ctx context.Context, projectID, path string) (*models.Document, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	doc, err := scanDocument(p.db.QueryRowContext(ctx,
		`SELECT id, name, path, content_type, content, chunk_count, created_at
		 FROM documents WHERE path = ? ORDER BY id LIMIT 1`, path))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: document with path %q in project %q", models.ErrNotFound, path, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read document: %v", models.ErrStorage, err)
	}
	return doc, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var path sql.NullString
	if err := row.Scan(&doc.ID, &doc.Name, &path, &doc.ContentType, &doc.Content, &doc.ChunkCount, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.Path = path.String
	return &doc, nil
}

// ListDocuments returns all documents in a project ordered by id, without
// raw content (listing is metadata-only; use GetDocument for the text).
func (s *Store) ListDocuments(ctx context.Context, projectID string) ([]*models.Document, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, path, content_type, chunk_count, created_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		var path sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Name, &path, &doc.ContentType, &doc.ChunkCount, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", models.ErrStorage, err)
		}
		doc.Path = path.String
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", models.ErrStorage, err)
	}
	return docs, nil
}

// ChunksByDocument returns a document's chunks in ordinal order.
func (s *Store) ChunksByDocument(ctx context.Context, projectID string, docID int64) ([]*models.Chunk, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, document_id, seq, content, start_offset FROM chunks
		 WHERE document_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, fmt.Errorf("%w: read chunks: %v", models.ErrStorage, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetChunksByIDs is a lenient bulk point lookup: unknown ids are silently
// omitted. Results come back in ascending chunk id order; callers needing
// strictness compare the returned count.
func (s *Store) GetChunksByIDs(ctx context.Context, projectID string, ids []int64) ([]*models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, document_id, seq, content, start_offset FROM chunks
		 WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: read chunks: %v", models.ErrStorage, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.Seq, &ch.Content, &ch.StartOffset); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", models.ErrStorage, err)
		}
		chunks = append(chunks, &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read chunks: %v", models.ErrStorage, err)
	}
	return chunks, nil
}

// AllChunkVectors returns every stored (chunk id, embedding) pair. The read
// lock pins a consistent snapshot: mutations hold the write lock, so no
// partially written vector is ever observed.
func (s *Store) AllChunkVectors(ctx context.Context, projectID string) ([]ChunkVector, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows, err := p.db.QueryContext(ctx,
		`SELECT chunk_id, embedding FROM chunk_vectors ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: read vectors: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var out []ChunkVector
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan vector: %v", models.ErrStorage, err)
		}
		out = append(out, ChunkVector{ChunkID: id, Vector: vector.Decode(blob)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read vectors: %v", models.ErrStorage, err)
	}
	return out, nil
}

// PostingsFor returns the ids of chunks carrying the normalized keyword.
func (s *Store) PostingsFor(ctx context.Context, projectID, normalizedKeyword string) ([]int64, error) {
	p, err := s.project(projectID)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows, err := p.db.QueryContext(ctx,
		`SELECT chunk_id FROM keyword_postings WHERE keyword = ? ORDER BY chunk_id`, normalizedKeyword)
	if err != nil {
		return nil, fmt.Errorf("%w: read postings: %v", models.ErrStorage, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan posting: %v", models.ErrStorage, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read postings: %v", models.ErrStorage, err)
	}
	return ids, nil
}

// CountDocuments returns the number of documents in a project.
func (s *Store) CountDocuments(ctx context.Context, projectID string) (int64, error) {
	return s.countRows(ctx, projectID, `SELECT COUNT(*) FROM documents`)
}

// CountChunks returns the number of chunks in a project.
func (s *Store) CountChunks(ctx context.Context, projectID string) (int64, error) {
	return s.countRows(ctx, projectID, `SELECT COUNT(*) FROM chunks`)
}

func (s *Store) countRows(ctx context.Context, projectID, query string) (int64, error) {
	p, err := s.project(projectID)
	if err != nil {
		return 0, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var n int64
	if err := p.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", models.ErrStorage, err)
	}
	return n, nil
}
