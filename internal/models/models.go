// Package models defines core data structures for projects, documents, chunks, and search results.
package models

import "time"

// ContentTypeMarkdown is the only document content type currently supported.
const ContentTypeMarkdown = "markdown"

// Project is the isolation boundary for documents, chunks, and indices.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document is a source text owned by exactly one project. The raw content is
// retained for re-splitting and audit.
type Document struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path,omitempty"`
	ContentType string    `json:"content_type"`
	Content     string    `json:"content,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chunk is a retrievable unit of a document. Seq is the 0-based ordinal within
// the document; StartOffset is the byte offset of the non-overlapped content
// in the source text. Chunks are immutable after creation.
type Chunk struct {
	ID          int64     `json:"id"`
	DocumentID  int64     `json:"document_id"`
	Seq         int       `json:"seq"`
	Content     string    `json:"content"`
	StartOffset int       `json:"start_offset"`
	Embedding   []float32 `json:"-"`
	Keywords    []string  `json:"keywords,omitempty"`
}

// SearchResult is a single ranked hit. Score is the score the result was
// ranked by; VectorScore and KeywordScore carry the component signals for
// hybrid results (zero when the chunk was absent from that signal's set).
type SearchResult struct {
	ChunkID      int64   `json:"chunk_id"`
	DocumentID   int64   `json:"document_id"`
	Seq          int     `json:"seq"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
	VectorScore  float64 `json:"vector_score,omitempty"`
	KeywordScore float64 `json:"keyword_score,omitempty"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}
