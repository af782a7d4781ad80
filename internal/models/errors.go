package models

import "errors"

// Sentinel errors for the retrieval engine. Callers match with errors.Is;
// lower layers wrap them with fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrDuplicateProject is returned when creating a project whose id already exists.
	ErrDuplicateProject = errors.New("project already exists")

	// ErrNotFound is returned when a project, document, or chunk is absent.
	// Deleting something nonexistent is a hard error, not a no-op.
	ErrNotFound = errors.New("not found")

	// ErrSplit is returned for empty input or invalid split parameters.
	ErrSplit = errors.New("split failed")

	// ErrInvalidArgument is returned for bad search parameters (k <= 0, bad weights).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmbeddingService wraps failures of the external embedding collaborator.
	ErrEmbeddingService = errors.New("embedding service failed")

	// ErrExtractionService wraps failures of the external keyword extraction collaborator.
	ErrExtractionService = errors.New("keyword extraction service failed")

	// ErrStorage wraps persistence-layer failures.
	ErrStorage = errors.New("storage failure")
)
