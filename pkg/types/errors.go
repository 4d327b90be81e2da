package types

import "errors"

// Domain errors for type validation
var (
	ErrMissingDocID   = errors.New("doc_id is required")
	ErrInvalidChunkID = errors.New("chunk_id must be >= 0")
	ErrEmptyContent   = errors.New("content cannot be empty")
	ErrDuplicateChunk = errors.New("duplicate chunk identity")
)
