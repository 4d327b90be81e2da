package types

import (
	"fmt"
	"strings"
)

// Document is a cleaned source file ready for chunking.
type Document struct {
	DocID  string `json:"doc_id"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Chunk is an immutable unit of retrievable text.
//
// Identity is the (DocID, ChunkID) pair. ChunkID is the zero-based position
// of the chunk inside its document and is not unique on its own.
type Chunk struct {
	DocID   string `json:"doc_id"`
	ChunkID int    `json:"chunk_id"`
	Text    string `json:"text"`
	Source  string `json:"source"`
}

// ChunkKey identifies a chunk independently of its position in a slice.
type ChunkKey struct {
	DocID   string
	ChunkID int
}

// Key returns the identity of the chunk.
func (c Chunk) Key() ChunkKey {
	return ChunkKey{DocID: c.DocID, ChunkID: c.ChunkID}
}

// Ref returns the citation tag form "doc_id#chunk_id".
func (c Chunk) Ref() string {
	return c.Key().String()
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("%s#%d", k.DocID, k.ChunkID)
}

// Validate checks that the chunk carries an identity and text.
func (c Chunk) Validate() error {
	if strings.TrimSpace(c.DocID) == "" {
		return ErrMissingDocID
	}
	if c.ChunkID < 0 {
		return ErrInvalidChunkID
	}
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyContent
	}
	return nil
}

// ValidateChunks validates every chunk and rejects duplicate identities.
func ValidateChunks(chunks []Chunk) error {
	seen := make(map[ChunkKey]struct{}, len(chunks))
	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		if _, dup := seen[c.Key()]; dup {
			return fmt.Errorf("chunk %d: %w: %s", i, ErrDuplicateChunk, c.Ref())
		}
		seen[c.Key()] = struct{}{}
	}
	return nil
}
