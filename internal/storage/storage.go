package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no entry exists under a key
	ErrNotFound = errors.New("not found")
	// ErrCorrupt is returned when a stored entry cannot be decoded or
	// disagrees with its own key or shape
	ErrCorrupt = errors.New("cache entry corrupt")
	// ErrInvalidEntry is returned when publishing a malformed entry
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store persists embedding matrices keyed by (model, fingerprint).
//
// Entries are immutable once published. Publish must be atomic: a
// concurrent Load sees either the previous state or the complete new entry.
// Publishing the same key twice replaces the entry.
type Store interface {
	// Load returns the entry for key, ErrNotFound on a miss, or ErrCorrupt
	Load(ctx context.Context, key Key) (*Entry, error)

	// Publish atomically stores the entry
	Publish(ctx context.Context, entry *Entry) error

	// List returns metadata for every stored entry, oldest first
	List(ctx context.Context) ([]EntryInfo, error)

	// Delete removes the entry for key; deleting a missing key is not an error
	Delete(ctx context.Context, key Key) error

	// Close releases resources
	Close() error
}

// Key identifies a cache entry.
type Key struct {
	Model       string // normalized embedding model name
	Fingerprint string // hex SHA-256 of the chunk sequence
}

func (k Key) String() string {
	return k.Model + "/" + k.Fingerprint
}

// Validate checks that both key parts are present.
func (k Key) Validate() error {
	if strings.TrimSpace(k.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(k.Fingerprint) == "" {
		return fmt.Errorf("%w: fingerprint is required", ErrInvalidEntry)
	}
	return nil
}

// Meta describes a stored matrix.
type Meta struct {
	Fingerprint string    `json:"fingerprint"`
	NumChunks   int       `json:"num_chunks"`
	Dim         int       `json:"dim"`
	EmbedModel  string    `json:"embed_model"`
	CreatedAt   time.Time `json:"created_at"`
}

// Entry pairs metadata with its matrix; row i embeds chunk i.
type Entry struct {
	Key     Key
	Meta    Meta
	Vectors [][]float32
}

// EntryInfo is the listing form of an entry.
type EntryInfo struct {
	Key       Key
	NumChunks int
	Dim       int
	SizeBytes int64
	CreatedAt time.Time
}

// NewEntry builds an entry and its metadata from a matrix.
func NewEntry(key Key, vectors [][]float32, now time.Time) *Entry {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	return &Entry{
		Key: key,
		Meta: Meta{
			Fingerprint: key.Fingerprint,
			NumChunks:   len(vectors),
			Dim:         dim,
			EmbedModel:  key.Model,
			CreatedAt:   now.UTC(),
		},
		Vectors: vectors,
	}
}

// Validate checks the entry before publish.
func (e *Entry) Validate() error {
	if err := e.Key.Validate(); err != nil {
		return err
	}
	if err := checkShape(e.Key, e.Meta, e.Vectors); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// checkShape verifies metadata against its key and matrix.
func checkShape(key Key, meta Meta, vectors [][]float32) error {
	if meta.Fingerprint != key.Fingerprint {
		return fmt.Errorf("fingerprint %q does not match key %q", meta.Fingerprint, key.Fingerprint)
	}
	if meta.EmbedModel != key.Model {
		return fmt.Errorf("model %q does not match key %q", meta.EmbedModel, key.Model)
	}
	if meta.NumChunks != len(vectors) {
		return fmt.Errorf("num_chunks %d but %d rows", meta.NumChunks, len(vectors))
	}
	if meta.NumChunks > 0 && meta.Dim <= 0 {
		return fmt.Errorf("invalid dim %d", meta.Dim)
	}
	for i, row := range vectors {
		if len(row) != meta.Dim {
			return fmt.Errorf("row %d has dimension %d, expected %d", i, len(row), meta.Dim)
		}
	}
	return nil
}
