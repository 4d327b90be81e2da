package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Common errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidMode         = errors.New("invalid embedding mode")
	ErrEmbeddingBackend    = errors.New("embedding backend error")
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrMissingCredentials  = errors.New("missing embedding credentials")
)

// Mode tells the backend whether texts are search content or a search query.
// Many retrieval models embed the two differently.
type Mode string

const (
	ModeQuery   Mode = "query"
	ModePassage Mode = "passage"
)

// Validate rejects unknown modes.
func (m Mode) Validate() error {
	switch m {
	case ModeQuery, ModePassage:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, string(m))
	}
}

// ParseMode parses a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Embedder turns texts into vectors.
type Embedder interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error)

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// ValidateRequest validates an embedding request
func ValidateRequest(texts []string, mode Mode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// CheckVectors verifies that a backend returned exactly want vectors sharing
// one non-zero dimension.
func CheckVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingBackend, len(vectors), want)
	}
	if want == 0 {
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: vector 0 is empty", ErrEmbeddingBackend)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrEmbeddingBackend, i, len(v), dim)
		}
	}
	return nil
}

// NormalizeVector normalizes a vector to unit length
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}

	return result
}

// batches splits texts into consecutive groups of at most size.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}
