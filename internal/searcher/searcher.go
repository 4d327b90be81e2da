package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gorag/internal/embedder"
	"github.com/dshills/gorag/pkg/types"
)

var (
	// ErrEmptyQuery is returned for a blank query string
	ErrEmptyQuery = errors.New("query is empty")
	// ErrLengthMismatch is returned when chunks and vectors differ in length
	ErrLengthMismatch = errors.New("chunks and vectors differ in length")
)

// Searcher answers queries against an in-memory chunk collection.
type Searcher struct {
	embedder embedder.Embedder
	logger   *zap.Logger
}

// New creates a Searcher that embeds queries with emb.
func New(emb embedder.Embedder, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{embedder: emb, logger: logger}
}

// Retrieve embeds query in query mode, ranks vectors against it and maps the
// top k rows back to their chunks. vectors[i] must embed chunks[i].
//
// An empty collection returns no results without calling the embedder.
// Embedder errors are returned unmodified.
func (s *Searcher) Retrieve(ctx context.Context, query string, chunks []types.Chunk, vectors [][]float32, k int) ([]types.RetrievalResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return []types.RetrievalResult{}, nil
	}

	start := time.Now()
	qv, err := s.embedder.Embed(ctx, []string{query}, embedder.ModeQuery)
	if err != nil {
		return nil, err
	}
	if err := embedder.CheckVectors(qv, 1); err != nil {
		return nil, err
	}

	hits, err := TopK(qv[0], vectors, k)
	if err != nil {
		return nil, err
	}

	results := make([]types.RetrievalResult, len(hits))
	for i, h := range hits {
		c := chunks[h.Index]
		results[i] = types.RetrievalResult{
			Score:   h.Score,
			DocID:   c.DocID,
			ChunkID: c.ChunkID,
			Text:    c.Text,
			Source:  c.Source,
		}
	}

	s.logger.Debug("retrieved",
		zap.Int("candidates", len(chunks)),
		zap.Int("k", k),
		zap.Float64("top_score", types.TopScore(results)),
		zap.Duration("duration", time.Since(start)))

	return results, nil
}
