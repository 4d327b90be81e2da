package searcher

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gorag/internal/embedder"
	"github.com/dshills/gorag/pkg/types"
)

// mockEmbedder records calls and delegates to embedFunc when set.
type mockEmbedder struct {
	embedFunc func(texts []string, mode embedder.Mode) ([][]float32, error)
	calls     int
	modes     []embedder.Mode
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string, mode embedder.Mode) ([][]float32, error) {
	m.calls++
	m.modes = append(m.modes, mode)
	if m.embedFunc != nil {
		return m.embedFunc(texts, mode)
	}
	return [][]float32{{1, 0}}, nil
}

func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

func TestTopK(t *testing.T) {
	tests := []struct {
		name       string
		query      []float32
		candidates [][]float32
		k          int
		wantIdx    []int
	}{
		{
			name:       "descending by score",
			query:      []float32{1, 0},
			candidates: [][]float32{{0, 1}, {1, 0}, {1, 1}},
			k:          3,
			wantIdx:    []int{1, 2, 0},
		},
		{
			name:       "truncates to k",
			query:      []float32{1, 0},
			candidates: [][]float32{{0, 1}, {1, 0}, {1, 1}},
			k:          2,
			wantIdx:    []int{1, 2},
		},
		{
			name:       "k beyond candidates returns all",
			query:      []float32{1, 0},
			candidates: [][]float32{{0, 1}, {1, 0}},
			k:          10,
			wantIdx:    []int{1, 0},
		},
		{
			name:       "ties keep lower index first",
			query:      []float32{1, 1},
			candidates: [][]float32{{0, 1}, {2, 2}, {1, 0}, {1, 1}},
			k:          4,
			wantIdx:    []int{1, 3, 0, 2},
		},
		{
			name:       "negative scores rank last",
			query:      []float32{1, 0},
			candidates: [][]float32{{-1, 0}, {0, 1}},
			k:          2,
			wantIdx:    []int{1, 0},
		},
		{
			name:       "zero row scores zero",
			query:      []float32{1, 0},
			candidates: [][]float32{{0, 0}, {-1, 0}},
			k:          2,
			wantIdx:    []int{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := TopK(tt.query, tt.candidates, tt.k)
			require.NoError(t, err)
			got := make([]int, len(hits))
			for i, h := range hits {
				got[i] = h.Index
			}
			assert.Equal(t, tt.wantIdx, got)
		})
	}
}

func TestTopKEdgeCases(t *testing.T) {
	t.Run("empty candidates", func(t *testing.T) {
		hits, err := TopK([]float32{1, 2}, nil, 3)
		require.NoError(t, err)
		assert.NotNil(t, hits)
		assert.Empty(t, hits)
	})

	t.Run("invalid k", func(t *testing.T) {
		for _, k := range []int{0, -1} {
			_, err := TopK([]float32{1}, [][]float32{{1}}, k)
			assert.ErrorIs(t, err, ErrInvalidK)
		}
	})

	t.Run("ragged candidates", func(t *testing.T) {
		_, err := TopK([]float32{1, 0}, [][]float32{{1, 0}, {1, 0, 0}}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("query dimension differs", func(t *testing.T) {
		_, err := TopK([]float32{1, 0, 0}, [][]float32{{1, 0}}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("zero query does not produce NaN", func(t *testing.T) {
		hits, err := TopK([]float32{0, 0}, [][]float32{{1, 2}}, 1)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(hits[0].Score))
		assert.Equal(t, 0.0, hits[0].Score)
	})
}

func TestCosineBounds(t *testing.T) {
	score, err := Cosine([]float32{0.3, -1.2, 4}, []float32{0.3, -1.2, 4})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)

	score, err = Cosine([]float32{1, 0, 0}, []float32{0, 5, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-6)

	score, err = Cosine([]float32{1, 2}, []float32{-2, -4})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, score, 1e-6)

	rng := rand.New(rand.NewSource(7))
	random := func() []float32 {
		v := make([]float32, 16)
		for i := range v {
			v[i] = float32(rng.NormFloat64())
		}
		return v
	}
	for i := 0; i < 200; i++ {
		score, err := Cosine(random(), random())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, -1-1e-6)
		assert.LessOrEqual(t, score, 1+1e-6)
	}
}

func TestTopKDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	candidates := make([][]float32, 100)
	for i := range candidates {
		candidates[i] = []float32{float32(rng.Intn(3)), float32(rng.Intn(3)), 1}
	}
	query := []float32{1, 2, 1}

	first, err := TopK(query, candidates, 20)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := TopK(query, candidates, 20)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	for i := 1; i < len(first); i++ {
		if first[i].Score == first[i-1].Score {
			assert.Less(t, first[i-1].Index, first[i].Index)
		}
	}
}

func franceChunks() []types.Chunk {
	return []types.Chunk{
		{DocID: "doc1", ChunkID: 0, Text: "Paris is the capital of France.", Source: "doc1.txt"},
		{DocID: "doc1", ChunkID: 1, Text: "Lyon is a city in France.", Source: "doc1.txt"},
	}
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("capital of France", func(t *testing.T) {
		emb, err := embedder.NewHashingProvider(512)
		require.NoError(t, err)
		chunks := franceChunks()
		vectors, err := emb.Embed(ctx, []string{chunks[0].Text, chunks[1].Text}, embedder.ModePassage)
		require.NoError(t, err)

		s := New(emb, nil)
		results, err := s.Retrieve(ctx, "What is the capital of France?", chunks, vectors, 3)
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, "doc1#0", results[0].Ref())
		assert.Equal(t, "doc1#1", results[1].Ref())
		assert.Greater(t, results[0].Score, results[1].Score)
		assert.Equal(t, "Paris is the capital of France.", results[0].Text)
		assert.Equal(t, "doc1.txt", results[0].Source)
	})

	t.Run("one query-mode embed call", func(t *testing.T) {
		mock := &mockEmbedder{}
		s := New(mock, nil)
		_, err := s.Retrieve(ctx, "anything", franceChunks(), [][]float32{{1, 0}, {0, 1}}, 1)
		require.NoError(t, err)
		_, err = s.Retrieve(ctx, "anything", franceChunks(), [][]float32{{1, 0}, {0, 1}}, 1)
		require.NoError(t, err)

		assert.Equal(t, 2, mock.calls)
		assert.Equal(t, []embedder.Mode{embedder.ModeQuery, embedder.ModeQuery}, mock.modes)
	})

	t.Run("maps ranks back to chunks", func(t *testing.T) {
		mock := &mockEmbedder{embedFunc: func([]string, embedder.Mode) ([][]float32, error) {
			return [][]float32{{0, 1}}, nil
		}}
		s := New(mock, nil)
		results, err := s.Retrieve(ctx, "q", franceChunks(), [][]float32{{1, 0}, {0, 1}}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 1, results[0].ChunkID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	})

	t.Run("empty collection skips embedding", func(t *testing.T) {
		mock := &mockEmbedder{}
		s := New(mock, nil)
		results, err := s.Retrieve(ctx, "What is the capital of France?", nil, nil, 3)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
		assert.Zero(t, mock.calls)
	})

	t.Run("validation", func(t *testing.T) {
		mock := &mockEmbedder{}
		s := New(mock, nil)

		_, err := s.Retrieve(ctx, "   ", franceChunks(), [][]float32{{1, 0}, {0, 1}}, 1)
		assert.ErrorIs(t, err, ErrEmptyQuery)

		_, err = s.Retrieve(ctx, "q", franceChunks(), [][]float32{{1, 0}, {0, 1}}, 0)
		assert.ErrorIs(t, err, ErrInvalidK)

		_, err = s.Retrieve(ctx, "q", franceChunks(), [][]float32{{1, 0}}, 1)
		assert.ErrorIs(t, err, ErrLengthMismatch)

		assert.Zero(t, mock.calls)
	})

	t.Run("backend error passes through unmodified", func(t *testing.T) {
		backendErr := errors.New("boom")
		mock := &mockEmbedder{embedFunc: func([]string, embedder.Mode) ([][]float32, error) {
			return nil, backendErr
		}}
		s := New(mock, nil)
		_, err := s.Retrieve(ctx, "q", franceChunks(), [][]float32{{1, 0}, {0, 1}}, 1)
		assert.Same(t, backendErr, err)
	})

	t.Run("wrong vector count is a backend error", func(t *testing.T) {
		mock := &mockEmbedder{embedFunc: func([]string, embedder.Mode) ([][]float32, error) {
			return [][]float32{{1, 0}, {0, 1}}, nil
		}}
		s := New(mock, nil)
		_, err := s.Retrieve(ctx, "q", franceChunks(), [][]float32{{1, 0}, {0, 1}}, 1)
		assert.ErrorIs(t, err, embedder.ErrEmbeddingBackend)
	})

	t.Run("query dimension mismatch", func(t *testing.T) {
		mock := &mockEmbedder{embedFunc: func([]string, embedder.Mode) ([][]float32, error) {
			return [][]float32{{1, 0, 0}}, nil
		}}
		s := New(mock, nil)
		_, err := s.Retrieve(ctx, "q", franceChunks(), [][]float32{{1, 0}, {0, 1}}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func BenchmarkTopK(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	candidates := make([][]float32, 2000)
	for i := range candidates {
		row := make([]float32, 1024)
		for j := range row {
			row[j] = float32(rng.NormFloat64())
		}
		candidates[i] = row
	}
	query := candidates[17]

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = TopK(query, candidates, 3)
	}
}
