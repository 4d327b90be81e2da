package searcher

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrInvalidK is returned when k is not positive
	ErrInvalidK = errors.New("k must be positive")
	// ErrDimensionMismatch is returned for ragged candidates or a query of
	// the wrong length
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

const (
	queryNormEpsilon = 1e-10
	rowNormEpsilon   = 1e-12
)

// Hit is one ranked candidate.
type Hit struct {
	Index int
	Score float64
}

// TopK ranks candidates by cosine similarity to query and returns at most k
// hits in descending score order. Equal scores keep their original index
// order. Scores are not clamped.
func TopK(query []float32, candidates [][]float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(candidates) == 0 {
		return []Hit{}, nil
	}

	dim := len(candidates[0])
	for i, row := range candidates {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has dimension %d, expected %d", ErrDimensionMismatch, i, len(row), dim)
		}
	}
	if len(query) != dim {
		return nil, fmt.Errorf("%w: query has dimension %d, candidates have %d", ErrDimensionMismatch, len(query), dim)
	}

	qNorm := norm(query) + queryNormEpsilon

	hits := make([]Hit, len(candidates))
	for i, row := range candidates {
		var dot float64
		for j, v := range row {
			dot += float64(v) * float64(query[j])
		}
		hits[i] = Hit{Index: i, Score: dot / (qNorm * (norm(row) + rowNormEpsilon))}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Cosine returns the cosine similarity of a and b using the same
// normalisation as TopK.
func Cosine(a, b []float32) (float64, error) {
	hits, err := TopK(a, [][]float32{b}, 1)
	if err != nil {
		return 0, err
	}
	return hits[0].Score, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
