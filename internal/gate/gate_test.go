package gate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gorag/pkg/types"
)

func TestIsVague(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"What is his favorite color?", true},
		{"Where did THEY go", true},
		{"tell me about that", true},
		{"  she  ", true},
		{"What is the capital of France?", false},
		{"theyre here", false},
		{"history of the company", false},
		{"what about that?", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVague(tt.query))
		})
	}
}

func TestShouldAnswer(t *testing.T) {
	assert.True(t, ShouldAnswer(0.30, 0.25, true))
	assert.True(t, ShouldAnswer(0.25, 0.25, true))
	assert.False(t, ShouldAnswer(0.2499, 0.25, true))

	for _, score := range []float64{-1, 0, 0.5, 1, 100} {
		assert.False(t, ShouldAnswer(score, -10, false), "score %v", score)
	}
}

func TestNew(t *testing.T) {
	g, err := New(0.25, 0.35)
	require.NoError(t, err)
	assert.Equal(t, 0.25, g.Base())
	assert.Equal(t, 0.35, g.Vague())

	_, err = New(0.3, 0.3)
	assert.ErrorIs(t, err, ErrInvalidThresholds)

	_, err = New(0.4, 0.3)
	assert.ErrorIs(t, err, ErrInvalidThresholds)

	_, err = New(math.NaN(), 0.3)
	assert.ErrorIs(t, err, ErrInvalidThresholds)

	_, err = New(0.1, math.Inf(1))
	assert.ErrorIs(t, err, ErrInvalidThresholds)
}

func TestThreshold(t *testing.T) {
	g, err := New(0.25, 0.35)
	require.NoError(t, err)

	assert.Equal(t, 0.35, g.Threshold("What is his favorite color?"))
	assert.Equal(t, 0.25, g.Threshold("What is the capital of France?"))

	for _, q := range []string{"who is he", "who is the founder", "that one", ""} {
		assert.GreaterOrEqual(t, g.Threshold(q), g.Base())
	}
}

func TestDecide(t *testing.T) {
	g, err := New(0.25, 0.35)
	require.NoError(t, err)

	results := []types.RetrievalResult{{Score: 0.3, DocID: "d", ChunkID: 0}, {Score: 0.1, DocID: "d", ChunkID: 1}}

	d := g.Decide("What is the capital of France?", results)
	assert.Equal(t, Decision{Vague: false, Threshold: 0.25, TopScore: 0.3, Answer: true}, d)

	d = g.Decide("What is his favorite color?", results)
	assert.Equal(t, Decision{Vague: true, Threshold: 0.35, TopScore: 0.3, Answer: false}, d)

	d = g.Decide("What is the capital of France?", nil)
	assert.Equal(t, Decision{Vague: false, Threshold: 0.25, TopScore: 0, Answer: false}, d)
}
