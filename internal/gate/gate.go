// Package gate decides whether retrieval is strong enough to answer.
//
// A query containing a referential pronoun ("his", "that", ...) carries
// less meaning on its own, so it must clear a higher score threshold than a
// specific query. The decision depends only on the query text and the top
// score; the gate has no memory of earlier turns.
package gate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dshills/gorag/pkg/types"
)

// ErrInvalidThresholds is returned when the vague threshold is below the
// base threshold or either value is not a finite number.
var ErrInvalidThresholds = errors.New("invalid confidence thresholds")

// vagueTokens is the closed set of words that mark a query as vague.
var vagueTokens = map[string]struct{}{
	"he": {}, "his": {}, "she": {}, "her": {}, "him": {},
	"they": {}, "their": {}, "this": {}, "that": {},
}

// IsVague reports whether any whitespace-separated token of the lowercased
// query is exactly one of the vague pronouns. Punctuation is not stripped,
// so "that?" does not match.
func IsVague(query string) bool {
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if _, ok := vagueTokens[tok]; ok {
			return true
		}
	}
	return false
}

// ShouldAnswer permits an answer only when there are results and the top
// score reaches the threshold.
func ShouldAnswer(topScore, threshold float64, hasResults bool) bool {
	return hasResults && topScore >= threshold
}

// Gate holds the two acceptance thresholds.
type Gate struct {
	base  float64
	vague float64
}

// New creates a Gate. vague must be greater than base.
func New(base, vague float64) (*Gate, error) {
	for _, v := range []float64{base, vague} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %v is not finite", ErrInvalidThresholds, v)
		}
	}
	if vague <= base {
		return nil, fmt.Errorf("%w: vague %.3f not above base %.3f", ErrInvalidThresholds, vague, base)
	}
	return &Gate{base: base, vague: vague}, nil
}

// Base returns the threshold for specific queries.
func (g *Gate) Base() float64 { return g.base }

// Vague returns the threshold for vague queries.
func (g *Gate) Vague() float64 { return g.vague }

// Threshold returns the acceptance threshold for query.
func (g *Gate) Threshold(query string) float64 {
	if IsVague(query) {
		return g.vague
	}
	return g.base
}

// Decision is the gate outcome for one query.
type Decision struct {
	Vague     bool    `json:"vague_query"`
	Threshold float64 `json:"threshold"`
	TopScore  float64 `json:"top_score"`
	Answer    bool    `json:"answer"`
}

// Decide applies the gate to ranked results.
func (g *Gate) Decide(query string, results []types.RetrievalResult) Decision {
	vague := IsVague(query)
	thr := g.base
	if vague {
		thr = g.vague
	}
	top := types.TopScore(results)
	return Decision{
		Vague:     vague,
		Threshold: thr,
		TopScore:  top,
		Answer:    ShouldAnswer(top, thr, len(results) > 0),
	}
}
