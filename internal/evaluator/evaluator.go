// Package evaluator derives per-turn quality records and appends them to a
// JSON Lines log.
//
// Records are write-only telemetry for the answering pipeline. Each Append
// adds one line to <dir>/rag_metrics.jsonl and never rewrites earlier lines.
package evaluator

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/gorag/internal/gate"
	"github.com/dshills/gorag/pkg/types"
)

// ErrorMarker prefixes answers that report a failure instead of content.
const ErrorMarker = "ERROR:"

// TimestampLayout is local time with seconds precision.
const TimestampLayout = "2006-01-02T15:04:05"

// Record is one evaluated turn.
type Record struct {
	TurnID        string   `json:"turn_id,omitempty"`
	Query         string   `json:"query"`
	TopScore      float64  `json:"top_score"`
	NumChunks     int      `json:"num_chunks"`
	ThresholdUsed float64  `json:"threshold_used"`
	VagueQuery    bool     `json:"vague_query"`
	HasCitation   bool     `json:"has_citation"`
	Error         bool     `json:"error"`
	AnswerLen     int      `json:"answer_len"`
	Sources       []string `json:"sources"`
	Timestamp     string   `json:"timestamp,omitempty"`
}

// Evaluate derives a record from one turn. Vagueness is recomputed from the
// query rather than taken from the caller. has_citation only checks that
// both '[' and ']' occur somewhere in the answer.
func Evaluate(query string, results []types.RetrievalResult, answer string, threshold float64) Record {
	return Record{
		Query:         query,
		TopScore:      types.TopScore(results),
		NumChunks:     len(results),
		ThresholdUsed: threshold,
		VagueQuery:    gate.IsVague(query),
		HasCitation:   strings.Contains(answer, "[") && strings.Contains(answer, "]"),
		Error:         strings.HasPrefix(answer, ErrorMarker),
		AnswerLen:     utf8.RuneCountInString(answer),
		Sources:       types.Refs(results),
	}
}

// Passed reports whether the record's retrieval cleared its threshold.
func (r Record) Passed() bool {
	return gate.ShouldAnswer(r.TopScore, r.ThresholdUsed, r.NumChunks > 0)
}

// Summary aggregates records.
type Summary struct {
	Total        int     `json:"total"`
	AnsweredRate float64 `json:"answered_rate"`
	ErrorRate    float64 `json:"error_rate"`
	CitationRate float64 `json:"citation_rate"`
	VagueRate    float64 `json:"vague_rate"`
	MeanTopScore float64 `json:"mean_top_score"`
}

// Summarize computes rates over records. A turn counts as answered when its
// retrieval passed the threshold it was judged against.
func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	if len(records) == 0 {
		return s
	}

	var answered, errs, cited, vague int
	var scoreSum float64
	for _, r := range records {
		if r.Passed() {
			answered++
		}
		if r.Error {
			errs++
		}
		if r.HasCitation {
			cited++
		}
		if r.VagueQuery {
			vague++
		}
		scoreSum += r.TopScore
	}

	n := float64(len(records))
	s.AnsweredRate = float64(answered) / n
	s.ErrorRate = float64(errs) / n
	s.CitationRate = float64(cited) / n
	s.VagueRate = float64(vague) / n
	s.MeanTopScore = scoreSum / n
	return s
}
