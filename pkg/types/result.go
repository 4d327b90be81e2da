package types

// RetrievalResult is one ranked hit for a query.
type RetrievalResult struct {
	Score   float64 `json:"score"`
	DocID   string  `json:"doc_id"`
	ChunkID int     `json:"chunk_id"`
	Text    string  `json:"text"`
	Source  string  `json:"source"`
}

// Ref returns the citation tag form "doc_id#chunk_id".
func (r RetrievalResult) Ref() string {
	return ChunkKey{DocID: r.DocID, ChunkID: r.ChunkID}.String()
}

// TopScore returns the score of the first result, or 0 when there are none.
func TopScore(results []RetrievalResult) float64 {
	if len(results) == 0 {
		return 0.0
	}
	return results[0].Score
}

// Refs returns the citation tags of the results in rank order.
func Refs(results []RetrievalResult) []string {
	refs := make([]string, 0, len(results))
	for _, r := range results {
		refs = append(refs, r.Ref())
	}
	return refs
}
