// Package searcher ranks chunks by cosine similarity to a query.
//
// TopK is exact brute-force search: one pass over every candidate row.
// Collections are chunk scale (thousands of rows), so no approximate index
// is kept.
//
//	hits, err := searcher.TopK(queryVec, matrix, 3)
//
// Retrieve wraps TopK with a query-mode embedding call and maps ranked rows
// back to chunks:
//
//	s := searcher.New(emb, logger)
//	results, err := s.Retrieve(ctx, "What is the capital of France?", chunks, vectors, 3)
//	for _, r := range results {
//	    fmt.Printf("[%s] %.3f\n", r.Ref(), r.Score)
//	}
//
// # Scoring
//
// Both vectors are divided by their L2 norm plus a small epsilon (1e-10
// for the query, 1e-12 for rows) so zero vectors score 0 instead of NaN.
// Scores are nominally in [-1, 1] and are never clamped.
//
// # Ordering
//
// Results are sorted by descending score with a stable sort, so equal
// scores keep the lower candidate index first. The same input always
// produces the same order.
//
// Query embeddings are not cached: every Retrieve call on a non-empty
// collection makes exactly one embedder call.
package searcher
