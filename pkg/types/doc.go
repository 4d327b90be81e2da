// Package types provides shared domain types for gorag.
//
// # Core Types
//
// Document is a cleaned source file produced by the indexer:
//
//	doc := types.Document{DocID: "handbook", Source: "data/handbook.md", Text: text}
//
// Chunk is the unit of retrieval. Chunks are identified by the pair
// (DocID, ChunkID), never by their position in a slice:
//
//	chunk := types.Chunk{DocID: "handbook", ChunkID: 0, Text: "...", Source: "data/handbook.md"}
//	chunk.Ref() // "handbook#0"
//
// RetrievalResult is one ranked hit returned by the searcher. It copies the
// chunk's identity, text and source together with the cosine score:
//
//	for _, r := range results {
//	    fmt.Printf("[%s] %.3f\n", r.Ref(), r.Score)
//	}
//
// # Validation
//
// ValidateChunks rejects chunks without a doc_id, with a negative chunk_id,
// with empty text, or with a duplicated identity.
package types
