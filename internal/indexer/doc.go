// Package indexer turns a directory of text documents into the chunk file
// the answering pipeline loads.
//
// # Basic Usage
//
//	c, _ := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
//	idx := indexer.New(c, nil, logger)
//
//	chunks, stats, err := idx.Ingest(ctx, "data/public_docs", "cache/chunks.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d documents, %d chunks in %v\n",
//	    stats.DocumentsLoaded, stats.ChunksCreated, stats.Duration)
//
// # Pipeline
//
//  1. Discovery: walk the data directory for .txt and .md files, skipping
//     hidden directories. PDF files are counted as skipped since no text
//     extractor is built in.
//  2. Read and clean (parallel): carriage returns become newlines, runs of
//     three or more newlines collapse to a blank line, runs of spaces and
//     tabs collapse to one space. Invalid UTF-8 is dropped.
//  3. Filter: documents shorter than MinDocLength runes are skipped.
//  4. Chunk: paragraph packing (see package chunker).
//  5. Write: the chunk sequence is written to a temp file and renamed over
//     the chunks file.
//
// The doc_id of a document is its file name without extension. When two
// files share a stem, the first in path order wins and the other is
// reported in Statistics.ErrorMessages.
//
// # Concurrency
//
// Files are read by a bounded errgroup. Results land in per-file slots, so
// output order is path order whatever the worker count. One Indexer runs one
// ingest at a time; a second call while one is running returns
// ErrIndexingInProgress instead of waiting.
package indexer
