// Package chunker divides cleaned documents into retrievable chunks.
//
// # Basic Usage
//
//	c, err := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	chunks := c.ChunkDocuments(docs)
//
//	for _, ch := range chunks {
//	    fmt.Printf("%s: %d runes\n", ch.Ref(), utf8.RuneCountInString(ch.Text))
//	}
//
// # Chunking Strategy
//
// Paragraphs are the unit of packing. Consecutive paragraphs share a chunk
// while the joined text stays within the size limit, so most chunks end on
// a paragraph boundary.
//
// A single paragraph longer than the limit (typical of text extracted
// without line structure) is cut into fixed windows. Windows overlap by
// Overlap runes so a sentence cut at one boundary still appears whole in
// the neighbouring window.
//
// Lengths are counted in runes, not bytes.
//
// # Chunk Identity
//
// ChunkID is the position of the chunk within its document, starting at 0.
// A chunk is identified by (DocID, ChunkID); ChunkID alone repeats across
// documents.
package chunker
