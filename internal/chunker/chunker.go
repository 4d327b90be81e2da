package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/gorag/pkg/types"
)

const (
	// DefaultSize is the maximum chunk length in runes
	DefaultSize = 500

	// DefaultOverlap is the rune overlap between hard-split windows
	DefaultOverlap = 80

	paragraphSep = "\n\n"
)

// ErrInvalidSize is returned for a non-positive size or an overlap outside
// [0, size).
var ErrInvalidSize = errors.New("invalid chunk size or overlap")

// Chunker packs paragraphs into chunks of at most Size runes.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidSize, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split breaks text into chunks.
//
// Paragraphs (separated by a blank line) are trimmed and joined with a blank
// line while the result fits in Size runes. A paragraph longer than Size
// closes the chunk being built and is cut into windows of Size runes that
// start every Size-Overlap runes. Empty pieces are dropped.
func (c *Chunker) Split(text string) []string {
	var (
		chunks  []string
		current string
	)

	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, raw := range strings.Split(text, paragraphSep) {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}

		if utf8.RuneCountInString(p) > c.size {
			flush()
			chunks = append(chunks, c.hardSplit(p)...)
			continue
		}

		candidate := p
		if current != "" {
			candidate = current + paragraphSep + p
		}
		if utf8.RuneCountInString(candidate) <= c.size {
			current = candidate
			continue
		}
		flush()
		current = p
	}
	flush()

	return chunks
}

func (c *Chunker) hardSplit(p string) []string {
	runes := []rune(p)
	step := c.size - c.overlap
	if step < 1 {
		step = 1
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// ChunkDocuments splits every document and numbers its chunks from zero.
func (c *Chunker) ChunkDocuments(docs []types.Document) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(docs))
	for _, doc := range docs {
		for i, piece := range c.Split(doc.Text) {
			chunks = append(chunks, types.Chunk{
				DocID:   doc.DocID,
				ChunkID: i,
				Text:    piece,
				Source:  doc.Source,
			})
		}
	}
	return chunks
}
