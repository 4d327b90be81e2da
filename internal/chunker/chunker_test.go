package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gorag/pkg/types"
)

func TestNew(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	assert.NotNil(t, c)

	for _, tc := range [][2]int{{0, 0}, {-1, 0}, {10, 10}, {10, -1}, {10, 11}} {
		_, err := New(tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidSize, "size %d overlap %d", tc[0], tc[1])
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name: "empty text",
			size: 20,
			text: "  \n\n  ",
			want: nil,
		},
		{
			name: "packs paragraphs that fit",
			size: 20,
			text: "aaaa\n\nbbbb\n\ncccc",
			want: []string{"aaaa\n\nbbbb\n\ncccc"},
		},
		{
			name: "starts new chunk when full",
			size: 10,
			text: "aaaa\n\nbbbb\n\ncccc",
			want: []string{"aaaa\n\nbbbb", "cccc"},
		},
		{
			name: "trims paragraphs and skips blanks",
			size: 20,
			text: "  aaaa  \n\n\n\n   \n\nbbbb ",
			want: []string{"aaaa\n\nbbbb"},
		},
		{
			name:    "hard splits long paragraph with overlap",
			size:    4,
			overlap: 1,
			text:    "ab\n\nabcdefghij\n\ncd",
			want:    []string{"ab", "abcd", "defg", "ghij", "j", "cd"},
		},
		{
			name:    "hard split windows are trimmed",
			size:    4,
			overlap: 0,
			text:    "abc  defg",
			want:    []string{"abc", "def", "g"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.size, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Split(tt.text))
		})
	}
}

func TestSplitCountsRunes(t *testing.T) {
	c, err := New(5, 0)
	require.NoError(t, err)

	five := strings.Repeat("\u00e9", 5)
	// Five runes, ten bytes: fits.
	assert.Equal(t, []string{five}, c.Split(five))
	assert.Equal(t, []string{five, "\u00e9"}, c.Split(five+"\u00e9"))
}

func TestSplitRespectsSize(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString(strings.Repeat("word ", 10+i*7))
		b.WriteString("\n\n")
	}

	chunks := c.Split(b.String())
	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), DefaultSize, "chunk %d", i)
		assert.Equal(t, strings.TrimSpace(ch), ch)
	}
}

func TestChunkDocuments(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	docs := []types.Document{
		{DocID: "alpha", Source: "docs/alpha.txt", Text: "aaaa\n\nbbbb\n\ncccc"},
		{DocID: "beta", Source: "docs/beta.md", Text: "dddd"},
	}

	chunks := c.ChunkDocuments(docs)
	require.Len(t, chunks, 3)
	assert.Equal(t, types.Chunk{DocID: "alpha", ChunkID: 0, Text: "aaaa\n\nbbbb", Source: "docs/alpha.txt"}, chunks[0])
	assert.Equal(t, types.Chunk{DocID: "alpha", ChunkID: 1, Text: "cccc", Source: "docs/alpha.txt"}, chunks[1])
	assert.Equal(t, types.Chunk{DocID: "beta", ChunkID: 0, Text: "dddd", Source: "docs/beta.md"}, chunks[2])
	assert.NoError(t, types.ValidateChunks(chunks))
}
