package vectorcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dshills/gorag/pkg/types"
)

// fingerprintRecord fixes the canonical field set and order (keys sorted).
// Source is deliberately absent: moving a file does not change its vectors.
type fingerprintRecord struct {
	ChunkID int    `json:"chunk_id"`
	DocID   string `json:"doc_id"`
	Text    string `json:"text"`
}

// Fingerprint returns the hex SHA-256 of the canonical JSON form of the
// ordered (doc_id, chunk_id, text) triples. Text is NFC normalised so that
// equivalent Unicode encodings hash identically.
func Fingerprint(chunks []types.Chunk) string {
	records := make([]fingerprintRecord, len(chunks))
	for i, c := range chunks {
		records[i] = fingerprintRecord{
			ChunkID: c.ChunkID,
			DocID:   norm.NFC.String(c.DocID),
			Text:    norm.NFC.String(c.Text),
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a slice of plain structs cannot fail.
	_ = enc.Encode(records)

	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:])
}

// NormalizeModel canonicalises an embedding model name for use in keys.
func NormalizeModel(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}
