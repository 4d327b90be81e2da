package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Matrix blobs are a 12 byte header (magic "GRV1", rows uint32, dim uint32,
// little endian) followed by rows*dim little-endian float32 values.
var matrixMagic = [4]byte{'G', 'R', 'V', '1'}

const matrixHeaderSize = 12

var errShortMatrix = errors.New("matrix blob truncated")

// encodeMatrix serializes a rectangular matrix.
func encodeMatrix(vectors [][]float32) []byte {
	rows := len(vectors)
	dim := 0
	if rows > 0 {
		dim = len(vectors[0])
	}

	blob := make([]byte, matrixHeaderSize+rows*dim*4)
	copy(blob[:4], matrixMagic[:])
	binary.LittleEndian.PutUint32(blob[4:8], uint32(rows))
	binary.LittleEndian.PutUint32(blob[8:12], uint32(dim))

	off := matrixHeaderSize
	for _, row := range vectors {
		for _, v := range row {
			binary.LittleEndian.PutUint32(blob[off:], math.Float32bits(v))
			off += 4
		}
	}
	return blob
}

// decodeMatrix parses a blob written by encodeMatrix.
func decodeMatrix(blob []byte) ([][]float32, error) {
	if len(blob) < matrixHeaderSize {
		return nil, errShortMatrix
	}
	if [4]byte(blob[:4]) != matrixMagic {
		return nil, fmt.Errorf("bad matrix magic %q", blob[:4])
	}
	rows := int(binary.LittleEndian.Uint32(blob[4:8]))
	dim := int(binary.LittleEndian.Uint32(blob[8:12]))

	want := matrixHeaderSize + rows*dim*4
	if rows < 0 || dim < 0 || len(blob) != want {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", errShortMatrix, len(blob), rows, dim)
	}

	vectors := make([][]float32, rows)
	backing := make([]float32, rows*dim)
	off := matrixHeaderSize
	for i := range backing {
		backing[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[off:]))
		off += 4
	}
	for r := 0; r < rows; r++ {
		vectors[r] = backing[r*dim : (r+1)*dim : (r+1)*dim]
	}
	return vectors, nil
}
