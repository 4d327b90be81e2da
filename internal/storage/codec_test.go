package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatrixCodec(t *testing.T) {
	t.Run("preserves special values", func(t *testing.T) {
		in := [][]float32{
			{0, -0.5, float32(math.Inf(1))},
			{math.MaxFloat32, math.SmallestNonzeroFloat32, -1},
		}
		out, err := decodeMatrix(encodeMatrix(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("empty matrix", func(t *testing.T) {
		blob := encodeMatrix(nil)
		assert.Len(t, blob, matrixHeaderSize)
		out, err := decodeMatrix(blob)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("rows do not alias past their end", func(t *testing.T) {
		out, err := decodeMatrix(encodeMatrix(testMatrix(2, 2)))
		require.NoError(t, err)
		out[0] = append(out[0], 99)
		assert.Equal(t, float32(2.25), out[1][0])
	})

	t.Run("rejects damage", func(t *testing.T) {
		blob := encodeMatrix(testMatrix(2, 2))

		_, err := decodeMatrix(blob[:5])
		assert.Error(t, err)

		_, err = decodeMatrix(blob[:len(blob)-1])
		assert.Error(t, err)

		bad := append([]byte(nil), blob...)
		bad[0] = 'X'
		_, err = decodeMatrix(bad)
		assert.Error(t, err)
	})
}

func BenchmarkDecodeMatrix(b *testing.B) {
	blob := encodeMatrix(testMatrix(2000, 1024))
	b.ReportAllocs()
	b.SetBytes(int64(len(blob)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = decodeMatrix(blob)
	}
}
