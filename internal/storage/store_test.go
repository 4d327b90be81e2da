package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories runs the shared contract against every backend.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return s
		},
	}
}

func testKey(fp string) Key {
	return Key{Model: "nvidia/nv-embedqa-e5-v5", Fingerprint: fp}
}

func testMatrix(rows, dim int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, dim)
		for j := range m[i] {
			m[i][j] = float32(i*dim+j) + 0.25
		}
	}
	return m
}

func TestStoreContract(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("miss", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				_, err := s.Load(ctx, testKey("abc"))
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("publish then load", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				key := testKey("abc")
				created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
				entry := NewEntry(key, testMatrix(3, 4), created)
				require.NoError(t, s.Publish(ctx, entry))

				got, err := s.Load(ctx, key)
				require.NoError(t, err)
				assert.Equal(t, key, got.Key)
				assert.Equal(t, entry.Vectors, got.Vectors)
				assert.Equal(t, 3, got.Meta.NumChunks)
				assert.Equal(t, 4, got.Meta.Dim)
				assert.Equal(t, key.Model, got.Meta.EmbedModel)
				assert.Equal(t, key.Fingerprint, got.Meta.Fingerprint)
				assert.True(t, created.Equal(got.Meta.CreatedAt))
			})

			t.Run("same fingerprint different model is a miss", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				require.NoError(t, s.Publish(ctx, NewEntry(testKey("abc"), testMatrix(1, 2), time.Now())))
				_, err := s.Load(ctx, Key{Model: "other-model", Fingerprint: "abc"})
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("republish replaces", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				key := testKey("abc")
				require.NoError(t, s.Publish(ctx, NewEntry(key, testMatrix(2, 2), time.Now())))
				require.NoError(t, s.Publish(ctx, NewEntry(key, testMatrix(2, 3), time.Now())))

				got, err := s.Load(ctx, key)
				require.NoError(t, err)
				assert.Equal(t, 3, got.Meta.Dim)

				infos, err := s.List(ctx)
				require.NoError(t, err)
				assert.Len(t, infos, 1)
			})

			t.Run("list oldest first and delete", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
				for i, fp := range []string{"c", "a", "b"} {
					e := NewEntry(testKey(fp), testMatrix(2, 2), base.Add(time.Duration(i)*time.Hour))
					require.NoError(t, s.Publish(ctx, e))
				}

				infos, err := s.List(ctx)
				require.NoError(t, err)
				require.Len(t, infos, 3)
				assert.Equal(t, "c", infos[0].Key.Fingerprint)
				assert.Equal(t, "a", infos[1].Key.Fingerprint)
				assert.Equal(t, "b", infos[2].Key.Fingerprint)
				assert.Equal(t, 2, infos[0].NumChunks)
				assert.Greater(t, infos[0].SizeBytes, int64(0))

				require.NoError(t, s.Delete(ctx, testKey("a")))
				require.NoError(t, s.Delete(ctx, testKey("a")), "deleting twice is fine")

				_, err = s.Load(ctx, testKey("a"))
				assert.ErrorIs(t, err, ErrNotFound)

				infos, err = s.List(ctx)
				require.NoError(t, err)
				assert.Len(t, infos, 2)
			})

			t.Run("rejects invalid entries", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				assert.ErrorIs(t, s.Publish(ctx, nil), ErrInvalidEntry)
				assert.ErrorIs(t, s.Publish(ctx, NewEntry(Key{Fingerprint: "x"}, testMatrix(1, 1), time.Now())), ErrInvalidEntry)

				ragged := NewEntry(testKey("r"), [][]float32{{1, 2}, {3}}, time.Now())
				assert.ErrorIs(t, s.Publish(ctx, ragged), ErrInvalidEntry)
			})

			t.Run("concurrent publish of one key", func(t *testing.T) {
				s := newStore(t)
				defer s.Close()

				key := testKey("race")
				var wg sync.WaitGroup
				errs := make(chan error, 8)
				for i := 0; i < 8; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						errs <- s.Publish(ctx, NewEntry(key, testMatrix(5, 3), time.Now()))
					}()
				}
				wg.Wait()
				close(errs)
				for err := range errs {
					require.NoError(t, err)
				}

				got, err := s.Load(ctx, key)
				require.NoError(t, err)
				assert.Len(t, got.Vectors, 5)
			})
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	ctx := context.Background()
	key := Key{Model: "nvidia/nv-embedqa-e5-v5", Fingerprint: "deadbeef"}
	require.NoError(t, s.Publish(ctx, NewEntry(key, testMatrix(2, 2), time.Now())))

	base := filepath.Join(dir, "chunk_vectors_6e76696469612f6e762d656d62656471612d65352d7635_deadbeef")
	assert.FileExists(t, base+".vec")
	assert.FileExists(t, base+".json")

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files must not survive a publish")

	t.Run("path characters are neutralised", func(t *testing.T) {
		assert.Equal(t, "chunk_vectors_2e2e2f2e2e2f657463_ab", baseName(Key{Model: "../../etc", Fingerprint: "ab"}))
		assert.NotContains(t, baseName(Key{Model: `a\b:c`, Fingerprint: "f"}), `\`)
		assert.NotContains(t, baseName(Key{Model: "x", Fingerprint: "../y"}), "/")
	})

	t.Run("similar model names keep separate entries", func(t *testing.T) {
		slash := Key{Model: "org/model", Fingerprint: "cafe"}
		underscores := Key{Model: "org__model", Fingerprint: "cafe"}
		assert.NotEqual(t, baseName(slash), baseName(underscores))

		require.NoError(t, s.Publish(ctx, NewEntry(slash, testMatrix(1, 2), time.Now())))
		require.NoError(t, s.Publish(ctx, NewEntry(underscores, testMatrix(2, 2), time.Now())))

		got, err := s.Load(ctx, slash)
		require.NoError(t, err)
		assert.Len(t, got.Vectors, 1)
		got, err = s.Load(ctx, underscores)
		require.NoError(t, err)
		assert.Len(t, got.Vectors, 2)
	})
}

func TestFileStoreCorruption(t *testing.T) {
	ctx := context.Background()
	key := testKey("feed")

	setup := func(t *testing.T) (*FileStore, string, string) {
		dir := t.TempDir()
		s, err := NewFileStore(dir)
		require.NoError(t, err)
		require.NoError(t, s.Publish(ctx, NewEntry(key, testMatrix(3, 2), time.Now())))
		matrixPath, metaPath := s.paths(key)
		return s, matrixPath, metaPath
	}

	tests := []struct {
		name   string
		mutate func(t *testing.T, matrixPath, metaPath string)
	}{
		{
			name: "truncated matrix",
			mutate: func(t *testing.T, matrixPath, _ string) {
				data, err := os.ReadFile(matrixPath)
				require.NoError(t, err)
				require.NoError(t, os.WriteFile(matrixPath, data[:len(data)-3], 0644))
			},
		},
		{
			name: "missing matrix",
			mutate: func(t *testing.T, matrixPath, _ string) {
				require.NoError(t, os.Remove(matrixPath))
			},
		},
		{
			name: "garbage metadata",
			mutate: func(t *testing.T, _, metaPath string) {
				require.NoError(t, os.WriteFile(metaPath, []byte("{not json"), 0644))
			},
		},
		{
			name: "metadata fingerprint disagrees",
			mutate: func(t *testing.T, _, metaPath string) {
				meta := fmt.Sprintf(`{"fingerprint":"other","num_chunks":3,"dim":2,"embed_model":%q}`, key.Model)
				require.NoError(t, os.WriteFile(metaPath, []byte(meta), 0644))
			},
		},
		{
			name: "metadata row count disagrees",
			mutate: func(t *testing.T, _, metaPath string) {
				meta := fmt.Sprintf(`{"fingerprint":%q,"num_chunks":4,"dim":2,"embed_model":%q}`, key.Fingerprint, key.Model)
				require.NoError(t, os.WriteFile(metaPath, []byte(meta), 0644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, matrixPath, metaPath := setup(t)
			tt.mutate(t, matrixPath, metaPath)

			_, err := s.Load(ctx, key)
			assert.ErrorIs(t, err, ErrCorrupt)
			assert.False(t, errors.Is(err, ErrNotFound))

			// A fresh publish repairs the entry.
			require.NoError(t, s.Publish(ctx, NewEntry(key, testMatrix(3, 2), time.Now())))
			got, err := s.Load(ctx, key)
			require.NoError(t, err)
			assert.Len(t, got.Vectors, 3)
		})
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	fs, err := Open("file", filepath.Join(dir, "f"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fs)
	require.NoError(t, fs.Close())

	ss, err := Open("SQLite", filepath.Join(dir, "s"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, ss)
	require.NoError(t, ss.Close())
	assert.FileExists(t, filepath.Join(dir, "s", SQLiteFileName))

	_, err = Open("redis", dir)
	assert.Error(t, err)
}
