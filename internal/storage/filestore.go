package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	filePrefix    = "chunk_vectors_"
	matrixFileExt = ".vec"
	metaFileExt   = ".json"
)

// FileStore keeps each entry as a matrix file plus a JSON metadata file in
// one directory. The metadata file is written last and acts as the commit
// marker.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the entries.
func (s *FileStore) Dir() string {
	return s.dir
}

// baseName maps a key to a file name stem. The model name is hex encoded
// so distinct models never share a stem.
func baseName(key Key) string {
	return filePrefix + hex.EncodeToString([]byte(key.Model)) + "_" + sanitize(key.Fingerprint)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

func (s *FileStore) paths(key Key) (matrixPath, metaPath string) {
	base := filepath.Join(s.dir, baseName(key))
	return base + matrixFileExt, base + metaFileExt
}

func (s *FileStore) Load(ctx context.Context, key Key) (*Entry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matrixPath, metaPath := s.paths(key)

	metaBytes, err := os.ReadFile(metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata: %v", ErrCorrupt, err)
	}

	var meta Meta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %v", ErrCorrupt, err)
	}

	blob, err := os.ReadFile(matrixPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read matrix: %v", ErrCorrupt, err)
	}
	vectors, err := decodeMatrix(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := checkShape(key, meta, vectors); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return &Entry{Key: key, Meta: meta, Vectors: vectors}, nil
}

func (s *FileStore) Publish(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidEntry)
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	metaBytes, err := json.MarshalIndent(entry.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	matrixPath, metaPath := s.paths(entry.Key)
	if err := WriteFileAtomic(matrixPath, encodeMatrix(entry.Vectors)); err != nil {
		return fmt.Errorf("publish matrix: %w", err)
	}
	if err := WriteFileAtomic(metaPath, metaBytes); err != nil {
		return fmt.Errorf("publish metadata: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file in the target directory, syncs
// it and renames it into place. Readers see the old file or the new one.
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]EntryInfo, error) {
	metas, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+metaFileExt))
	if err != nil {
		return nil, err
	}

	infos := make([]EntryInfo, 0, len(metas))
	for _, metaPath := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		info := EntryInfo{
			Key:       Key{Model: meta.EmbedModel, Fingerprint: meta.Fingerprint},
			NumChunks: meta.NumChunks,
			Dim:       meta.Dim,
			CreatedAt: meta.CreatedAt,
		}
		matrixPath := strings.TrimSuffix(metaPath, metaFileExt) + matrixFileExt
		if st, err := os.Stat(matrixPath); err == nil {
			info.SizeBytes = st.Size()
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos, nil
}

func (s *FileStore) Delete(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	matrixPath, metaPath := s.paths(key)
	// Metadata first so a concurrent Load sees a miss, not a half entry.
	for _, p := range []string{metaPath, matrixPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
