package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/gorag/internal/chunker"
	"github.com/dshills/gorag/internal/storage"
	"github.com/dshills/gorag/pkg/types"
)

var (
	// ErrIndexingInProgress is returned when an ingest is already running
	ErrIndexingInProgress = errors.New("indexing already in progress")
	// ErrDataDirNotFound is returned when the documents directory is missing
	ErrDataDirNotFound = errors.New("data directory not found")
)

// DefaultMinDocLength is the shortest cleaned document kept, in runes.
const DefaultMinDocLength = 50

var (
	textExts    = map[string]bool{".txt": true, ".md": true}
	skippedExts = map[string]bool{".pdf": true}

	manyNewlines = regexp.MustCompile(`\n{3,}`)
	manyBlanks   = regexp.MustCompile(`[ \t]{2,}`)
)

// Indexer runs the ingest pipeline: discover -> read and clean -> chunk ->
// write the chunks file.
type Indexer struct {
	chunker *chunker.Chunker
	logger  *zap.Logger
	lock    IndexLock

	workers      int
	minDocLength int
}

// Config contains configuration for the indexer
type Config struct {
	Workers      int // Number of concurrent file readers (default: runtime.NumCPU())
	MinDocLength int // Documents shorter than this are skipped (default: 50)
}

// Statistics contains statistics about the ingest operation
type Statistics struct {
	FilesFound      int
	DocumentsLoaded int
	FilesSkipped    int
	ChunksCreated   int
	Duration        time.Duration
	ErrorMessages   []string
}

// New creates a new Indexer instance
func New(c *chunker.Chunker, config *Config, logger *zap.Logger) *Indexer {
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &Indexer{
		chunker:      c,
		logger:       logger,
		workers:      config.Workers,
		minDocLength: config.MinDocLength,
	}
	if idx.workers <= 0 {
		idx.workers = runtime.NumCPU()
	}
	if idx.minDocLength <= 0 {
		idx.minDocLength = DefaultMinDocLength
	}
	return idx
}

// Ingest loads every document under dataDir, chunks it and writes the chunk
// sequence to chunksFile. Overlapping calls fail with ErrIndexingInProgress.
func (idx *Indexer) Ingest(ctx context.Context, dataDir, chunksFile string) ([]types.Chunk, *Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	startTime := time.Now()

	docs, stats, err := idx.LoadDocuments(ctx, dataDir)
	if err != nil {
		return nil, nil, err
	}

	chunks := idx.chunker.ChunkDocuments(docs)
	if err := types.ValidateChunks(chunks); err != nil {
		return nil, nil, fmt.Errorf("invalid chunks: %w", err)
	}
	if err := WriteChunks(chunksFile, chunks); err != nil {
		return nil, nil, err
	}

	stats.ChunksCreated = len(chunks)
	stats.Duration = time.Since(startTime)

	idx.logger.Info("ingest complete",
		zap.String("data_dir", dataDir),
		zap.String("chunks_file", chunksFile),
		zap.Int("files", stats.FilesFound),
		zap.Int("documents", stats.DocumentsLoaded),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("chunks", stats.ChunksCreated),
		zap.Duration("duration", stats.Duration))

	return chunks, stats, nil
}

// LoadDocuments discovers, reads and cleans documents under dataDir in path
// order. Unreadable, too short and unsupported files are skipped and
// counted; read failures are also listed in ErrorMessages.
func (idx *Indexer) LoadDocuments(ctx context.Context, dataDir string) ([]types.Document, *Statistics, error) {
	startTime := time.Now()

	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrDataDirNotFound, dataDir)
	}

	files, unsupported, err := discoverFiles(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to discover files: %w", err)
	}

	stats := &Statistics{
		FilesFound:    len(files) + unsupported,
		FilesSkipped:  unsupported,
		ErrorMessages: make([]string, 0),
	}

	// One slot per file keeps output in path order.
	docs := make([]*types.Document, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	var mu sync.Mutex // Protect stats.ErrorMessages

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := idx.readDocument(path)
			if err != nil {
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make([]types.Document, 0, len(docs))
	seen := make(map[string]string, len(docs))
	for i, doc := range docs {
		if doc == nil {
			stats.FilesSkipped++
			continue
		}
		if first, dup := seen[doc.DocID]; dup {
			stats.FilesSkipped++
			stats.ErrorMessages = append(stats.ErrorMessages,
				fmt.Sprintf("%s: doc_id %q already used by %s", files[i], doc.DocID, first))
			continue
		}
		seen[doc.DocID] = doc.Source
		out = append(out, *doc)
	}

	stats.DocumentsLoaded = len(out)
	stats.Duration = time.Since(startTime)

	for _, msg := range stats.ErrorMessages {
		idx.logger.Warn("skipped file", zap.String("reason", msg))
	}
	return out, stats, nil
}

// readDocument returns nil without error for documents that are too short.
func (idx *Indexer) readDocument(path string) (*types.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text := CleanText(strings.ToValidUTF8(string(raw), ""))
	if utf8.RuneCountInString(text) < idx.minDocLength {
		idx.logger.Debug("document too short", zap.String("path", path))
		return nil, nil
	}

	base := filepath.Base(path)
	return &types.Document{
		DocID:  strings.TrimSuffix(base, filepath.Ext(base)),
		Source: path,
		Text:   text,
	}, nil
}

// discoverFiles returns supported files sorted by path and the number of
// recognised but unsupported files. Hidden directories are skipped.
func discoverFiles(root string) ([]string, int, error) {
	var (
		files       []string
		unsupported int
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case textExts[ext]:
			files = append(files, path)
		case skippedExts[ext]:
			unsupported++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Strings(files)
	return files, unsupported, nil
}

// CleanText normalises line endings and collapses runs of blank lines and
// horizontal whitespace.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r", "\n")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	text = manyBlanks.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// WriteChunks atomically writes chunks as an indented JSON array, creating
// the parent directory.
func WriteChunks(path string, chunks []types.Chunk) error {
	if chunks == nil {
		chunks = []types.Chunk{}
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chunks dir: %w", err)
	}
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write chunks: %w", err)
	}
	return nil
}

// LoadChunks reads and validates a chunks file.
func LoadChunks(path string) ([]types.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	var chunks []types.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks %s: %w", path, err)
	}
	if err := types.ValidateChunks(chunks); err != nil {
		return nil, fmt.Errorf("invalid chunks %s: %w", path, err)
	}
	if chunks == nil {
		chunks = []types.Chunk{}
	}
	return chunks, nil
}
