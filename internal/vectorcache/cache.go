package vectorcache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/gorag/internal/embedder"
	"github.com/dshills/gorag/internal/storage"
	"github.com/dshills/gorag/pkg/types"
)

var (
	// ErrInvalidModel is returned for an empty model name
	ErrInvalidModel = errors.New("embedding model is required")
	// ErrModelMismatch is returned when the requested model is not the
	// model the cache's embedder produces
	ErrModelMismatch = errors.New("embedding model mismatch")
	// ErrInvalidChunks is returned when the chunk sequence fails validation
	ErrInvalidChunks = errors.New("invalid chunk sequence")
)

// DefaultMemoSize is the number of published matrices kept in process
const DefaultMemoSize = 8

// Options configures a Cache.
type Options struct {
	MemoSize int
	Logger   *zap.Logger
	Now      func() time.Time
}

// Cache maps chunk sequences to their passage embedding matrices.
//
// Matrices returned by GetOrBuild are shared between callers and must not
// be modified.
type Cache struct {
	store  storage.Store
	emb    embedder.Embedder
	logger *zap.Logger
	now    func() time.Time

	memo  *lru.Cache[storage.Key, [][]float32]
	group singleflight.Group

	hits    atomic.Int64
	misses  atomic.Int64
	builds  atomic.Int64
	corrupt atomic.Int64
}

// New creates a cache over store that builds missing entries with emb.
func New(store storage.Store, emb embedder.Embedder, opts Options) (*Cache, error) {
	if store == nil {
		return nil, errors.New("vector cache requires a store")
	}
	if emb == nil {
		return nil, errors.New("vector cache requires an embedder")
	}
	if opts.MemoSize <= 0 {
		opts.MemoSize = DefaultMemoSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	memo, err := lru.New[storage.Key, [][]float32](opts.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("create memo: %w", err)
	}

	return &Cache{
		store:  store,
		emb:    emb,
		logger: opts.Logger,
		now:    opts.Now,
		memo:   memo,
	}, nil
}

// Key returns the cache key for chunks under model.
func Key(chunks []types.Chunk, model string) storage.Key {
	return storage.Key{Model: NormalizeModel(model), Fingerprint: Fingerprint(chunks)}
}

// GetOrBuild returns the passage embedding matrix for chunks, loading it
// from the store when an entry for (model, fingerprint) exists and building
// and publishing it otherwise. Row i embeds chunks[i].
//
// Concurrent callers for the same key share one build. A caller whose
// context ends while waiting returns the context error; the build itself
// runs to completion so the entry still gets published.
func (c *Cache) GetOrBuild(ctx context.Context, chunks []types.Chunk, model string) ([][]float32, error) {
	key, err := c.key(chunks, model)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}

	if vectors, ok := c.memo.Get(key); ok {
		c.hits.Add(1)
		return vectors, nil
	}

	buildCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		return c.loadOrBuild(buildCtx, key, chunks)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([][]float32), nil
	}
}

// Cached reports whether a valid entry for chunks is already published,
// without building one.
func (c *Cache) Cached(ctx context.Context, chunks []types.Chunk, model string) (bool, error) {
	key, err := c.key(chunks, model)
	if err != nil {
		return false, err
	}
	if len(chunks) == 0 {
		return false, nil
	}
	if c.memo.Contains(key) {
		return true, nil
	}
	_, err = c.store.Load(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrCorrupt):
		return false, nil
	default:
		return false, err
	}
}

func (c *Cache) key(chunks []types.Chunk, model string) (storage.Key, error) {
	normalized := NormalizeModel(model)
	if normalized == "" {
		return storage.Key{}, ErrInvalidModel
	}
	if want := NormalizeModel(c.emb.Model()); normalized != want {
		return storage.Key{}, fmt.Errorf("%w: requested %q, embedder produces %q", ErrModelMismatch, normalized, want)
	}
	if err := types.ValidateChunks(chunks); err != nil {
		return storage.Key{}, fmt.Errorf("%w: %v", ErrInvalidChunks, err)
	}
	return storage.Key{Model: normalized, Fingerprint: Fingerprint(chunks)}, nil
}

func (c *Cache) loadOrBuild(ctx context.Context, key storage.Key, chunks []types.Chunk) ([][]float32, error) {
	entry, err := c.store.Load(ctx, key)
	switch {
	case err == nil && len(entry.Vectors) == len(chunks):
		c.hits.Add(1)
		c.memo.Add(key, entry.Vectors)
		return entry.Vectors, nil
	case err == nil:
		c.corrupt.Add(1)
		c.logger.Warn("cache entry row count does not match chunks, rebuilding",
			zap.String("key", key.String()),
			zap.Int("rows", len(entry.Vectors)),
			zap.Int("chunks", len(chunks)))
	case errors.Is(err, storage.ErrNotFound):
		c.misses.Add(1)
	case errors.Is(err, storage.ErrCorrupt):
		c.corrupt.Add(1)
		c.logger.Warn("cache entry corrupt, rebuilding",
			zap.String("key", key.String()),
			zap.Error(err))
	default:
		return nil, fmt.Errorf("load cache entry: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	start := c.now()
	vectors, err := c.emb.Embed(ctx, texts, embedder.ModePassage)
	if err != nil {
		return nil, err
	}
	if err := embedder.CheckVectors(vectors, len(texts)); err != nil {
		return nil, err
	}
	c.builds.Add(1)

	if err := c.store.Publish(ctx, storage.NewEntry(key, vectors, c.now())); err != nil {
		return nil, fmt.Errorf("publish cache entry: %w", err)
	}
	c.memo.Add(key, vectors)

	c.logger.Info("vector cache entry built",
		zap.String("model", key.Model),
		zap.String("fingerprint", key.Fingerprint),
		zap.Int("chunks", len(vectors)),
		zap.Int("dim", len(vectors[0])),
		zap.Duration("duration", c.now().Sub(start)))

	return vectors, nil
}

// Policy selects entries for Sweep. Zero fields disable that rule.
type Policy struct {
	MaxAge     time.Duration // remove entries created longer ago than this
	MaxEntries int           // then keep at most this many, newest first
	Keep       []storage.Key // never removed
}

// Sweep deletes stored entries according to p and returns the removed keys.
func (c *Cache) Sweep(ctx context.Context, p Policy) ([]storage.Key, error) {
	infos, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}

	keep := make(map[storage.Key]struct{}, len(p.Keep))
	for _, k := range p.Keep {
		keep[k] = struct{}{}
	}

	var (
		removed   []storage.Key
		survivors []storage.EntryInfo
		kept      int
	)
	cutoff := c.now().Add(-p.MaxAge)
	for _, info := range infos {
		if _, ok := keep[info.Key]; ok {
			kept++
			continue
		}
		if p.MaxAge > 0 && info.CreatedAt.Before(cutoff) {
			removed = append(removed, info.Key)
			continue
		}
		survivors = append(survivors, info)
	}

	if p.MaxEntries > 0 {
		// only kept keys that are actually stored use up the budget
		budget := p.MaxEntries - kept
		if budget < 0 {
			budget = 0
		}
		// infos are oldest first
		if excess := len(survivors) - budget; excess > 0 {
			for _, info := range survivors[:excess] {
				removed = append(removed, info.Key)
			}
		}
	}

	for _, key := range removed {
		if err := c.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("delete %s: %w", key, err)
		}
		c.memo.Remove(key)
	}

	if len(removed) > 0 {
		c.logger.Info("vector cache swept",
			zap.Int("removed", len(removed)),
			zap.Int("remaining", len(infos)-len(removed)))
	}
	return removed, nil
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits     int64
	Misses   int64
	Builds   int64
	Corrupt  int64
	Memoized int
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Builds:   c.builds.Load(),
		Corrupt:  c.corrupt.Load(),
		Memoized: c.memo.Len(),
	}
}

// Entries lists the stored entries, oldest first.
func (c *Cache) Entries(ctx context.Context) ([]storage.EntryInfo, error) {
	return c.store.List(ctx)
}
