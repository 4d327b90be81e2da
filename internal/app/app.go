// Package app wires configuration into the components shared by the
// command line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/gorag/internal/agent"
	"github.com/dshills/gorag/internal/chunker"
	"github.com/dshills/gorag/internal/config"
	"github.com/dshills/gorag/internal/embedder"
	"github.com/dshills/gorag/internal/evaluator"
	"github.com/dshills/gorag/internal/gate"
	"github.com/dshills/gorag/internal/generator"
	"github.com/dshills/gorag/internal/indexer"
	"github.com/dshills/gorag/internal/searcher"
	"github.com/dshills/gorag/internal/storage"
	"github.com/dshills/gorag/internal/vectorcache"
	"github.com/dshills/gorag/pkg/types"
)

// ErrNoChunks is returned when the chunks file has not been created yet.
var ErrNoChunks = errors.New("chunks file not found, run ingest first")

// Ingest chunks the documents under the configured data directory and
// writes the chunks file. It needs no embedder.
func Ingest(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]types.Chunk, *indexer.Statistics, error) {
	c, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, nil, err
	}
	idx := indexer.New(c, &indexer.Config{
		Workers:      cfg.Chunking.Workers,
		MinDocLength: cfg.Chunking.MinDocLength,
	}, logger)
	return idx.Ingest(ctx, cfg.Paths.DataDir, cfg.Paths.ChunksFile)
}

// Recorder returns the evaluation recorder for the configured metrics dir.
func Recorder(cfg *config.Config, logger *zap.Logger) *evaluator.Recorder {
	return evaluator.NewRecorder(cfg.Paths.MetricsDir, evaluator.WithLogger(logger))
}

// Deps holds the embedding side of the pipeline.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	Embedder embedder.Embedder
	Store    storage.Store
	Cache    *vectorcache.Cache
}

// Open creates the embedder, cache store and vector cache.
func Open(cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	emb, err := embedder.New(cfg.Embedder())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	store, err := storage.Open(cfg.Cache.Backend, cfg.Paths.CacheDir)
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	cache, err := vectorcache.New(store, emb, vectorcache.Options{
		MemoSize: cfg.Cache.MemoSize,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, err
	}

	return &Deps{
		Config:   cfg,
		Logger:   logger,
		Embedder: emb,
		Store:    store,
		Cache:    cache,
	}, nil
}

// Close releases the store and the embedder.
func (d *Deps) Close() error {
	return errors.Join(d.Store.Close(), d.Embedder.Close())
}

// LoadChunks reads the chunks file.
func (d *Deps) LoadChunks() ([]types.Chunk, error) {
	chunks, err := indexer.LoadChunks(d.Config.Paths.ChunksFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, d.Config.Paths.ChunksFile)
	}
	return chunks, err
}

// Collection loads the chunks and their passage embeddings, building and
// caching the embeddings when needed.
func (d *Deps) Collection(ctx context.Context) (*agent.Collection, error) {
	chunks, err := d.LoadChunks()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	col, err := agent.LoadCollection(ctx, d.Cache, chunks, d.Embedder.Model())
	if err != nil {
		return nil, err
	}
	d.Logger.Info("collection ready",
		zap.Int("chunks", col.Len()),
		zap.String("embed_model", col.Model),
		zap.Duration("duration", time.Since(start)))
	return col, nil
}

// Generator creates the chat client.
func (d *Deps) Generator() (generator.Generator, error) {
	return generator.NewOpenAIGenerator(d.Config.Generator())
}

// Agent builds the answering agent over the cached collection. When
// requireGenerator is false a missing generation key is logged and the
// agent answers every confident turn with a generation error.
func (d *Deps) Agent(ctx context.Context, requireGenerator bool) (*agent.Agent, error) {
	col, err := d.Collection(ctx)
	if err != nil {
		return nil, err
	}

	g, err := gate.New(d.Config.Retrieval.ConfidentScore, d.Config.Retrieval.ConfidentScoreVague)
	if err != nil {
		return nil, err
	}

	var gen generator.Generator
	if client, err := d.Generator(); err == nil {
		gen = client
	} else if requireGenerator {
		return nil, err
	} else {
		d.Logger.Warn("generation disabled", zap.Error(err))
	}

	return agent.New(agent.Config{
		Collection:      col,
		Searcher:        searcher.New(d.Embedder, d.Logger),
		Gate:            g,
		Generator:       gen,
		Recorder:        Recorder(d.Config, d.Logger),
		HistoryMessages: d.Config.Retrieval.HistoryMessages,
		Logger:          d.Logger,
	})
}

// Sweep removes cache entries by the configured policy, overridden by
// maxAge and maxEntries when they are positive. The entry for the current
// chunks file is always kept.
func (d *Deps) Sweep(ctx context.Context, maxAge time.Duration, maxEntries int) ([]storage.Key, error) {
	policy := vectorcache.Policy{
		MaxAge:     d.Config.Cache.MaxAge,
		MaxEntries: d.Config.Cache.MaxEntries,
	}
	if maxAge > 0 {
		policy.MaxAge = maxAge
	}
	if maxEntries > 0 {
		policy.MaxEntries = maxEntries
	}

	chunks, err := d.LoadChunks()
	switch {
	case err == nil:
		policy.Keep = []storage.Key{vectorcache.Key(chunks, d.Embedder.Model())}
	case errors.Is(err, ErrNoChunks):
	default:
		return nil, err
	}

	return d.Cache.Sweep(ctx, policy)
}
