package embedder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
)

// LocalConfig configures the in-process sentence-transformer embedder.
type LocalConfig struct {
	ModelName     string // Hugging Face model name, e.g. sentence-transformers/all-MiniLM-L6-v2
	ModelDir      string // Directory holding downloaded models
	OnnxFilePath  string // ONNX file inside the model repository
	QueryPrefix   string // Prepended to texts embedded in query mode
	PassagePrefix string // Prepended to texts embedded in passage mode
	BatchSize     int
}

// LocalProvider runs a feature-extraction pipeline through hugot's pure Go
// backend. Query and passage modes differ only by the configured prefixes.
type LocalProvider struct {
	mu        sync.Mutex
	model     string
	cfg       LocalConfig
	run       func(texts []string) ([][]float32, error)
	closeFunc func() error
}

// NewLocalProvider downloads the model when missing and starts a session.
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultLocalModel
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = "models"
	}
	if cfg.OnnxFilePath == "" {
		cfg.OnnxFilePath = "onnx/model.onnx"
	}

	modelPath, err := prepareModel(cfg)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("%w: create hugot session: %v", ErrEmbeddingBackend, err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "gorag-embedder",
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("%w: create pipeline: %v (cleanup error: %v)", ErrEmbeddingBackend, err, destroyErr)
		}
		return nil, fmt.Errorf("%w: create pipeline: %v", ErrEmbeddingBackend, err)
	}

	run := func(texts []string) ([][]float32, error) {
		result, err := pipeline.RunPipeline(texts)
		if err != nil {
			return nil, err
		}
		return result.Embeddings, nil
	}

	return newLocalProvider(cfg, run, session.Destroy), nil
}

func newLocalProvider(cfg LocalConfig, run func([]string) ([][]float32, error), closeFunc func() error) *LocalProvider {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &LocalProvider{
		model:     cfg.ModelName,
		cfg:       cfg,
		run:       run,
		closeFunc: closeFunc,
	}
}

// prepareModel returns the local model path, downloading it on first use.
func prepareModel(cfg LocalConfig) (string, error) {
	modelPath := filepath.Join(cfg.ModelDir, strings.ReplaceAll(cfg.ModelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("%w: stat model: %v", ErrEmbeddingBackend, err)
	}

	if err := os.MkdirAll(cfg.ModelDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = cfg.OnnxFilePath
	downloaded, err := hugot.DownloadModel(cfg.ModelName, cfg.ModelDir, opts)
	if err != nil {
		return "", fmt.Errorf("%w: download model %s: %v", ErrEmbeddingBackend, cfg.ModelName, err)
	}
	return downloaded, nil
}

func (l *LocalProvider) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if err := ValidateRequest(texts, mode); err != nil {
		return nil, err
	}

	prefix := l.cfg.PassagePrefix
	if mode == ModeQuery {
		prefix = l.cfg.QueryPrefix
	}

	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, l.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inputs := make([]string, len(batch))
		for i, t := range batch {
			inputs[i] = prefix + t
		}

		l.mu.Lock()
		vectors, err := l.run(inputs)
		l.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEmbeddingBackend, ProviderLocal, err)
		}
		out = append(out, vectors...)
	}

	if err := CheckVectors(out, len(texts)); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	if l.closeFunc == nil {
		return nil
	}
	return l.closeFunc()
}
