package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI SDK embedder.
type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	BatchSize int
}

// OpenAIProvider implements Embedder with the go-openai client.
// OpenAI embedding models are symmetric, so the mode is not sent.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	batchSize int
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key not set for %s", ErrMissingCredentials, ProviderOpenAI)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
	}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if err := ValidateRequest(texts, mode); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, o.batchSize) {
		resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(o.model),
			Input: batch,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrEmbeddingBackend, ProviderOpenAI, err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbeddingBackend, len(resp.Data), len(batch))
		}

		vectors := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) || vectors[d.Index] != nil {
				return nil, fmt.Errorf("%w: unexpected embedding index %d", ErrEmbeddingBackend, d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		out = append(out, vectors...)
	}

	if err := CheckVectors(out, len(texts)); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}
