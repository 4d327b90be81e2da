package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// Provider configuration
const (
	ProviderNVIDIA  = "nvidia"
	ProviderOpenAI  = "openai"
	ProviderLocal   = "local"
	ProviderHashing = "hashing"

	// Default endpoints and models
	DefaultNVIDIABaseURL = "https://integrate.api.nvidia.com/v1"
	DefaultNVIDIAModel   = "nvidia/nv-embedqa-e5-v5"
	DefaultOpenAIModel   = "text-embedding-3-small"
	DefaultLocalModel    = "sentence-transformers/all-MiniLM-L6-v2"

	// Dimensions
	DefaultHashingDimension = 512

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	defaultTimeout = 60 * time.Second
)

// HTTPConfig configures an OpenAI-compatible embeddings endpoint that
// accepts an input_type field (NVIDIA NIM, e5-style retrieval models).
type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	BatchSize int
	Timeout   time.Duration
	Retry     *RetryConfig
}

// HTTPProvider implements Embedder over a REST embeddings API
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	httpClient *http.Client
	retry      RetryConfig
}

// NewHTTPProvider creates an embedder for an OpenAI-compatible endpoint
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key not set for %s", ErrMissingCredentials, ProviderNVIDIA)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNVIDIABaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultNVIDIAModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch size %d exceeds %d", ErrInvalidInput, cfg.BatchSize, MaxBatchSize)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	return &HTTPProvider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: retry,
	}, nil
}

func (p *HTTPProvider) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if err := ValidateRequest(texts, mode); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, p.batchSize) {
		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			return p.callAPI(ctx, batch, mode)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrEmbeddingBackend, ProviderNVIDIA, err)
		}
		out = append(out, vectors...)
	}

	if err := CheckVectors(out, len(texts)); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model":           p.model,
		"input":           texts,
		"input_type":      string(mode),
		"encoding_format": "float",
		"truncate":        "END",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, apiErr
		}
		return nil, permanent(apiErr)
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, permanent(fmt.Errorf("decode response: %w", err))
	}

	if len(apiResp.Data) != len(texts) {
		return nil, permanent(fmt.Errorf("got %d embeddings for %d inputs", len(apiResp.Data), len(texts)))
	}

	vectors := make([][]float32, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) || vectors[data.Index] != nil {
			return nil, permanent(fmt.Errorf("unexpected embedding index %d", data.Index))
		}
		vectors[data.Index] = data.Embedding
	}

	return vectors, nil
}

func (p *HTTPProvider) Provider() string {
	return ProviderNVIDIA
}

func (p *HTTPProvider) Model() string {
	return p.model
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// HashingProvider produces deterministic bag-of-words vectors by hashing
// lowercased word tokens into a fixed number of buckets. Texts sharing words
// score higher under cosine similarity. It needs no network or model files.
// Query and passage modes produce identical vectors.
type HashingProvider struct {
	dim int
}

// NewHashingProvider creates an offline embedder with the given dimension
func NewHashingProvider(dim int) (*HashingProvider, error) {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &HashingProvider{dim: dim}, nil
}

func (h *HashingProvider) Embed(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	if err := ValidateRequest(texts, mode); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashingProvider) vector(text string) []float32 {
	v := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		v[f.Sum32()%uint32(h.dim)]++
	}
	return NormalizeVector(v)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (h *HashingProvider) Provider() string {
	return ProviderHashing
}

func (h *HashingProvider) Model() string {
	return fmt.Sprintf("hashing-%d", h.dim)
}

func (h *HashingProvider) Close() error {
	return nil
}
