package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	BatchSize int
	Timeout   time.Duration
	Dimension int // hashing provider only
	Local     LocalConfig
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var (
		emb Embedder
		err error
	)

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderNVIDIA, "":
		var p *HTTPProvider
		p, err = NewHTTPProvider(HTTPConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		})
		emb = p
	case ProviderOpenAI:
		var p *OpenAIProvider
		p, err = NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
		})
		emb = p
	case ProviderLocal:
		local := cfg.Local
		if local.ModelName == "" {
			local.ModelName = cfg.Model
		}
		if local.BatchSize == 0 {
			local.BatchSize = cfg.BatchSize
		}
		var p *LocalProvider
		p, err = NewLocalProvider(local)
		emb = p
	case ProviderHashing:
		var p *HashingProvider
		p, err = NewHashingProvider(cfg.Dimension)
		emb = p
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}

	if err != nil {
		return nil, err
	}
	return emb, nil
}

// RequiresAPIKey reports whether the named provider calls a remote API.
func RequiresAPIKey(provider string) bool {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderNVIDIA, ProviderOpenAI, "":
		return true
	default:
		return false
	}
}
