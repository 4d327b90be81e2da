package generator

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the NVIDIA OpenAI-compatible endpoint.
const (
	DefaultBaseURL       = "https://integrate.api.nvidia.com/v1"
	DefaultModel         = "nvidia/nvidia-nemotron-nano-9b-v2"
	DefaultSystemMessage = "Follow instructions strictly and cite sources."
	DefaultTemperature   = 0.2
	DefaultMaxTokens     = 700
	DefaultTimeout       = 60 * time.Second
)

// Config configures an OpenAIGenerator.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	SystemMessage string
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
}

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    Config
}

// NewOpenAIGenerator creates a generator. Zero fields take defaults, so a
// temperature of exactly 0 cannot be requested. An empty API key fails with
// ErrMissingCredentials.
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SystemMessage == "" {
		cfg.SystemMessage = DefaultSystemMessage
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}, nil
}

// Generate sends the system message and prompt and returns the first
// choice's content.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) Result {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.cfg.SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return Failed(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Failed(ErrEmptyResponse)
	}
	return Result{Text: resp.Choices[0].Message.Content}
}

// Model returns the chat model name.
func (g *OpenAIGenerator) Model() string {
	return g.cfg.Model
}
