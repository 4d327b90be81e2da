package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/gorag/internal/embedder"
	"github.com/dshills/gorag/internal/generator"
)

// EmbedConfig configures the passage and query embedder.
type EmbedConfig struct {
	Provider  string        `yaml:"provider" validate:"oneof=nvidia openai local hashing"`
	BaseURL   string        `yaml:"base_url" validate:"omitempty,url"`
	Model     string        `yaml:"model" validate:"required"`
	APIKeyEnv string        `yaml:"api_key_env"`
	BatchSize int           `yaml:"batch_size" validate:"min=1,max=100"`
	Timeout   time.Duration `yaml:"timeout" validate:"gt=0"`
	Dimension int           `yaml:"dimension" validate:"min=0"`
	Local     LocalConfig   `yaml:"local"`

	// APIKey is read from the variable named by APIKeyEnv, never from the file.
	APIKey string `yaml:"-"`
}

// LocalConfig configures the on-device ONNX embedder.
type LocalConfig struct {
	ModelDir      string `yaml:"model_dir"`
	OnnxFilePath  string `yaml:"onnx_file"`
	QueryPrefix   string `yaml:"query_prefix"`
	PassagePrefix string `yaml:"passage_prefix"`
}

// GenerationConfig configures the chat completion backend.
type GenerationConfig struct {
	BaseURL       string        `yaml:"base_url" validate:"omitempty,url"`
	Model         string        `yaml:"model" validate:"required"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	SystemMessage string        `yaml:"system_message"`
	Temperature   float32       `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens     int           `yaml:"max_tokens" validate:"min=1"`
	Timeout       time.Duration `yaml:"timeout" validate:"gt=0"`

	APIKey string `yaml:"-"`
}

// RetrievalConfig holds the search and confidence gate settings.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k" validate:"min=1,max=50"`
	ConfidentScore      float64 `yaml:"confident_score" validate:"gte=-1,lte=1"`
	ConfidentScoreVague float64 `yaml:"confident_score_vague" validate:"gte=-1,lte=1"`
	HistoryMessages     int     `yaml:"history_messages" validate:"min=0"`
}

// PathsConfig locates inputs and outputs on disk.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" validate:"required"`
	ChunksFile string `yaml:"chunks_file" validate:"required"`
	CacheDir   string `yaml:"cache_dir" validate:"required"`
	MetricsDir string `yaml:"metrics_dir" validate:"required"`
}

// ChunkingConfig controls document splitting during ingest.
type ChunkingConfig struct {
	Size         int `yaml:"size" validate:"min=1"`
	Overlap      int `yaml:"overlap" validate:"min=0"`
	MinDocLength int `yaml:"min_doc_length" validate:"min=0"`
	Workers      int `yaml:"workers" validate:"min=0"`
}

// CacheConfig selects the vector cache backend and its collection policy.
type CacheConfig struct {
	Backend    string        `yaml:"backend" validate:"oneof=file sqlite"`
	MaxAge     time.Duration `yaml:"max_age" validate:"min=0"`
	MaxEntries int           `yaml:"max_entries" validate:"min=0"`
	MemoSize   int           `yaml:"memo_size" validate:"min=1"`
}

// HTTPConfig configures `rag serve`.
type HTTPConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// Config is the root configuration.
type Config struct {
	Embed      EmbedConfig      `yaml:"embed"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Cache      CacheConfig      `yaml:"cache"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Embed: EmbedConfig{
			Provider:  embedder.ProviderNVIDIA,
			BaseURL:   embedder.DefaultNVIDIABaseURL,
			Model:     embedder.DefaultNVIDIAModel,
			APIKeyEnv: "NVIDIA_API_KEY",
			BatchSize: embedder.DefaultBatchSize,
			Timeout:   60 * time.Second,
		},
		Generation: GenerationConfig{
			Model:         generator.DefaultModel,
			APIKeyEnv:     "NVIDIA_API_KEY",
			SystemMessage: generator.DefaultSystemMessage,
			Temperature:   generator.DefaultTemperature,
			MaxTokens:     generator.DefaultMaxTokens,
			Timeout:       generator.DefaultTimeout,
		},
		Retrieval: RetrievalConfig{
			TopK:                3,
			ConfidentScore:      0.25,
			ConfidentScoreVague: 0.35,
			HistoryMessages:     6,
		},
		Paths: PathsConfig{
			DataDir:    "data/public_docs",
			ChunksFile: "cache/chunks.json",
			CacheDir:   "cache",
			MetricsDir: "metrics",
		},
		Chunking: ChunkingConfig{
			Size:         500,
			Overlap:      80,
			MinDocLength: 50,
		},
		Cache: CacheConfig{
			Backend:    "file",
			MaxAge:     30 * 24 * time.Hour,
			MaxEntries: 20,
			MemoSize:   8,
		},
		HTTP: HTTPConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// $RAG_CONFIG when path is empty), a .env file and RAG_* variables, in that
// order, and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("RAG_CONFIG")
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load(".env")
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Embed.Provider = getEnv("RAG_EMBED_PROVIDER", c.Embed.Provider)
	c.Embed.Model = getEnv("RAG_EMBED_MODEL", c.Embed.Model)
	c.Embed.BaseURL = getEnv("RAG_BASE_URL", c.Embed.BaseURL)
	c.Generation.Model = getEnv("RAG_GEN_MODEL", c.Generation.Model)

	c.Retrieval.TopK = getEnvAsInt("RAG_TOP_K", c.Retrieval.TopK)
	c.Retrieval.ConfidentScore = getEnvAsFloat("RAG_CONFIDENT_SCORE", c.Retrieval.ConfidentScore)
	c.Retrieval.ConfidentScoreVague = getEnvAsFloat("RAG_CONFIDENT_SCORE_VAGUE", c.Retrieval.ConfidentScoreVague)

	c.Paths.DataDir = getEnv("RAG_DATA_DIR", c.Paths.DataDir)
	c.Paths.CacheDir = getEnv("RAG_CACHE_DIR", c.Paths.CacheDir)
	c.Paths.MetricsDir = getEnv("RAG_METRICS_DIR", c.Paths.MetricsDir)

	c.Cache.Backend = getEnv("RAG_CACHE_BACKEND", c.Cache.Backend)
	c.Cache.MaxAge = getEnvAsDuration("RAG_CACHE_MAX_AGE", c.Cache.MaxAge)
	c.HTTP.Addr = getEnv("RAG_HTTP_ADDR", c.HTTP.Addr)
	c.Log.Level = getEnv("RAG_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("RAG_LOG_FORMAT", c.Log.Format)

	if c.Embed.APIKeyEnv != "" {
		c.Embed.APIKey = os.Getenv(c.Embed.APIKeyEnv)
	}
	if c.Generation.APIKeyEnv != "" {
		c.Generation.APIKey = os.Getenv(c.Generation.APIKeyEnv)
	}
}

// Embedder returns the embedder configuration.
func (c *Config) Embedder() embedder.Config {
	return embedder.Config{
		Provider:  c.Embed.Provider,
		Model:     c.Embed.Model,
		BaseURL:   c.Embed.BaseURL,
		APIKey:    c.Embed.APIKey,
		BatchSize: c.Embed.BatchSize,
		Timeout:   c.Embed.Timeout,
		Dimension: c.Embed.Dimension,
		Local: embedder.LocalConfig{
			ModelName:     c.Embed.Model,
			ModelDir:      c.Embed.Local.ModelDir,
			OnnxFilePath:  c.Embed.Local.OnnxFilePath,
			QueryPrefix:   c.Embed.Local.QueryPrefix,
			PassagePrefix: c.Embed.Local.PassagePrefix,
			BatchSize:     c.Embed.BatchSize,
		},
	}
}

// Generator returns the chat client configuration. The generation base URL
// falls back to the embedding base URL so one endpoint serves both.
func (c *Config) Generator() generator.Config {
	baseURL := c.Generation.BaseURL
	if baseURL == "" && c.Embed.Provider == embedder.ProviderNVIDIA {
		baseURL = c.Embed.BaseURL
	}
	return generator.Config{
		BaseURL:       baseURL,
		APIKey:        c.Generation.APIKey,
		Model:         c.Generation.Model,
		SystemMessage: c.Generation.SystemMessage,
		Temperature:   c.Generation.Temperature,
		MaxTokens:     c.Generation.MaxTokens,
		Timeout:       c.Generation.Timeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
