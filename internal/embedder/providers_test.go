package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingsRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	InputType string   `json:"input_type"`
}

// embeddingServer answers like an OpenAI-compatible endpoint, returning the
// data entries in reverse order to exercise index handling.
func embeddingServer(t *testing.T, calls *int32, seen chan<- embeddingsRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Missing or incorrect Authorization header")
		}

		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if seen != nil {
			seen <- req
		}

		data := make([]map[string]interface{}, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]interface{}{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), 1, 0},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
}

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestHTTPProvider(t *testing.T) {
	t.Run("sends input_type and restores order", func(t *testing.T) {
		var calls int32
		seen := make(chan embeddingsRequest, 4)
		server := embeddingServer(t, &calls, seen)
		defer server.Close()

		p, err := NewHTTPProvider(HTTPConfig{
			BaseURL: server.URL + "/v1/",
			APIKey:  "test-key",
			Retry:   fastRetry(),
		})
		require.NoError(t, err)
		defer p.Close()

		vecs, err := p.Embed(context.Background(), []string{"a", "bbb"}, ModeQuery)
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		assert.Equal(t, float32(1), vecs[0][0])
		assert.Equal(t, float32(3), vecs[1][0])

		req := <-seen
		assert.Equal(t, "query", req.InputType)
		assert.Equal(t, DefaultNVIDIAModel, req.Model)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("passage mode and batching", func(t *testing.T) {
		var calls int32
		seen := make(chan embeddingsRequest, 4)
		server := embeddingServer(t, &calls, seen)
		defer server.Close()

		p, err := NewHTTPProvider(HTTPConfig{
			BaseURL:   server.URL + "/v1",
			APIKey:    "test-key",
			Model:     "custom/model",
			BatchSize: 2,
			Retry:     fastRetry(),
		})
		require.NoError(t, err)

		vecs, err := p.Embed(context.Background(), []string{"a", "bb", "ccc"}, ModePassage)
		require.NoError(t, err)
		require.Len(t, vecs, 3)
		assert.Equal(t, float32(3), vecs[2][0])
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

		first := <-seen
		second := <-seen
		assert.Equal(t, "passage", first.InputType)
		assert.Equal(t, []string{"a", "bb"}, first.Input)
		assert.Equal(t, []string{"ccc"}, second.Input)
		assert.Equal(t, "custom/model", p.Model())
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				http.Error(w, "overloaded", http.StatusServiceUnavailable)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{{"index": 0, "embedding": []float32{1, 2}}},
			})
		}))
		defer server.Close()

		p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, APIKey: "k", Retry: fastRetry()})
		require.NoError(t, err)

		vecs, err := p.Embed(context.Background(), []string{"x"}, ModePassage)
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 2}}, vecs)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("does not retry auth failures", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer server.Close()

		p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, APIKey: "k", Retry: fastRetry()})
		require.NoError(t, err)

		_, err = p.Embed(context.Background(), []string{"x"}, ModePassage)
		assert.ErrorIs(t, err, ErrEmbeddingBackend)
		assert.Contains(t, err.Error(), "401")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("count mismatch is a backend error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []map[string]interface{}{{"index": 0, "embedding": []float32{1}}},
			})
		}))
		defer server.Close()

		p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, APIKey: "k", Retry: fastRetry()})
		require.NoError(t, err)

		_, err = p.Embed(context.Background(), []string{"x", "y"}, ModePassage)
		assert.ErrorIs(t, err, ErrEmbeddingBackend)
	})

	t.Run("missing key is a configuration error", func(t *testing.T) {
		_, err := NewHTTPProvider(HTTPConfig{})
		assert.ErrorIs(t, err, ErrMissingCredentials)
		assert.NotErrorIs(t, err, ErrEmbeddingBackend)
	})

	t.Run("oversized batch rejected", func(t *testing.T) {
		_, err := NewHTTPProvider(HTTPConfig{APIKey: "k", BatchSize: MaxBatchSize + 1})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		var calls int32
		server := embeddingServer(t, &calls, nil)
		defer server.Close()

		p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL + "/v1", APIKey: "test-key", Retry: fastRetry()})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = p.Embed(ctx, []string{"x"}, ModePassage)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOpenAIProvider(t *testing.T) {
	var calls int32
	server := embeddingServer(t, &calls, nil)
	defer server.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{
		BaseURL:   server.URL + "/v1",
		APIKey:    "test-key",
		BatchSize: 2,
	})
	require.NoError(t, err)
	defer p.Close()

	vecs, err := p.Embed(context.Background(), []string{"a", "bb", "cccc"}, ModePassage)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(1), vecs[0][0])
	assert.Equal(t, float32(2), vecs[1][0])
	assert.Equal(t, float32(4), vecs[2][0])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, ProviderOpenAI, p.Provider())
	assert.Equal(t, DefaultOpenAIModel, p.Model())

	_, err = NewOpenAIProvider(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestOpenAIProviderBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(OpenAIConfig{BaseURL: server.URL + "/v1", APIKey: "test-key"})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), []string{"x"}, ModeQuery)
	assert.ErrorIs(t, err, ErrEmbeddingBackend)
}
