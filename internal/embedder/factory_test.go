package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantProvider string
		wantModel    string
		wantErr      error
	}{
		{
			name:         "nvidia default",
			cfg:          Config{APIKey: "k"},
			wantProvider: ProviderNVIDIA,
			wantModel:    DefaultNVIDIAModel,
		},
		{
			name:         "nvidia case insensitive",
			cfg:          Config{Provider: " NVIDIA ", APIKey: "k", Model: "nvidia/nv-embed-v1"},
			wantProvider: ProviderNVIDIA,
			wantModel:    "nvidia/nv-embed-v1",
		},
		{
			name:         "openai",
			cfg:          Config{Provider: "openai", APIKey: "k"},
			wantProvider: ProviderOpenAI,
			wantModel:    DefaultOpenAIModel,
		},
		{
			name:         "hashing",
			cfg:          Config{Provider: "hashing", Dimension: 64},
			wantProvider: ProviderHashing,
			wantModel:    "hashing-64",
		},
		{
			name:    "nvidia without key",
			cfg:     Config{Provider: "nvidia"},
			wantErr: ErrMissingCredentials,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "jina"},
			wantErr: ErrUnsupportedProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, emb)
				return
			}
			require.NoError(t, err)
			defer emb.Close()
			assert.Equal(t, tt.wantProvider, emb.Provider())
			assert.Equal(t, tt.wantModel, emb.Model())
		})
	}
}

func TestRequiresAPIKey(t *testing.T) {
	assert.True(t, RequiresAPIKey("nvidia"))
	assert.True(t, RequiresAPIKey("OpenAI"))
	assert.True(t, RequiresAPIKey(""))
	assert.False(t, RequiresAPIKey("hashing"))
	assert.False(t, RequiresAPIKey("local"))
}
