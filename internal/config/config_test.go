package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AQUAAI_DEBUG", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.RAG.TopK)
	assert.Equal(t, 5, cfg.RAG.HistoryLimit)
	assert.Equal(t, "vectorstore", cfg.VectorStore.Path)
	assert.Equal(t, MetadataNone, cfg.Metadata.Backend)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.False(t, cfg.RAG.Debug)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
llm:
  provider: Ollama
  base_url: http://localhost:11434
  model: llama3
embed_llm:
  provider: ollama
  model: nomic-embed-text
rag:
  chunk_size: 500
  chunk_overlap: 50
vector_store:
  path: /tmp/index
metadata:
  backend: badger
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AQUAAI_DEBUG", "1")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, "/tmp/index", cfg.VectorStore.Path)
	assert.Equal(t, MetadataBadger, cfg.Metadata.Backend)
	assert.Equal(t, "sk-test", cfg.LLM.Key)
	assert.Equal(t, "sk-test", cfg.EmbedLLM.Key)
	assert.True(t, cfg.RAG.Debug)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rag: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"overlap equals size", func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize }, true},
		{"negative overlap", func(c *Config) { c.RAG.ChunkOverlap = -1 }, true},
		{"short encryption key", func(c *Config) { c.VectorStore.EncryptionKey = "short" }, true},
		{"32 byte encryption key", func(c *Config) { c.VectorStore.EncryptionKey = "0123456789abcdef0123456789abcdef" }, false},
		{"unknown backend", func(c *Config) { c.Metadata.Backend = "sqlite" }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
