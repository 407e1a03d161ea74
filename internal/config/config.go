package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	MetadataNone     = "none"
	MetadataPostgres = "postgres"
	MetadataBadger   = "badger"

	DriverPgdriver = "pgdriver"
	DriverPostgres = "postgres"

	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 4
	defaultHistoryLimit = 5
	defaultBatchSize    = 64
	defaultConcurrency  = 2
)

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Key         string  `yaml:"key"`
	Temperature float64 `yaml:"temperature"`
}

type EmbedConfig struct {
	Provider    string `yaml:"provider"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Key         string `yaml:"key"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	HistoryLimit int    `yaml:"history_limit"`
	DocsFolder   string `yaml:"docs_folder"`
	Debug        bool   `yaml:"debug"`
}

type VectorStoreConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type MetadataConfig struct {
	Backend string `yaml:"backend"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type BadgerConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	EmbedLLM    EmbedConfig       `yaml:"embed_llm"`
	RAG         RAGConfig         `yaml:"rag"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Metadata    MetadataConfig    `yaml:"metadata"`
	Database    DatabaseConfig    `yaml:"database"`
	Badger      BadgerConfig      `yaml:"badger"`
}

// LoadConfig reads the yaml file at path. A missing file yields the defaults.
// Values from the environment (and a .env file in the working directory) win
// over the file.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := base()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := base()
	applyDefaults(cfg)
	return cfg
}

func base() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			Model:       "gpt-5-mini",
			Temperature: 0.9,
		},
		EmbedLLM: EmbedConfig{
			Provider: ProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		RAG: RAGConfig{
			DocsFolder: "literature",
		},
		Metadata: MetadataConfig{Backend: MetadataNone},
	}
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.LLM.Key == "" {
			cfg.LLM.Key = key
		}
		if cfg.EmbedLLM.Key == "" {
			cfg.EmbedLLM.Key = key
		}
	}
	if key := os.Getenv("AQUA_RAG_ENCRYPTION_KEY"); key != "" {
		cfg.VectorStore.EncryptionKey = key
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if debug, err := strconv.ParseBool(os.Getenv("AQUAAI_DEBUG")); err == nil {
		cfg.RAG.Debug = debug
	}
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = min(defaultChunkOverlap, cfg.RAG.ChunkSize/5)
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.HistoryLimit == 0 {
		cfg.RAG.HistoryLimit = defaultHistoryLimit
	}
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = defaultBatchSize
	}
	if cfg.EmbedLLM.Concurrency == 0 {
		cfg.EmbedLLM.Concurrency = defaultConcurrency
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "vectorstore"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "documents"
	}
	if cfg.Metadata.Backend == "" {
		cfg.Metadata.Backend = MetadataNone
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgdriver
	}
	if cfg.Badger.Path == "" {
		cfg.Badger.Path = "metadata"
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	cfg.EmbedLLM.Provider = strings.ToLower(cfg.EmbedLLM.Provider)
}

// Validate checks the values the core depends on.
// Missing credentials are not an error here; they surface as unavailable providers.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize < 1 {
		return errors.New("config: rag.chunk_size must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return errors.New("config: rag.chunk_overlap must be in [0, chunk_size)")
	}
	if c.RAG.TopK < 1 {
		return errors.New("config: rag.top_k must be positive")
	}
	if k := c.VectorStore.EncryptionKey; k != "" && len(k) != 32 {
		return errors.New("config: vector_store.encryption_key must be 32 bytes")
	}
	switch c.Metadata.Backend {
	case MetadataNone, MetadataPostgres, MetadataBadger:
	default:
		return fmt.Errorf("config: unknown metadata backend %q", c.Metadata.Backend)
	}
	switch c.Database.Driver {
	case DriverPgdriver, DriverPostgres:
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	return nil
}
