package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"

	"aqua-rag/internal/config"
)

// Embedder maps text to vectors. Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText embeds a single query text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts embeds texts in one call. The result has the same length and
	// order as texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider holds the configured embedder, or the reason it could not be built.
type Provider struct {
	embedder Embedder
	reason   string
}

// NewProvider never fails: configuration problems are reported through Available.
func NewProvider(cfg *config.EmbedConfig) *Provider {
	e, err := newLangchainEmbedder(cfg)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.Provider).Msg("Embeddings unavailable")
		return &Provider{reason: err.Error()}
	}
	return &Provider{embedder: e}
}

// NewStaticProvider wraps an existing embedder.
func NewStaticProvider(e Embedder) *Provider {
	if e == nil {
		return &Provider{reason: "no embedder configured"}
	}
	return &Provider{embedder: e}
}

func (p *Provider) Available() bool { return p.embedder != nil }

func (p *Provider) Reason() string { return p.reason }

func (p *Provider) Embedder() (Embedder, error) {
	if p.embedder == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, p.reason)
	}
	return p.embedder, nil
}

// LangchainEmbedder embeds through a langchaingo embedder, fanning large
// batches out to a bounded number of concurrent requests.
type LangchainEmbedder struct {
	impl        embeddings.Embedder
	batchSize   int
	concurrency int
}

func NewLangchainEmbedder(impl embeddings.Embedder, batchSize, concurrency int) *LangchainEmbedder {
	if batchSize < 1 {
		batchSize = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &LangchainEmbedder{impl: impl, batchSize: batchSize, concurrency: concurrency}
}

func newLangchainEmbedder(cfg *config.EmbedConfig) (*LangchainEmbedder, error) {
	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		if cfg.Key == "" {
			return nil, errors.New("missing OpenAI API key (set OPENAI_API_KEY)")
		}
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai embeddings: %w", err)
		}
		client = llm
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embeddings: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	impl, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewLangchainEmbedder(impl, cfg.BatchSize, cfg.Concurrency), nil
}

func (e *LangchainEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	v, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return v, nil
}

func (e *LangchainEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			vectors, err := e.impl.EmbedDocuments(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vectors) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), end-start)
			}
			copy(out[start:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to embed %d texts: %w", len(texts), err)
	}
	log.Debug().Int("texts", len(texts)).Msg("Generated embeddings")
	return out, nil
}
