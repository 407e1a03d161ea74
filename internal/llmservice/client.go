package llmservice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"aqua-rag/internal/config"
)

// Client is the configured LLM model, or the reason none could be built.
type Client struct {
	model  llms.Model
	reason string
}

// NewClient never fails: configuration problems are reported through Available.
func NewClient(llmConfig *config.LLMConfig) *Client {
	model, err := newModel(llmConfig)
	if err != nil {
		log.Warn().Err(err).Str("provider", llmConfig.Provider).Msg("LLM unavailable")
		return &Client{reason: err.Error()}
	}
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("LLM configured")
	return &Client{model: model}
}

func (c *Client) Available() bool { return c.model != nil }

func (c *Client) Reason() string { return c.reason }

// Model returns the langchaingo model.
func (c *Client) Model() (llms.Model, error) {
	if c.model == nil {
		return nil, fmt.Errorf("%w: %s", ErrLLMUnavailable, c.reason)
	}
	return c.model, nil
}

func newModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	switch llmConfig.Provider {
	case config.ProviderOpenAI, "":
		if llmConfig.Key == "" {
			return nil, errors.New("missing OpenAI API key (set OPENAI_API_KEY)")
		}
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", llmConfig.Provider)
	}
}

// CallOptions turns the configured sampling parameters into langchaingo options.
func CallOptions(llmConfig *config.LLMConfig) []llms.CallOption {
	var opts []llms.CallOption
	if llmConfig.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(llmConfig.Temperature))
	}
	return opts
}
