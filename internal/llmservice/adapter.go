package llmservice

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

// ContentGenerator is a client answering with a content field in one call.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Generation is one candidate answer of a batch call.
type Generation struct {
	Text string
}

// BatchGenerator answers a list of prompts with one list of generations per prompt.
type BatchGenerator interface {
	GenerateBatch(ctx context.Context, prompts []string) ([][]Generation, error)
}

// Caller is a client invoked directly with the prompt text.
type Caller interface {
	Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error)
}

// CallFunc lets a bare function act as a Caller.
type CallFunc func(ctx context.Context, prompt string) (string, error)

func (f CallFunc) Call(ctx context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return f(ctx, prompt)
}

// Generator turns a prompt into text using one calling convention.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

type directGenerator struct {
	client ContentGenerator
	opts   []llms.CallOption
}

func (g directGenerator) Name() string { return "direct" }

func (g directGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	res, err := g.client.GenerateContent(ctx, messages, g.opts...)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 || res.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}

type batchGenerator struct {
	client BatchGenerator
}

func (g batchGenerator) Name() string { return "batch" }

func (g batchGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	gens, err := g.client.GenerateBatch(ctx, []string{prompt})
	if err != nil {
		return "", err
	}
	if len(gens) == 0 || len(gens[0]) == 0 {
		return "", ErrEmptyResponse
	}
	return gens[0][0].Text, nil
}

type callGenerator struct {
	client Caller
	opts   []llms.CallOption
}

func (g callGenerator) Name() string { return "call" }

func (g callGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.Call(ctx, prompt, g.opts...)
}

// Adapter calls an LLM through the conventions its client supports, in a fixed order.
type Adapter struct {
	generators []Generator
}

// NewAdapter inspects client once and keeps the conventions it implements,
// in priority order: direct content call, batch generation, bare call.
func NewAdapter(client any, opts ...llms.CallOption) (*Adapter, error) {
	var gens []Generator
	if c, ok := client.(ContentGenerator); ok {
		gens = append(gens, directGenerator{client: c, opts: opts})
	}
	if c, ok := client.(BatchGenerator); ok {
		gens = append(gens, batchGenerator{client: c})
	}
	switch c := client.(type) {
	case Caller:
		gens = append(gens, callGenerator{client: c, opts: opts})
	case func(ctx context.Context, prompt string) (string, error):
		gens = append(gens, callGenerator{client: CallFunc(c)})
	}
	if len(gens) == 0 {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedClient, client)
	}
	return &Adapter{generators: gens}, nil
}

// NewAdapterFromGenerators uses the given generators in order.
func NewAdapterFromGenerators(gens ...Generator) (*Adapter, error) {
	if len(gens) == 0 {
		return nil, ErrUnsupportedClient
	}
	return &Adapter{generators: gens}, nil
}

// Conventions lists the selected conventions in the order they are tried.
func (a *Adapter) Conventions() []string {
	names := make([]string, len(a.generators))
	for i, g := range a.generators {
		names[i] = g.Name()
	}
	return names
}

// Invoke returns the text of the first convention that succeeds. Failures are
// not retried; when all fail the last error is wrapped in an InvocationError.
func (a *Adapter) Invoke(ctx context.Context, prompt string) (string, error) {
	var (
		attempts []string
		lastErr  error
	)
	for _, g := range a.generators {
		text, err := g.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		log.Warn().Err(err).Str("convention", g.Name()).Msg("LLM call failed")
		attempts = append(attempts, g.Name())
		lastErr = err
	}
	return "", &InvocationError{Attempts: attempts, Err: lastErr}
}
