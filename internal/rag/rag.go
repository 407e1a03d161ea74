package rag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"aqua-rag/internal/chromemdb"
	"aqua-rag/internal/embedding"
	"aqua-rag/internal/models"
)

const defaultTopK = 4

var thinkRe = regexp.MustCompile(models.ThinkTag)

// Invoker sends a prompt to the LLM and returns its text.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// HistoryProvider returns the last limit exchanges of a chat, oldest first,
// already formatted as prompt text.
type HistoryProvider interface {
	GetHistory(ctx context.Context, chatID string, limit int) (string, error)
}

// HistoryRecorder appends one chat turn.
type HistoryRecorder interface {
	SaveMessage(ctx context.Context, chatID, role, message string) error
}

// Availability is implemented by collaborators that may be misconfigured.
type Availability interface {
	Available() bool
	Reason() string
}

type Options struct {
	TopK         int
	HistoryLimit int
	Debug        bool

	// History is optional. When it also implements HistoryRecorder, Answer
	// records every exchange.
	History HistoryProvider

	LLMStatus   Availability
	EmbedStatus Availability
}

// Pipeline answers questions in five fixed stages: retrieve, format, prompt,
// generate and parse. Each run works on its own values; only the index is shared.
type Pipeline struct {
	store    *chromemdb.Store
	embedder embedding.Embedder
	llm      Invoker
	opts     Options
}

// NewPipeline builds a pipeline. embedder may be nil, in which case answers
// are never grounded in documents.
func NewPipeline(store *chromemdb.Store, embedder embedding.Embedder, llm Invoker, opts Options) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if llm == nil {
		return nil, ErrLLMRequired
	}
	if opts.TopK < 1 {
		opts.TopK = defaultTopK
	}
	return &Pipeline{store: store, embedder: embedder, llm: llm, opts: opts}, nil
}

// Run executes one pass of the pipeline. Only a generation failure is an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*State, error) {
	generated, err := p.generate(ctx, p.prompt(p.format(p.retrieve(ctx, req))))
	if err != nil {
		return nil, err
	}
	state := p.parse(generated)
	return &state, nil
}

func (p *Pipeline) retrieve(ctx context.Context, req Request) Retrieved {
	out := Retrieved{Request: req}
	idx := p.store.Current()
	if idx == nil {
		log.Debug().Msg("No index loaded, skipping retrieval")
		return out
	}
	if p.embedder == nil {
		log.Warn().Msg("Embeddings unavailable, skipping retrieval")
		return out
	}

	res := idx.Search(ctx, p.embedder, req.Question, p.opts.TopK)
	if res.Err != nil {
		log.Warn().Err(res.Err).Msg("Retrieval failed, answering without context")
		return out
	}
	if len(res.Chunks) == 0 {
		return out
	}
	out.Docs = res.Chunks
	out.UseContext = true
	log.Debug().Int("docs", len(out.Docs)).Msg("Retrieved context")
	return out
}

func (p *Pipeline) format(r Retrieved) Formatted {
	out := Formatted{Retrieved: r}
	if !r.UseContext || len(r.Docs) == 0 {
		return out
	}
	texts := make([]string, len(r.Docs))
	for i, d := range r.Docs {
		texts[i] = d.Chunk.Text
	}
	out.Context = strings.Join(texts, models.ContextSeparator)
	return out
}

func (p *Pipeline) prompt(f Formatted) Prompted {
	question := fmt.Sprintf("%s\n%s: %s", f.History, models.UserPrefix, f.Question)
	return Prompted{
		Formatted: f,
		Prompt:    fmt.Sprintf(models.PromptTemplate, f.Context, question),
	}
}

func (p *Pipeline) generate(ctx context.Context, pr Prompted) (Generated, error) {
	if p.opts.Debug {
		log.Debug().Str("prompt", pr.Prompt).Msg("Prompt sent to LLM")
	}
	raw, err := p.llm.Invoke(ctx, pr.Prompt)
	if err != nil {
		return Generated{}, err
	}
	if p.opts.Debug {
		log.Debug().Str("response", raw).Msg("Raw response from LLM")
	}
	return Generated{Prompted: pr, RawResponse: raw}, nil
}

func (p *Pipeline) parse(g Generated) State {
	return State{Generated: g, FinalAnswer: normalize(g.RawResponse)}
}

// normalize removes reasoning blocks some models wrap around their answer.
func normalize(raw string) string {
	cleaned := thinkRe.ReplaceAllString(raw, "")
	if cleaned == raw {
		return raw
	}
	return strings.TrimSpace(cleaned)
}

// Answer runs the pipeline for a chat, feeding it the stored history and
// recording the exchange when the history store supports it.
func (p *Pipeline) Answer(ctx context.Context, chatID, question string) (string, error) {
	history := ""
	if p.opts.History != nil && chatID != "" {
		h, err := p.opts.History.GetHistory(ctx, chatID, p.opts.HistoryLimit)
		if err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to load chat history")
		} else {
			history = h
		}
	}

	state, err := p.Run(ctx, Request{Question: question, ChatID: chatID, History: history})
	if err != nil {
		return "", err
	}
	answer := state.FinalAnswer
	if strings.TrimSpace(answer) == "" {
		answer = state.RawResponse
	}

	if rec, ok := p.opts.History.(HistoryRecorder); ok && chatID != "" {
		if err := rec.SaveMessage(ctx, chatID, models.RoleUser, question); err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to save user message")
		}
		if err := rec.SaveMessage(ctx, chatID, models.RoleAssistant, answer); err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to save assistant message")
		}
	}
	return answer, nil
}

// Diagnostics reports the state of the LLM, the embeddings and the index.
func (p *Pipeline) Diagnostics() models.Diagnostics {
	d := models.Diagnostics{
		LLMAvailable:        true,
		EmbeddingsAvailable: p.embedder != nil,
		IndexOnDisk:         p.store.Exists(),
	}
	if s := p.opts.LLMStatus; s != nil {
		d.LLMAvailable, d.LLMReason = s.Available(), s.Reason()
	}
	if s := p.opts.EmbedStatus; s != nil {
		d.EmbeddingsAvailable, d.EmbeddingsReason = s.Available(), s.Reason()
	}
	if idx := p.store.Current(); idx != nil {
		d.IndexLoaded = true
		d.IndexedChunks = idx.Count()
	}
	return d
}
