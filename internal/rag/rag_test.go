package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqua-rag/internal/chromemdb"
	"aqua-rag/internal/embedding/mock"
	"aqua-rag/internal/llmservice"
	"aqua-rag/internal/models"
)

const mockAnswer = "Hi there! How can I help with water today?"

type recordingLLM struct {
	prompts []string
	reply   string
	err     error
}

func (r *recordingLLM) Invoke(_ context.Context, prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	return r.reply, r.err
}

type memHistory struct {
	turns    []string
	limit    int
	failLoad bool
}

func (m *memHistory) GetHistory(_ context.Context, _ string, limit int) (string, error) {
	m.limit = limit
	if m.failLoad {
		return "", errors.New("history store down")
	}
	return strings.Join(m.turns, ""), nil
}

func (m *memHistory) SaveMessage(_ context.Context, _, role, message string) error {
	prefix := models.UserPrefix
	if role == models.RoleAssistant {
		prefix = models.AssistantPrefix
	}
	m.turns = append(m.turns, fmt.Sprintf("%s: %s\n", prefix, message))
	return nil
}

type status struct {
	ok     bool
	reason string
}

func (s status) Available() bool { return s.ok }
func (s status) Reason() string  { return s.reason }

func newStore(t *testing.T) *chromemdb.Store {
	t.Helper()
	return chromemdb.NewStore(t.TempDir(), chromemdb.Options{Collection: "documents"})
}

func seed(t *testing.T, store *chromemdb.Store, emb *mock.Embedder, texts ...string) {
	t.Helper()
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{Text: text, SourceRef: "/docs/water.pdf", Position: i, Page: 1}
	}
	vectors, err := emb.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(context.Background(), chunks, vectors))
}

func TestRun_HelloWithEmptyIndex(t *testing.T) {
	adapter, err := llmservice.NewAdapter(llmservice.CallFunc(func(context.Context, string) (string, error) {
		return mockAnswer, nil
	}))
	require.NoError(t, err)

	p, err := NewPipeline(newStore(t), mock.NewEmbedder(), adapter, Options{})
	require.NoError(t, err)

	state, err := p.Run(context.Background(), Request{Question: "Hello"})
	require.NoError(t, err)

	assert.False(t, state.UseContext)
	assert.Empty(t, state.Docs)
	assert.Empty(t, state.Context)
	assert.Contains(t, state.Prompt, "User: Hello")
	assert.Contains(t, state.Prompt, "Rules:")
	assert.Contains(t, state.Prompt, "answer from general knowledge")
	assert.Equal(t, mockAnswer, state.RawResponse)
	assert.Equal(t, mockAnswer, state.FinalAnswer)
}

func TestRun_SingleChunkIsUsedAsContext(t *testing.T) {
	emb := mock.NewEmbedder()
	store := newStore(t)
	chunk := "rainwater harvesting reduces runoff"
	seed(t, store, emb, chunk)

	llm := &recordingLLM{reply: "Harvest rainwater."}
	p, err := NewPipeline(store, emb, llm, Options{})
	require.NoError(t, err)

	question := "How can I reduce runoff?"
	state, err := p.Run(context.Background(), Request{Question: question})
	require.NoError(t, err)

	assert.True(t, state.UseContext)
	require.Len(t, state.Docs, 1)
	assert.Equal(t, chunk, state.Docs[0].Chunk.Text)
	assert.Contains(t, state.Context, chunk)
	assert.Contains(t, state.Prompt, chunk)
	assert.Contains(t, state.Prompt, question)
	require.Len(t, llm.prompts, 1)
	assert.Equal(t, state.Prompt, llm.prompts[0])
}

func TestRun_ContextKeepsRetrievalOrder(t *testing.T) {
	emb := mock.NewEmbedder()
	store := newStore(t)
	seed(t, store, emb,
		"drip irrigation saves water on farms",
		"glaciers are retreating because of climate change",
		"rainwater harvesting reduces runoff in cities",
	)

	p, err := NewPipeline(store, emb, &recordingLLM{reply: "ok"}, Options{TopK: 2})
	require.NoError(t, err)

	state, err := p.Run(context.Background(), Request{Question: "rainwater harvesting runoff"})
	require.NoError(t, err)
	require.Len(t, state.Docs, 2)
	assert.Equal(t, "rainwater harvesting reduces runoff in cities", state.Docs[0].Chunk.Text)

	want := state.Docs[0].Chunk.Text + models.ContextSeparator + state.Docs[1].Chunk.Text
	assert.Equal(t, want, state.Context)
	assert.LessOrEqual(t, state.Docs[0].Score, state.Docs[1].Score)
}

func TestRun_RetrievalFailureIsNotFatal(t *testing.T) {
	emb := mock.NewEmbedder()
	store := newStore(t)
	seed(t, store, emb, "rainwater harvesting reduces runoff")

	emb.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}
	p, err := NewPipeline(store, emb, &recordingLLM{reply: "general answer"}, Options{})
	require.NoError(t, err)

	state, err := p.Run(context.Background(), Request{Question: "How can I reduce runoff?"})
	require.NoError(t, err)
	assert.False(t, state.UseContext)
	assert.Empty(t, state.Docs)
	assert.Empty(t, state.Context)
	assert.Equal(t, "general answer", state.FinalAnswer)
}

func TestRun_NoEmbedderSkipsRetrieval(t *testing.T) {
	emb := mock.NewEmbedder()
	store := newStore(t)
	seed(t, store, emb, "rainwater harvesting reduces runoff")

	p, err := NewPipeline(store, nil, &recordingLLM{reply: "ok"}, Options{})
	require.NoError(t, err)

	state, err := p.Run(context.Background(), Request{Question: "runoff"})
	require.NoError(t, err)
	assert.False(t, state.UseContext)
}

func TestRun_GenerationErrorPropagates(t *testing.T) {
	adapter, err := llmservice.NewAdapter(llmservice.CallFunc(func(context.Context, string) (string, error) {
		return "", errors.New("quota exceeded")
	}))
	require.NoError(t, err)

	p, err := NewPipeline(newStore(t), nil, adapter, Options{})
	require.NoError(t, err)

	state, err := p.Run(context.Background(), Request{Question: "Hello"})
	assert.Nil(t, state)
	assert.ErrorIs(t, err, llmservice.ErrLLMInvocation)
}

func TestRun_HistoryPrecedesQuestion(t *testing.T) {
	llm := &recordingLLM{reply: "ok"}
	p, err := NewPipeline(newStore(t), nil, llm, Options{})
	require.NoError(t, err)

	history := "User: What is a watershed?\nAssistant: An area draining to one outlet.\n"
	state, err := p.Run(context.Background(), Request{Question: "Give an example", History: history})
	require.NoError(t, err)
	assert.Contains(t, state.Prompt, history+"\nUser: Give an example")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain text unchanged", raw: "  keep spacing  ", want: "  keep spacing  "},
		{name: "think block stripped", raw: "<think>reasoning</think>\n\nAnswer.", want: "Answer."},
		{name: "multiline think", raw: "<think>a\nb\n</think>Done", want: "Done"},
		{name: "only think", raw: "<think>x</think>", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize(tt.raw))
		})
	}
}

func TestAnswer_RecordsHistory(t *testing.T) {
	llm := &recordingLLM{reply: "<think>hmm</think>Use mulch."}
	hist := &memHistory{}
	p, err := NewPipeline(newStore(t), nil, llm, Options{History: hist, HistoryLimit: 5})
	require.NoError(t, err)

	answer, err := p.Answer(context.Background(), "chat-1", "How do I keep soil moist?")
	require.NoError(t, err)
	assert.Equal(t, "Use mulch.", answer)
	assert.Equal(t, 5, hist.limit)
	assert.Equal(t, []string{
		"User: How do I keep soil moist?\n",
		"Assistant: Use mulch.\n",
	}, hist.turns)

	llm.reply = "Water early."
	_, err = p.Answer(context.Background(), "chat-1", "When should I water?")
	require.NoError(t, err)
	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[1], "User: How do I keep soil moist?\nAssistant: Use mulch.\n\nUser: When should I water?")
}

func TestAnswer_FallsBackToRawResponse(t *testing.T) {
	llm := &recordingLLM{reply: "<think>only reasoning</think>"}
	p, err := NewPipeline(newStore(t), nil, llm, Options{})
	require.NoError(t, err)

	answer, err := p.Answer(context.Background(), "", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "<think>only reasoning</think>", answer)
}

func TestAnswer_HistoryFailureIsIgnored(t *testing.T) {
	hist := &memHistory{failLoad: true}
	llm := &recordingLLM{reply: "fine"}
	p, err := NewPipeline(newStore(t), nil, llm, Options{History: hist})
	require.NoError(t, err)

	answer, err := p.Answer(context.Background(), "chat-2", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "fine", answer)
	assert.Len(t, hist.turns, 2)
}

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(nil, nil, &recordingLLM{}, Options{})
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewPipeline(newStore(t), nil, nil, Options{})
	assert.ErrorIs(t, err, ErrLLMRequired)
}

func TestDiagnostics(t *testing.T) {
	emb := mock.NewEmbedder()
	store := newStore(t)

	p, err := NewPipeline(store, emb, &recordingLLM{}, Options{
		LLMStatus:   status{ok: false, reason: "missing key"},
		EmbedStatus: status{ok: true},
	})
	require.NoError(t, err)

	d := p.Diagnostics()
	assert.False(t, d.LLMAvailable)
	assert.Equal(t, "missing key", d.LLMReason)
	assert.True(t, d.EmbeddingsAvailable)
	assert.False(t, d.IndexLoaded)
	assert.False(t, d.IndexOnDisk)

	seed(t, store, emb, "a", "b")
	d = p.Diagnostics()
	assert.True(t, d.IndexLoaded)
	assert.True(t, d.IndexOnDisk)
	assert.Equal(t, 2, d.IndexedChunks)
}
