// Package mock provides deterministic test doubles for the embedding provider.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

const defaultDim = 64

// Embedder hashes words into a fixed number of buckets, so texts sharing
// words end up close to each other. Function fields override the defaults.
type Embedder struct {
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	Dim int

	mu        sync.Mutex
	callCount int
	batches   [][]string
}

func NewEmbedder() *Embedder {
	return &Embedder{Dim: defaultDim}
}

func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.record(nil)
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return Vector(text, m.dim()), nil
}

func (m *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.record(texts)
	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = Vector(text, m.dim())
	}
	return out, nil
}

// CallCount returns the number of calls to either method.
func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Batches returns the inputs of every EmbedTexts call.
func (m *Embedder) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batches...)
}

func (m *Embedder) record(texts []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if texts != nil {
		m.batches = append(m.batches, append([]string(nil), texts...))
	}
}

func (m *Embedder) dim() int {
	if m.Dim <= 0 {
		return defaultDim
	}
	return m.Dim
}

// Vector returns the unit-length bag-of-words vector of text.
func Vector(text string, dim int) []float32 {
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}
	if len(words) == 0 {
		v[0] = 1
	}

	// small dense component so unrelated texts do not tie
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] += float32(seed%1000) / 100000
	}

	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
