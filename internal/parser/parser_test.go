package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortText(t *testing.T) {
	assert.Equal(t, []string{"short"}, Split("short", 10, 2))
	assert.Equal(t, []string{"exactly10!"}, Split("exactly10!", 10, 2))
}

func TestSplit_Empty(t *testing.T) {
	assert.Nil(t, Split("", 10, 2))
	assert.Nil(t, Split("text", 0, 0))
}

func TestSplit_Windows(t *testing.T) {
	chunks := Split("abcdefghij", 4, 1)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)

	chunks = Split("abcdefghijk", 4, 1)
	assert.Equal(t, []string{"abcd", "defg", "ghij", "jk"}, chunks)
}

func TestSplit_OverlapClamped(t *testing.T) {
	// overlap >= size falls back to size/2
	assert.Equal(t, Split("abcdefgh", 4, 2), Split("abcdefgh", 4, 9))
	assert.Equal(t, Split("abcdefgh", 4, 0), Split("abcdefgh", 4, -3))
}

func TestSplit_Runes(t *testing.T) {
	text := "água é vida, ação já"
	chunks := Split(text, 5, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 5)
	}
	assert.Equal(t, text, Join(chunks, 2))
}

func TestSplit_DeterministicAndReconstructs(t *testing.T) {
	text := strings.Repeat("Rainwater harvesting reduces runoff and recharges aquifers. ", 40)
	params := []struct{ size, overlap int }{
		{1000, 200}, {100, 0}, {100, 99}, {7, 3}, {2, 1}, {1, 0},
	}

	for _, p := range params {
		first := Split(text, p.size, p.overlap)
		second := Split(text, p.size, p.overlap)
		require.Equal(t, first, second)
		assert.Equal(t, text, Join(first, p.overlap), "size=%d overlap=%d", p.size, p.overlap)
		for i := 1; i < len(first); i++ {
			prev := []rune(first[i-1])
			cur := []rune(first[i])
			assert.Equal(t, string(prev[len(prev)-p.overlap:]), string(cur[:p.overlap]))
		}
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "report.PDF")
	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(txtPath, []byte("hello"), 0o644))

	assert.NoError(t, Validate(pdfPath))
	assert.ErrorIs(t, Validate(txtPath), ErrInvalidDocument)
	assert.ErrorIs(t, Validate(dir), ErrInvalidDocument)
	assert.ErrorIs(t, Validate(filepath.Join(dir, "missing.pdf")), ErrInvalidDocument)
}

func TestPDFExtractor_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pdf at all"), 0o644))

	pages, err := NewPDFExtractor().Extract(path)
	assert.Error(t, err)
	assert.Nil(t, pages)
}

func TestChunkPages(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "abcdefgh"},
		{Number: 2, Text: "   "},
		{Number: 3, Text: "xyz"},
	}

	chunks := ChunkPages("doc.pdf", pages, 5, 1)
	require.Len(t, chunks, 3)
	assert.Equal(t, "abcde", chunks[0].Text)
	assert.Equal(t, "efgh", chunks[1].Text)
	assert.Equal(t, "xyz", chunks[2].Text)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, "doc.pdf", c.SourceRef)
	}
	assert.Equal(t, 3, chunks[2].Page)
}
