package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"aqua-rag/internal/models"
)

// Page is the extracted text of one page, numbered from 1.
type Page struct {
	Number int
	Text   string
}

// Extractor turns a document on disk into per-page text.
type Extractor interface {
	Extract(path string) ([]Page, error)
}

// Validate accepts regular files with a .pdf extension.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDocument, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s: not a file", ErrInvalidDocument, path)
	}
	if !IsPDF(path) {
		return fmt.Errorf("%w: %s: not a PDF", ErrInvalidDocument, path)
	}
	return nil
}

func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), models.PDFExtension)
}

// PDFExtractor reads plain text page by page.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract returns one Page per PDF page, blank pages included.
// Malformed files can panic inside the pdf reader; those panics come back as errors.
func (e *PDFExtractor) Extract(path string) (pages []Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("failed to read pdf %s: %v", path, r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf %s: %w", path, err)
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d of %s: %w", i, path, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	log.Debug().Str("path", path).Int("pages", numPages).Msg("Extracted pdf")
	return pages, nil
}

// ChunkPages splits every page and numbers the chunks across the document.
func ChunkPages(sourceRef string, pages []Page, chunkSize, overlap int) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		for _, text := range Split(page.Text, chunkSize, overlap) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Text:      text,
				SourceRef: sourceRef,
				Position:  len(chunks),
				Page:      page.Number,
			})
		}
	}
	return chunks
}
