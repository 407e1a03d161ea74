package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"aqua-rag/internal/chromemdb"
	"aqua-rag/internal/embedding"
	"aqua-rag/internal/models"
	"aqua-rag/internal/parser"
)

const noneIndexedMessage = "No documents were indexed."

// MetadataRecorder keeps a record of every ingested document.
type MetadataRecorder interface {
	RecordDocument(ctx context.Context, filename, filepath string, uploadedAt time.Time) error
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Pipeline turns documents into embedded chunks of the shared index,
// persisting after every document.
type Pipeline struct {
	store     *chromemdb.Store
	extractor parser.Extractor
	embedder  embedding.Embedder
	recorder  MetadataRecorder
	opts      Options
}

// NewPipeline builds an ingestion pipeline. extractor defaults to the PDF
// extractor; recorder may be nil.
func NewPipeline(store *chromemdb.Store, extractor parser.Extractor, embedder embedding.Embedder, recorder MetadataRecorder, opts Options) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if extractor == nil {
		extractor = parser.NewPDFExtractor()
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		recorder:  recorder,
		opts:      opts,
	}, nil
}

// Ingest indexes each path in order. A failing document is logged and
// skipped; every document counted in the outcome is already on disk.
func (p *Pipeline) Ingest(ctx context.Context, paths []string, saveMetadata bool) models.IngestionOutcome {
	indexed := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Msg("Ingestion cancelled")
			break
		}
		n, err := p.ingestOne(ctx, path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Skipping document")
			continue
		}
		indexed++
		log.Info().Str("path", path).Int("chunks", n).Msg("Indexed document")

		if saveMetadata && p.recorder != nil {
			abs, _ := filepath.Abs(path)
			if err := p.recorder.RecordDocument(ctx, filepath.Base(path), abs, time.Now().UTC()); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to record document metadata")
			}
		}
	}

	if indexed == 0 {
		return models.IngestionOutcome{Message: noneIndexedMessage}
	}
	return models.IngestionOutcome{
		Indexed:       indexed,
		IndexLocation: p.store.Dir(),
		Message:       fmt.Sprintf("Indexed %d document(s). Index saved at '%s'.", indexed, p.store.Dir()),
	}
}

func (p *Pipeline) ingestOne(ctx context.Context, path string) (int, error) {
	if err := parser.Validate(path); err != nil {
		return 0, err
	}
	pages, err := p.extractor.Extract(path)
	if err != nil {
		return 0, fmt.Errorf("failed to extract text: %w", err)
	}

	ref := path
	if abs, err := filepath.Abs(path); err == nil {
		ref = abs
	}
	chunks := parser.ChunkPages(ref, pages, p.opts.ChunkSize, p.opts.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, errors.New("no extractable text")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := p.store.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("failed to update index: %w", err)
	}
	return len(chunks), nil
}

// Bootstrap loads the persisted index, or builds one from every PDF in
// folder when none can be loaded. It reports whether an index is live.
func (p *Pipeline) Bootstrap(ctx context.Context, folder string) bool {
	if p.store.Current() != nil || p.store.Load() {
		return true
	}
	if folder == "" {
		return false
	}
	paths, err := GatherFiles(folder)
	if err != nil {
		log.Warn().Err(err).Str("folder", folder).Msg("Cannot read documents folder")
		return false
	}
	if len(paths) == 0 {
		log.Info().Str("folder", folder).Msg("No PDF documents to index")
		return false
	}
	out := p.Ingest(ctx, paths, false)
	log.Info().Int("indexed", out.Indexed).Msg(out.Message)
	return p.store.Current() != nil
}

// GatherFiles lists the PDF files directly inside folder as sorted absolute paths.
func GatherFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !parser.IsPDF(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(abs, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
