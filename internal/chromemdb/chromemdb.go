package chromemdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"aqua-rag/internal/embedding"
	"aqua-rag/internal/helper"
	"aqua-rag/internal/models"
)

const (
	metaSource   = "source"
	metaPosition = "position"
	metaPage     = "page"

	snapshotExt = ".gob"
)

// Options control the collection name and the on-disk snapshot encoding.
type Options struct {
	Collection    string
	Compress      bool
	EncryptionKey string
}

// Index is one chromem collection holding every embedded chunk.
// Chunk ids are their ordinal in the collection.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	opts       Options
	dim        int
}

// ScoredChunk is a search hit. Score is the cosine distance, lower is closer.
type ScoredChunk struct {
	ID    string
	Chunk models.Chunk
	Score float32
}

// Retrieval is the outcome of one search: hits ordered closest first, or the
// reason the search failed.
type Retrieval struct {
	Chunks []ScoredChunk
	Err    error
}

func (r Retrieval) OK() bool { return r.Err == nil && len(r.Chunks) > 0 }

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedFunc
}

// SnapshotPath is the file inside dir the index is persisted to.
func SnapshotPath(dir string, opts Options) string {
	name := opts.Collection + snapshotExt
	if opts.Compress {
		name += ".gz"
	}
	if opts.EncryptionKey != "" {
		name += ".enc"
	}
	return filepath.Join(dir, name)
}

func newIndex(opts Options) (*Index, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(opts.Collection, nil, refuseEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Index{db: db, collection: c, opts: opts}, nil
}

// CreateFrom builds a new index holding chunks.
func CreateFrom(ctx context.Context, chunks []models.Chunk, vectors [][]float32, opts Options) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}
	idx, err := newIndex(opts)
	if err != nil {
		return nil, err
	}
	if _, err := idx.add(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

// LoadIfExists reads the snapshot in dir. Any failure is logged and reported
// as a nil index so callers carry on without one.
func LoadIfExists(dir string, opts Options) *Index {
	path := SnapshotPath(dir, opts)
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("Cannot stat index snapshot")
		}
		return nil
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, opts.EncryptionKey); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to load index, continuing without one")
		return nil
	}
	c := db.GetCollection(opts.Collection, refuseEmbedding)
	if c == nil {
		log.Error().Str("path", path).Str("collection", opts.Collection).Msg("Index snapshot has no such collection")
		return nil
	}

	idx := &Index{db: db, collection: c, opts: opts}
	if c.Count() > 0 {
		if doc, err := c.GetByID(context.Background(), "0"); err == nil {
			idx.dim = len(doc.Embedding)
		}
	}
	log.Info().Str("path", path).Int("chunks", c.Count()).Msg("Loaded existing index")
	return idx
}

// Add appends chunks to the index in place.
func (i *Index) Add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	_, err := i.add(ctx, chunks, vectors)
	return err
}

func (i *Index) add(ctx context.Context, chunks []models.Chunk, vectors [][]float32) ([]string, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	dim := i.dim
	for k, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty vector for chunk %d", k)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), dim)
		}
	}

	base := i.collection.Count()
	docs := make([]chromem.Document, len(chunks))
	ids := make([]string, len(chunks))
	for k, c := range chunks {
		ids[k] = strconv.Itoa(base + k)
		docs[k] = chromem.Document{
			ID:      ids[k],
			Content: c.Text,
			Metadata: map[string]string{
				metaSource:   c.SourceRef,
				metaPosition: strconv.Itoa(c.Position),
				metaPage:     strconv.Itoa(c.Page),
			},
			Embedding: vectors[k],
		}
	}

	if err := i.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}
	i.dim = dim
	return ids, nil
}

func (i *Index) remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return i.collection.Delete(ctx, nil, nil, ids...)
}

// Count returns the number of chunks in the index.
func (i *Index) Count() int {
	return i.collection.Count()
}

// Chunks lists every chunk in id order.
func (i *Index) Chunks(ctx context.Context) ([]models.Chunk, error) {
	n := i.collection.Count()
	out := make([]models.Chunk, 0, n)
	for k := 0; k < n; k++ {
		doc, err := i.collection.GetByID(ctx, strconv.Itoa(k))
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %d: %w", k, err)
		}
		out = append(out, toChunk(doc.Content, doc.Metadata))
	}
	return out, nil
}

// Persist writes the index to dir. The snapshot is written to a hidden
// sibling file first and renamed over the old one, so readers see either the
// previous or the new snapshot.
func (i *Index) Persist(dir string) error {
	if err := helper.CreateFolder(dir); err != nil {
		return fmt.Errorf("failed to create index folder: %w", err)
	}
	final := SnapshotPath(dir, i.opts)
	tmp := filepath.Join(dir, "."+filepath.Base(final))
	_ = os.Remove(tmp)

	if err := i.db.ExportToFile(tmp, i.opts.Compress, i.opts.EncryptionKey, i.collection.Name); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to export index: %w", err)
	}
	if err := syncFile(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync index: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace index: %w", err)
	}
	log.Debug().Str("path", final).Int("chunks", i.Count()).Msg("Persisted index")
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Search embeds query and returns the k nearest chunks. k is clamped to the index size.
func (i *Index) Search(ctx context.Context, embedder embedding.Embedder, query string, k int) Retrieval {
	n := i.collection.Count()
	if n == 0 {
		return Retrieval{}
	}
	k = max(1, min(k, n))

	vector, err := embedder.EmbedText(ctx, query)
	if err != nil {
		return Retrieval{Err: &RetrievalError{Op: "embed", Err: err}}
	}

	results, err := i.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       k,
	})
	if err != nil {
		return Retrieval{Err: &RetrievalError{Op: "query", Err: err}}
	}

	hits := make([]ScoredChunk, len(results))
	for j, r := range results {
		hits[j] = ScoredChunk{
			ID:    r.ID,
			Chunk: toChunk(r.Content, r.Metadata),
			Score: 1 - r.Similarity,
		}
	}
	return Retrieval{Chunks: hits}
}

func toChunk(content string, meta map[string]string) models.Chunk {
	position, _ := strconv.Atoi(meta[metaPosition])
	page, _ := strconv.Atoi(meta[metaPage])
	return models.Chunk{
		Text:      content,
		SourceRef: meta[metaSource],
		Position:  position,
		Page:      page,
	}
}
