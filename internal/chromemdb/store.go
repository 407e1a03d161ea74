package chromemdb

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"aqua-rag/internal/models"
)

// Store owns the live index of the process. Readers call Current without
// locking; writers go through Upsert, which serializes mutation and persistence.
type Store struct {
	dir  string
	opts Options

	mu      sync.Mutex
	current atomic.Pointer[Index]
}

func NewStore(dir string, opts Options) *Store {
	return &Store{dir: dir, opts: opts}
}

// Dir is the directory the index is persisted in.
func (s *Store) Dir() string { return s.dir }

// Current returns the live index, or nil when none has been loaded or created.
func (s *Store) Current() *Index { return s.current.Load() }

// Set publishes idx as the live index.
func (s *Store) Set(idx *Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(idx)
}

// Load publishes the on-disk index if there is a readable one.
func (s *Store) Load() bool {
	idx := LoadIfExists(s.dir, s.opts)
	if idx == nil {
		return false
	}
	s.Set(idx)
	return true
}

// Exists reports whether a snapshot file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(SnapshotPath(s.dir, s.opts))
	return err == nil
}

// Upsert creates the index from chunks, or appends to the live one, and
// persists it before returning. On a persistence failure the in-memory index
// is left as it was before the call.
func (s *Store) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.current.Load()
	if idx == nil {
		fresh, err := CreateFrom(ctx, chunks, vectors, s.opts)
		if err != nil {
			return err
		}
		if err := fresh.Persist(s.dir); err != nil {
			return err
		}
		s.current.Store(fresh)
		return nil
	}

	ids, err := idx.add(ctx, chunks, vectors)
	if err != nil {
		return err
	}
	if err := idx.Persist(s.dir); err != nil {
		if rerr := idx.remove(ctx, ids); rerr != nil {
			log.Error().Err(rerr).Int("chunks", len(ids)).Msg("Failed to roll back unpersisted chunks")
		}
		return err
	}
	return nil
}
