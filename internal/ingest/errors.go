package ingest

import "errors"

var (
	ErrEmbedderRequired = errors.New("ingest: embedder is required")
	ErrStoreRequired    = errors.New("ingest: index store is required")
)
