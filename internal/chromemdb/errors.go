package chromemdb

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when an index operation gets no chunks.
	ErrEmptyInput = errors.New("no chunks to index")

	errNoEmbedFunc = errors.New("vectors must be supplied by the embedding provider")
)

// RetrievalError wraps a failure of the embed or lookup step of a search.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed during %s: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }
