package rag

import "errors"

var (
	ErrStoreRequired = errors.New("rag: index store is required")
	ErrLLMRequired   = errors.New("rag: llm is required")
)
