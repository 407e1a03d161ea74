package rag

import "aqua-rag/internal/chromemdb"

// Request is the input of one pipeline run. History is the pre-formatted
// text of earlier turns, oldest first.
type Request struct {
	Question string
	ChatID   string
	History  string
}

// Retrieved is a Request after retrieval.
type Retrieved struct {
	Request
	Docs       []chromemdb.ScoredChunk
	UseContext bool
}

// Formatted holds the context text built from the retrieved chunks.
type Formatted struct {
	Retrieved
	Context string
}

type Prompted struct {
	Formatted
	Prompt string
}

type Generated struct {
	Prompted
	RawResponse string
}

// State is the terminal value of a run.
type State struct {
	Generated
	FinalAnswer string
}
