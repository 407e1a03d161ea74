package models

// Chunk is one window of a source document's extracted text.
// Chunks are never mutated after they are created.
type Chunk struct {
	Text      string
	SourceRef string
	Position  int
	Page      int
}

// IngestionOutcome summarises one ingestion call.
// IndexLocation is empty when no document was indexed.
type IngestionOutcome struct {
	Indexed       int
	IndexLocation string
	Message       string
}

// Diagnostics reports which collaborators are usable.
type Diagnostics struct {
	LLMAvailable        bool   `json:"llm_available"`
	LLMReason           string `json:"llm_reason,omitempty"`
	EmbeddingsAvailable bool   `json:"embeddings_available"`
	EmbeddingsReason    string `json:"embeddings_reason,omitempty"`
	IndexLoaded         bool   `json:"index_loaded"`
	IndexOnDisk         bool   `json:"index_on_disk"`
	IndexedChunks       int    `json:"indexed_chunks"`
}
