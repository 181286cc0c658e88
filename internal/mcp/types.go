// Package mcp exposes the book question-answering engine over the Model
// Context Protocol.
package mcp

import "time"

// AskBookInput defines the input parameters for the ask_book tool.
type AskBookInput struct {
	// Question is the natural-language question about the book.
	Question string `json:"question" jsonschema:"required,description=A natural-language question about the book"`
}

// AskBookOutput contains the generated answer with its supporting passages.
type AskBookOutput struct {
	// Answer is the generated answer, grounded in the retrieved passages.
	Answer string `json:"answer"`
	// Sources lists the passages the answer was grounded in.
	Sources []Passage `json:"sources"`
}

// SearchPassagesInput defines the input parameters for the search_passages tool.
type SearchPassagesInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query for finding relevant book passages"`
	// MaxResults is the maximum number of passages to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=50,default=10,description=Maximum number of passages to return"`
}

// SearchPassagesOutput contains the retrieved passages.
type SearchPassagesOutput struct {
	Passages []Passage `json:"passages"`
	Count    int       `json:"count"`
}

// Passage is a retrieved segment of the book.
type Passage struct {
	// Content is the full segment text.
	Content string `json:"content"`
	// Page is the 1-based page the segment was extracted from.
	Page int `json:"page"`
	// Sequence is the segment position across the whole document.
	Sequence int `json:"sequence"`
	// Similarity is the cosine similarity to the query (0-1).
	Similarity float64 `json:"similarity"`
}

// IndexStatusInput defines the input for the index_status tool.
// The tool takes no parameters.
type IndexStatusInput struct{}

// IndexStatusOutput describes the current state of the vector index.
type IndexStatusOutput struct {
	// Ready indicates whether the index is loaded and queryable.
	Ready bool `json:"ready"`
	// SegmentCount is the number of indexed segments.
	SegmentCount int `json:"segment_count"`
	// DocumentSHA256 fingerprints the source document the index was built from.
	DocumentSHA256 string `json:"document_sha256,omitempty"`
	// ChunkSize and ChunkOverlap are the chunking parameters used at build time.
	ChunkSize    int `json:"chunk_size,omitempty"`
	ChunkOverlap int `json:"chunk_overlap,omitempty"`
	// EmbeddingModel is the model the index vectors were produced with.
	EmbeddingModel string `json:"embedding_model,omitempty"`
	// BuiltAt is when the index was built.
	BuiltAt time.Time `json:"built_at,omitzero"`
}
