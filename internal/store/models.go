package store

import "time"

// Segment is a stored retrieval unit as returned from the index.
type Segment struct {
	ID       string // UUID assigned at build time
	Content  string // Raw segment text
	Page     int    // 1-based source page number
	Sequence int    // Insertion position across the whole document
}

// ScoredSegment pairs a segment with its cosine similarity to a query.
type ScoredSegment struct {
	Segment
	Similarity float64
}

// Manifest fingerprints the configuration an index was built with. Reusing
// an index built under a different configuration silently corrupts retrieval
// quality, so the orchestrator compares manifests before loading.
type Manifest struct {
	DocumentSHA256 string    `json:"document_sha256"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	EmbeddingModel string    `json:"embedding_model"`
	SegmentCount   int       `json:"segment_count"`
	BuiltAt        time.Time `json:"built_at"`
}

// Matches reports whether two manifests describe the same document, chunking
// parameters, and embedding model.
func (m Manifest) Matches(other Manifest) bool {
	return m.DocumentSHA256 == other.DocumentSHA256 &&
		m.ChunkSize == other.ChunkSize &&
		m.ChunkOverlap == other.ChunkOverlap &&
		m.EmbeddingModel == other.EmbeddingModel
}

// CollectionName is the single chromem collection holding all segments.
const CollectionName = "segments"
