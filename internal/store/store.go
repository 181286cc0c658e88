// Package store persists segment embeddings on disk and answers
// nearest-neighbor queries over them.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"worlds-rag/internal/splitter"
)

const (
	dbSubdir     = "db"
	manifestFile = "manifest.json"
)

// EmbedFunc maps query text to a normalized vector. It must use the same
// embedding configuration the index was built with.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Store is a chromem-go backed vector index persisted under a directory.
// One writer at a time; Build replaces the index wholesale.
type Store struct {
	dir   string
	embed EmbedFunc

	db       *chromem.DB
	col      *chromem.Collection
	manifest Manifest
}

// New creates a Store rooted at dir. Nothing is touched on disk until Build
// or Open is called.
func New(dir string, embed EmbedFunc) *Store {
	return &Store{dir: dir, embed: embed}
}

// Exists reports whether an index directory is present. Its presence is the
// sole signal used to decide build-vs-load on initialize.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// Build persists all (segment, embedding) pairs, replacing any prior index
// at the destination. The new index is staged in a temporary directory and
// renamed into place only after every write succeeds, so a failed build
// leaves no committed index behind.
func (s *Store) Build(ctx context.Context, segments []splitter.Segment, embeddings [][]float32, manifest Manifest) error {
	if len(segments) != len(embeddings) {
		return fmt.Errorf("%w: %d segments, %d embeddings", ErrCountMismatch, len(segments), len(embeddings))
	}

	staging := s.dir + ".tmp"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(filepath.Join(staging, dbSubdir), false)
	if err != nil {
		return fmt.Errorf("create staging index: %w", err)
	}
	col, err := db.GetOrCreateCollection(CollectionName, nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, len(segments))
	for i, seg := range segments {
		docs[i] = chromem.Document{
			ID:      uuid.New().String(),
			Content: seg.Content,
			Metadata: map[string]string{
				"page":     strconv.Itoa(seg.Page),
				"sequence": strconv.Itoa(seg.Sequence),
			},
			Embedding: embeddings[i],
		}
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("add documents: %w", err)
		}
	}

	manifest.SegmentCount = len(segments)
	if manifest.BuiltAt.IsZero() {
		manifest.BuiltAt = time.Now().UTC()
	}
	if err := writeManifest(filepath.Join(staging, manifestFile), manifest); err != nil {
		return err
	}

	// Commit: swap the staged index into place.
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove previous index: %w", err)
	}
	if err := os.Rename(staging, s.dir); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}

	return s.Open(ctx)
}

// Open loads a previously built index from the directory.
func (s *Store) Open(_ context.Context) error {
	if !s.Exists() {
		return fmt.Errorf("%w: %s", ErrNotFound, s.dir)
	}

	manifest, err := readManifest(filepath.Join(s.dir, manifestFile))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	db, err := chromem.NewPersistentDB(filepath.Join(s.dir, dbSubdir), false)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	col := db.GetCollection(CollectionName, s.embeddingFunc())
	if col == nil {
		return fmt.Errorf("%w: collection %q missing", ErrCorrupt, CollectionName)
	}
	if col.Count() != manifest.SegmentCount {
		return fmt.Errorf("%w: manifest records %d segments, index holds %d",
			ErrCorrupt, manifest.SegmentCount, col.Count())
	}

	s.db = db
	s.col = col
	s.manifest = manifest
	return nil
}

// Search embeds the query text and returns the k stored segments with the
// highest cosine similarity, ordered descending. Ties are broken by original
// insertion order; k is clamped to the index size.
func (s *Store) Search(ctx context.Context, query string, k int) ([]ScoredSegment, error) {
	if s.col == nil {
		return nil, ErrNotOpen
	}
	if k > s.col.Count() {
		k = s.col.Count()
	}
	if k <= 0 {
		return nil, nil
	}

	vector, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// chromem orders equal scores arbitrarily and truncates to NResults
	// before we can re-sort, so a tie straddling the cutoff could drop the
	// wrong segment. Fetch everything and cut to k after the stable sort;
	// the index is a few hundred segments, so the full fetch is cheap.
	results, err := s.col.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       s.col.Count(),
	})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	segments := make([]ScoredSegment, 0, len(results))
	for _, res := range results {
		page, _ := strconv.Atoi(res.Metadata["page"])
		sequence, _ := strconv.Atoi(res.Metadata["sequence"])
		segments = append(segments, ScoredSegment{
			Segment: Segment{
				ID:       res.ID,
				Content:  res.Content,
				Page:     page,
				Sequence: sequence,
			},
			Similarity: float64(res.Similarity),
		})
	}

	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].Similarity != segments[j].Similarity {
			return segments[i].Similarity > segments[j].Similarity
		}
		return segments[i].Sequence < segments[j].Sequence
	})
	if len(segments) > k {
		segments = segments[:k]
	}

	return segments, nil
}

// Count returns the number of stored segments, 0 when the index is not open.
func (s *Store) Count() int {
	if s.col == nil {
		return 0
	}
	return s.col.Count()
}

// Manifest returns the fingerprint of the currently open index.
func (s *Store) Manifest() Manifest {
	return s.manifest
}

func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embed(ctx, text)
	}
}

func writeManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func readManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}
