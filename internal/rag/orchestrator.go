// Package rag sequences loading, chunking, embedding, storage, retrieval,
// and generation into build-index and answer-question workflows.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"worlds-rag/internal/config"
	"worlds-rag/internal/document"
	"worlds-rag/internal/splitter"
	"worlds-rag/internal/store"
)

// ErrNotInitialized indicates a query before a successful Initialize.
var ErrNotInitialized = errors.New("orchestrator not initialized")

// ErrEmptyQuestion indicates a blank question string.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Loader extracts page text from the source document.
type Loader interface {
	Load(path string) ([]document.Page, error)
}

// Chunker splits pages into overlapping segments.
type Chunker interface {
	Split(pages []document.Page) []splitter.Segment
}

// Embedder maps text batches to normalized vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Index is the persistent vector store.
type Index interface {
	Exists() bool
	Open(ctx context.Context) error
	Build(ctx context.Context, segments []splitter.Segment, embeddings [][]float32, manifest store.Manifest) error
	Search(ctx context.Context, query string, k int) ([]store.ScoredSegment, error)
	Count() int
	Manifest() store.Manifest
}

// Generator produces an answer from a question and retrieved segments.
type Generator interface {
	Generate(ctx context.Context, question string, segments []store.ScoredSegment) (string, error)
}

// Result is the outcome of a single query.
type Result struct {
	Answer  string
	Sources []store.ScoredSegment
}

// Status describes the orchestrator for health and status surfaces.
type Status struct {
	Ready        bool
	SegmentCount int
	Manifest     store.Manifest
}

// Orchestrator is a long-lived, shared coordinator. Initialize takes the
// write lock; queries run under the read lock, so concurrent questions are
// independent but never race a rebuild.
type Orchestrator struct {
	cfg       *config.Config
	loader    Loader
	chunker   Chunker
	embedder  Embedder
	index     Index
	generator Generator
	logger    *slog.Logger

	// fingerprint hashes the source document; replaceable in tests.
	fingerprint func(path string) (string, error)

	mu    sync.RWMutex
	ready bool
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(
	cfg *config.Config,
	loader Loader,
	chunker Chunker,
	embedder Embedder,
	index Index,
	generator Generator,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:         cfg,
		loader:      loader,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		generator:   generator,
		logger:      logger,
		fingerprint: document.Fingerprint,
	}
}

// Initialize makes the orchestrator ready to answer queries. When forceReload
// is false and a persisted index exists whose manifest matches the current
// document, chunking, and embedding configuration, the index is loaded;
// otherwise the full build pipeline runs. On any failure the state is
// unchanged and the error propagates.
func (o *Orchestrator) Initialize(ctx context.Context, forceReload bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	want, err := o.currentManifest()
	if err != nil {
		return err
	}

	if !forceReload && o.index.Exists() {
		if err := o.index.Open(ctx); err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		if o.index.Manifest().Matches(want) {
			o.logger.Info("Loaded existing index",
				"segments", o.index.Count(),
				"built_at", o.index.Manifest().BuiltAt,
			)
			o.ready = true
			return nil
		}
		o.logger.Warn("Index fingerprint does not match current configuration, rebuilding",
			"indexed_model", o.index.Manifest().EmbeddingModel,
			"current_model", want.EmbeddingModel,
		)
	}

	if err := o.build(ctx, want); err != nil {
		return err
	}
	o.ready = true
	return nil
}

// build runs Loader -> Chunker -> Embedder -> Index.Build.
func (o *Orchestrator) build(ctx context.Context, manifest store.Manifest) error {
	start := time.Now()

	pages, err := o.loader.Load(o.cfg.DocumentPath)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	o.logger.Info("Loaded document", "path", o.cfg.DocumentPath, "pages", len(pages))

	segments := o.chunker.Split(pages)
	if len(segments) == 0 {
		return fmt.Errorf("document %s produced no segments", o.cfg.DocumentPath)
	}
	o.logger.Info("Split document", "segments", len(segments))

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Content
	}
	embeddings, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed segments: %w", err)
	}

	if err := o.index.Build(ctx, segments, embeddings, manifest); err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	o.logger.Info("Built index",
		"segments", len(segments),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// Query retrieves the top-k segments for the question and generates an
// answer grounded in them. Callable only after a successful Initialize; a
// generation failure leaves the orchestrator ready for subsequent calls.
func (o *Orchestrator) Query(ctx context.Context, question string) (*Result, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if !o.ready {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	segments, err := o.index.Search(ctx, question, o.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	answer, err := o.generator.Generate(ctx, question, segments)
	if err != nil {
		return nil, err
	}

	return &Result{Answer: answer, Sources: segments}, nil
}

// Search retrieves the top-k segments for a query without generating an
// answer. A k of zero or less falls back to the configured top-k.
func (o *Orchestrator) Search(ctx context.Context, query string, k int) ([]store.ScoredSegment, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if !o.ready {
		return nil, ErrNotInitialized
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuestion
	}
	if k <= 0 {
		k = o.cfg.TopK
	}
	return o.index.Search(ctx, query, k)
}

// Ready reports whether Initialize has succeeded.
func (o *Orchestrator) Ready() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.ready
}

// Status returns the current readiness and index fingerprint.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Status{
		Ready:        o.ready,
		SegmentCount: o.index.Count(),
		Manifest:     o.index.Manifest(),
	}
}

// currentManifest fingerprints the present configuration; an index is
// reusable only when its stored manifest matches this one.
func (o *Orchestrator) currentManifest() (store.Manifest, error) {
	sha, err := o.fingerprint(o.cfg.DocumentPath)
	if err != nil {
		return store.Manifest{}, fmt.Errorf("fingerprint document: %w", err)
	}
	return store.Manifest{
		DocumentSHA256: sha,
		ChunkSize:      o.cfg.ChunkSize,
		ChunkOverlap:   o.cfg.ChunkOverlap,
		EmbeddingModel: o.embedder.Model(),
	}, nil
}
