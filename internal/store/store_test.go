package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worlds-rag/internal/splitter"
)

// fixedEmbed returns a deterministic unit vector per known text so tests can
// control similarity ordering exactly.
func fixedEmbed(vectors map[string][]float32) EmbedFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		v, ok := vectors[text]
		if !ok {
			return nil, fmt.Errorf("no fixture vector for %q", text)
		}
		return v, nil
	}
}

func buildFixtureStore(t *testing.T) *Store {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "index")
	s := New(dir, fixedEmbed(map[string][]float32{
		"Martians": {1, 0, 0},
	}))

	segments := []splitter.Segment{
		{Content: "heat-ray", Page: 1, Sequence: 0},
		{Content: "red weed", Page: 2, Sequence: 1},
		{Content: "red weed again", Page: 2, Sequence: 2},
		{Content: "the curate", Page: 3, Sequence: 3},
		{Content: "the artilleryman", Page: 3, Sequence: 4},
	}
	embeddings := [][]float32{
		{1, 0, 0},     // similarity 1.0
		{0.8, 0.6, 0}, // similarity 0.8
		{0.8, 0.6, 0}, // similarity 0.8, tie with sequence 1
		{0, 1, 0},     // similarity 0
		{0, 0, 1},     // similarity 0, tie with sequence 3
	}

	err := s.Build(context.Background(), segments, embeddings, Manifest{
		DocumentSHA256: "abc123",
		ChunkSize:      1000,
		ChunkOverlap:   200,
		EmbeddingModel: "text-embedding-3-small",
	})
	require.NoError(t, err)
	return s
}

func TestSearch_OrderedBySimilarityWithStableTies(t *testing.T) {
	s := buildFixtureStore(t)

	results, err := s.Search(context.Background(), "Martians", 5)
	require.NoError(t, err)
	require.Len(t, results, 5)

	wantSequences := []int{0, 1, 2, 3, 4}
	for i, want := range wantSequences {
		assert.Equal(t, want, results[i].Sequence, "result %d", i)
	}
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity,
			"results must be non-increasing in similarity")
	}
}

func TestSearch_ClampsKToIndexSize(t *testing.T) {
	s := buildFixtureStore(t)

	results, err := s.Search(context.Background(), "Martians", 10)
	require.NoError(t, err)
	assert.Len(t, results, 5, "k beyond index size returns all segments")
}

func TestSearch_RespectsK(t *testing.T) {
	s := buildFixtureStore(t)

	results, err := s.Search(context.Background(), "Martians", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "heat-ray", results[0].Content)
	assert.Equal(t, "red weed", results[1].Content)
}

func TestSearch_TieStraddlingKBoundary(t *testing.T) {
	// All segments score identically, so which ones survive the cut to k is
	// decided purely by insertion order.
	dir := filepath.Join(t.TempDir(), "index")
	s := New(dir, fixedEmbed(map[string][]float32{
		"Martians": {1, 0, 0},
	}))

	tied := []float32{0.8, 0.6, 0}
	segments := []splitter.Segment{
		{Content: "the pit", Page: 1, Sequence: 0},
		{Content: "the cylinder", Page: 1, Sequence: 1},
		{Content: "the common", Page: 2, Sequence: 2},
		{Content: "the crowd", Page: 2, Sequence: 3},
	}
	embeddings := [][]float32{tied, tied, tied, tied}

	require.NoError(t, s.Build(context.Background(), segments, embeddings, Manifest{
		DocumentSHA256: "abc123",
		ChunkSize:      1000,
		ChunkOverlap:   200,
		EmbeddingModel: "text-embedding-3-small",
	}))

	for range 10 {
		results, err := s.Search(context.Background(), "Martians", 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 0, results[0].Sequence)
		assert.Equal(t, 1, results[1].Sequence)
	}
}

func TestSearch_BeforeOpen(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "index"), nil)
	_, err := s.Search(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestOpen_MissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent"), nil)
	err := s.Open(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_MissingManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	s := New(dir, nil)
	err := s.Open(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen_GarbageManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{nope"), 0o644))

	s := New(dir, nil)
	err := s.Open(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen_RoundTripManifest(t *testing.T) {
	s := buildFixtureStore(t)

	// Reopen through a fresh Store instance against the same directory.
	reopened := New(s.dir, s.embed)
	require.NoError(t, reopened.Open(context.Background()))

	m := reopened.Manifest()
	assert.Equal(t, "abc123", m.DocumentSHA256)
	assert.Equal(t, 1000, m.ChunkSize)
	assert.Equal(t, 200, m.ChunkOverlap)
	assert.Equal(t, "text-embedding-3-small", m.EmbeddingModel)
	assert.Equal(t, 5, m.SegmentCount)
	assert.False(t, m.BuiltAt.IsZero())
	assert.Equal(t, 5, reopened.Count())
}

func TestBuild_CountMismatchLeavesNoIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	s := New(dir, nil)

	err := s.Build(context.Background(),
		[]splitter.Segment{{Content: "a"}, {Content: "b"}},
		[][]float32{{1, 0}},
		Manifest{})
	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.False(t, s.Exists(), "failed build must not commit an index")
}

func TestBuild_ReplacesPriorIndex(t *testing.T) {
	s := buildFixtureStore(t)
	require.Equal(t, 5, s.Count())

	err := s.Build(context.Background(),
		[]splitter.Segment{
			{Content: "only one", Page: 1, Sequence: 0},
			{Content: "and two", Page: 1, Sequence: 1},
		},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		Manifest{DocumentSHA256: "def456", ChunkSize: 500, ChunkOverlap: 100, EmbeddingModel: "text-embedding-3-small"})
	require.NoError(t, err)

	assert.Equal(t, 2, s.Count())
	assert.Equal(t, "def456", s.Manifest().DocumentSHA256)
	assert.Equal(t, 2, s.Manifest().SegmentCount)
}

func TestManifest_Matches(t *testing.T) {
	base := Manifest{DocumentSHA256: "x", ChunkSize: 1000, ChunkOverlap: 200, EmbeddingModel: "m"}

	assert.True(t, base.Matches(Manifest{DocumentSHA256: "x", ChunkSize: 1000, ChunkOverlap: 200, EmbeddingModel: "m", SegmentCount: 99}))
	assert.False(t, base.Matches(Manifest{DocumentSHA256: "y", ChunkSize: 1000, ChunkOverlap: 200, EmbeddingModel: "m"}))
	assert.False(t, base.Matches(Manifest{DocumentSHA256: "x", ChunkSize: 500, ChunkOverlap: 200, EmbeddingModel: "m"}))
	assert.False(t, base.Matches(Manifest{DocumentSHA256: "x", ChunkSize: 1000, ChunkOverlap: 100, EmbeddingModel: "m"}))
	assert.False(t, base.Matches(Manifest{DocumentSHA256: "x", ChunkSize: 1000, ChunkOverlap: 200, EmbeddingModel: "other"}))
}
