package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"worlds-rag/internal/rag"
	"worlds-rag/internal/store"
)

// makeAskHandler creates the ask_book tool handler. It runs the full
// retrieve-then-generate pipeline and returns the answer with its sources.
func makeAskHandler(engine Engine) func(
	context.Context, *mcp.CallToolRequest, AskBookInput,
) (*mcp.CallToolResult, AskBookOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskBookInput) (
		*mcp.CallToolResult, AskBookOutput, error,
	) {
		result, err := engine.Query(ctx, input.Question)
		if err != nil {
			if errors.Is(err, rag.ErrNotInitialized) {
				return nil, AskBookOutput{}, fmt.Errorf("index is not ready yet, try again later")
			}
			return nil, AskBookOutput{}, fmt.Errorf("failed to answer question: %w", err)
		}

		return nil, AskBookOutput{
			Answer:  result.Answer,
			Sources: toPassages(result.Sources),
		}, nil
	}
}

// makeSearchHandler creates the search_passages tool handler. It retrieves
// matching passages without invoking the generation model.
func makeSearchHandler(engine Engine) func(
	context.Context, *mcp.CallToolRequest, SearchPassagesInput,
) (*mcp.CallToolResult, SearchPassagesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchPassagesInput) (
		*mcp.CallToolResult, SearchPassagesOutput, error,
	) {
		segments, err := engine.Search(ctx, input.Query, input.MaxResults)
		if err != nil {
			if errors.Is(err, rag.ErrNotInitialized) {
				return nil, SearchPassagesOutput{}, fmt.Errorf("index is not ready yet, try again later")
			}
			return nil, SearchPassagesOutput{}, fmt.Errorf("search failed: %w", err)
		}

		passages := toPassages(segments)
		return nil, SearchPassagesOutput{
			Passages: passages,
			Count:    len(passages),
		}, nil
	}
}

// makeStatusHandler creates the index_status tool handler.
func makeStatusHandler(engine Engine) func(
	context.Context, *mcp.CallToolRequest, IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IndexStatusInput) (
		*mcp.CallToolResult, IndexStatusOutput, error,
	) {
		st := engine.Status()
		out := IndexStatusOutput{
			Ready:        st.Ready,
			SegmentCount: st.SegmentCount,
		}
		if st.Ready {
			out.DocumentSHA256 = st.Manifest.DocumentSHA256
			out.ChunkSize = st.Manifest.ChunkSize
			out.ChunkOverlap = st.Manifest.ChunkOverlap
			out.EmbeddingModel = st.Manifest.EmbeddingModel
			out.BuiltAt = st.Manifest.BuiltAt
		}
		return nil, out, nil
	}
}

func toPassages(segments []store.ScoredSegment) []Passage {
	passages := make([]Passage, 0, len(segments))
	for _, seg := range segments {
		passages = append(passages, Passage{
			Content:    seg.Content,
			Page:       seg.Page,
			Sequence:   seg.Sequence,
			Similarity: seg.Similarity,
		})
	}
	return passages
}
