package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"worlds-rag/internal/rag"
	"worlds-rag/internal/store"
)

// Engine is the question-answering pipeline the tools are built on. The
// rag.Orchestrator implements it.
type Engine interface {
	Query(ctx context.Context, question string) (*rag.Result, error)
	Search(ctx context.Context, query string, k int) ([]store.ScoredSegment, error)
	Status() rag.Status
}

// Server wraps the MCP server with its dependencies.
type Server struct {
	server *mcp.Server
	engine Engine
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(engine Engine) *Server {
	impl := &mcp.Implementation{
		Name:    "war-of-the-worlds-qa",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_book",
		Description: "Ask a question about The War of the Worlds. Retrieves relevant passages and generates an answer grounded in them.",
	}, makeAskHandler(engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_passages",
		Description: "Search the book semantically. Returns matching passages with page numbers and similarity scores, without generating an answer.",
	}, makeSearchHandler(engine))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_status",
		Description: "Get the current status of the book index including segment count, chunking parameters, and build time.",
	}, makeStatusHandler(engine))

	return &Server{
		server: server,
		engine: engine,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
