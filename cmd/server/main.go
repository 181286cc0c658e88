// Package main provides the question-answering server entry point.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"worlds-rag/internal/config"
	"worlds-rag/internal/document"
	"worlds-rag/internal/embedding"
	"worlds-rag/internal/generator"
	mcpserver "worlds-rag/internal/mcp"
	"worlds-rag/internal/rag"
	"worlds-rag/internal/splitter"
	"worlds-rag/internal/store"
	"worlds-rag/internal/web"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	orchestrator, err := buildOrchestrator(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	// Initialize at startup. On failure keep serving so /health reports the
	// problem and a rebuild can be triggered from the UI.
	if err := orchestrator.Initialize(ctx, false); err != nil {
		logger.Error("Initialization failed, serving in degraded mode", "error", err)
	}

	// Create MCP server
	server := mcpserver.NewServer(orchestrator)

	// HTTP routes: UI and API at /, MCP at /mcp
	mux := http.NewServeMux()
	webHandler := web.NewHandler(orchestrator, cfg.BookTitle, cfg.BookAuthor, logger)
	webHandler.Register(mux)
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	port := getEnv("PORT", "8080")

	// Check if running in server mode (HTTP) or stdio mode (local development)
	serverMode := getEnv("SERVER_MODE", "true") == "true"

	if serverMode {
		addr := "0.0.0.0:" + port
		logger.Info("Starting HTTP server", "addr", addr, "ui", "/", "mcp", "/mcp", "health", "/health")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	} else {
		// Stdio mode: run MCP server over stdin/stdout for local clients.
		// The HTTP endpoints stay up in the background.
		go func() {
			addr := "0.0.0.0:" + port
			logger.Info("Starting HTTP server", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("HTTP server error", "error", err)
			}
		}()

		logger.Info("Starting MCP server (stdio mode)")
		if err := server.Run(ctx); err != nil {
			logger.Error("MCP server error", "error", err)
			os.Exit(1)
		}
	}
}

// buildOrchestrator wires the pipeline components from the configuration.
func buildOrchestrator(cfg *config.Config, logger *slog.Logger) (*rag.Orchestrator, error) {
	client, err := embedding.NewClient(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewEmbedder(client, cfg.EmbeddingModel, 0) // Use default batch size

	loader := document.NewLoader()
	chunker := splitter.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	index := store.New(cfg.PersistDirectory, embedder.Embed)
	gen := generator.NewGenerator(client, cfg.GenerationModel, cfg.Temperature, cfg.BookTitle, cfg.BookAuthor)

	return rag.NewOrchestrator(cfg, loader, chunker, embedder, index, gen, logger), nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
