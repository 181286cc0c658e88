// Package main provides the batch question-answering CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"worlds-rag/internal/config"
	"worlds-rag/internal/document"
	"worlds-rag/internal/embedding"
	"worlds-rag/internal/generator"
	"worlds-rag/internal/rag"
	"worlds-rag/internal/splitter"
	"worlds-rag/internal/store"
)

// defaultQuestions run when ask is invoked with no arguments.
var defaultQuestions = []string{
	"Who is the narrator of the story?",
	"What is the main plot of the book?",
	"Where do the Martians first land?",
	"What weapons do the Martians use?",
	"How are the Martians finally defeated?",
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "worldsqa",
	Short: "Question answering over The War of the Worlds",
	Long:  "CLI tool for building the book index and answering questions against it",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild the vector index from the source PDF",
	Long: `Discards any existing index and rebuilds it from scratch.

This command:
1. Loads and paginates the source PDF
2. Splits pages into overlapping segments
3. Generates an embedding for every segment
4. Writes the index and its manifest to the persist directory

Environment variables:
  OPENAI_API_KEY    OpenAI API key for embeddings (required)
  DOCUMENT_PATH     Source PDF path (overrides config)
  PERSIST_DIRECTORY Index directory (overrides config)`,
	RunE: runSync,
}

var askCmd = &cobra.Command{
	Use:   "ask [question ...]",
	Short: "Answer questions against the index",
	Long: `Answers each question in turn, printing the answer and its sources.

With no arguments a fixed set of sample questions about the book is used.
An existing index is reused when it matches the source document and
configuration; otherwise it is rebuilt first.`,
	RunE: runAsk,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(askCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	fmt.Println("Starting sync...")
	fmt.Println()

	cfg, orchestrator, err := buildPipeline()
	if err != nil {
		return err
	}

	fmt.Printf("Rebuilding index from %s...\n", cfg.DocumentPath)
	if err := orchestrator.Initialize(ctx, true); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	st := orchestrator.Status()
	fmt.Println()
	fmt.Println("Sync complete!")
	fmt.Printf("  Segments: %d\n", st.SegmentCount)
	fmt.Printf("  Chunk size: %d (overlap %d)\n", st.Manifest.ChunkSize, st.Manifest.ChunkOverlap)
	fmt.Printf("  Embedding model: %s\n", st.Manifest.EmbeddingModel)
	fmt.Printf("  Document SHA-256: %s\n", st.Manifest.DocumentSHA256)
	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))

	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	questions := args
	if len(questions) == 0 {
		questions = defaultQuestions
	}

	_, orchestrator, err := buildPipeline()
	if err != nil {
		return err
	}

	fmt.Println("Initializing...")
	if err := orchestrator.Initialize(ctx, false); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	fmt.Printf("Index ready (%d segments)\n", orchestrator.Status().SegmentCount)

	// A failing question is reported but does not stop the batch.
	failures := 0
	for i, question := range questions {
		fmt.Println()
		fmt.Printf("[%d/%d] %s\n", i+1, len(questions), question)

		result, err := orchestrator.Query(ctx, question)
		if err != nil {
			failures++
			fmt.Printf("  ERROR: %v\n", err)
			continue
		}

		fmt.Println()
		fmt.Println(result.Answer)
		fmt.Println()
		fmt.Printf("  Sources (%d):\n", len(result.Sources))
		for _, src := range result.Sources {
			fmt.Printf("  - page %d (similarity %.3f)\n", src.Page, src.Similarity)
		}
	}

	fmt.Println()
	if failures > 0 {
		fmt.Printf("Done with %d/%d questions failed\n", failures, len(questions))
	} else {
		fmt.Println("Done")
	}

	return nil
}

// buildPipeline wires the pipeline components from the configuration.
func buildPipeline() (*config.Config, *rag.Orchestrator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	client, err := embedding.NewClient(cfg.APIKey)
	if err != nil {
		return nil, nil, err
	}
	embedder := embedding.NewEmbedder(client, cfg.EmbeddingModel, 0) // Use default batch size

	loader := document.NewLoader()
	chunker := splitter.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	index := store.New(cfg.PersistDirectory, embedder.Embed)
	gen := generator.NewGenerator(client, cfg.GenerationModel, cfg.Temperature, cfg.BookTitle, cfg.BookAuthor)

	orchestrator := rag.NewOrchestrator(cfg, loader, chunker, embedder, index, gen, slog.Default())
	return cfg, orchestrator, nil
}
