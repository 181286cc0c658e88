// Package config loads and validates the application configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file is absent or leaves fields unset.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTemperature  = 0.1
	DefaultTopK         = 10

	DefaultDocumentPath     = "The_War_of_the_Worlds.pdf"
	DefaultPersistDirectory = "./index"
	DefaultEmbeddingModel   = "text-embedding-3-small"
	DefaultGenerationModel  = "gpt-4o-mini"
	DefaultBookTitle        = "The War of the Worlds"
	DefaultBookAuthor       = "H.G. Wells"
)

// Config is the root application configuration. All fields are read once at
// process start; there is no runtime reconfiguration.
type Config struct {
	// DocumentPath is the source PDF the index is built from.
	DocumentPath string `yaml:"document_path"`
	// PersistDirectory holds the on-disk vector index. Its presence decides
	// build-vs-load on initialize.
	PersistDirectory string `yaml:"persist_directory"`

	ChunkSize    int     `yaml:"chunk_size"`
	ChunkOverlap int     `yaml:"chunk_overlap"`
	Temperature  float64 `yaml:"temperature"`
	TopK         int     `yaml:"top_k"`

	EmbeddingModel  string `yaml:"embedding_model"`
	GenerationModel string `yaml:"generation_model"`

	// BookTitle and BookAuthor parameterize the answer prompt.
	BookTitle  string `yaml:"book_title"`
	BookAuthor string `yaml:"book_author"`

	// APIKey for the hosted model API. Usually left empty in the file and
	// taken from the OPENAI_API_KEY environment variable instead.
	APIKey string `yaml:"api_key"`
}

// Load reads a YAML config from path. A missing file returns pure defaults;
// any present file is merged over the defaults and validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(cfg)
			return cfg, cfg.validate()
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(cfg)
	return cfg, cfg.validate()
}

// Defaults returns a configuration with every field set to its default.
func Defaults() *Config {
	return &Config{
		DocumentPath:     DefaultDocumentPath,
		PersistDirectory: DefaultPersistDirectory,
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		Temperature:      DefaultTemperature,
		TopK:             DefaultTopK,
		EmbeddingModel:   DefaultEmbeddingModel,
		GenerationModel:  DefaultGenerationModel,
		BookTitle:        DefaultBookTitle,
		BookAuthor:       DefaultBookAuthor,
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("DOCUMENT_PATH"); v != "" {
		cfg.DocumentPath = v
	}
	if v := os.Getenv("PERSIST_DIRECTORY"); v != "" {
		cfg.PersistDirectory = v
	}
}

func (c *Config) validate() error {
	if c.DocumentPath == "" {
		return errors.New("document_path must not be empty")
	}
	if c.PersistDirectory == "" {
		return errors.New("persist_directory must not be empty")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %g", c.Temperature)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.EmbeddingModel == "" || c.GenerationModel == "" {
		return errors.New("embedding_model and generation_model must not be empty")
	}
	return nil
}
