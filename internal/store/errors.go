package store

import "errors"

var (
	// ErrNotFound indicates no index exists at the configured directory.
	ErrNotFound = errors.New("vector index not found")
	// ErrCorrupt indicates an index directory exists but cannot be loaded.
	ErrCorrupt = errors.New("vector index corrupt")
	// ErrNotOpen indicates a search was attempted before Build or Open.
	ErrNotOpen = errors.New("vector index not open")
	// ErrCountMismatch indicates segment and embedding counts differ.
	ErrCountMismatch = errors.New("segment and embedding counts differ")
)
