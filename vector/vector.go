package vector

import (
	"context"
	"errors"
)

var (
	// ErrSnapshotMismatch is returned at load time when the persisted vector
	// file and the passage metadata file disagree on entry count. The process
	// must not silently start with an empty or truncated index.
	ErrSnapshotMismatch = errors.New("vector snapshot and passage metadata are inconsistent")

	ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")
)

type Backend string

const (
	BackendFlat    Backend = "flat"
	BackendChromem Backend = "chromem"
)

type Config struct {
	Backend    Backend `yaml:"backend"`
	Persistent bool    `yaml:"persistent"`
	Path       string  `yaml:"path"`
	Collection string  `yaml:"collection"`
}

// Index stores documents with precomputed embeddings and answers
// nearest-neighbour queries. Implementations must keep concurrent Query
// calls safe against an in-flight Add.
type Index interface {
	Add(ctx context.Context, docs ...Document) error
	Query(ctx context.Context, embedding []float32, k int) ([]Match, error)
	Count() int
}

type Document struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
}

// Match pairs a stored document with its similarity to the query embedding.
// Score is cosine similarity over normalized vectors; matches are returned
// in non-increasing score order, ties broken by insertion order.
type Match struct {
	Document Document
	Score    float64
}
