// Package vector provides per-project approximate nearest neighbour indexes over chunk embeddings.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrIndexCorrupt is returned when an index file is truncated or garbled.
	ErrIndexCorrupt = errors.New("vector index file corrupt")
	// ErrIndexVersionMismatch is returned when an index file was written by another
	// format version, embedding model, dimension or index type.
	ErrIndexVersionMismatch = errors.New("vector index version mismatch")
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// VectorIndex maps chunk IDs to embeddings and answers similarity queries.
type VectorIndex interface {
	// Upsert inserts vectors, replacing any existing entry with the same ID.
	Upsert(ctx context.Context, ids []int64, vectors [][]float32) error
	// Remove deletes entries by ID. Unknown IDs are ignored.
	Remove(ctx context.Context, ids []int64) error
	// Search returns at most k hits, best first.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// VectorResult is a single search hit. Score is the cosine similarity.
type VectorResult struct {
	ID    int64
	Score float64
}

// Options configures an index. Model and Dimensions are written into the file
// header so an index built with another embedding model is never reused.
type Options struct {
	Dimensions     int
	Model          string
	M              int
	EfConstruction int
	EfSearch       int
	Seed           int64
}

func (o Options) withDefaults() Options {
	if o.M <= 0 {
		o.M = 16
	}
	if o.EfConstruction <= 0 {
		o.EfConstruction = 200
	}
	if o.EfSearch <= 0 {
		o.EfSearch = 64
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	return o
}
