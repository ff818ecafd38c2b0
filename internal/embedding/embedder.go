// Package embedding turns chunk text into vectors via a remote embedding API.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrEmbeddingUnavailable is returned when no API credential is configured.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable: no API key configured")
	// ErrEmbeddingRequestFailed covers transport errors, non-2xx responses and malformed bodies.
	ErrEmbeddingRequestFailed = errors.New("embedding request failed")
	// ErrEmbeddingDimensionMismatch is returned when a vector's length differs from the configured dimension.
	ErrEmbeddingDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
	Close() error
}

// unavailableEmbedder stands in when the credential is missing so callers can
// be built without one and fail per call.
type unavailableEmbedder struct {
	model      string
	dimensions int
}

func (u *unavailableEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrEmbeddingUnavailable
}

func (u *unavailableEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrEmbeddingUnavailable
}

func (u *unavailableEmbedder) Dimensions() int { return u.dimensions }
func (u *unavailableEmbedder) Model() string   { return u.model }
func (u *unavailableEmbedder) Close() error    { return nil }

// Available reports whether e can produce embeddings at all.
func Available(e Embedder) bool {
	switch v := e.(type) {
	case nil:
		return false
	case *unavailableEmbedder:
		return false
	case *CachedEmbedder:
		return Available(v.inner)
	default:
		return true
	}
}
