package embedding

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stritefax2/heelixnotes/pkg/utils"
)

// MockEmbedder is a deterministic bag-of-words embedder. Each word is hashed
// into one dimension, so texts sharing words get a higher cosine similarity.
type MockEmbedder struct {
	dimensions int
	calls      atomic.Int64

	mu  sync.Mutex
	err error
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// SetError makes every following call fail with err until it is reset with nil.
func (e *MockEmbedder) SetError(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// Calls returns how many Embed/EmbedBatch calls were made.
func (e *MockEmbedder) Calls() int64 {
	return e.calls.Load()
}

func (e *MockEmbedder) failure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Embed returns the normalized word-hash histogram of text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if err := e.failure(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *MockEmbedder) vector(text string) []float32 {
	emb := make([]float32, e.dimensions)
	for _, w := range SplitWords(text) {
		h := HashString(w)
		idx := int(h % uint64(e.dimensions))
		if h&(1<<63) != 0 {
			emb[idx] -= 1
		} else {
			emb[idx] += 1
		}
	}
	utils.NormalizeL2(emb)
	return emb
}

// EmbedBatch embeds each text in order.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.failure(); err != nil {
		return nil, err
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.vector(text)
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the mock model id.
func (e *MockEmbedder) Model() string {
	return "mock-bow"
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
