package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

// embeddingsServer answers with vectors whose first component encodes the input index,
// returning data in reverse order to exercise reordering.
func embeddingsServer(t *testing.T, dims int, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req embeddingsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			v := make([]float32, dims)
			v[0] = float32(len(req.Input[i]))
			v[1] = 1
			data = append(data, item{Embedding: v, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
	}))
}

func newTestEmbedder(t *testing.T, url string, dims, batch int) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(OpenAIOptions{
		BaseURL:    url,
		APIKey:     "test-key",
		Model:      "test-model",
		Dimensions: dims,
		BatchSize:  batch,
		Retry:      fastRetry(),
	})
	require.NoError(t, err)
	return e
}

func TestOpenAIEmbedder_EmbedBatchOrderAndBatching(t *testing.T) {
	var hits atomic.Int32
	srv := embeddingsServer(t, 4, &hits)
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL, 4, 2)
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	assert.Equal(t, int32(3), hits.Load(), "5 texts at batch size 2 need 3 requests")

	for i, v := range vecs {
		// v = normalize(len, 1, 0, 0)
		want := float32(len(texts[i])) / float32(math.Sqrt(float64(len(texts[i])*len(texts[i])+1)))
		assert.InDelta(t, want, v[0], 1e-5, "vector %d out of order", i)
	}
}

func TestOpenAIEmbedder_BatchesByTokenBudget(t *testing.T) {
	var hits atomic.Int32
	srv := embeddingsServer(t, 4, &hits)
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIOptions{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		Model:          "test-model",
		Dimensions:     4,
		BatchSize:      10,
		MaxBatchTokens: 3,
		Retry:          fastRetry(),
	})
	require.NoError(t, err)

	// 8 chars = 2 tokens each; two texts never share a 3-token request.
	texts := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc"}
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}}, e.batches(texts))

	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, int32(3), hits.Load())
}

func TestOpenAIEmbedder_BatchRanges(t *testing.T) {
	e := newTestEmbedder(t, "http://unused", 4, 2)
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, e.batches([]string{"a", "b", "c", "d", "e"}))
	assert.Equal(t, [][2]int{{0, 1}}, e.batches([]string{"a"}))
}

func TestOpenAIEmbedder_Normalizes(t *testing.T) {
	var hits atomic.Int32
	srv := embeddingsServer(t, 3, &hits)
	defer srv.Close()

	v, err := newTestEmbedder(t, srv.URL, 3, 64).Embed(context.Background(), "hello")
	require.NoError(t, err)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestOpenAIEmbedder_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{1, 0}, "index": 0}},
		})
	}))
	defer srv.Close()

	v, err := newTestEmbedder(t, srv.URL, 2, 64).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIEmbedder_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestEmbedder(t, srv.URL, 2, 64).Embed(context.Background(), "x")
	require.ErrorIs(t, err, ErrEmbeddingRequestFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIEmbedder_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestEmbedder(t, srv.URL, 2, 64).Embed(context.Background(), "x")
	require.ErrorIs(t, err, ErrEmbeddingRequestFailed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	var hits atomic.Int32
	srv := embeddingsServer(t, 8, &hits)
	defer srv.Close()

	_, err := newTestEmbedder(t, srv.URL, 4, 64).Embed(context.Background(), "x")
	require.ErrorIs(t, err, ErrEmbeddingDimensionMismatch)
}

func TestOpenAIEmbedder_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [`))
	}))
	defer srv.Close()

	_, err := newTestEmbedder(t, srv.URL, 2, 64).Embed(context.Background(), "x")
	require.ErrorIs(t, err, ErrEmbeddingRequestFailed)
}

func TestOpenAIEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	_, err := newTestEmbedder(t, srv.URL, 2, 64).EmbedBatch(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, ErrEmbeddingRequestFailed)
}

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIOptions{Model: "m"})
	require.ErrorIs(t, err, ErrEmbeddingUnavailable)
}
