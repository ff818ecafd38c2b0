package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/stritefax2/heelixnotes/pkg/utils"
)

// defaultMaxBatchTokens stays under the per-request input limit of the
// OpenAI embeddings endpoint.
const defaultMaxBatchTokens = 250000

// OpenAIOptions configures an OpenAI-compatible embeddings client.
type OpenAIOptions struct {
	BaseURL           string
	APIKey            string
	Model             string
	Dimensions        int
	BatchSize         int
	MaxBatchTokens    int
	Concurrency       int
	RequestsPerSecond float64
	Timeout           time.Duration
	Retry             RetryConfig
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// OpenAIEmbedder calls POST {base_url}/embeddings.
type OpenAIEmbedder struct {
	opts       OpenAIOptions
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewOpenAIEmbedder returns a client for the given options. APIKey must be set.
func NewOpenAIEmbedder(opts OpenAIOptions) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, ErrEmbeddingUnavailable
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Dimensions <= 0 {
		opts.Dimensions = 1536
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.MaxBatchTokens <= 0 {
		opts.MaxBatchTokens = defaultMaxBatchTokens
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryConfig()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIEmbedder{
		opts:       opts,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, opts.Concurrency),
		logger:     logger,
	}, nil
}

// Embed returns the embedding of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order, splitting them into concurrent batches.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for _, b := range e.batches(texts) {
		start, end := b[0], b[1]
		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}
			vecs, err := retryWithBackoff(gctx, e.opts.Retry, func() ([][]float32, error) {
				return e.callAPI(gctx, texts[start:end])
			})
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Debug("embedding batch failed", zap.Int("texts", len(texts)), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// batches splits texts into [start, end) ranges holding at most BatchSize
// texts and about MaxBatchTokens estimated tokens. A single oversized text
// still gets its own batch.
func (e *OpenAIEmbedder) batches(texts []string) [][2]int {
	var out [][2]int
	start, tokens := 0, 0
	for i, t := range texts {
		n := EstimateTokens(t)
		if i > start && (i-start >= e.opts.BatchSize || tokens+n > e.opts.MaxBatchTokens) {
			out = append(out, [2]int{start, i})
			start, tokens = i, 0
		}
		tokens += n
	}
	return append(out, [2]int{start, len(texts)})
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (e *OpenAIEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Model: e.opts.Model, Input: texts})
	if err != nil {
		return nil, permanent(fmt.Errorf("%w: marshal request: %v", ErrEmbeddingRequestFailed, err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("%w: create request: %v", ErrEmbeddingRequestFailed, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.opts.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingRequestFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("%w: status %d: %s", ErrEmbeddingRequestFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, permanent(err)
	}

	var apiResp embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, permanent(fmt.Errorf("%w: decode response: %v", ErrEmbeddingRequestFailed, err))
	}
	if len(apiResp.Data) != len(texts) {
		return nil, permanent(fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbeddingRequestFailed, len(apiResp.Data), len(texts)))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(texts) || vecs[d.Index] != nil {
			return nil, permanent(fmt.Errorf("%w: bad embedding index %d", ErrEmbeddingRequestFailed, d.Index))
		}
		if len(d.Embedding) != e.opts.Dimensions {
			return nil, permanent(fmt.Errorf("%w: got %d, want %d", ErrEmbeddingDimensionMismatch, len(d.Embedding), e.opts.Dimensions))
		}
		utils.NormalizeL2(d.Embedding)
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.opts.Dimensions
}

// Model returns the model name sent with each request.
func (e *OpenAIEmbedder) Model() string {
	return e.opts.Model
}

// Close releases idle HTTP connections.
func (e *OpenAIEmbedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}
