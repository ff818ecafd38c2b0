package embedding

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stritefax2/heelixnotes/internal/config"
)

// NewFromConfig builds the configured embedder wrapped in a cache.
// A missing API key yields an embedder whose every call returns ErrEmbeddingUnavailable.
func NewFromConfig(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var inner Embedder
	switch cfg.Provider {
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	case "", "openai":
		if cfg.APIKey == "" {
			logger.Warn("embedding API key not set; vectorization unavailable",
				zap.String("env", cfg.APIKeyEnv))
			return &unavailableEmbedder{model: cfg.Model, dimensions: cfg.Dimensions}, nil
		}
		retry := DefaultRetryConfig()
		if cfg.MaxRetries > 0 {
			retry.MaxAttempts = cfg.MaxRetries
		}
		e, err := NewOpenAIEmbedder(OpenAIOptions{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			BatchSize:         cfg.BatchSize,
			MaxBatchTokens:    cfg.MaxBatchTokens,
			Concurrency:       cfg.Concurrency,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
			Retry:             retry,
			Logger:            logger,
		})
		if err != nil {
			return nil, err
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize)
}
