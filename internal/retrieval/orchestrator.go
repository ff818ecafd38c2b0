// Package retrieval turns a prompt into the most relevant chunk sources of a project.
package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/stritefax2/heelixnotes/internal/embedding"
	"github.com/stritefax2/heelixnotes/internal/keyword"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"github.com/stritefax2/heelixnotes/internal/vector"
	"go.uber.org/zap"
)

// ErrRetrievalDisabled is returned when vectorization is turned off; callers
// fall back to full document text.
var ErrRetrievalDisabled = errors.New("retrieval disabled: vectorization is turned off")

// VectorSearcher searches a project's vector index. Implemented by *vector.Manager.
type VectorSearcher interface {
	Search(ctx context.Context, projectID int64, query []float32, k int) ([]*vector.VectorResult, error)
}

// KeywordSearcher searches the keyword chunk index. Implemented by *keyword.BleveIndex.
type KeywordSearcher interface {
	Search(ctx context.Context, projectID int64, query string, limit int, opts *keyword.SearchOptions) ([]*keyword.KeywordResult, error)
}

type queryCorrector interface {
	CorrectQuery(query string, maxDistance int) (string, bool, error)
}

// Options holds top-k bounds and fallback settings.
type Options struct {
	DefaultTopK     int
	MaxTopK         int
	PreviewLength   int
	KeywordFallback bool
}

// Orchestrator runs retrieval: embed the query, search the project index,
// hydrate chunks from storage and keep one source per document.
type Orchestrator struct {
	store    storage.Storage
	embedder embedding.Embedder
	vectors  VectorSearcher
	keyword  KeywordSearcher
	enabled  func() bool
	logger   *zap.Logger

	mu   sync.RWMutex
	opts Options
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeywordIndex sets the keyword index used by the fallback.
func WithKeywordIndex(k KeywordSearcher) Option {
	return func(o *Orchestrator) {
		o.keyword = k
	}
}

// WithEnabled sets the global vectorization toggle. Defaults to always enabled.
func WithEnabled(fn func() bool) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.enabled = fn
		}
	}
}

// NewOrchestrator creates a retrieval orchestrator.
func NewOrchestrator(store storage.Storage, embedder embedding.Embedder, vectors VectorSearcher, opts Options, options ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		enabled:  func() bool { return true },
		opts:     opts.withDefaults(),
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

func (opts Options) withDefaults() Options {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 20
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 50
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = 150
	}
	return opts
}

// Options returns the current retrieval settings.
func (o *Orchestrator) Options() Options {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.opts
}

// SetOptions replaces the retrieval settings; zero values select defaults.
func (o *Orchestrator) SetOptions(opts Options) {
	o.mu.Lock()
	o.opts = opts.withDefaults()
	o.mu.Unlock()
}

// Enabled reports whether retrieval is currently allowed.
func (o *Orchestrator) Enabled() bool {
	return o.enabled()
}

// TopK returns the effective candidate count for a requested topK.
func (o *Orchestrator) TopK(topK int) int {
	opts := o.Options()
	return models.ClampTopK(topK, opts.DefaultTopK, opts.MaxTopK)
}

// Retrieve returns up to topK sources for query in projectID, best first,
// with at most one source per document. Embedding or index failures degrade
// to an empty result; only a disabled pipeline is an error.
func (o *Orchestrator) Retrieve(ctx context.Context, projectID int64, query string, topK int) ([]*models.Source, error) {
	if !o.enabled() {
		return nil, ErrRetrievalDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []*models.Source{}, nil
	}
	opts := o.Options()
	k := models.ClampTopK(topK, opts.DefaultTopK, opts.MaxTopK)

	sources := o.semantic(ctx, projectID, query, k)
	if len(sources) == 0 && opts.KeywordFallback && o.keyword != nil {
		sources = o.keywordFallback(ctx, projectID, query, k)
	}
	if sources == nil {
		sources = []*models.Source{}
	}
	return sources, nil
}

func (o *Orchestrator) semantic(ctx context.Context, projectID int64, query string, k int) []*models.Source {
	vec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, embedding.ErrEmbeddingUnavailable) {
			o.logger.Debug("retrieval unavailable", zap.Error(err))
		} else {
			o.logger.Warn("query embedding failed", zap.Int64("project_id", projectID), zap.Error(err))
		}
		return nil
	}

	results, err := o.vectors.Search(ctx, projectID, vec, k)
	if err != nil {
		o.logger.Warn("vector search failed", zap.Int64("project_id", projectID), zap.Error(err))
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	ranked := make([]rankedChunk, len(results))
	for i, r := range results {
		ranked[i] = rankedChunk{ChunkID: r.ID, Score: r.Score}
	}
	return o.hydrate(ctx, ranked)
}

func (o *Orchestrator) keywordFallback(ctx context.Context, projectID int64, query string, k int) []*models.Source {
	search := func(q string) []*models.Source {
		hits, err := o.keyword.Search(ctx, projectID, q, k, &keyword.SearchOptions{TitleBoost: 2})
		if err != nil {
			o.logger.Warn("keyword fallback failed", zap.Int64("project_id", projectID), zap.Error(err))
			return nil
		}
		return o.hydrate(ctx, NormalizeKeywordScores(hits))
	}

	sources := search(query)
	if len(sources) > 0 {
		return sources
	}
	corrector, ok := o.keyword.(queryCorrector)
	if !ok {
		return nil
	}
	corrected, changed, err := corrector.CorrectQuery(query, 2)
	if err != nil || !changed {
		return nil
	}
	o.logger.Debug("keyword fallback retrying corrected query", zap.String("query", corrected))
	return search(corrected)
}

// hydrate loads previews for ranked chunks, skipping chunks that no longer
// exist, and keeps the best chunk of each document.
func (o *Orchestrator) hydrate(ctx context.Context, ranked []rankedChunk) []*models.Source {
	if len(ranked) == 0 {
		return nil
	}
	ids := make([]int64, len(ranked))
	scores := make(map[int64]float64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ChunkID
		scores[r.ChunkID] = r.Score
	}
	sources, err := o.store.ChunkSources(ctx, ids, o.Options().PreviewLength)
	if err != nil {
		o.logger.Warn("hydrating sources failed", zap.Error(err))
		return nil
	}
	for _, s := range sources {
		s.Score = scores[s.ChunkID]
	}
	return DedupeByDocument(sources)
}

// RetrieveContext retrieves sources and renders them with their full chunk
// text into the prompt context block. When the chunk text cannot be loaded the
// result degrades to no sources and an empty context.
func (o *Orchestrator) RetrieveContext(ctx context.Context, projectID int64, query string, topK int) ([]*models.Source, string, error) {
	sources, err := o.Retrieve(ctx, projectID, query, topK)
	if err != nil {
		return nil, "", err
	}
	if len(sources) == 0 {
		return sources, "", nil
	}
	ids := make([]int64, len(sources))
	for i, s := range sources {
		ids[i] = s.ChunkID
	}
	chunks, err := o.store.GetChunks(ctx, ids)
	if err != nil {
		o.logger.Warn("loading chunk text for context failed", zap.Int64("project_id", projectID), zap.Error(err))
		return []*models.Source{}, "", nil
	}
	texts := make(map[int64]string, len(chunks))
	for _, c := range chunks {
		texts[c.ID] = c.Text
	}
	return sources, BuildContext(sources, texts), nil
}
