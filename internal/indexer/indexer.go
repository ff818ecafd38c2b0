// Package indexer chunks documents and keeps their embeddings in the project
// vector indexes up to date through a pool of background vectorization tasks.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/stritefax2/heelixnotes/internal/embedding"
	"github.com/stritefax2/heelixnotes/internal/extract"
	"github.com/stritefax2/heelixnotes/internal/fileid"
	"github.com/stritefax2/heelixnotes/internal/keyword"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"go.uber.org/zap"
)

// ErrIndexerClosed is reported for jobs submitted after Close.
var ErrIndexerClosed = errors.New("indexer closed")

// VectorStore is the per-project vector index. Implemented by *vector.Manager.
type VectorStore interface {
	Upsert(ctx context.Context, projectID int64, ids []int64, vectors [][]float32) error
	Remove(ctx context.Context, projectID int64, ids []int64) error
	Drop(projectID int64) error
	DeleteProject(projectID int64) error
}

// Options sizes the worker pool and the chunker. QueueSize is the backlog
// length above which new jobs are logged as a warning; submission never blocks.
type Options struct {
	Workers        int
	QueueSize      int
	EmbedBatchSize int
	Chunking       ChunkerOptions
}

// Indexer coordinates document mutations with background vectorization.
// Every mutation returns before its embeddings are computed.
type Indexer struct {
	storage   storage.Storage
	embedder  embedding.Embedder
	vectors   VectorStore
	keyword   keyword.ChunkIndex
	chunker   *Chunker
	extractor *extract.Extractor
	logger    *zap.Logger

	batchSize int
	enabled   atomic.Bool
	locks     stripedLocks
	pool      *workerPool

	workers   int
	queueSize int
	onResult  []func(models.JobResult)
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for task and mutation events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithKeywordIndex indexes chunks into k in addition to the vector index.
func WithKeywordIndex(k keyword.ChunkIndex) IndexerOption {
	return func(idx *Indexer) { idx.keyword = k }
}

// WithOnComplete registers a callback invoked after every job.
func WithOnComplete(fn func(models.JobResult)) IndexerOption {
	return func(idx *Indexer) {
		if fn != nil {
			idx.onResult = append(idx.onResult, fn)
		}
	}
}

// WithVectorizationEnabled sets the initial state of the global toggle (default true).
func WithVectorizationEnabled(enabled bool) IndexerOption {
	return func(idx *Indexer) { idx.enabled.Store(enabled) }
}

// NewIndexer creates an indexer and starts its workers.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	vectors VectorStore,
	opts Options,
	options ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:   store,
		embedder:  embedder,
		vectors:   vectors,
		chunker:   NewChunker(opts.Chunking),
		extractor: extract.NewExtractor(),
		logger:    zap.NewNop(),
		batchSize: opts.EmbedBatchSize,
		workers:   opts.Workers,
		queueSize: opts.QueueSize,
	}
	if idx.batchSize <= 0 {
		idx.batchSize = 64
	}
	idx.enabled.Store(true)
	for _, opt := range options {
		opt(idx)
	}
	idx.pool = newWorkerPool(idx.workers, idx.queueSize, idx.vectorize, idx.logger)
	idx.pool.onResult = idx.onResult
	return idx
}

// Enabled reports the global vectorization toggle.
func (idx *Indexer) Enabled() bool {
	return idx.enabled.Load()
}

// EnableVectorization turns the pipeline on and resumes pending documents.
// Without an embedding credential it returns embedding.ErrEmbeddingUnavailable
// and leaves the pipeline off.
func (idx *Indexer) EnableVectorization(ctx context.Context) error {
	if !embedding.Available(idx.embedder) {
		return embedding.ErrEmbeddingUnavailable
	}
	idx.enabled.Store(true)
	_, err := idx.Resume(ctx)
	return err
}

// DisableVectorization turns the pipeline off. Queued tasks become no-ops.
func (idx *Indexer) DisableVectorization() {
	idx.enabled.Store(false)
}

// Subscribe returns a channel of job results and a function that ends the subscription.
func (idx *Indexer) Subscribe() (<-chan models.JobResult, func()) {
	return idx.pool.subscribe(0)
}

// Wait blocks until every queued job has finished.
func (idx *Indexer) Wait() {
	idx.pool.wait()
}

// Queued returns the number of vectorization jobs waiting for a worker.
func (idx *Indexer) Queued() int {
	return idx.pool.queueLen()
}

// Close drains the queue and stops the workers.
func (idx *Indexer) Close() error {
	idx.pool.close()
	return nil
}

// VectorizeDocument schedules embedding of the document's unvectorized chunks
// and returns the job ID immediately.
func (idx *Indexer) VectorizeDocument(documentID int64) string {
	return idx.pool.submit(documentID)
}

// Resume schedules every document that still has unvectorized chunks.
func (idx *Indexer) Resume(ctx context.Context) (int, error) {
	ids, err := idx.storage.UnvectorizedDocumentIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list unvectorized documents: %w", err)
	}
	for _, id := range ids {
		idx.VectorizeDocument(id)
	}
	return len(ids), nil
}

func (idx *Indexer) resolveProject(ctx context.Context, projectID int64) (int64, error) {
	if projectID > 0 {
		return projectID, nil
	}
	p, err := idx.storage.EnsureUnassignedProject(ctx)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// SaveDocument creates a document, chunks its plain text and schedules vectorization.
// A zero ProjectID places the document in the Unassigned project.
func (idx *Indexer) SaveDocument(ctx context.Context, in *models.DocumentInput) (*models.Document, error) {
	projectID, err := idx.resolveProject(ctx, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project: %w", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = "Untitled"
	}
	plain := Preprocess(idx.extractor.PlainText(in.ContentType, in.Text))
	doc := &models.Document{
		ProjectID:   projectID,
		Name:        name,
		Text:        in.Text,
		PlainText:   plain,
		ContentType: in.ContentType,
		ContentHash: fileid.ContentHash(plain),
		SourcePath:  in.SourcePath,
	}
	if err := idx.storage.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	if _, err := idx.storage.ReplaceChunks(ctx, doc.ID, doc.ProjectID, idx.chunker.Chunk(plain)); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	idx.logger.Debug("document saved", zap.Int64("document_id", doc.ID), zap.Int64("project_id", doc.ProjectID))
	idx.VectorizeDocument(doc.ID)
	return doc, nil
}

// UpdateDocument replaces a document's text. Chunks are rebuilt and their old
// index entries removed unless the plain text is unchanged.
func (idx *Indexer) UpdateDocument(ctx context.Context, documentID int64, text string) (*models.Document, error) {
	unlock := idx.locks.lock(documentID)
	doc, changed, err := idx.updateLocked(ctx, documentID, text)
	unlock()
	if err != nil {
		return nil, err
	}
	if changed || !doc.IsVectorized {
		idx.VectorizeDocument(doc.ID)
	}
	return doc, nil
}

func (idx *Indexer) updateLocked(ctx context.Context, documentID int64, text string) (*models.Document, bool, error) {
	doc, err := idx.storage.GetDocument(ctx, documentID)
	if err != nil {
		return nil, false, err
	}
	plain := Preprocess(idx.extractor.PlainText(doc.ContentType, text))
	hash := fileid.ContentHash(plain)

	oldIDs, err := idx.storage.ChunkIDsForDocument(ctx, documentID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list chunks: %w", err)
	}
	if hash == doc.ContentHash && (len(oldIDs) > 0 || plain == "") {
		if text != doc.Text {
			// Raw text changed without changing the projection (e.g. markup only).
			if err := idx.storage.UpdateDocumentText(ctx, documentID, text, plain, hash); err != nil {
				return nil, false, err
			}
			if err := idx.storage.SetDocumentVectorized(ctx, documentID, doc.IsVectorized); err != nil {
				return nil, false, err
			}
			doc.Text = text
		}
		idx.logger.Debug("document unchanged, skipping rechunk", zap.Int64("document_id", documentID))
		return doc, false, nil
	}

	if err := idx.storage.UpdateDocumentText(ctx, documentID, text, plain, hash); err != nil {
		return nil, false, fmt.Errorf("failed to update document: %w", err)
	}
	if _, err := idx.storage.ReplaceChunks(ctx, documentID, doc.ProjectID, idx.chunker.Chunk(plain)); err != nil {
		return nil, false, fmt.Errorf("failed to store chunks: %w", err)
	}
	idx.removeEntries(ctx, doc.ProjectID, oldIDs)

	doc.Text, doc.PlainText, doc.ContentHash, doc.IsVectorized = text, plain, hash, false
	return doc, true, nil
}

// RenameDocument changes a document's display name and refreshes its keyword entries.
func (idx *Indexer) RenameDocument(ctx context.Context, documentID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	unlock := idx.locks.lock(documentID)
	defer unlock()
	if err := idx.storage.RenameDocument(ctx, documentID, name); err != nil {
		return err
	}
	if idx.keyword == nil {
		return nil
	}
	chunks, err := idx.storage.GetChunksByDocumentID(ctx, documentID)
	if err != nil {
		return err
	}
	if err := idx.keyword.IndexChunks(ctx, chunks); err != nil {
		idx.logger.Warn("keyword reindex failed", zap.Int64("document_id", documentID), zap.Error(err))
	}
	return nil
}

// MoveDocument reassigns a document to targetProjectID, removes its entries
// from the source index and schedules vectorization into the target index.
func (idx *Indexer) MoveDocument(ctx context.Context, documentID, targetProjectID int64) (string, error) {
	if _, err := idx.storage.GetProject(ctx, targetProjectID); err != nil {
		return "", err
	}
	unlock := idx.locks.lock(documentID)
	ids, err := idx.storage.ChunkIDsForDocument(ctx, documentID)
	if err != nil {
		unlock()
		return "", fmt.Errorf("failed to list chunks: %w", err)
	}
	oldProjectID, err := idx.storage.ReassignProject(ctx, documentID, targetProjectID)
	if err != nil {
		unlock()
		return "", err
	}
	idx.removeEntries(ctx, oldProjectID, ids)
	unlock()

	idx.logger.Info("document moved",
		zap.Int64("document_id", documentID),
		zap.Int64("from_project_id", oldProjectID),
		zap.Int64("to_project_id", targetProjectID))
	return idx.VectorizeDocument(documentID), nil
}

// DeleteDocument removes a document, its chunks and their index entries.
func (idx *Indexer) DeleteDocument(ctx context.Context, documentID int64) error {
	unlock := idx.locks.lock(documentID)
	defer unlock()

	doc, err := idx.storage.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	ids, err := idx.storage.ChunkIDsForDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}
	if err := idx.storage.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	idx.removeEntries(ctx, doc.ProjectID, ids)
	idx.logger.Debug("document deleted", zap.Int64("document_id", documentID))
	return nil
}

// DeleteProject removes a project with its documents, its vector index and
// its keyword entries.
func (idx *Indexer) DeleteProject(ctx context.Context, projectID int64) error {
	unlock := idx.locks.lockAll()
	defer unlock()

	if err := idx.storage.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	if err := idx.vectors.DeleteProject(projectID); err != nil {
		return fmt.Errorf("failed to delete vector index: %w", err)
	}
	if idx.keyword != nil {
		if err := idx.keyword.DeleteProject(ctx, projectID); err != nil {
			idx.logger.Warn("keyword project delete failed", zap.Int64("project_id", projectID), zap.Error(err))
		}
	}
	idx.logger.Info("project deleted", zap.Int64("project_id", projectID))
	return nil
}

// RebuildProject discards a project's vector index, resets its chunk flags and
// schedules every document again. It returns the number of scheduled documents.
func (idx *Indexer) RebuildProject(ctx context.Context, projectID int64) (int, error) {
	if _, err := idx.storage.GetProject(ctx, projectID); err != nil {
		return 0, err
	}
	unlock := idx.locks.lockAll()
	err := idx.storage.ResetVectorizedForProject(ctx, projectID)
	if err == nil {
		err = idx.vectors.Drop(projectID)
	}
	unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to reset project index: %w", err)
	}

	docs, err := idx.storage.ListDocuments(ctx, projectID, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	for _, d := range docs {
		idx.VectorizeDocument(d.ID)
	}
	idx.logger.Info("project rebuild scheduled", zap.Int64("project_id", projectID), zap.Int("documents", len(docs)))
	return len(docs), nil
}

// removeEntries drops chunk IDs from the vector and keyword indexes. Failures are logged.
func (idx *Indexer) removeEntries(ctx context.Context, projectID int64, ids []int64) {
	if len(ids) == 0 {
		return
	}
	if err := idx.vectors.Remove(ctx, projectID, ids); err != nil {
		idx.logger.Warn("vector remove failed", zap.Int64("project_id", projectID), zap.Error(err))
	}
	if idx.keyword != nil {
		if err := idx.keyword.DeleteChunks(ctx, ids); err != nil {
			idx.logger.Warn("keyword delete failed", zap.Int64("project_id", projectID), zap.Error(err))
		}
	}
}
