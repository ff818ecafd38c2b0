package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/stritefax2/heelixnotes/internal/embedding"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"go.uber.org/zap"
)

// errSuperseded aborts a task whose document was deleted, moved or re-chunked while it ran.
var errSuperseded = errors.New("document changed during vectorization")

// vectorize is the background task for one document. Errors end up in the
// JobResult and the log; nothing is returned to the caller that scheduled it.
func (idx *Indexer) vectorize(ctx context.Context, j *job) models.JobResult {
	res := models.JobResult{JobID: j.id, DocumentID: j.documentID}
	log := idx.logger.With(zap.String("job_id", j.id), zap.Int64("document_id", j.documentID))

	if !idx.Enabled() {
		res.Skipped = true
		return res
	}

	doc, err := idx.storage.GetDocument(ctx, j.documentID)
	if errors.Is(err, storage.ErrDocumentNotFound) {
		log.Debug("document gone before vectorization")
		res.Skipped = true
		return res
	}
	if err != nil {
		log.Error("load document failed", zap.Error(err))
		res.Err = err
		return res
	}
	res.ProjectID = doc.ProjectID

	chunks, err := idx.storage.GetUnvectorizedChunks(ctx, doc.ID)
	if err != nil {
		log.Error("load chunks failed", zap.Error(err))
		res.Err = err
		return res
	}
	if len(chunks) == 0 {
		if !doc.IsVectorized {
			_ = idx.storage.SetDocumentVectorized(ctx, doc.ID, true)
		}
		return res
	}

	ids := make([]int64, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		texts[i] = c.Text
	}

	// Keyword entries do not depend on embeddings, so the keyword fallback
	// still works when the embedding service is unreachable.
	if err := idx.indexKeywords(ctx, doc, chunks); err != nil && !errors.Is(err, errSuperseded) {
		log.Warn("keyword indexing failed", zap.Error(err))
	}

	vecs, err := idx.embed(ctx, texts)
	if err != nil {
		if errors.Is(err, embedding.ErrEmbeddingUnavailable) {
			log.Debug("vectorization skipped", zap.Error(err))
		} else {
			log.Warn("embedding failed", zap.Error(err))
		}
		res.Err = err
		return res
	}

	if err := idx.commit(ctx, doc, ids, vecs); err != nil {
		if errors.Is(err, errSuperseded) {
			log.Debug("vectorization superseded")
			res.Skipped = true
			return res
		}
		log.Error("storing vectors failed", zap.Error(err))
		res.Err = err
		return res
	}

	res.Vectorized = len(ids)
	log.Debug("document vectorized", zap.Int64("project_id", doc.ProjectID), zap.Int("chunks", len(ids)))
	return res
}

// embed calls the embedder in batches of idx.batchSize, stopping at the first error.
func (idx *Indexer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += idx.batchSize {
		end := min(start+idx.batchSize, len(texts))
		vecs, err := idx.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", embedding.ErrEmbeddingRequestFailed, len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// current checks, under the document lock, that doc still exists in the same
// project and that ids are still its chunks.
func (idx *Indexer) current(ctx context.Context, doc *models.Document, ids []int64) error {
	now, err := idx.storage.GetDocument(ctx, doc.ID)
	if errors.Is(err, storage.ErrDocumentNotFound) {
		return errSuperseded
	}
	if err != nil {
		return err
	}
	if now.ProjectID != doc.ProjectID {
		return errSuperseded
	}
	live, err := idx.storage.ChunkIDsForDocument(ctx, doc.ID)
	if err != nil {
		return err
	}
	set := make(map[int64]struct{}, len(live))
	for _, id := range live {
		set[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			return errSuperseded
		}
	}
	return nil
}

func (idx *Indexer) commit(ctx context.Context, doc *models.Document, ids []int64, vecs [][]float32) error {
	unlock := idx.locks.lock(doc.ID)
	defer unlock()

	if err := idx.current(ctx, doc, ids); err != nil {
		return err
	}
	if err := idx.vectors.Upsert(ctx, doc.ProjectID, ids, vecs); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	if err := idx.storage.MarkVectorized(ctx, ids); err != nil {
		return fmt.Errorf("mark vectorized: %w", err)
	}
	remaining, err := idx.storage.GetUnvectorizedChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("check remaining chunks: %w", err)
	}
	if len(remaining) == 0 {
		if err := idx.storage.SetDocumentVectorized(ctx, doc.ID, true); err != nil {
			return fmt.Errorf("mark document vectorized: %w", err)
		}
	}
	return nil
}

func (idx *Indexer) indexKeywords(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error {
	if idx.keyword == nil {
		return nil
	}
	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	unlock := idx.locks.lock(doc.ID)
	defer unlock()
	if err := idx.current(ctx, doc, ids); err != nil {
		return err
	}
	return idx.keyword.IndexChunks(ctx, chunks)
}
