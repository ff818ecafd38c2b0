package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stritefax2/heelixnotes/internal/config"
	"github.com/stritefax2/heelixnotes/internal/embedding"
	"github.com/stritefax2/heelixnotes/internal/fileid"
	"github.com/stritefax2/heelixnotes/internal/keyword"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"github.com/stritefax2/heelixnotes/internal/vector"
)

const testDim = 32

func embeddingConfigWithoutKey() config.EmbeddingConfig {
	return config.EmbeddingConfig{Provider: "openai", Model: "text-embedding-3-small", Dimensions: testDim}
}

type harness struct {
	idx     *Indexer
	store   *storage.SQLiteStorage
	vectors *vector.Manager
	keyword *keyword.BleveIndex
	dir     string
}

func newHarness(t *testing.T, embedder embedding.Embedder, opts ...IndexerOption) *harness {
	t.Helper()
	return newSizedHarness(t, embedder, Options{Workers: 2, QueueSize: 16}, opts...)
}

func newSizedHarness(t *testing.T, embedder embedding.Embedder, pool Options, opts ...IndexerOption) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	vectors, err := vector.NewManager(vector.ManagerOptions{
		Dir:       filepath.Join(dir, "vectors"),
		IndexType: vector.IndexTypeHNSW,
		Index:     vector.Options{Dimensions: testDim, Model: embedder.Model()},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = vectors.Close() })
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	opts = append([]IndexerOption{WithKeywordIndex(kw)}, opts...)
	idx := NewIndexer(store, embedder, vectors, pool, opts...)
	t.Cleanup(func() { _ = idx.Close() })
	return &harness{idx: idx, store: store, vectors: vectors, keyword: kw, dir: dir}
}

func (h *harness) project(t *testing.T, name string) int64 {
	t.Helper()
	p, err := h.store.CreateProject(context.Background(), name)
	if err != nil {
		t.Fatal(err)
	}
	return p.ID
}

func (h *harness) chunks(t *testing.T, docID int64) []*models.DocumentChunk {
	t.Helper()
	chunks, err := h.store.GetChunksByDocumentID(context.Background(), docID)
	if err != nil {
		t.Fatal(err)
	}
	return chunks
}

func (h *harness) size(t *testing.T, projectID int64) int {
	t.Helper()
	n, err := h.vectors.Size(projectID)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// gatedEmbedder blocks EmbedBatch until release is closed.
type gatedEmbedder struct {
	*embedding.MockEmbedder
	started chan struct{}
	release chan struct{}
}

func newGatedEmbedder() *gatedEmbedder {
	return &gatedEmbedder{
		MockEmbedder: embedding.NewMockEmbedder(testDim),
		started:      make(chan struct{}, 16),
		release:      make(chan struct{}),
	}
}

func (g *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	g.started <- struct{}{}
	<-g.release
	return g.MockEmbedder.EmbedBatch(ctx, texts)
}

func waitStarted(t *testing.T, g *gatedEmbedder) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(5 * time.Second):
		t.Fatal("vectorization did not start")
	}
}

const threeParagraphs = "Tomatoes need full sun and regular watering.\n\n" +
	"Quarterly revenue grew while costs declined.\n\n" +
	"The train to the mountains leaves at dawn."

func TestIndexer_SaveDocumentVectorizesAllChunks(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim))
	ctx := context.Background()
	pid := h.project(t, "notes")

	doc, err := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Name: "mixed", Text: threeParagraphs})
	if err != nil {
		t.Fatal(err)
	}
	h.idx.Wait()

	chunks := h.chunks(t, doc.ID)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if !c.IsVectorized {
			t.Errorf("chunk %d not vectorized", i)
		}
	}
	got, _ := h.store.GetDocument(ctx, doc.ID)
	if !got.IsVectorized {
		t.Error("document should be marked vectorized")
	}
	if n := h.size(t, pid); n != 3 {
		t.Errorf("index size = %d, want 3", n)
	}
	if n, _ := h.keyword.DocCount(); n != 3 {
		t.Errorf("keyword chunks = %d, want 3", n)
	}
}

func TestIndexer_SaveDocumentDefaultsToUnassigned(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim))
	ctx := context.Background()
	doc, err := h.idx.SaveDocument(ctx, &models.DocumentInput{Text: "loose note"})
	if err != nil {
		t.Fatal(err)
	}
	p, _ := h.store.EnsureUnassignedProject(ctx)
	if doc.ProjectID != p.ID || doc.Name != "Untitled" {
		t.Errorf("got project %d name %q", doc.ProjectID, doc.Name)
	}
}

func TestIndexer_HTMLIsProjected(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim))
	doc, err := h.idx.SaveDocument(context.Background(), &models.DocumentInput{
		Text:        "<p>First</p><script>x()</script><p>Second &amp; last</p>",
		ContentType: models.ContentTypeHTML,
	})
	if err != nil {
		t.Fatal(err)
	}
	if doc.PlainText != "First\n\nSecond & last" {
		t.Errorf("plain text = %q", doc.PlainText)
	}
	if n := len(h.chunks(t, doc.ID)); n != 2 {
		t.Errorf("got %d chunks, want 2", n)
	}
}

func TestIndexer_UpdateResetsFlagsUntilReembedded(t *testing.T) {
	g := newGatedEmbedder()
	h := newHarness(t, g)
	ctx := context.Background()
	pid := h.project(t, "p")

	doc, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: "first version"})
	waitStarted(t, g)
	close(g.release)
	h.idx.Wait()
	oldIDs, _ := h.store.ChunkIDsForDocument(ctx, doc.ID)

	g.release = make(chan struct{})
	if _, err := h.idx.UpdateDocument(ctx, doc.ID, "second version\n\nwith two paragraphs"); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, g)
	for _, c := range h.chunks(t, doc.ID) {
		if c.IsVectorized {
			t.Errorf("chunk %d vectorized before re-embedding", c.ID)
		}
	}
	if got, _ := h.store.GetDocument(ctx, doc.ID); got.IsVectorized {
		t.Error("document flag should be reset by the edit")
	}
	close(g.release)
	h.idx.Wait()

	for _, c := range h.chunks(t, doc.ID) {
		if !c.IsVectorized {
			t.Errorf("chunk %d not vectorized after re-embedding", c.ID)
		}
	}
	if n := h.size(t, pid); n != 2 {
		t.Errorf("index size = %d, want 2 (old entries removed)", n)
	}
	q, _ := g.Embed(ctx, "first version")
	results, _ := h.vectors.Search(ctx, pid, q, 10)
	for _, r := range results {
		for _, old := range oldIDs {
			if r.ID == old {
				t.Errorf("superseded chunk %d still indexed", old)
			}
		}
	}
}

func TestIndexer_UpdateUnchangedSkipsRechunk(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim))
	ctx := context.Background()
	doc, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{Text: threeParagraphs})
	h.idx.Wait()
	before, _ := h.store.ChunkIDsForDocument(ctx, doc.ID)

	if _, err := h.idx.UpdateDocument(ctx, doc.ID, threeParagraphs+"\n\n\n"); err != nil {
		t.Fatal(err)
	}
	h.idx.Wait()
	after, _ := h.store.ChunkIDsForDocument(ctx, doc.ID)
	if len(before) != len(after) {
		t.Fatalf("chunk count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("chunk %d was rebuilt", i)
		}
	}
	if got, _ := h.store.GetDocument(ctx, doc.ID); !got.IsVectorized {
		t.Error("unchanged document should stay vectorized")
	}
}

func TestIndexer_MissingCredential(t *testing.T) {
	embedder, err := embedding.NewFromConfig(embeddingConfigWithoutKey(), nil)
	if err != nil {
		t.Fatal(err)
	}
	var results []models.JobResult
	done := make(chan struct{}, 1)
	h := newHarness(t, embedder, WithOnComplete(func(r models.JobResult) {
		results = append(results, r)
		done <- struct{}{}
	}))
	ctx := context.Background()
	pid := h.project(t, "p")

	doc, err := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: threeParagraphs})
	if err != nil {
		t.Fatalf("save should succeed without a credential: %v", err)
	}
	h.idx.Wait()
	<-done

	if len(results) != 1 || !errors.Is(results[0].Err, embedding.ErrEmbeddingUnavailable) {
		t.Errorf("results = %+v", results)
	}
	for _, c := range h.chunks(t, doc.ID) {
		if c.IsVectorized {
			t.Error("chunks must stay unvectorized without a credential")
		}
	}
	if err := h.idx.EnableVectorization(ctx); !errors.Is(err, embedding.ErrEmbeddingUnavailable) {
		t.Errorf("EnableVectorization err = %v", err)
	}
	// Keyword entries do not need embeddings.
	if hits, _ := h.keyword.Search(ctx, pid, "tomatoes", 5, nil); len(hits) != 1 {
		t.Errorf("keyword hits = %d, want 1", len(hits))
	}
}

func TestIndexer_DisabledIsNoop(t *testing.T) {
	m := embedding.NewMockEmbedder(testDim)
	h := newHarness(t, m, WithVectorizationEnabled(false))
	ctx := context.Background()
	ch, cancel := h.idx.Subscribe()
	defer cancel()

	doc, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{Text: "note"})
	h.idx.Wait()
	res := <-ch
	if !res.Skipped || res.DocumentID != doc.ID || res.JobID == "" {
		t.Errorf("result = %+v", res)
	}
	if m.Calls() != 0 {
		t.Errorf("embedder called %d times while disabled", m.Calls())
	}
	if len(h.chunks(t, doc.ID)) != 1 {
		t.Error("chunks are still stored while disabled")
	}

	if err := h.idx.EnableVectorization(ctx); err != nil {
		t.Fatal(err)
	}
	h.idx.Wait()
	if got, _ := h.store.GetDocument(ctx, doc.ID); !got.IsVectorized {
		t.Error("enabling should resume pending documents")
	}
}

func TestIndexer_MoveDocument(t *testing.T) {
	m := embedding.NewMockEmbedder(testDim)
	h := newHarness(t, m)
	ctx := context.Background()
	src := h.project(t, "source")
	dst := h.project(t, "destination")

	doc, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: src, Text: threeParagraphs})
	h.idx.Wait()
	if h.size(t, src) != 3 {
		t.Fatalf("source index size = %d", h.size(t, src))
	}

	jobID, err := h.idx.MoveDocument(ctx, doc.ID, dst)
	if err != nil {
		t.Fatal(err)
	}
	if jobID == "" {
		t.Error("expected a job id")
	}
	h.idx.Wait()

	if n := h.size(t, src); n != 0 {
		t.Errorf("source index size = %d, want 0", n)
	}
	if n := h.size(t, dst); n != 3 {
		t.Errorf("destination index size = %d, want 3", n)
	}
	q, _ := m.Embed(ctx, "Tomatoes need full sun")
	if res, _ := h.vectors.Search(ctx, src, q, 5); len(res) != 0 {
		t.Errorf("moved chunks still found in source: %v", res)
	}
	if res, _ := h.vectors.Search(ctx, dst, q, 5); len(res) == 0 {
		t.Error("moved chunks not found in destination")
	}
	if hits, _ := h.keyword.Search(ctx, src, "tomatoes", 5, nil); len(hits) != 0 {
		t.Error("keyword entries still scoped to source")
	}
	if hits, _ := h.keyword.Search(ctx, dst, "tomatoes", 5, nil); len(hits) != 1 {
		t.Error("keyword entries not scoped to destination")
	}

	if _, err := h.idx.MoveDocument(ctx, doc.ID, 9999); !errors.Is(err, storage.ErrProjectNotFound) {
		t.Errorf("move to unknown project: %v", err)
	}
}

func TestIndexer_DeleteDuringVectorization(t *testing.T) {
	g := newGatedEmbedder()
	var last models.JobResult
	h := newHarness(t, g, WithOnComplete(func(r models.JobResult) { last = r }))
	ctx := context.Background()
	pid := h.project(t, "p")

	doc, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: threeParagraphs})
	waitStarted(t, g)
	if err := h.idx.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	close(g.release)
	h.idx.Wait()

	if !last.Skipped {
		t.Errorf("task should abort for a deleted document: %+v", last)
	}
	if n := h.size(t, pid); n != 0 {
		t.Errorf("index size = %d, want 0", n)
	}
	if _, err := h.store.GetDocument(ctx, doc.ID); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Errorf("document should be gone: %v", err)
	}
}

func TestIndexer_DeleteDocumentRemovesEntries(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim))
	ctx := context.Background()
	pid := h.project(t, "p")
	doc, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: threeParagraphs})
	keep, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: "another note"})
	h.idx.Wait()

	if err := h.idx.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	if n := h.size(t, pid); n != 1 {
		t.Errorf("index size = %d, want 1", n)
	}
	if n, _ := h.keyword.DocCount(); n != 1 {
		t.Errorf("keyword chunks = %d, want 1", n)
	}
	if len(h.chunks(t, keep.ID)) != 1 {
		t.Error("other document must keep its chunks")
	}
	if err := h.idx.DeleteDocument(ctx, doc.ID); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestIndexer_DeleteProject(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim))
	ctx := context.Background()
	pid := h.project(t, "doomed")
	doc, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: threeParagraphs})
	h.idx.Wait()
	if err := h.vectors.Flush(); err != nil {
		t.Fatal(err)
	}

	if err := h.idx.DeleteProject(ctx, pid); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Dir(h.vectors.IndexPath(pid))); !os.IsNotExist(err) {
		t.Errorf("project directory should be removed: %v", err)
	}
	if _, err := h.store.GetDocument(ctx, doc.ID); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Error("documents should cascade")
	}
	if n, _ := h.keyword.DocCount(); n != 0 {
		t.Errorf("keyword chunks = %d, want 0", n)
	}
}

func TestIndexer_RebuildProject(t *testing.T) {
	m := embedding.NewMockEmbedder(testDim)
	h := newHarness(t, m)
	ctx := context.Background()
	pid := h.project(t, "p")
	for _, text := range []string{"one note", "two notes", threeParagraphs} {
		if _, err := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: text}); err != nil {
			t.Fatal(err)
		}
	}
	h.idx.Wait()
	calls := m.Calls()

	n, err := h.idx.RebuildProject(ctx, pid)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("scheduled %d documents, want 3", n)
	}
	h.idx.Wait()
	if m.Calls() == calls {
		t.Error("rebuild should re-embed")
	}
	if size := h.size(t, pid); size != 5 {
		t.Errorf("index size = %d, want 5", size)
	}
	if _, err := h.idx.RebuildProject(ctx, 9999); !errors.Is(err, storage.ErrProjectNotFound) {
		t.Errorf("unknown project: %v", err)
	}
}

func TestIndexer_Resume(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim), WithVectorizationEnabled(false))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = h.idx.SaveDocument(ctx, &models.DocumentInput{Text: "pending note"})
	}
	h.idx.Wait()

	h.idx.enabled.Store(true)
	n, err := h.idx.Resume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("resumed %d, want 3", n)
	}
	h.idx.Wait()
	if left, _ := h.store.UnvectorizedDocumentIDs(ctx); len(left) != 0 {
		t.Errorf("still pending: %v", left)
	}
}

func TestIndexer_SaveDoesNotWaitForQueue(t *testing.T) {
	g := newGatedEmbedder()
	h := newSizedHarness(t, g, Options{Workers: 1, QueueSize: 1})
	ctx := context.Background()
	pid := h.project(t, "p")

	// One document occupies the worker, the next fills the backlog limit.
	if _, err := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: "first note"}); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, g)
	if _, err := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: "second note"}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		doc, err := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: "third note"})
		if err == nil {
			_, err = h.idx.UpdateDocument(ctx, doc.ID, "third note, edited")
		}
		if err == nil {
			h.idx.VectorizeDocument(doc.ID)
		}
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		close(g.release)
		t.Fatal("document save waited for the vectorization queue")
	}

	close(g.release)
	h.idx.Wait()
	if left, _ := h.store.UnvectorizedDocumentIDs(ctx); len(left) != 0 {
		t.Errorf("still pending after drain: %v", left)
	}
	if n := h.size(t, pid); n != 3 {
		t.Errorf("index size = %d, want 3", n)
	}
}

func TestIndexer_QueuedDocumentIsCoalesced(t *testing.T) {
	g := newGatedEmbedder()
	h := newSizedHarness(t, g, Options{Workers: 1, QueueSize: 4})
	ctx := context.Background()
	pid := h.project(t, "p")

	first, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: "first note"})
	waitStarted(t, g)
	second, _ := h.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: pid, Text: "second note"})

	a := h.idx.VectorizeDocument(second.ID)
	b := h.idx.VectorizeDocument(second.ID)
	if a != b {
		t.Errorf("waiting document got two jobs: %s, %s", a, b)
	}
	if q := h.idx.Queued(); q != 1 {
		t.Errorf("Queued() = %d, want 1", q)
	}
	// The running document is not waiting, so it gets a fresh job.
	if c := h.idx.VectorizeDocument(first.ID); c == a {
		t.Error("running document should get its own job")
	}

	close(g.release)
	h.idx.Wait()
	if q := h.idx.Queued(); q != 0 {
		t.Errorf("Queued() after drain = %d, want 0", q)
	}
}

func TestIndexer_CloseRejectsJobs(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim))
	ch, _ := h.idx.Subscribe()
	_ = h.idx.Close()
	if id := h.idx.VectorizeDocument(1); id == "" {
		t.Error("closed indexer should still return a job id")
	}
	if _, ok := <-ch; ok {
		t.Error("subscription should be closed on Close")
	}
}

func TestIndexer_ImportFile(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim))
	ctx := context.Background()
	pid := h.project(t, "imports")

	path := filepath.Join(h.dir, "doc.md")
	if err := os.WriteFile(path, []byte("Hello world content."), 0600); err != nil {
		t.Fatal(err)
	}
	doc, err := h.idx.ImportFile(ctx, path, pid, nil)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "doc.md" || doc.ContentType != models.ContentTypeMarkdown {
		t.Errorf("got %+v", doc)
	}
	if doc.SourcePath != fileid.SourceKey(path) {
		t.Errorf("source path = %q", doc.SourcePath)
	}

	if err := os.WriteFile(path, []byte("Updated content."), 0600); err != nil {
		t.Fatal(err)
	}
	again, err := h.idx.ImportFile(ctx, path, pid, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != doc.ID {
		t.Errorf("re-import created a new document: %d vs %d", again.ID, doc.ID)
	}
	h.idx.Wait()
	if chunks := h.chunks(t, doc.ID); len(chunks) != 1 || chunks[0].Text != "Updated content." {
		t.Errorf("chunks = %+v", chunks)
	}

	if _, err := h.idx.ImportFile(ctx, path, pid, []string{".txt"}); err == nil {
		t.Error("expected extension filter error")
	}
	if _, err := h.idx.ImportFile(ctx, h.dir, pid, nil); err == nil {
		t.Error("expected error for a directory")
	}
	if _, err := h.idx.ImportFile(ctx, filepath.Join(h.dir, "missing.txt"), pid, nil); err == nil {
		t.Error("expected error for a missing file")
	}

	if err := h.idx.RemoveImportedFile(ctx, path); err != nil {
		t.Fatal(err)
	}
	if _, err := h.store.GetDocument(ctx, doc.ID); !errors.Is(err, storage.ErrDocumentNotFound) {
		t.Error("imported document should be deleted")
	}
	if err := h.idx.RemoveImportedFile(ctx, path); err != nil {
		t.Errorf("removing an unknown file is not an error: %v", err)
	}
}

func TestIndexer_IndexDirectory(t *testing.T) {
	h := newHarness(t, embedding.NewMockEmbedder(testDim))
	ctx := context.Background()
	pid := h.project(t, "imports")

	root := filepath.Join(h.dir, "notes")
	sub := filepath.Join(root, "sub")
	hidden := filepath.Join(root, ".git")
	for _, d := range []string{sub, hidden} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{
		filepath.Join(root, "a.txt"):   "alpha",
		filepath.Join(root, "b.md"):    "beta",
		filepath.Join(root, "c.go"):    "package c",
		filepath.Join(sub, "d.txt"):    "delta",
		filepath.Join(hidden, "e.txt"): "hidden",
	}
	for p, content := range files {
		if err := os.WriteFile(p, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	exts := []string{".txt", ".md"}

	n, err := h.idx.IndexDirectory(ctx, root, pid, exts, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("non-recursive imported %d, want 2", n)
	}
	n, err = h.idx.IndexDirectory(ctx, root, pid, exts, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("recursive imported %d, want 3", n)
	}
	h.idx.Wait()
	docs, _ := h.store.ListDocuments(ctx, pid, 0, 0)
	if len(docs) != 3 {
		t.Errorf("documents = %d, want 3", len(docs))
	}
	if _, err := h.idx.IndexDirectory(ctx, filepath.Join(root, "a.txt"), pid, exts, true); err == nil {
		t.Error("expected error for a file path")
	}
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{"txt", "md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		if got := extensionAllowed(tt.ext, tt.allowed); got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}
