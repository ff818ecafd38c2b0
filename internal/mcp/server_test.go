package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stritefax2/heelixnotes/internal/embedding"
	"github.com/stritefax2/heelixnotes/internal/indexer"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/retrieval"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"github.com/stritefax2/heelixnotes/internal/vector"
)

const testDim = 32

type fixture struct {
	srv   *Server
	store *storage.SQLiteStorage
	idx   *indexer.Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embedder := embedding.NewMockEmbedder(testDim)
	vectors, err := vector.NewManager(vector.ManagerOptions{
		Dir:       filepath.Join(dir, "vectors"),
		IndexType: vector.IndexTypeMemory,
		Index:     vector.Options{Dimensions: testDim, Model: embedder.Model()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	idx := indexer.NewIndexer(store, embedder, vectors, indexer.Options{Workers: 1, QueueSize: 8})
	t.Cleanup(func() { _ = idx.Close() })
	orch := retrieval.NewOrchestrator(store, embedder, vectors, retrieval.Options{}, retrieval.WithEnabled(idx.Enabled))

	return &fixture{srv: NewServer(orch, idx, store, "test", nil), store: store, idx: idx}
}

func (f *fixture) seed(t *testing.T) (projectID, docID int64) {
	t.Helper()
	ctx := context.Background()
	p, err := f.store.CreateProject(ctx, "Garden")
	require.NoError(t, err)
	doc, err := f.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: p.ID, Name: "Tomatoes", Text: "Tomatoes need full sun and regular watering."})
	require.NoError(t, err)
	_, err = f.idx.SaveDocument(ctx, &models.DocumentInput{ProjectID: p.ID, Name: "Compost", Text: "Compost piles need turning every week."})
	require.NoError(t, err)
	f.idx.Wait()
	return p.ID, doc.ID
}

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func TestToolsRegistered(t *testing.T) {
	f := newFixture(t)
	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := f.srv.mcp.HandleMessage(context.Background(), msg)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"retrieve_sources", "build_context", "get_chunk_text", "vectorize_document", "list_projects"} {
		assert.Contains(t, string(out), name)
	}
}

func TestRetrieveSources(t *testing.T) {
	f := newFixture(t)
	projectID, docID := f.seed(t)

	res, err := f.srv.handleRetrieveSources(context.Background(), call("retrieve_sources", map[string]interface{}{
		"project_id": float64(projectID),
		"query":      "tomatoes sun watering",
		"top_k":      float64(5),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var resp models.RetrieveResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &resp))
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, docID, resp.Sources[0].DocumentID)
	assert.Equal(t, 5, resp.TopK)
}

func TestRetrieveSourcesValidation(t *testing.T) {
	f := newFixture(t)
	projectID, _ := f.seed(t)
	ctx := context.Background()

	res, err := f.srv.handleRetrieveSources(ctx, call("retrieve_sources", map[string]interface{}{"query": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = f.srv.handleRetrieveSources(ctx, call("retrieve_sources", map[string]interface{}{"project_id": float64(projectID), "query": "  "}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = f.srv.handleRetrieveSources(ctx, call("retrieve_sources", map[string]interface{}{"project_id": float64(999), "query": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")
}

func TestRetrieveSourcesDisabled(t *testing.T) {
	f := newFixture(t)
	projectID, _ := f.seed(t)
	f.idx.DisableVectorization()

	res, err := f.srv.handleRetrieveSources(context.Background(), call("retrieve_sources", map[string]interface{}{
		"project_id": float64(projectID),
		"query":      "tomatoes",
	}))
	require.NoError(t, err)
	var resp models.RetrieveResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &resp))
	assert.True(t, resp.Disabled)
	assert.Empty(t, resp.Sources)
}

func TestBuildContext(t *testing.T) {
	f := newFixture(t)
	projectID, docID := f.seed(t)

	res, err := f.srv.handleBuildContext(context.Background(), call("build_context", map[string]interface{}{
		"project_id": float64(projectID),
		"query":      "tomatoes sun watering",
		"top_k":      float64(1),
	}))
	require.NoError(t, err)
	want := "Chunk 1 (from document " + strconv.FormatInt(docID, 10) + "):\nTomatoes need full sun and regular watering.\n\n"
	assert.Equal(t, want, resultText(t, res))
}

type chunkTextResult struct {
	ChunkID int64   `json:"chunk_id"`
	Text    *string `json:"text"`
}

func TestGetChunkText(t *testing.T) {
	f := newFixture(t)
	_, docID := f.seed(t)
	ids, err := f.store.ChunkIDsForDocument(context.Background(), docID)
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	res, err := f.srv.handleGetChunkText(context.Background(), call("get_chunk_text", map[string]interface{}{"chunk_id": float64(ids[0])}))
	require.NoError(t, err)
	var out chunkTextResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, ids[0], out.ChunkID)
	require.NotNil(t, out.Text)
	assert.Equal(t, "Tomatoes need full sun and regular watering.", *out.Text)

	res, err = f.srv.handleGetChunkText(context.Background(), call("get_chunk_text", map[string]interface{}{"chunk_id": float64(424242)}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &raw))
	v, ok := raw["text"]
	assert.True(t, ok)
	assert.Equal(t, "null", string(v))
}

func TestVectorizeDocument(t *testing.T) {
	f := newFixture(t)
	_, docID := f.seed(t)

	res, err := f.srv.handleVectorizeDocument(context.Background(), call("vectorize_document", map[string]interface{}{"document_id": float64(docID)}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.NotEmpty(t, out["job_id"])

	res, err = f.srv.handleVectorizeDocument(context.Background(), call("vectorize_document", map[string]interface{}{"document_id": float64(999)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListProjects(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	res, err := f.srv.handleListProjects(context.Background(), call("list_projects", nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "Garden")
}

func TestGetInt64(t *testing.T) {
	args := map[string]interface{}{"a": float64(3), "b": 2.5, "c": "x", "d": json.Number("7")}
	v, ok := getInt64(args, "a")
	assert.True(t, ok)
	assert.Equal(t, int64(3), v)
	_, ok = getInt64(args, "b")
	assert.False(t, ok)
	_, ok = getInt64(args, "c")
	assert.False(t, ok)
	v, ok = getInt64(args, "d")
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)
	assert.Equal(t, 9, getIntDefault(args, "missing", 9))
}
