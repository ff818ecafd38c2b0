package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stritefax2/heelixnotes/internal/config"
	"github.com/stritefax2/heelixnotes/internal/models"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after prompt are moved first",
			args:     []string{"water tomatoes", "-project", "2"},
			expected: []string{"-project", "2", "water tomatoes"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-project", "2", "water tomatoes"},
			expected: []string{"-project", "2", "water tomatoes"},
		},
		{
			name:     "prompt only returns unchanged",
			args:     []string{"water tomatoes"},
			expected: []string{"water tomatoes"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"14", "3", "-config", "x.yaml"},
			expected: []string{"-config", "x.yaml", "14", "3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIdleAfter(t *testing.T) {
	if got := idleAfter(900); got != 15*time.Minute {
		t.Errorf("idleAfter(900) = %v", got)
	}
	if got := idleAfter(-1); got != 0 {
		t.Errorf("idleAfter(-1) = %v, want 0", got)
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"tomatoes"}, "tomatoes"},
		{"multiple words", []string{"water", "tomatoes"}, "water tomatoes"},
		{"quoted phrase", []string{"water tomatoes"}, "water tomatoes"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuery(tt.args); got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8765
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/heelix.db"
  vectors_dir: "./data/vectors"
  bleve_index_path: "./data/keyword"
embedding:
  provider: mock
  dimensions: 32
vector:
  index_type: memory
keyword:
  enabled: true
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestInitializeComponents_RetrieveAndStatus(t *testing.T) {
	cfg := testConfig(t)
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	p, err := c.Storage.CreateProject(ctx, "Garden")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := c.Indexer.SaveDocument(ctx, &models.DocumentInput{ProjectID: p.ID, Name: "Tomatoes", Text: "Tomatoes need full sun and regular watering."})
	if err != nil {
		t.Fatal(err)
	}
	c.Indexer.Wait()

	resp, err := retrieveDirect(ctx, c.Orchestrator, &models.RetrieveQuery{ProjectID: p.ID, Query: "tomatoes watering"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].DocumentID != doc.ID {
		t.Fatalf("sources: %+v", resp.Sources)
	}
	if resp.TopK != cfg.Retrieval.DefaultTopK {
		t.Errorf("top_k = %d, want %d", resp.TopK, cfg.Retrieval.DefaultTopK)
	}
	if !strings.HasPrefix(resp.Context, "Chunk 1 (from document ") {
		t.Errorf("context: %q", resp.Context)
	}

	st, err := collectStatus(ctx, cfg, c)
	if err != nil {
		t.Fatal(err)
	}
	// Garden plus the Unassigned project every store starts with.
	if st.Projects != 2 || st.Documents != 1 || st.Chunks != 1 || st.VectorizedChunks != 1 {
		t.Errorf("status: %+v", st)
	}
	if !st.EmbeddingAvailable || st.KeywordEntries != 1 || st.DiskUsageBytes == 0 || st.QueuedJobs != 0 || st.SchemaVersion == "" {
		t.Errorf("status: %+v", st)
	}
}

func TestVectorizeAndWait(t *testing.T) {
	cfg := testConfig(t)
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	doc, err := c.Indexer.SaveDocument(ctx, &models.DocumentInput{Text: "Compost piles need turning.\n\nKeep them moist."})
	if err != nil {
		t.Fatal(err)
	}
	c.Indexer.Wait()
	if _, err := c.Indexer.UpdateDocument(ctx, doc.ID, "Compost piles need turning weekly."); err != nil {
		t.Fatal(err)
	}
	c.Indexer.Wait()

	res := vectorizeAndWait(c.Indexer, doc.ID)
	if res.Err != nil || res.DocumentID != doc.ID {
		t.Errorf("result: %+v", res)
	}
}

func TestRetrieveDirect_Disabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.SetVectorizationEnabled(false)
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	resp, err := retrieveDirect(context.Background(), c.Orchestrator, &models.RetrieveQuery{ProjectID: 1, Query: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Disabled || len(resp.Sources) != 0 {
		t.Errorf("response: %+v", resp)
	}
}
