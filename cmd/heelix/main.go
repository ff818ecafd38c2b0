// Package main is the heelix CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/stritefax2/heelixnotes/internal/cli"
	"github.com/stritefax2/heelixnotes/internal/config"
	"github.com/stritefax2/heelixnotes/internal/embedding"
	"github.com/stritefax2/heelixnotes/internal/indexer"
	"github.com/stritefax2/heelixnotes/internal/keyword"
	"github.com/stritefax2/heelixnotes/internal/mcp"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/retrieval"
	"github.com/stritefax2/heelixnotes/internal/server"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"github.com/stritefax2/heelixnotes/internal/vector"
	"github.com/stritefax2/heelixnotes/internal/watcher"
	"github.com/stritefax2/heelixnotes/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/heelix/config.yaml"
	defaultServerURL  = "http://localhost:8765"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded (for saving settings).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "retrieve":
		runRetrieve()
	case "import":
		runImport()
	case "vectorize":
		runVectorize()
	case "move":
		runMove()
	case "rebuild":
		runRebuild()
	case "status":
		runStatus()
	case "mcp":
		runMCP()
	case "version", "--version", "-v":
		fmt.Printf("heelix version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger and initializes components, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolved, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n, err := components.Indexer.Resume(ctx); err != nil {
		logger.Warn("resume vectorization failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("resumed vectorization", zap.Int("documents", n))
	}

	folders, err := watcher.ResolveFolders(ctx, components.Storage, cfg.Import.Folders)
	if err != nil {
		logger.Fatal("Failed to resolve import folders", zap.Error(err))
	}
	watchSvc := watcher.NewWatcher(
		folders,
		cfg.Import.Extensions,
		cfg.Import.RecursiveOrDefault(),
		watcher.FromIndexer(components.Indexer, cfg.Import.Extensions),
		watcher.WithLogger(logger),
	)
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	watchSvc.SyncExistingFiles()

	srvOpts := []server.Option{
		server.WithEmbedder(components.Embedder),
		server.WithVectorManager(components.Vectors),
		server.WithFolders(watchSvc),
		server.WithConfigPath(resolvedConfigPath),
	}
	if components.Keyword != nil {
		srvOpts = append(srvOpts, server.WithKeywordIndex(components.Keyword))
	}
	srv := server.NewServer(components.Orchestrator, components.Indexer, components.Storage, cfg, logger, srvOpts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runMCP() {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (stderr)")
	_ = fs.Parse(os.Args[2:])

	_, _, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if _, err := components.Indexer.Resume(ctx); err != nil {
		logger.Warn("resume vectorization failed", zap.Error(err))
	}

	srv := mcp.NewServer(components.Orchestrator, components.Indexer, components.Storage, version, logger)
	if err := srv.Serve(ctx); err != nil {
		logger.Error("MCP server failed", zap.Error(err))
	}
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins all positional args with spaces so multi-word prompts
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printRetrieveUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: heelix retrieve -project <id> [flags] <prompt>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  heelix retrieve -project 2 when do tomatoes need water
  heelix retrieve -project 2 -top-k 5 -output json "compost schedule"
  heelix retrieve -project 2 -context "compost schedule"   # print the prompt context block
`)
}

func runRetrieve() {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the store directly)")
	projectID := fs.Int64("project", 0, "project ID to search")
	topK := fs.Int("top-k", 0, "maximum number of sources (0 = configured default)")
	withContext := fs.Bool("context", false, "print the rendered context block instead of sources")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printRetrieveUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" || *projectID <= 0 {
		printRetrieveUsage(fs)
		os.Exit(1)
	}
	format := cli.ParseOutputFormat(*outputFormat)
	req := &models.RetrieveQuery{ProjectID: *projectID, Query: query, TopK: *topK}

	var resp *models.ContextResponse
	var err error
	if *serverURL != "" {
		resp, err = retrieveViaHTTP(*serverURL, req, *withContext)
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		resp, err = retrieveDirect(context.Background(), components.Orchestrator, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
		os.Exit(1)
	}

	if *withContext {
		if format == cli.OutputJSON {
			err = json.NewEncoder(os.Stdout).Encode(resp)
		} else {
			_, err = io.WriteString(os.Stdout, resp.Context)
		}
	} else {
		err = cli.WriteSources(os.Stdout, &resp.RetrieveResponse, format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func retrieveDirect(ctx context.Context, orch *retrieval.Orchestrator, q *models.RetrieveQuery) (*models.ContextResponse, error) {
	start := time.Now()
	topK := orch.TopK(q.TopK)
	sources, text, err := orch.RetrieveContext(ctx, q.ProjectID, q.Query, topK)
	resp := &models.ContextResponse{
		RetrieveResponse: models.RetrieveResponse{ProjectID: q.ProjectID, Query: q.Query, TopK: topK, Sources: sources},
		Context:          text,
	}
	if errors.Is(err, retrieval.ErrRetrievalDisabled) {
		resp.Disabled = true
		resp.Sources = []*models.Source{}
	} else if err != nil {
		return nil, err
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

func retrieveViaHTTP(serverURL string, q *models.RetrieveQuery, withContext bool) (*models.ContextResponse, error) {
	endpoint := "/api/v1/retrieve"
	if withContext {
		endpoint = "/api/v1/context"
	}
	var out models.ContextResponse
	if err := postJSON(serverURL+endpoint, q, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	projectName := fs.String("project", "", "project name (created when missing; default: Unassigned)")
	recursive := fs.Bool("recursive", true, "descend into subdirectories")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: heelix import [flags] <directory>")
		os.Exit(1)
	}
	dir := fs.Arg(0)

	cfg, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var projectID int64
	if *projectName != "" {
		folders, err := watcher.ResolveFolders(ctx, components.Storage, []config.ImportFolder{{Path: dir, Project: *projectName}})
		if err != nil {
			fmt.Printf("Failed to resolve project: %v\n", err)
			os.Exit(1)
		}
		projectID = folders[0].ProjectID
	}
	n, err := components.Indexer.IndexDirectory(ctx, dir, projectID, cfg.Import.Extensions, *recursive)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		os.Exit(1)
	}
	components.Indexer.Wait()
	fmt.Printf("Imported %d file(s) from %s\n", n, dir)
}

func parseIDArgs(usage string, args []string, n int) []int64 {
	if len(args) < n {
		fmt.Println(usage)
		os.Exit(1)
	}
	ids := make([]int64, n)
	for i := 0; i < n; i++ {
		id, err := strconv.ParseInt(args[i], 10, 64)
		if err != nil || id <= 0 {
			fmt.Printf("Invalid ID %q\n%s\n", args[i], usage)
			os.Exit(1)
		}
		ids[i] = id
	}
	return ids
}

func runVectorize() {
	fs := flag.NewFlagSet("vectorize", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	ids := parseIDArgs("Usage: heelix vectorize [flags] <document-id>", fs.Args(), 1)

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	exists, err := components.Storage.DocumentExists(context.Background(), ids[0])
	if err != nil || !exists {
		fmt.Printf("Document %d not found\n", ids[0])
		os.Exit(1)
	}
	res := vectorizeAndWait(components.Indexer, ids[0])
	if err := cli.WriteJobResult(os.Stdout, res, cli.ParseOutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if res.Err != nil {
		os.Exit(1)
	}
}

// vectorizeAndWait schedules a document and blocks until its job reports.
func vectorizeAndWait(idx *indexer.Indexer, documentID int64) models.JobResult {
	results, cancel := idx.Subscribe()
	defer cancel()
	jobID := idx.VectorizeDocument(documentID)
	for r := range results {
		if r.JobID == jobID {
			return r
		}
	}
	return models.JobResult{JobID: jobID, DocumentID: documentID, Err: indexer.ErrIndexerClosed}
}

func runMove() {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	ids := parseIDArgs("Usage: heelix move [flags] <document-id> <project-id>", fs.Args(), 2)

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	if _, err := components.Indexer.MoveDocument(context.Background(), ids[0], ids[1]); err != nil {
		fmt.Printf("Move failed: %v\n", err)
		os.Exit(1)
	}
	components.Indexer.Wait()
	fmt.Printf("Document %d moved to project %d\n", ids[0], ids[1])
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	ids := parseIDArgs("Usage: heelix rebuild [flags] <project-id>", fs.Args(), 1)

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	n, err := components.Indexer.RebuildProject(context.Background(), ids[0])
	if err != nil {
		fmt.Printf("Rebuild failed: %v\n", err)
		os.Exit(1)
	}
	components.Indexer.Wait()
	fmt.Printf("Rebuilt project %d (%d documents)\n", ids[0], n)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open the store directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *cli.Status
	var err error
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		cfg, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		status, err = collectStatus(context.Background(), cfg, components)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, cli.ParseOutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func collectStatus(ctx context.Context, cfg *config.Config, c *Components) (*cli.Status, error) {
	projects, err := c.Storage.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	st := &cli.Status{
		Projects:             len(projects),
		VectorizationEnabled: c.Indexer.Enabled(),
		QueuedJobs:           c.Indexer.Queued(),
		EmbeddingAvailable:   embedding.Available(c.Embedder),
		EmbeddingModel:       c.Embedder.Model(),
		Indexes:              c.Vectors.Stats(),
	}
	if st.Documents, err = c.Storage.CountDocuments(ctx); err != nil {
		return nil, err
	}
	if st.Chunks, err = c.Storage.CountChunks(ctx); err != nil {
		return nil, err
	}
	if st.VectorizedChunks, err = c.Storage.CountVectorizedChunks(ctx); err != nil {
		return nil, err
	}
	if c.Keyword != nil {
		st.KeywordEntries, _ = c.Keyword.DocCount()
	}
	st.SchemaVersion, _ = c.Storage.SchemaVersion(ctx)
	paths := append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.VectorsDir)
	if c.Keyword != nil {
		paths = append(paths, cfg.Storage.BleveIndexPath)
	}
	st.DiskUsageBytes, _ = storage.DiskUsageBytes(paths...)
	return st, nil
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var st cli.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &st, nil
}

func postJSON(url string, body interface{}, wantStatus int, out interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	Embedder     embedding.Embedder
	Vectors      *vector.Manager
	Keyword      *keyword.BleveIndex
	Indexer      *indexer.Indexer
	Orchestrator *retrieval.Orchestrator
}

// Close drains queued vectorization, flushes indexes and closes storage.
func (c *Components) Close() {
	if c.Indexer != nil {
		_ = c.Indexer.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// idleAfter converts the idle eviction setting; non-positive disables eviction.
func idleAfter(secs int) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.Embedder, err = embedding.NewFromConfig(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	c.Vectors, err = vector.NewManager(vector.ManagerOptions{
		Dir:       cfg.Storage.VectorsDir,
		IndexType: vector.IndexType(cfg.Vector.IndexType),
		Index: vector.Options{
			Dimensions:     cfg.Embedding.Dimensions,
			Model:          c.Embedder.Model(),
			M:              cfg.Vector.M,
			EfConstruction: cfg.Vector.EfConstruction,
			EfSearch:       cfg.Vector.EfSearch,
			Seed:           cfg.Vector.Seed,
		},
		FlushInterval: time.Duration(cfg.Vector.FlushIntervalMs) * time.Millisecond,
		IdleAfter:     idleAfter(cfg.Vector.IdleEvictSecs),
	},
		vector.WithManagerLogger(logger),
		vector.WithRebuildNeeded(func(projectID int64, cause error) {
			logger.Warn("project index discarded; rebuilding", zap.Int64("project_id", projectID), zap.Error(cause))
			if _, err := c.Indexer.RebuildProject(context.Background(), projectID); err != nil {
				logger.Error("project rebuild failed", zap.Int64("project_id", projectID), zap.Error(err))
			}
		}),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize vector indexes: %w", err)
	}

	if cfg.Keyword.Enabled {
		c.Keyword, err = keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
		}
	}

	idxOpts := []indexer.IndexerOption{
		indexer.WithLogger(logger),
		indexer.WithVectorizationEnabled(cfg.VectorizationEnabled()),
	}
	orchOpts := []retrieval.Option{retrieval.WithLogger(logger)}
	if c.Keyword != nil {
		idxOpts = append(idxOpts, indexer.WithKeywordIndex(c.Keyword))
		orchOpts = append(orchOpts, retrieval.WithKeywordIndex(c.Keyword))
	}
	c.Indexer = indexer.NewIndexer(store, c.Embedder, c.Vectors, indexer.Options{
		Workers:        cfg.Vectorization.Workers,
		QueueSize:      cfg.Vectorization.QueueSize,
		EmbedBatchSize: cfg.Embedding.BatchSize,
		Chunking: indexer.ChunkerOptions{
			MaxChunkSize: cfg.Chunking.MaxChunkSize,
			MinChunkSize: cfg.Chunking.MinChunkSize,
			Overlap:      cfg.Chunking.Overlap,
			BreakWindow:  cfg.Chunking.BreakWindow,
		},
	}, idxOpts...)

	orchOpts = append(orchOpts, retrieval.WithEnabled(c.Indexer.Enabled))
	c.Orchestrator = retrieval.NewOrchestrator(store, c.Embedder, c.Vectors, retrieval.Options{
		DefaultTopK:     cfg.Retrieval.DefaultTopK,
		MaxTopK:         cfg.Retrieval.MaxTopK,
		PreviewLength:   cfg.Retrieval.PreviewLength,
		KeywordFallback: cfg.Retrieval.KeywordFallback,
	}, orchOpts...)

	logger.Info("components initialized",
		zap.String("vector_index_type", cfg.Vector.IndexType),
		zap.String("embedding_model", c.Embedder.Model()),
		zap.Bool("embedding_available", embedding.Available(c.Embedder)),
		zap.Bool("keyword_index", c.Keyword != nil),
		zap.Bool("vectorization_enabled", c.Indexer.Enabled()))
	return c, nil
}

func printUsage() {
	fmt.Println(`heelix - retrieval core for Heelix notes

Usage:
  heelix server [flags]                          Start the HTTP server and folder import
  heelix retrieve -project <id> [flags] <prompt> Retrieve sources for a prompt
  heelix import [flags] <directory>              Import .txt/.md/.html files as documents
  heelix vectorize [flags] <document-id>         Vectorize one document and wait
  heelix move [flags] <document-id> <project-id> Move a document to another project
  heelix rebuild [flags] <project-id>            Rebuild a project's vector index
  heelix status [flags]                          Show store and index status
  heelix mcp [flags]                             Serve MCP tools over stdio
  heelix version                                 Show version
  heelix help                                    Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/heelix/config.yaml,
                     or ./config.yaml when present)

Server / MCP Flags:
  --debug            Enable debug logging

Retrieve Flags:
  --server string    Server URL (default: http://localhost:8765). Use --server "" to open the store directly.
  --project int      Project ID (required)
  --top-k int        Maximum number of sources (default from config)
  --context          Print the rendered context block
  --output string    Output format: text or json

Import Flags:
  --project string   Target project name (created when missing; default: Unassigned)
  --recursive        Descend into subdirectories (default: true)

Status Flags:
  --server string    Server URL. Use --server "" for direct storage.
  --output string    Output format: text or json

Examples:
  heelix server
  heelix import --project Garden ~/notes/garden
  heelix retrieve -project 2 when should I water tomatoes
  heelix vectorize 14
  heelix move 14 3
  heelix rebuild 3
  heelix status --output json`)
}
