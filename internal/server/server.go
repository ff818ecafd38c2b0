// Package server provides the HTTP API for the heelix RAG core.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stritefax2/heelixnotes/internal/config"
	"github.com/stritefax2/heelixnotes/internal/embedding"
	"github.com/stritefax2/heelixnotes/internal/indexer"
	"github.com/stritefax2/heelixnotes/internal/keyword"
	"github.com/stritefax2/heelixnotes/internal/retrieval"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"github.com/stritefax2/heelixnotes/internal/vector"
	"github.com/stritefax2/heelixnotes/internal/watcher"
	"go.uber.org/zap"
)

// FolderService manages watched import folders at runtime. Implemented by *watcher.Watcher.
type FolderService interface {
	Folders() []watcher.Folder
	AddFolder(f watcher.Folder, syncExisting bool) error
	RemoveFolder(path string) error
}

// Server is the HTTP server for the heelix API.
type Server struct {
	orchestrator *retrieval.Orchestrator
	indexer      *indexer.Indexer
	storage      storage.Storage
	embedder     embedding.Embedder
	vectors      *vector.Manager
	keyword      keyword.ChunkIndex
	folders      FolderService
	config       *config.Config
	configPath   string
	logger       *zap.Logger
	server       *http.Server

	// configMu serializes settings changes and their persistence.
	configMu sync.Mutex
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithEmbedder reports embedding availability in settings.
func WithEmbedder(e embedding.Embedder) Option {
	return func(s *Server) { s.embedder = e }
}

// WithVectorManager adds per-project index stats to the status endpoint.
func WithVectorManager(m *vector.Manager) Option {
	return func(s *Server) { s.vectors = m }
}

// WithKeywordIndex adds keyword index stats to the status endpoint.
func WithKeywordIndex(k keyword.ChunkIndex) Option {
	return func(s *Server) { s.keyword = k }
}

// WithFolders enables the import folder endpoints.
func WithFolders(f FolderService) Option {
	return func(s *Server) { s.folders = f }
}

// WithConfigPath persists settings and folder changes to path.
func WithConfigPath(path string) Option {
	return func(s *Server) { s.configPath = path }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	orchestrator *retrieval.Orchestrator,
	idx *indexer.Indexer,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		orchestrator: orchestrator,
		indexer:      idx,
		storage:      store,
		config:       cfg,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with every API route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.handleCreateProject)
			r.Get("/", s.handleListProjects)
			r.Delete("/{id}", s.handleDeleteProject)
			r.Post("/{id}/rebuild", s.handleRebuildProject)
			r.Get("/{id}/documents", s.handleListDocuments)
		})
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", s.handleCreateDocument)
			r.Get("/{id}", s.handleGetDocument)
			r.Put("/{id}", s.handleUpdateDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
			r.Post("/{id}/vectorize", s.handleVectorizeDocument)
			r.Post("/{id}/move", s.handleMoveDocument)
		})
		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/context", s.handleContext)
		r.Get("/chunks/{id}/text", s.handleChunkText)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
		r.Get("/status", s.handleStatus)
		r.Get("/import/folders", s.handleFoldersList)
		r.Post("/import/folders", s.handleFoldersAdd)
		r.Delete("/import/folders", s.handleFoldersRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// persistConfig writes the config when a path is set. Callers hold configMu.
func (s *Server) persistConfig() {
	if s.configPath == "" {
		return
	}
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist config", zap.Error(err))
	}
}
