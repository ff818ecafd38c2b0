package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stritefax2/heelixnotes/internal/config"
	"github.com/stritefax2/heelixnotes/internal/embedding"
	"github.com/stritefax2/heelixnotes/internal/indexer"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/retrieval"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"github.com/stritefax2/heelixnotes/internal/watcher"
	"go.uber.org/zap"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := s.storage.GetProjectByName(r.Context(), name); err == nil {
		s.respondError(w, http.StatusConflict, "project already exists")
		return
	}
	p, err := s.storage.CreateProject(r.Context(), name)
	if err != nil {
		s.fail(w, "create project failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.storage.ListProjects(r.Context())
	if err != nil {
		s.fail(w, "list projects failed", err)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	s.logger.Debug("delete project request", zap.Int64("project_id", id))
	if err := s.indexer.DeleteProject(r.Context(), id); err != nil {
		s.fail(w, "delete project failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRebuildProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	n, err := s.indexer.RebuildProject(r.Context(), id)
	if err != nil {
		s.fail(w, "rebuild project failed", err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{"project_id": id, "documents": n})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.storage.GetProject(r.Context(), id); err != nil {
		s.fail(w, "get project failed", err)
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	docs, err := s.storage.ListDocuments(r.Context(), id, offset, limit)
	if err != nil {
		s.fail(w, "list documents failed", err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("create document request", zap.Int64("project_id", input.ProjectID), zap.String("name", input.Name))
	doc, err := s.indexer.SaveDocument(r.Context(), &input)
	if err != nil {
		s.fail(w, "save document failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.fail(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

type documentUpdate struct {
	Name *string `json:"name,omitempty"`
	Text *string `json:"text,omitempty"`
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req documentUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == nil && req.Text == nil {
		s.respondError(w, http.StatusBadRequest, "name or text is required")
		return
	}
	ctx := r.Context()
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			s.respondError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		if err := s.indexer.RenameDocument(ctx, id, *req.Name); err != nil {
			s.fail(w, "rename document failed", err)
			return
		}
	}
	if req.Text != nil {
		doc, err := s.indexer.UpdateDocument(ctx, id, *req.Text)
		if err != nil {
			s.fail(w, "update document failed", err)
			return
		}
		s.respondJSON(w, http.StatusOK, doc)
		return
	}
	doc, err := s.storage.GetDocument(ctx, id)
	if err != nil {
		s.fail(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	s.logger.Debug("delete document request", zap.Int64("document_id", id))
	if err := s.indexer.DeleteDocument(r.Context(), id); err != nil {
		s.fail(w, "delete document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleVectorizeDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	exists, err := s.storage.DocumentExists(r.Context(), id)
	if err != nil {
		s.fail(w, "vectorize document failed", err)
		return
	}
	if !exists {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	jobID := s.indexer.VectorizeDocument(id)
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{"job_id": jobID, "document_id": id})
}

func (s *Server) handleMoveDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProjectID <= 0 {
		s.respondError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	jobID, err := s.indexer.MoveDocument(r.Context(), id, req.ProjectID)
	if err != nil {
		s.fail(w, "move document failed", err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":      jobID,
		"document_id": id,
		"project_id":  req.ProjectID,
	})
}

// decodeRetrieve parses and validates a retrieval request. It writes the
// error response itself and returns false on failure.
func (s *Server) decodeRetrieve(w http.ResponseWriter, r *http.Request) (*models.RetrieveQuery, bool) {
	var q models.RetrieveQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	opts := s.orchestrator.Options()
	if err := q.Validate(opts.DefaultTopK, opts.MaxTopK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if _, err := s.storage.GetProject(r.Context(), q.ProjectID); err != nil {
		s.fail(w, "retrieve failed", err)
		return nil, false
	}
	return &q, true
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeRetrieve(w, r)
	if !ok {
		return
	}
	s.logger.Debug("retrieve request", zap.Int64("project_id", q.ProjectID), zap.Int("top_k", q.TopK))
	start := time.Now()
	sources, err := s.orchestrator.Retrieve(r.Context(), q.ProjectID, q.Query, q.TopK)
	resp := &models.RetrieveResponse{ProjectID: q.ProjectID, Query: q.Query, TopK: q.TopK, Sources: sources}
	switch {
	case errors.Is(err, retrieval.ErrRetrievalDisabled):
		resp.Disabled = true
		resp.Sources = []*models.Source{}
	case err != nil:
		s.fail(w, "retrieve failed", err)
		return
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	q, ok := s.decodeRetrieve(w, r)
	if !ok {
		return
	}
	start := time.Now()
	sources, text, err := s.orchestrator.RetrieveContext(r.Context(), q.ProjectID, q.Query, q.TopK)
	resp := &models.ContextResponse{
		RetrieveResponse: models.RetrieveResponse{ProjectID: q.ProjectID, Query: q.Query, TopK: q.TopK, Sources: sources},
		Context:          text,
	}
	switch {
	case errors.Is(err, retrieval.ErrRetrievalDisabled):
		resp.Disabled = true
		resp.Sources = []*models.Source{}
	case err != nil:
		s.fail(w, "context failed", err)
		return
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChunkText(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	text, err := s.storage.GetChunkText(r.Context(), id)
	if errors.Is(err, storage.ErrChunkNotFound) {
		s.respondJSON(w, http.StatusNotFound, map[string]*string{"text": nil})
		return
	}
	if err != nil {
		s.fail(w, "get chunk text failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]*string{"text": &text})
}

type settingsResponse struct {
	VectorizationEnabled bool   `json:"vectorization_enabled"`
	EmbeddingAvailable   bool   `json:"embedding_available"`
	EmbeddingModel       string `json:"embedding_model,omitempty"`
	DefaultTopK          int    `json:"default_top_k"`
	MaxTopK              int    `json:"max_top_k"`
	KeywordFallback      bool   `json:"keyword_fallback"`
}

type settingsUpdate struct {
	VectorizationEnabled *bool `json:"vectorization_enabled,omitempty"`
	DefaultTopK          *int  `json:"default_top_k,omitempty"`
	KeywordFallback      *bool `json:"keyword_fallback,omitempty"`
}

func (s *Server) settings() settingsResponse {
	opts := s.orchestrator.Options()
	resp := settingsResponse{
		VectorizationEnabled: s.indexer.Enabled(),
		EmbeddingAvailable:   embedding.Available(s.embedder),
		DefaultTopK:          opts.DefaultTopK,
		MaxTopK:              opts.MaxTopK,
		KeywordFallback:      opts.KeywordFallback,
	}
	if s.embedder != nil {
		resp.EmbeddingModel = s.embedder.Model()
	}
	return resp
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	opts := s.orchestrator.Options()
	if req.DefaultTopK != nil {
		if *req.DefaultTopK < 1 || *req.DefaultTopK > opts.MaxTopK {
			s.respondError(w, http.StatusBadRequest, "default_top_k out of range")
			return
		}
	}
	if req.VectorizationEnabled != nil {
		if *req.VectorizationEnabled {
			if err := s.indexer.EnableVectorization(r.Context()); err != nil {
				if errors.Is(err, embedding.ErrEmbeddingUnavailable) {
					s.respondError(w, http.StatusConflict, err.Error())
					return
				}
				s.fail(w, "enable vectorization failed", err)
				return
			}
		} else {
			s.indexer.DisableVectorization()
		}
		s.config.SetVectorizationEnabled(*req.VectorizationEnabled)
	}
	if req.DefaultTopK != nil {
		opts.DefaultTopK = *req.DefaultTopK
		s.config.Retrieval.DefaultTopK = *req.DefaultTopK
	}
	if req.KeywordFallback != nil {
		opts.KeywordFallback = *req.KeywordFallback
		s.config.Retrieval.KeywordFallback = *req.KeywordFallback
	}
	s.orchestrator.SetOptions(opts)
	s.persistConfig()

	s.logger.Info("settings updated", zap.Bool("vectorization_enabled", s.indexer.Enabled()))
	s.respondJSON(w, http.StatusOK, s.settings())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.fail(w, "status: count documents failed", err)
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.fail(w, "status: count chunks failed", err)
		return
	}
	vectorized, err := s.storage.CountVectorizedChunks(ctx)
	if err != nil {
		s.fail(w, "status: count vectorized chunks failed", err)
		return
	}
	projects, err := s.storage.ListProjects(ctx)
	if err != nil {
		s.fail(w, "status: list projects failed", err)
		return
	}
	resp := map[string]interface{}{
		"projects":              len(projects),
		"documents":             docCount,
		"chunks":                chunkCount,
		"vectorized_chunks":     vectorized,
		"vectorization_enabled": s.indexer.Enabled(),
		"queued_jobs":           s.indexer.Queued(),
	}
	if v, err := s.storage.SchemaVersion(ctx); err == nil {
		resp["schema_version"] = v
	}
	if s.vectors != nil {
		resp["indexes"] = s.vectors.Stats()
	}
	if s.keyword != nil {
		if n, err := s.keyword.DocCount(); err == nil {
			resp["keyword_entries"] = n
		}
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"vector_index_type":    cfg.Vector.IndexType,
		"embedding_model":      cfg.Embedding.Model,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"max_chunk_size":       cfg.Chunking.MaxChunkSize,
		"database_path":        cfg.Storage.DatabasePath,
		"vectors_dir":          cfg.Storage.VectorsDir,
	}
	paths := append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.VectorsDir)
	if cfg.Keyword.Enabled {
		paths = append(paths, cfg.Storage.BleveIndexPath)
	}
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type folderResponse struct {
	Path      string `json:"path"`
	ProjectID int64  `json:"project_id"`
}

func (s *Server) handleFoldersList(w http.ResponseWriter, r *http.Request) {
	if s.folders == nil {
		s.respondError(w, http.StatusNotImplemented, "folder import not enabled")
		return
	}
	folders := s.folders.Folders()
	out := make([]folderResponse, len(folders))
	for i, f := range folders {
		out[i] = folderResponse{Path: f.Path, ProjectID: f.ProjectID}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"folders": out})
}

type folderAddRequest struct {
	Path    string `json:"path"`
	Project string `json:"project"`
	Sync    *bool  `json:"sync,omitempty"`
}

func (s *Server) handleFoldersAdd(w http.ResponseWriter, r *http.Request) {
	if s.folders == nil {
		s.respondError(w, http.StatusNotImplemented, "folder import not enabled")
		return
	}
	var req folderAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" || strings.TrimSpace(req.Project) == "" {
		s.respondError(w, http.StatusBadRequest, "path and project are required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.fail(w, "stat folder failed", err)
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	entry := config.ImportFolder{Path: abs, Project: strings.TrimSpace(req.Project)}
	resolved, err := watcher.ResolveFolders(r.Context(), s.storage, []config.ImportFolder{entry})
	if err != nil {
		s.fail(w, "resolve folder project failed", err)
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("add import folder request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.folders.AddFolder(resolved[0], syncExisting); err != nil {
		s.fail(w, "add import folder failed", err)
		return
	}

	s.configMu.Lock()
	kept := s.config.Import.Folders[:0]
	for _, f := range s.config.Import.Folders {
		if f.Path != abs {
			kept = append(kept, f)
		}
	}
	s.config.Import.Folders = append(kept, entry)
	s.persistConfig()
	s.configMu.Unlock()

	s.respondJSON(w, http.StatusCreated, folderResponse{Path: abs, ProjectID: resolved[0].ProjectID})
}

func (s *Server) handleFoldersRemove(w http.ResponseWriter, r *http.Request) {
	if s.folders == nil {
		s.respondError(w, http.StatusNotImplemented, "folder import not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("remove import folder request", zap.String("path", abs))
	if err := s.folders.RemoveFolder(abs); err != nil {
		s.fail(w, "remove import folder failed", err)
		return
	}

	s.configMu.Lock()
	kept := s.config.Import.Folders[:0]
	for _, f := range s.config.Import.Folders {
		if f.Path != abs {
			kept = append(kept, f)
		}
	}
	s.config.Import.Folders = kept
	s.persistConfig()
	s.configMu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// pathID parses the {id} URL parameter, responding 400 when it is not a positive integer.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// fail maps domain errors to status codes and logs the rest.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrDocumentNotFound),
		errors.Is(err, storage.ErrProjectNotFound),
		errors.Is(err, storage.ErrChunkNotFound):
		status = http.StatusNotFound
	case errors.Is(err, indexer.ErrIndexerClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
