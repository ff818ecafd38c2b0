// Package mcp exposes retrieval to MCP clients over stdio.
//
// Tools:
//   - retrieve_sources: rank a project's chunks against a prompt
//   - build_context: the same, rendered as a prompt context block
//   - get_chunk_text: full text of one chunk
//   - vectorize_document: schedule embedding of a document
//   - list_projects: project IDs and names
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stritefax2/heelixnotes/internal/indexer"
	"github.com/stritefax2/heelixnotes/internal/retrieval"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"go.uber.org/zap"
)

// ServerName is the MCP server name.
const ServerName = "heelix"

// Server wraps the MCP server with the retrieval dependencies.
type Server struct {
	mcp          *server.MCPServer
	orchestrator *retrieval.Orchestrator
	indexer      *indexer.Indexer
	storage      storage.Storage
	logger       *zap.Logger
}

// NewServer creates an MCP server and registers its tools.
func NewServer(orchestrator *retrieval.Orchestrator, idx *indexer.Indexer, store storage.Storage, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp:          server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		orchestrator: orchestrator,
		indexer:      idx,
		storage:      store,
		logger:       logger,
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("MCP server listening on stdio")
	errCh := make(chan error, 1)
	go func() { errCh <- server.ServeStdio(s.mcp) }()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(retrieveSourcesTool(), s.handleRetrieveSources)
	s.mcp.AddTool(buildContextTool(), s.handleBuildContext)
	s.mcp.AddTool(getChunkTextTool(), s.handleGetChunkText)
	s.mcp.AddTool(vectorizeDocumentTool(), s.handleVectorizeDocument)
	s.mcp.AddTool(listProjectsTool(), s.handleListProjects)
}
