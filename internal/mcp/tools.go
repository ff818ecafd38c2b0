package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/retrieval"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"go.uber.org/zap"
)

type retrieveArgs struct {
	projectID int64
	query     string
	topK      int
}

func (s *Server) parseRetrieveArgs(ctx context.Context, request mcp.CallToolRequest) (*retrieveArgs, *mcp.CallToolResult) {
	args := request.GetArguments()
	projectID, ok := getInt64(args, "project_id")
	if !ok || projectID <= 0 {
		return nil, mcp.NewToolResultError("project_id parameter is required")
	}
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, mcp.NewToolResultError("query parameter is required and cannot be empty")
	}
	if _, err := s.storage.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			return nil, mcp.NewToolResultError(fmt.Sprintf("project %d not found", projectID))
		}
		return nil, mcp.NewToolResultError(err.Error())
	}
	return &retrieveArgs{
		projectID: projectID,
		query:     strings.TrimSpace(query),
		topK:      s.orchestrator.TopK(getIntDefault(args, "top_k", 0)),
	}, nil
}

func (s *Server) handleRetrieveSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, errResult := s.parseRetrieveArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	sources, err := s.orchestrator.Retrieve(ctx, a.projectID, a.query, a.topK)
	resp := models.RetrieveResponse{ProjectID: a.projectID, Query: a.query, TopK: a.topK, Sources: sources}
	if errors.Is(err, retrieval.ErrRetrievalDisabled) {
		resp.Disabled = true
		resp.Sources = []*models.Source{}
	} else if err != nil {
		s.logger.Error("retrieve_sources failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

func (s *Server) handleBuildContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, errResult := s.parseRetrieveArgs(ctx, request)
	if errResult != nil {
		return errResult, nil
	}
	_, text, err := s.orchestrator.RetrieveContext(ctx, a.projectID, a.query, a.topK)
	if errors.Is(err, retrieval.ErrRetrievalDisabled) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		s.logger.Error("build_context failed", zap.Error(err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleGetChunkText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chunkID, ok := getInt64(request.GetArguments(), "chunk_id")
	if !ok {
		return mcp.NewToolResultError("chunk_id parameter is required"), nil
	}
	text, err := s.storage.GetChunkText(ctx, chunkID)
	if errors.Is(err, storage.ErrChunkNotFound) {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{"chunk_id": chunkID, "text": nil})), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"chunk_id": chunkID, "text": text})), nil
}

func (s *Server) handleVectorizeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docID, ok := getInt64(request.GetArguments(), "document_id")
	if !ok {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	exists, err := s.storage.DocumentExists(ctx, docID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !exists {
		return mcp.NewToolResultError(fmt.Sprintf("document %d not found", docID)), nil
	}
	jobID := s.indexer.VectorizeDocument(docID)
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"job_id":      jobID,
		"document_id": docID,
		"enabled":     s.indexer.Enabled(),
	})), nil
}

func (s *Server) handleListProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.storage.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"projects": projects})), nil
}

func formatJSON(data interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(b)
}

// getInt64 reads an integer argument. JSON numbers arrive as float64.
func getInt64(args map[string]interface{}, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if v, ok := getInt64(args, key); ok {
		return int(v)
	}
	return defaultValue
}
