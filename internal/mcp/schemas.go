package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func retrievalProperties() map[string]interface{} {
	return map[string]interface{}{
		"project_id": map[string]interface{}{
			"type":        "integer",
			"description": "Project whose documents are searched",
		},
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Prompt or question to find sources for",
		},
		"top_k": map[string]interface{}{
			"type":        "integer",
			"description": "Maximum number of sources (defaults to the configured top-k, capped at the maximum)",
			"minimum":     1,
		},
	}
}

func retrieveSourcesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_sources",
		Description: "Find the chunks of a project's notes most relevant to a prompt, one per document, best first",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: retrievalProperties(),
			Required:   []string{"project_id", "query"},
		},
	}
}

func buildContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "build_context",
		Description: "Retrieve sources for a prompt and render their full text as a numbered context block",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: retrievalProperties(),
			Required:   []string{"project_id", "query"},
		},
	}
}

func getChunkTextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_chunk_text",
		Description: "Return the full text of a chunk; text is null when the chunk no longer exists",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"chunk_id": map[string]interface{}{
					"type":        "integer",
					"description": "Chunk ID from a retrieved source",
				},
			},
			Required: []string{"chunk_id"},
		},
	}
}

func vectorizeDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "vectorize_document",
		Description: "Schedule embedding of a document's pending chunks and return the job ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"document_id": map[string]interface{}{
					"type":        "integer",
					"description": "Document to vectorize",
				},
			},
			Required: []string{"document_id"},
		},
	}
}

func listProjectsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_projects",
		Description: "List projects with their IDs",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
