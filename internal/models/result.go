package models

// Source is a retrieved chunk presented to the user as a citation.
type Source struct {
	ChunkID      int64   `json:"chunk_id"`
	DocumentID   int64   `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Preview      string  `json:"chunk_preview"`
	Score        float64 `json:"score"`
}

// RetrieveResponse is the response for a retrieval request.
type RetrieveResponse struct {
	ProjectID int64     `json:"project_id"`
	Query     string    `json:"query"`
	TopK      int       `json:"top_k"`
	Sources   []*Source `json:"sources"`
	QueryTime int64     `json:"query_time_ms"`
	// Disabled is set when vectorization is turned off and the caller should
	// fall back to full document text.
	Disabled bool `json:"disabled,omitempty"`
}

// ContextResponse carries sources plus the rendered prompt context block.
type ContextResponse struct {
	RetrieveResponse
	Context string `json:"context"`
}

// JobResult reports the outcome of one background vectorization task.
type JobResult struct {
	JobID      string `json:"job_id"`
	DocumentID int64  `json:"document_id"`
	ProjectID  int64  `json:"project_id"`
	Vectorized int    `json:"vectorized"`
	Skipped    bool   `json:"skipped,omitempty"`
	Err        error  `json:"-"`
}
