// Package cli formats heelix command output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/vector"
	"github.com/stritefax2/heelixnotes/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat returns the format named by s; anything but "json" is text.
func ParseOutputFormat(s string) OutputFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(OutputJSON)) {
		return OutputJSON
	}
	return OutputText
}

// Status summarizes the store and indexes for the status command.
type Status struct {
	Projects             int                   `json:"projects"`
	Documents            int64                 `json:"documents"`
	Chunks               int64                 `json:"chunks"`
	VectorizedChunks     int64                 `json:"vectorized_chunks"`
	VectorizationEnabled bool                  `json:"vectorization_enabled"`
	QueuedJobs           int                   `json:"queued_jobs"`
	SchemaVersion        string                `json:"schema_version,omitempty"`
	EmbeddingAvailable   bool                  `json:"embedding_available"`
	EmbeddingModel       string                `json:"embedding_model"`
	Indexes              []vector.ProjectStats `json:"indexes"`
	KeywordEntries       uint64                `json:"keyword_entries,omitempty"`
	DiskUsageBytes       int64                 `json:"disk_usage_bytes"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSources writes a retrieval response to w in the given format.
func WriteSources(w io.Writer, response *models.RetrieveResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if response.Disabled {
		fmt.Fprintln(w, "Retrieval is disabled (vectorization is turned off).")
		return nil
	}
	fmt.Fprintf(w, "\nFound %d sources in %dms (project %d, top_k %d)\n\n",
		len(response.Sources), response.QueryTime, response.ProjectID, response.TopK)
	for i, s := range response.Sources {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s | Score: %.4f\n", i+1, s.DocumentName, s.Score)
		fmt.Fprintf(w, "Document: %d  Chunk: %d (#%d)\n", s.DocumentID, s.ChunkID, s.ChunkIndex)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(s.Preview, 200))
	}
	return nil
}

// WriteStatus writes a status summary to w in the given format.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Projects:           %d\n", st.Projects)
	fmt.Fprintf(w, "Documents:          %d\n", st.Documents)
	fmt.Fprintf(w, "Chunks:             %d (%d vectorized)\n", st.Chunks, st.VectorizedChunks)
	fmt.Fprintf(w, "Vectorization:      %s\n", onOff(st.VectorizationEnabled))
	if st.QueuedJobs > 0 {
		fmt.Fprintf(w, "Queued jobs:        %d\n", st.QueuedJobs)
	}
	embed := st.EmbeddingModel
	if !st.EmbeddingAvailable {
		embed += " (no API key)"
	}
	fmt.Fprintf(w, "Embedding model:    %s\n", embed)
	if st.KeywordEntries > 0 {
		fmt.Fprintf(w, "Keyword entries:    %d\n", st.KeywordEntries)
	}
	fmt.Fprintf(w, "Disk usage:         %s\n", FormatBytes(st.DiskUsageBytes))
	if st.SchemaVersion != "" {
		fmt.Fprintf(w, "Schema version:     %s\n", st.SchemaVersion)
	}
	if len(st.Indexes) > 0 {
		fmt.Fprintln(w, "Loaded indexes:")
		for _, ix := range st.Indexes {
			dirty := ""
			if ix.Dirty {
				dirty = " (unsaved)"
			}
			fmt.Fprintf(w, "  project %d: %d vectors%s\n", ix.ProjectID, ix.Size, dirty)
		}
	}
	return nil
}

// WriteJobResult writes the outcome of a vectorization job.
func WriteJobResult(w io.Writer, r models.JobResult, format OutputFormat) error {
	if format == OutputJSON {
		out := map[string]interface{}{
			"job_id":      r.JobID,
			"document_id": r.DocumentID,
			"project_id":  r.ProjectID,
			"vectorized":  r.Vectorized,
			"skipped":     r.Skipped,
		}
		if r.Err != nil {
			out["error"] = r.Err.Error()
		}
		return writeJSON(w, out)
	}
	switch {
	case r.Err != nil:
		fmt.Fprintf(w, "Document %d: vectorization failed: %v\n", r.DocumentID, r.Err)
	case r.Skipped:
		fmt.Fprintf(w, "Document %d: skipped\n", r.DocumentID)
	default:
		fmt.Fprintf(w, "Document %d: %d chunks vectorized into project %d\n", r.DocumentID, r.Vectorized, r.ProjectID)
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
