package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/vector"
)

func sampleResponse() *models.RetrieveResponse {
	return &models.RetrieveResponse{
		ProjectID: 3,
		Query:     "tomatoes",
		TopK:      20,
		QueryTime: 12,
		Sources: []*models.Source{
			{ChunkID: 11, DocumentID: 4, DocumentName: "Garden", ChunkIndex: 0, Preview: "Tomatoes need sun...", Score: 0.91},
		},
	}
}

func TestWriteSources_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSources(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteSources(json): %v", err)
	}
	var decoded models.RetrieveResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Sources) != 1 || decoded.Sources[0].ChunkID != 11 {
		t.Errorf("decoded sources: %+v", decoded.Sources)
	}
}

func TestWriteSources_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSources(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 1 sources in 12ms", "1. Garden | Score: 0.9100", "Document: 4  Chunk: 11", "Tomatoes need sun..."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSources_Disabled(t *testing.T) {
	var buf bytes.Buffer
	resp := &models.RetrieveResponse{Disabled: true}
	if err := WriteSources(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "disabled") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	st := &Status{
		Projects:           2,
		Documents:          5,
		Chunks:             9,
		VectorizedChunks:   7,
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingAvailable: false,
		Indexes:            []vector.ProjectStats{{ProjectID: 1, Size: 7, Dirty: true}},
		DiskUsageBytes:     2048,
		QueuedJobs:         3,
		SchemaVersion:      "1.1.0",
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Chunks:             9 (7 vectorized)", "Vectorization:      off", "(no API key)", "2.0 KiB", "project 1: 7 vectors (unsaved)", "Queued jobs:        3", "Schema version:     1.1.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteStatus(&buf, st, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded Status
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Documents != 5 || len(decoded.Indexes) != 1 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteJobResult(t *testing.T) {
	tests := []struct {
		name string
		in   models.JobResult
		want string
	}{
		{"ok", models.JobResult{DocumentID: 1, ProjectID: 2, Vectorized: 3}, "3 chunks vectorized into project 2"},
		{"skipped", models.JobResult{DocumentID: 1, Skipped: true}, "skipped"},
		{"failed", models.JobResult{DocumentID: 1, Err: errors.New("boom")}, "vectorization failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteJobResult(&buf, tt.in, OutputText); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("got %q, want substring %q", buf.String(), tt.want)
			}
		})
	}

	var buf bytes.Buffer
	if err := WriteJobResult(&buf, models.JobResult{JobID: "j", Err: errors.New("boom")}, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"error": "boom"`) {
		t.Errorf("json: %s", buf.String())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.0 KiB",
		1536:        "1.5 KiB",
		5 * 1 << 20: "5.0 MiB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestParseOutputFormat(t *testing.T) {
	if ParseOutputFormat("JSON") != OutputJSON {
		t.Error("JSON should parse as json")
	}
	if ParseOutputFormat("") != OutputText || ParseOutputFormat("yaml") != OutputText {
		t.Error("fallback should be text")
	}
}
