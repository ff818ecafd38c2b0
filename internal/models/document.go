// Package models defines core data structures for projects, documents, chunks, and retrieval.
package models

import "time"

// UnassignedProjectName is the default project documents belong to when none is chosen.
const UnassignedProjectName = "Unassigned"

// Content types of a document's raw text.
const (
	ContentTypeText     = "text"
	ContentTypeMarkdown = "markdown"
	ContentTypeHTML     = "html"
)

// Project groups documents; each project owns one vector index.
type Project struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Document is a user note with its raw text and derived plain-text projection.
type Document struct {
	ID           int64     `json:"id" db:"id"`
	ProjectID    int64     `json:"project_id" db:"project_id"`
	Name         string    `json:"name" db:"name"`
	Text         string    `json:"text" db:"text"`
	PlainText    string    `json:"plain_text" db:"plain_text"`
	ContentType  string    `json:"content_type" db:"content_type"`
	ContentHash  string    `json:"-" db:"content_hash"`
	SourcePath   string    `json:"source_path,omitempty" db:"source_path"`
	IsVectorized bool      `json:"is_vectorized" db:"is_vectorized"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// DocumentChunk is a passage of a document's plain text, embedded independently.
type DocumentChunk struct {
	ID           int64     `json:"id" db:"id"`
	DocumentID   int64     `json:"document_id" db:"document_id"`
	ProjectID    int64     `json:"project_id" db:"project_id"`
	ChunkIndex   int       `json:"chunk_index" db:"chunk_index"`
	Text         string    `json:"chunk_text" db:"chunk_text"`
	IsVectorized bool      `json:"is_vectorized" db:"is_vectorized"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	// DocumentName is filled by hydration queries that join documents.
	DocumentName string `json:"document_name,omitempty" db:"-"`
}

// DocumentInput is the input for creating or updating a document.
type DocumentInput struct {
	ProjectID   int64  `json:"project_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Text        string `json:"text"`
	ContentType string `json:"content_type,omitempty"`
	SourcePath  string `json:"source_path,omitempty"`
}
