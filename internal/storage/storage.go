// Package storage persists projects, documents and their chunks.
package storage

import (
	"context"
	"errors"

	"github.com/stritefax2/heelixnotes/internal/models"
)

var (
	// ErrChunkNotFound is returned for chunk IDs that no longer exist.
	ErrChunkNotFound = errors.New("chunk not found")
	// ErrDocumentNotFound is returned for unknown document IDs.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrProjectNotFound is returned for unknown project IDs.
	ErrProjectNotFound = errors.New("project not found")
)

// Storage defines project, document and chunk persistence. It never calls
// the embedding service or a vector index.
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, name string) (*models.Project, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	DeleteProject(ctx context.Context, id int64) error
	EnsureUnassignedProject(ctx context.Context) (*models.Project, error)

	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	GetDocumentBySourcePath(ctx context.Context, sourcePath string) (*models.Document, error)
	UpdateDocumentText(ctx context.Context, id int64, text, plainText, contentHash string) error
	RenameDocument(ctx context.Context, id int64, name string) error
	DeleteDocument(ctx context.Context, id int64) error
	DocumentExists(ctx context.Context, id int64) (bool, error)
	ListDocuments(ctx context.Context, projectID int64, offset, limit int) ([]*models.Document, error)
	SetDocumentVectorized(ctx context.Context, id int64, vectorized bool) error
	UnvectorizedDocumentIDs(ctx context.Context) ([]int64, error)

	// Chunk operations
	ReplaceChunks(ctx context.Context, documentID, projectID int64, texts []string) ([]int64, error)
	MarkVectorized(ctx context.Context, chunkIDs []int64) error
	GetChunkText(ctx context.Context, chunkID int64) (string, error)
	GetChunks(ctx context.Context, chunkIDs []int64) ([]*models.DocumentChunk, error)
	GetChunksByDocumentID(ctx context.Context, documentID int64) ([]*models.DocumentChunk, error)
	GetUnvectorizedChunks(ctx context.Context, documentID int64) ([]*models.DocumentChunk, error)
	ChunkIDsForDocument(ctx context.Context, documentID int64) ([]int64, error)
	ChunkIDsForProject(ctx context.Context, projectID int64) ([]int64, error)
	DeleteChunksForDocument(ctx context.Context, documentID int64) error
	DeleteChunksForProject(ctx context.Context, projectID int64) error
	ReassignProject(ctx context.Context, documentID, newProjectID int64) (int64, error)
	ResetVectorizedForProject(ctx context.Context, projectID int64) error
	ChunkSources(ctx context.Context, chunkIDs []int64, previewLen int) ([]*models.Source, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	CountVectorizedChunks(ctx context.Context) (int64, error)
	SchemaVersion(ctx context.Context) (string, error)

	Close() error
}
