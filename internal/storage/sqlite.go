package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/pkg/utils"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and migrates the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(DriverName, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// CreateProject inserts a project with a unique name.
func (s *SQLiteStorage) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("project name is required")
	}
	p := &models.Project{Name: name, CreatedAt: time.Now()}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (name, created_at) VALUES (?, ?)`, p.Name, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create project %q: %w", name, err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject returns a project by ID.
func (s *SQLiteStorage) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrProjectNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProjectByName returns the project with the given name.
func (s *SQLiteStorage) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM projects WHERE name = ?`, name,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns all projects ordered by ID.
func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// DeleteProject removes a project; its documents and chunks cascade.
func (s *SQLiteStorage) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrProjectNotFound, id)
	}
	return nil
}

// EnsureUnassignedProject returns the default project, creating it if needed.
func (s *SQLiteStorage) EnsureUnassignedProject(ctx context.Context) (*models.Project, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO projects (name, created_at) VALUES (?, ?)`,
		models.UnassignedProjectName, time.Now()); err != nil {
		return nil, err
	}
	return s.GetProjectByName(ctx, models.UnassignedProjectName)
}

const documentColumns = `id, project_id, name, text, plain_text, content_type, content_hash, source_path, is_vectorized, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.ProjectID, &d.Name, &d.Text, &d.PlainText, &d.ContentType,
		&d.ContentHash, &d.SourcePath, &d.IsVectorized, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument inserts a document and sets its ID and timestamps.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if _, err := s.GetProject(ctx, doc.ProjectID); err != nil {
		return err
	}
	if doc.ContentType == "" {
		doc.ContentType = models.ContentTypeText
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.IsVectorized = false

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (project_id, name, text, plain_text, content_type, content_hash, source_path, is_vectorized, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		doc.ProjectID, doc.Name, doc.Text, doc.PlainText, doc.ContentType, doc.ContentHash, doc.SourcePath, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	doc.ID, err = res.LastInsertId()
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
	}
	return doc, err
}

// GetDocumentBySourcePath returns the imported document for a file key.
func (s *SQLiteStorage) GetDocumentBySourcePath(ctx context.Context, sourcePath string) (*models.Document, error) {
	if sourcePath == "" {
		return nil, ErrDocumentNotFound
	}
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE source_path = ? ORDER BY id LIMIT 1`, sourcePath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, sourcePath)
	}
	return doc, err
}

// UpdateDocumentText stores new text and marks the document unvectorized.
func (s *SQLiteStorage) UpdateDocumentText(ctx context.Context, id int64, text, plainText, contentHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET text = ?, plain_text = ?, content_hash = ?, is_vectorized = 0, updated_at = ?
		 WHERE id = ?`,
		text, plainText, contentHash, time.Now(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
	}
	return nil
}

// RenameDocument sets a document's display name.
func (s *SQLiteStorage) RenameDocument(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET name = ?, updated_at = ? WHERE id = ?`, name, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
	}
	return nil
}

// DeleteDocument removes a document; its chunks cascade. Deleting a missing document is not an error.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// DocumentExists reports whether the document row is present.
func (s *SQLiteStorage) DocumentExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ListDocuments returns documents of a project (all projects when projectID is 0),
// newest first. A limit of 0 returns every row after offset.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, projectID int64, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE (? = 0 OR project_id = ?)
		 ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`,
		projectID, projectID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetDocumentVectorized sets the document-level vectorized flag.
func (s *SQLiteStorage) SetDocumentVectorized(ctx context.Context, id int64, vectorized bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET is_vectorized = ? WHERE id = ?`, vectorized, id)
	return err
}

// UnvectorizedDocumentIDs returns documents that still have chunks without embeddings.
func (s *SQLiteStorage) UnvectorizedDocumentIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT DISTINCT document_id FROM document_chunks WHERE is_vectorized = 0 ORDER BY document_id`)
}

// ReplaceChunks swaps a document's chunks for texts in one transaction and returns
// the new chunk IDs in order. Readers see either the old or the new set.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, documentID, projectID int64, texts []string) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, documentID); err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_chunks (document_id, project_id, chunk_index, chunk_text, is_vectorized, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	now := time.Now()
	ids := make([]int64, 0, len(texts))
	for i, text := range texts {
		res, err := stmt.ExecContext(ctx, documentID, projectID, i, text, now)
		if err != nil {
			return nil, fmt.Errorf("insert chunk %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET is_vectorized = 0 WHERE id = ?`, documentID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkVectorized flags exactly the given chunks as embedded.
func (s *SQLiteStorage) MarkVectorized(ctx context.Context, chunkIDs []int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE document_chunks SET is_vectorized = 1 WHERE id IN (`+placeholders(len(chunkIDs))+`)`,
		int64Args(chunkIDs)...)
	return err
}

// GetChunkText returns the text of a chunk, ErrChunkNotFound for stale IDs.
func (s *SQLiteStorage) GetChunkText(ctx context.Context, chunkID int64) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT chunk_text FROM document_chunks WHERE id = ?`, chunkID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %d", ErrChunkNotFound, chunkID)
	}
	return text, err
}

const chunkColumns = `c.id, c.document_id, c.project_id, c.chunk_index, c.chunk_text, c.is_vectorized, c.created_at, d.name`

func scanChunks(rows *sql.Rows) ([]*models.DocumentChunk, error) {
	defer rows.Close()
	var chunks []*models.DocumentChunk
	for rows.Next() {
		var c models.DocumentChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ProjectID, &c.ChunkIndex, &c.Text,
			&c.IsVectorized, &c.CreatedAt, &c.DocumentName); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// GetChunks hydrates chunk IDs with their text and document name in one query.
// The result follows the order of chunkIDs; missing IDs are skipped.
func (s *SQLiteStorage) GetChunks(ctx context.Context, chunkIDs []int64) ([]*models.DocumentChunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM document_chunks c JOIN documents d ON d.id = c.document_id
		 WHERE c.id IN (`+placeholders(len(chunkIDs))+`)`,
		int64Args(chunkIDs)...)
	if err != nil {
		return nil, err
	}
	found, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.DocumentChunk, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	out := make([]*models.DocumentChunk, 0, len(found))
	for _, id := range chunkIDs {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetChunksByDocumentID returns all chunks for a document ordered by chunk_index.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, documentID int64) ([]*models.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM document_chunks c JOIN documents d ON d.id = c.document_id
		 WHERE c.document_id = ? ORDER BY c.chunk_index`, documentID)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// GetUnvectorizedChunks returns a document's chunks that have no embedding yet.
func (s *SQLiteStorage) GetUnvectorizedChunks(ctx context.Context, documentID int64) ([]*models.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM document_chunks c JOIN documents d ON d.id = c.document_id
		 WHERE c.document_id = ? AND c.is_vectorized = 0 ORDER BY c.chunk_index`, documentID)
	if err != nil {
		return nil, err
	}
	return scanChunks(rows)
}

// ChunkIDsForDocument returns the current chunk IDs of a document.
func (s *SQLiteStorage) ChunkIDsForDocument(ctx context.Context, documentID int64) ([]int64, error) {
	return s.queryIDs(ctx,
		`SELECT id FROM document_chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
}

// ChunkIDsForProject returns every chunk ID in a project.
func (s *SQLiteStorage) ChunkIDsForProject(ctx context.Context, projectID int64) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT id FROM document_chunks WHERE project_id = ? ORDER BY id`, projectID)
}

// DeleteChunksForDocument removes every chunk of a document.
func (s *SQLiteStorage) DeleteChunksForDocument(ctx context.Context, documentID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, documentID)
	return err
}

// DeleteChunksForProject removes every chunk in a project.
func (s *SQLiteStorage) DeleteChunksForProject(ctx context.Context, projectID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE project_id = ?`, projectID)
	return err
}

// ReassignProject moves a document and its chunks to newProjectID and clears
// their vectorized flags. It returns the previous project ID.
func (s *SQLiteStorage) ReassignProject(ctx context.Context, documentID, newProjectID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var oldProjectID int64
	err = tx.QueryRowContext(ctx, `SELECT project_id FROM documents WHERE id = ?`, documentID).Scan(&oldProjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return 0, err
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, newProjectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", ErrProjectNotFound, newProjectID)
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET project_id = ?, is_vectorized = 0, updated_at = ? WHERE id = ?`,
		newProjectID, time.Now(), documentID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE document_chunks SET project_id = ?, is_vectorized = 0 WHERE document_id = ?`,
		newProjectID, documentID); err != nil {
		return 0, err
	}
	return oldProjectID, tx.Commit()
}

// ResetVectorizedForProject clears the vectorized flags of every chunk and document in a project.
func (s *SQLiteStorage) ResetVectorizedForProject(ctx context.Context, projectID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx,
		`UPDATE document_chunks SET is_vectorized = 0 WHERE project_id = ?`, projectID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET is_vectorized = 0 WHERE project_id = ?`, projectID); err != nil {
		return err
	}
	return tx.Commit()
}

// ChunkSources returns source rows with previews for chunkIDs, in the given order.
func (s *SQLiteStorage) ChunkSources(ctx context.Context, chunkIDs []int64, previewLen int) ([]*models.Source, error) {
	chunks, err := s.GetChunks(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Source, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, &models.Source{
			ChunkID:      c.ID,
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			ChunkIndex:   c.ChunkIndex,
			Preview:      utils.Preview(c.Text, previewLen),
		})
	}
	return out, nil
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&count)
	return count, err
}

// CountVectorizedChunks returns the number of chunks that have an embedding.
func (s *SQLiteStorage) CountVectorizedChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks WHERE is_vectorized = 1`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
