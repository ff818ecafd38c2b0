package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stritefax2/heelixnotes/internal/fileid"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/storage"
	"go.uber.org/zap"
)

// ImportFile creates or updates the document backing the file at path in projectID.
// The document is keyed by the file's absolute path, so re-importing an unchanged
// file is a no-op. If allowedExts is non-empty the extension must be listed.
func (idx *Indexer) ImportFile(ctx context.Context, path string, projectID int64, allowedExts []string) (*models.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("extension %q not in allowed list", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	ex, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}

	key := fileid.SourceKey(absPath)
	existing, err := idx.storage.GetDocumentBySourcePath(ctx, key)
	switch {
	case err == nil:
		idx.logger.Debug("re-importing file", zap.String("path", absPath), zap.Int64("document_id", existing.ID))
		return idx.UpdateDocument(ctx, existing.ID, ex.Text)
	case errors.Is(err, storage.ErrDocumentNotFound):
		idx.logger.Debug("importing file", zap.String("path", absPath))
		return idx.SaveDocument(ctx, &models.DocumentInput{
			ProjectID:   projectID,
			Name:        filepath.Base(absPath),
			Text:        ex.Text,
			ContentType: ex.ContentType,
			SourcePath:  key,
		})
	default:
		return nil, err
	}
}

// RemoveImportedFile deletes the document imported from path, if any.
func (idx *Indexer) RemoveImportedFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	doc, err := idx.storage.GetDocumentBySourcePath(ctx, fileid.SourceKey(absPath))
	if errors.Is(err, storage.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return idx.DeleteDocument(ctx, doc.ID)
}

// IndexDirectory imports every regular file under dir whose extension is in
// allowedExts (all files when empty) into projectID. Subdirectories are walked
// only when recursive is set. Returns the number of files imported; a file
// that fails to import is logged and skipped.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, projectID int64, allowedExts []string, recursive bool) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are imported.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, importErr := idx.ImportFile(ctx, path, projectID, allowedExts); importErr != nil {
			idx.logger.Warn("import failed", zap.String("path", path), zap.Error(importErr))
			return nil
		}
		n++
		return nil
	})
	return n, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
