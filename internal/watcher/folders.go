package watcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/stritefax2/heelixnotes/internal/config"
	"github.com/stritefax2/heelixnotes/internal/indexer"
	"github.com/stritefax2/heelixnotes/internal/models"
	"github.com/stritefax2/heelixnotes/internal/storage"
)

// ProjectStore looks up and creates projects by name.
type ProjectStore interface {
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	CreateProject(ctx context.Context, name string) (*models.Project, error)
}

// ResolveFolders maps configured import folders to projects, creating projects
// that do not exist yet.
func ResolveFolders(ctx context.Context, store ProjectStore, folders []config.ImportFolder) ([]Folder, error) {
	out := make([]Folder, 0, len(folders))
	for _, f := range folders {
		p, err := store.GetProjectByName(ctx, f.Project)
		if errors.Is(err, storage.ErrProjectNotFound) {
			p, err = store.CreateProject(ctx, f.Project)
		}
		if err != nil {
			return nil, fmt.Errorf("project %q for %s: %w", f.Project, f.Path, err)
		}
		out = append(out, Folder{Path: f.Path, ProjectID: p.ID})
	}
	return out, nil
}

type indexerImporter struct {
	idx  *indexer.Indexer
	exts []string
}

// FromIndexer adapts an indexer to the Importer interface.
func FromIndexer(idx *indexer.Indexer, extensions []string) Importer {
	return &indexerImporter{idx: idx, exts: extensions}
}

func (i *indexerImporter) ImportFile(ctx context.Context, path string, projectID int64) error {
	_, err := i.idx.ImportFile(ctx, path, projectID, i.exts)
	return err
}

func (i *indexerImporter) RemoveFile(ctx context.Context, path string) error {
	return i.idx.RemoveImportedFile(ctx, path)
}
