package watcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stritefax2/heelixnotes/internal/config"
	"github.com/stritefax2/heelixnotes/internal/storage"
)

func TestResolveFolders(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	existing, err := store.CreateProject(ctx, "Research")
	if err != nil {
		t.Fatal(err)
	}
	folders, err := ResolveFolders(ctx, store, []config.ImportFolder{
		{Path: "/notes/research", Project: "Research"},
		{Path: "/notes/journal", Project: "Journal"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 2 {
		t.Fatalf("got %d folders", len(folders))
	}
	if folders[0].ProjectID != existing.ID {
		t.Errorf("existing project not reused: %d", folders[0].ProjectID)
	}
	journal, err := store.GetProjectByName(ctx, "Journal")
	if err != nil {
		t.Fatalf("missing project should be created: %v", err)
	}
	if folders[1].ProjectID != journal.ID || folders[1].Path != "/notes/journal" {
		t.Errorf("got %+v", folders[1])
	}
}
