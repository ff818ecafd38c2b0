// Package watcher imports files from configured folders into projects and keeps
// them in sync using fsnotify.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Importer receives debounced file events. Implemented by an adapter over *indexer.Indexer.
type Importer interface {
	ImportFile(ctx context.Context, path string, projectID int64) error
	RemoveFile(ctx context.Context, path string) error
}

// Folder maps a directory to the project its files are imported into.
type Folder struct {
	Path      string
	ProjectID int64
}

// Watcher watches import folders and forwards file changes to an Importer.
type Watcher struct {
	importer   Importer
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	folders  []Folder
	watched  map[string][]string // folder -> directories added to fsnotify
	pending  map[string]*time.Timer
	fsw      *fsnotify.Watcher
	ctx      context.Context
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for watcher events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce overrides the per-file debounce delay (default 400ms).
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for folders. extensions filters file names (empty = all).
func NewWatcher(folders []Folder, extensions []string, recursive bool, importer Importer, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		importer:   importer,
		extensions: extensions,
		recursive:  recursive,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		watched:    make(map[string][]string),
		pending:    make(map[string]*time.Timer),
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
	for _, f := range folders {
		w.folders = append(w.folders, Folder{Path: filepath.Clean(f.Path), ProjectID: f.ProjectID})
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Missing folders are created. It runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	for _, f := range w.folders {
		if err := w.watchFolderLocked(f.Path); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			return err
		}
	}
	w.ctx = ctx
	w.started = true
	w.logger.Debug("watcher started", zap.Int("folders", len(w.folders)), zap.Bool("recursive", w.recursive))
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	folder, ok := w.folderFor(path)
	if !ok || hiddenBelow(folder.Path, path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(path)
		if matchExtension(path, w.extensions) {
			if err := w.importer.RemoveFile(w.context(), path); err != nil {
				w.logger.Warn("remove imported file failed", zap.String("path", path), zap.Error(err))
			}
		}
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path, folder)
			return
		}
		if matchExtension(path, w.extensions) {
			w.schedule(path, folder.ProjectID)
		}
	}
}

// handleNewDirectory watches a directory created (or moved) inside a folder and imports its files.
func (w *Watcher) handleNewDirectory(dir string, folder Folder) {
	if !w.recursive {
		return
	}
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		w.mu.Lock()
		w.watched[folder.Path] = append(w.watched[folder.Path], path)
		w.mu.Unlock()
		return nil
	})
	w.syncFolder(Folder{Path: dir, ProjectID: folder.ProjectID})
}

// folderFor returns the innermost folder containing path.
func (w *Watcher) folderFor(path string) (Folder, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var best Folder
	found := false
	for _, f := range w.folders {
		if inDir(f.Path, path) && (!found || len(f.Path) > len(best.Path)) {
			best, found = f, true
		}
	}
	return best, found
}

func (w *Watcher) context() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctx
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// hiddenBelow reports whether any element of path below dir starts with a dot.
func hiddenBelow(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// schedule imports path after the debounce delay; further events restart the delay.
func (w *Watcher) schedule(path string, projectID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		w.importFile(ctx, path, projectID)
	})
}

func (w *Watcher) importFile(ctx context.Context, path string, projectID int64) {
	if err := w.importer.ImportFile(ctx, path, projectID); err != nil {
		w.logger.Warn("import failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Debug("file imported", zap.String("path", path), zap.Int64("project_id", projectID))
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// AddFolder starts watching another folder and optionally imports its existing files.
func (w *Watcher) AddFolder(f Folder, syncExisting bool) error {
	abs, err := filepath.Abs(f.Path)
	if err != nil {
		return err
	}
	f.Path = filepath.Clean(abs)

	w.mu.Lock()
	for _, existing := range w.folders {
		if existing.Path == f.Path {
			w.mu.Unlock()
			return nil
		}
	}
	if w.fsw != nil {
		if err := w.watchFolderLocked(f.Path); err != nil {
			w.mu.Unlock()
			return err
		}
	}
	w.folders = append(w.folders, f)
	w.mu.Unlock()

	w.logger.Debug("watcher folder added", zap.String("path", f.Path), zap.Int64("project_id", f.ProjectID))
	if syncExisting {
		go w.syncFolder(f)
	}
	return nil
}

func (w *Watcher) watchFolderLocked(root string) error {
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	var dirs []string
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				return err
			}
			dirs = append(dirs, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		dirs = append(dirs, root)
	}
	w.watched[root] = dirs
	return nil
}

// RemoveFolder stops watching a folder. Documents already imported are kept.
func (w *Watcher) RemoveFolder(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, f := range w.folders {
		if f.Path != abs {
			continue
		}
		if w.fsw != nil {
			for _, d := range w.watched[abs] {
				_ = w.fsw.Remove(d)
			}
		}
		delete(w.watched, abs)
		w.folders = append(w.folders[:i], w.folders[i+1:]...)
		w.logger.Debug("watcher folder removed", zap.String("path", abs))
		return nil
	}
	return nil
}

// Folders returns a copy of the watched folders.
func (w *Watcher) Folders() []Folder {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Folder(nil), w.folders...)
}

// SyncExistingFiles imports every matching file already present in the folders.
func (w *Watcher) SyncExistingFiles() {
	for _, f := range w.Folders() {
		w.syncFolder(f)
	}
}

func (w *Watcher) syncFolder(f Folder) {
	ctx := w.context()
	w.logger.Debug("watcher syncing folder", zap.String("path", f.Path))
	_ = filepath.WalkDir(f.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != f.Path && (!w.recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExtension(path, w.extensions) {
			w.importFile(ctx, path, f.ProjectID)
		}
		return nil
	})
}

// Stop stops the watcher and cancels pending imports.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
