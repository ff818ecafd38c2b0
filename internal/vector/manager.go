package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrManagerClosed is returned by operations on a closed Manager.
var ErrManagerClosed = errors.New("vector index manager closed")

const indexFileName = "index.hnsw"

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Dir           string
	IndexType     IndexType
	Index         Options
	FlushInterval time.Duration
	// IdleAfter evicts a project index unused for this long. Zero keeps
	// indexes loaded until Close.
	IdleAfter time.Duration
}

// ManagerOption configures optional Manager behaviour.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for load, flush and rebuild events.
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithRebuildNeeded registers fn to be called (in its own goroutine) when a project's
// index file is corrupt or was built by another model and has been discarded.
func WithRebuildNeeded(fn func(projectID int64, cause error)) ManagerOption {
	return func(m *Manager) { m.onRebuild = fn }
}

// Manager owns one lazily loaded index per project. Each project index has a
// single writer and concurrent readers; persistence is debounced.
type Manager struct {
	opts      ManagerOptions
	logger    *zap.Logger
	onRebuild func(projectID int64, cause error)

	mu       sync.Mutex
	projects map[int64]*projectIndex
	closed   bool

	stop     chan struct{}
	stopOnce sync.Once
	janitor  sync.WaitGroup
}

type projectIndex struct {
	ready    chan struct{}
	err      error
	lastUsed atomic.Int64

	mu      sync.RWMutex
	idx     VectorIndex
	dirty   bool
	dropped bool
	timer   *time.Timer
}

// ProjectStats describes a loaded project index.
type ProjectStats struct {
	ProjectID int64 `json:"project_id"`
	Size      int   `json:"size"`
	Dirty     bool  `json:"dirty"`
}

// NewManager creates a manager storing indexes under opts.Dir/project_<id>/.
func NewManager(opts ManagerOptions, options ...ManagerOption) (*Manager, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("vectors directory is required")
	}
	if opts.Index.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	m := &Manager{
		opts:     opts,
		logger:   zap.NewNop(),
		projects: make(map[int64]*projectIndex),
	}
	for _, o := range options {
		o(m)
	}
	m.stop = make(chan struct{})
	if opts.IdleAfter > 0 {
		m.janitor.Add(1)
		go m.evictIdle(opts.IdleAfter)
	}
	return m, nil
}

// evictIdle periodically evicts indexes that have not been used for idle.
func (m *Manager) evictIdle(idle time.Duration) {
	defer m.janitor.Done()
	interval := idle / 2
	if interval <= 0 {
		interval = idle
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			for id, pi := range m.loaded() {
				select {
				case <-pi.ready:
				default:
					continue
				}
				if pi.err != nil || now.Sub(time.Unix(0, pi.lastUsed.Load())) < idle {
					continue
				}
				if err := m.Evict(id); err != nil {
					m.logger.Warn("evicting idle vector index failed", zap.Int64("project_id", id), zap.Error(err))
					continue
				}
				m.logger.Debug("evicted idle vector index", zap.Int64("project_id", id))
			}
		}
	}
}

// IndexPath returns the index file of a project.
func (m *Manager) IndexPath(projectID int64) string {
	return filepath.Join(m.projectDir(projectID), indexFileName)
}

func (m *Manager) projectDir(projectID int64) string {
	return filepath.Join(m.opts.Dir, fmt.Sprintf("project_%d", projectID))
}

// acquire returns the loaded index of a project, loading it on first use.
func (m *Manager) acquire(projectID int64) (*projectIndex, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if pi, ok := m.projects[projectID]; ok {
		m.mu.Unlock()
		<-pi.ready
		if pi.err != nil {
			return nil, pi.err
		}
		pi.lastUsed.Store(time.Now().UnixNano())
		return pi, nil
	}
	pi := &projectIndex{ready: make(chan struct{})}
	pi.lastUsed.Store(time.Now().UnixNano())
	m.projects[projectID] = pi
	m.mu.Unlock()

	idx, cause, err := m.load(projectID)
	pi.idx, pi.err = idx, err
	close(pi.ready)
	if err != nil {
		m.mu.Lock()
		if m.projects[projectID] == pi {
			delete(m.projects, projectID)
		}
		m.mu.Unlock()
		return nil, err
	}
	if cause != nil && m.onRebuild != nil {
		go m.onRebuild(projectID, cause)
	}
	return pi, nil
}

// acquireExisting is acquire for read paths. A project with no loaded index
// and no index file yields nil and is not cached.
func (m *Manager) acquireExisting(projectID int64) (*projectIndex, error) {
	m.mu.Lock()
	_, loaded := m.projects[projectID]
	closed := m.closed
	m.mu.Unlock()
	if !loaded && !closed {
		if _, err := os.Stat(m.IndexPath(projectID)); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	}
	return m.acquire(projectID)
}

// load reads a project index from disk. A corrupt or mismatched file yields an
// empty index plus the cause so the caller can schedule a rebuild.
func (m *Manager) load(projectID int64) (idx VectorIndex, rebuildCause error, err error) {
	idx, err = NewVectorIndex(string(m.opts.IndexType), m.opts.Index)
	if err != nil {
		return nil, nil, err
	}
	path := m.IndexPath(projectID)
	err = idx.Load(path)
	switch {
	case err == nil:
		m.logger.Debug("vector index loaded", zap.Int64("project_id", projectID), zap.Int("size", idx.Size()))
		return idx, nil, nil
	case errors.Is(err, ErrIndexCorrupt), errors.Is(err, ErrIndexVersionMismatch):
		m.logger.Warn("discarding vector index, rebuild needed",
			zap.Int64("project_id", projectID), zap.String("path", path), zap.Error(err))
		_ = idx.Close()
		fresh, nerr := NewVectorIndex(string(m.opts.IndexType), m.opts.Index)
		if nerr != nil {
			return nil, nil, nerr
		}
		return fresh, err, nil
	default:
		_ = idx.Close()
		return nil, nil, fmt.Errorf("load index for project %d: %w", projectID, err)
	}
}

// write runs fn under the project's write lock and schedules a flush.
func (m *Manager) write(projectID int64, fn func(VectorIndex) error) error {
	for {
		pi, err := m.acquire(projectID)
		if err != nil {
			return err
		}
		pi.mu.Lock()
		if pi.dropped {
			pi.mu.Unlock()
			continue
		}
		err = fn(pi.idx)
		m.markDirty(projectID, pi)
		pi.mu.Unlock()
		return err
	}
}

// markDirty must be called with pi.mu held.
func (m *Manager) markDirty(projectID int64, pi *projectIndex) {
	pi.dirty = true
	if pi.timer == nil {
		pi.timer = time.AfterFunc(m.opts.FlushInterval, func() {
			if err := m.flushProject(projectID, pi); err != nil {
				m.logger.Error("vector index flush failed", zap.Int64("project_id", projectID), zap.Error(err))
			}
		})
	}
}

// Upsert inserts or replaces chunk vectors in a project's index.
func (m *Manager) Upsert(ctx context.Context, projectID int64, ids []int64, vectors [][]float32) error {
	return m.write(projectID, func(idx VectorIndex) error {
		return idx.Upsert(ctx, ids, vectors)
	})
}

// Remove deletes chunk IDs from a project's index. Unknown IDs are ignored.
func (m *Manager) Remove(ctx context.Context, projectID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return m.write(projectID, func(idx VectorIndex) error {
		return idx.Remove(ctx, ids)
	})
}

// Search queries a project's index. A project without an index yields no results.
func (m *Manager) Search(ctx context.Context, projectID int64, query []float32, k int) ([]*VectorResult, error) {
	pi, err := m.acquireExisting(projectID)
	if err != nil || pi == nil {
		return nil, err
	}
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	if pi.dropped {
		return nil, nil
	}
	return pi.idx.Search(ctx, query, k)
}

// Size returns the number of entries in a project's index.
func (m *Manager) Size(projectID int64) (int, error) {
	pi, err := m.acquireExisting(projectID)
	if err != nil || pi == nil {
		return 0, err
	}
	pi.mu.RLock()
	defer pi.mu.RUnlock()
	if pi.dropped {
		return 0, nil
	}
	return pi.idx.Size(), nil
}

func (m *Manager) flushProject(projectID int64, pi *projectIndex) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	if pi.timer != nil {
		pi.timer.Stop()
		pi.timer = nil
	}
	if !pi.dirty || pi.dropped {
		return nil
	}
	if err := pi.idx.Save(m.IndexPath(projectID)); err != nil {
		return err
	}
	pi.dirty = false
	m.logger.Debug("vector index flushed", zap.Int64("project_id", projectID), zap.Int("size", pi.idx.Size()))
	return nil
}

func (m *Manager) loaded() map[int64]*projectIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*projectIndex, len(m.projects))
	for id, pi := range m.projects {
		out[id] = pi
	}
	return out
}

// Flush writes every dirty index to disk now.
func (m *Manager) Flush() error {
	var errs []error
	for id, pi := range m.loaded() {
		<-pi.ready
		if pi.err != nil {
			continue
		}
		if err := m.flushProject(id, pi); err != nil {
			errs = append(errs, fmt.Errorf("project %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Evict flushes a project's index and drops it from memory.
func (m *Manager) Evict(projectID int64) error {
	m.mu.Lock()
	pi, ok := m.projects[projectID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	<-pi.ready
	return m.detach(projectID, pi, true)
}

// detach marks pi dropped, optionally saving it first, and removes it from the
// map while still holding its lock so a concurrent reload sees the saved file.
func (m *Manager) detach(projectID int64, pi *projectIndex, save bool) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	if pi.dropped {
		return nil
	}
	if pi.timer != nil {
		pi.timer.Stop()
		pi.timer = nil
	}
	var err error
	if save && pi.err == nil && pi.dirty {
		err = pi.idx.Save(m.IndexPath(projectID))
	}
	pi.dropped = true

	m.mu.Lock()
	if m.projects[projectID] == pi {
		delete(m.projects, projectID)
	}
	m.mu.Unlock()

	if pi.idx != nil {
		_ = pi.idx.Close()
	}
	return err
}

// Drop discards a project's index in memory and on disk. The next use starts empty.
// Until the file is removed a dropped placeholder occupies the project's slot,
// so concurrent readers wait instead of reloading the old file.
func (m *Manager) Drop(projectID int64) error {
	placeholder := &projectIndex{ready: make(chan struct{}), dropped: true}
	m.mu.Lock()
	old, ok := m.projects[projectID]
	if !m.closed {
		m.projects[projectID] = placeholder
	}
	m.mu.Unlock()

	if ok {
		<-old.ready
		_ = m.detach(projectID, old, false)
	}
	err := os.Remove(m.IndexPath(projectID))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}

	m.mu.Lock()
	if m.projects[projectID] == placeholder {
		delete(m.projects, projectID)
	}
	m.mu.Unlock()
	close(placeholder.ready)

	if err != nil {
		return fmt.Errorf("remove index file: %w", err)
	}
	return nil
}

// DeleteProject drops a project's index and removes its directory.
func (m *Manager) DeleteProject(projectID int64) error {
	if err := m.Drop(projectID); err != nil {
		return err
	}
	return os.RemoveAll(m.projectDir(projectID))
}

// Stats returns the sizes of loaded project indexes ordered by project ID.
func (m *Manager) Stats() []ProjectStats {
	var out []ProjectStats
	for id, pi := range m.loaded() {
		<-pi.ready
		if pi.err != nil {
			continue
		}
		pi.mu.RLock()
		if !pi.dropped {
			out = append(out, ProjectStats{ProjectID: id, Size: pi.idx.Size(), Dirty: pi.dirty})
		}
		pi.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// Close flushes and releases every index. Further calls return ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stopOnce.Do(func() { close(m.stop) })
	m.janitor.Wait()
	var errs []error
	for id, pi := range m.loaded() {
		<-pi.ready
		if err := m.detach(id, pi, true); err != nil {
			errs = append(errs, fmt.Errorf("project %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
