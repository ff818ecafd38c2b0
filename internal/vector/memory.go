package vector

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MemoryIndex is an exact brute-force index. Suitable for tests and small projects.
type MemoryIndex struct {
	opts    Options
	mu      sync.RWMutex
	vectors map[int64]memEntry
}

type memEntry struct {
	vec []float32
	mag float32
}

// NewMemoryIndex creates an empty brute-force index.
func NewMemoryIndex(opts Options) (*MemoryIndex, error) {
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{opts: opts.withDefaults(), vectors: make(map[int64]memEntry)}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Upsert stores copies of vectors, replacing existing IDs.
func (m *MemoryIndex) Upsert(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != m.opts.Dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), m.opts.Dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		m.vectors[id] = memEntry{vec: vec, mag: magnitude(vec)}
	}
	return nil
}

// Search scores every vector and returns the top k by cosine similarity.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.opts.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), m.opts.Dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.vectors) == 0 {
		return nil, nil
	}
	qm := magnitude(query)
	results := make([]*VectorResult, 0, len(m.vectors))
	for id, e := range m.vectors {
		results = append(results, &VectorResult{ID: id, Score: 1 - float64(cosineDistance(query, qm, e.vec, e.mag))})
	}
	sortResults(results)
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// sortResults orders by score descending, then ID ascending for stable output.
func sortResults(results []*VectorResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// Remove deletes entries by ID.
func (m *MemoryIndex) Remove(ctx context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.vectors, id)
	}
	return nil
}

func (m *MemoryIndex) header() fileHeader {
	return fileHeader{indexType: fileTypeMemory, dim: uint32(m.opts.Dimensions), model: m.opts.Model}
}

// Save persists the index to path in ascending ID order.
func (m *MemoryIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.vectors))
	for id := range m.vectors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return saveIndexFile(path, m.header(), func(w io.Writer) error {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(ids))); err != nil {
			return err
		}
		for _, id := range ids {
			if err := binary.Write(w, binary.LittleEndian, id); err != nil {
				return err
			}
			if err := writeVector(w, m.vectors[id].vec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load replaces the contents with the file at path. A missing file leaves the index unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	loaded := make(map[int64]memEntry)
	found, err := loadIndexFile(path, m.header(), func(r *bytes.Reader) error {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			var id int64
			if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
				return err
			}
			vec, err := readVector(r, m.opts.Dimensions)
			if err != nil {
				return err
			}
			loaded[id] = memEntry{vec: vec, mag: magnitude(vec)}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if found {
		m.mu.Lock()
		m.vectors = loaded
		m.mu.Unlock()
	}
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
