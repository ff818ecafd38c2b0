package vector

import (
	"bytes"
	"container/heap"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// HNSWIndex is a hierarchical navigable small world graph over cosine distance.
// Removed and replaced entries become tombstones: they still route searches but
// are never returned, and are compacted away on Save.
type HNSWIndex struct {
	opts      Options
	levelMult float64

	mu       sync.RWMutex
	nodes    []*hnswNode
	byID     map[int64]uint32
	entry    int
	maxLevel int
	deleted  int
	rng      *rand.Rand
}

type hnswNode struct {
	id      int64
	vec     []float32
	mag     float32
	friends [][]uint32 // per layer, 0..level
	deleted bool
}

func (n *hnswNode) level() int { return len(n.friends) - 1 }

// NewHNSWIndex creates an empty graph index.
func NewHNSWIndex(opts Options) (*HNSWIndex, error) {
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	opts = opts.withDefaults()
	h := &HNSWIndex{opts: opts, levelMult: 1 / math.Log(float64(opts.M))}
	h.reset()
	return h, nil
}

func (h *HNSWIndex) reset() {
	h.nodes = nil
	h.byID = make(map[int64]uint32)
	h.entry = -1
	h.maxLevel = -1
	h.deleted = 0
	h.rng = rand.New(rand.NewSource(h.opts.Seed))
}

// Type returns the index type identifier.
func (h *HNSWIndex) Type() string {
	return string(IndexTypeHNSW)
}

// Upsert inserts vectors; an existing ID is tombstoned and reinserted.
func (h *HNSWIndex) Upsert(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != h.opts.Dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), h.opts.Dimensions)
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.tombstone(id)
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		h.insert(id, vec)
	}
	return nil
}

// Remove tombstones the given IDs.
func (h *HNSWIndex) Remove(ctx context.Context, ids []int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		h.tombstone(id)
	}
	return nil
}

func (h *HNSWIndex) tombstone(id int64) {
	if idx, ok := h.byID[id]; ok {
		h.nodes[idx].deleted = true
		delete(h.byID, id)
		h.deleted++
	}
}

func (h *HNSWIndex) maxConn(layer int) int {
	if layer == 0 {
		return 2 * h.opts.M
	}
	return h.opts.M
}

func (h *HNSWIndex) randomLevel() int {
	return int(math.Floor(-math.Log(1-h.rng.Float64()) * h.levelMult))
}

func (h *HNSWIndex) insert(id int64, vec []float32) {
	level := h.randomLevel()
	node := &hnswNode{id: id, vec: vec, mag: magnitude(vec), friends: make([][]uint32, level+1)}
	idx := uint32(len(h.nodes))
	h.nodes = append(h.nodes, node)
	h.byID[id] = idx

	if h.entry < 0 {
		h.entry = int(idx)
		h.maxLevel = level
		return
	}

	ep := uint32(h.entry)
	for l := h.maxLevel; l > level; l-- {
		ep = h.searchLayer(vec, node.mag, []uint32{ep}, 1, l)[0].idx
	}
	eps := []uint32{ep}
	for l := min(level, h.maxLevel); l >= 0; l-- {
		cands := h.searchLayer(vec, node.mag, eps, h.opts.EfConstruction, l)
		m := h.opts.M
		if len(cands) < m {
			m = len(cands)
		}
		neighbors := make([]uint32, 0, m)
		for _, c := range cands[:m] {
			neighbors = append(neighbors, c.idx)
		}
		node.friends[l] = neighbors
		for _, n := range neighbors {
			h.link(n, idx, l)
		}
		eps = eps[:0]
		for _, c := range cands {
			eps = append(eps, c.idx)
		}
	}
	if level > h.maxLevel {
		h.entry = int(idx)
		h.maxLevel = level
	}
}

// link adds an edge from -> to on layer and prunes from's list to the closest maxConn.
func (h *HNSWIndex) link(from, to uint32, layer int) {
	n := h.nodes[from]
	n.friends[layer] = append(n.friends[layer], to)
	limit := h.maxConn(layer)
	if len(n.friends[layer]) <= limit {
		return
	}
	cands := make([]candidate, len(n.friends[layer]))
	for i, f := range n.friends[layer] {
		o := h.nodes[f]
		cands[i] = candidate{idx: f, dist: cosineDistance(n.vec, n.mag, o.vec, o.mag)}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].idx < cands[j].idx
	})
	kept := n.friends[layer][:0]
	for _, c := range cands[:limit] {
		kept = append(kept, c.idx)
	}
	n.friends[layer] = kept
}

// searchLayer returns up to ef nearest nodes to q on layer, closest first.
func (h *HNSWIndex) searchLayer(q []float32, qm float32, eps []uint32, ef, layer int) []candidate {
	visited := make(map[uint32]struct{}, ef*4)
	cands := &minHeap{}
	found := &maxHeap{}
	for _, ep := range eps {
		if _, ok := visited[ep]; ok {
			continue
		}
		visited[ep] = struct{}{}
		n := h.nodes[ep]
		c := candidate{idx: ep, dist: cosineDistance(q, qm, n.vec, n.mag)}
		heap.Push(cands, c)
		heap.Push(found, c)
		if found.Len() > ef {
			heap.Pop(found)
		}
	}
	for cands.Len() > 0 {
		c := heap.Pop(cands).(candidate)
		if found.Len() >= ef && c.dist > (*found)[0].dist {
			break
		}
		node := h.nodes[c.idx]
		if layer > node.level() {
			continue
		}
		for _, f := range node.friends[layer] {
			if _, ok := visited[f]; ok {
				continue
			}
			visited[f] = struct{}{}
			o := h.nodes[f]
			d := cosineDistance(q, qm, o.vec, o.mag)
			if found.Len() < ef || d < (*found)[0].dist {
				heap.Push(cands, candidate{idx: f, dist: d})
				heap.Push(found, candidate{idx: f, dist: d})
				if found.Len() > ef {
					heap.Pop(found)
				}
			}
		}
	}
	out := make([]candidate, found.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(found).(candidate)
	}
	return out
}

// Search returns up to k live entries nearest to query.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != h.opts.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), h.opts.Dimensions)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	live := len(h.byID)
	if k <= 0 || live == 0 {
		return nil, nil
	}
	if k > live {
		k = live
	}
	qm := magnitude(query)
	ep := uint32(h.entry)
	for l := h.maxLevel; l > 0; l-- {
		ep = h.searchLayer(query, qm, []uint32{ep}, 1, l)[0].idx
	}

	ef := max(h.opts.EfSearch, k)
	for {
		cands := h.searchLayer(query, qm, []uint32{ep}, ef, 0)
		results := make([]*VectorResult, 0, k)
		for _, c := range cands {
			n := h.nodes[c.idx]
			if n.deleted {
				continue
			}
			results = append(results, &VectorResult{ID: n.id, Score: 1 - float64(c.dist)})
		}
		// Tombstones can crowd live entries out of the candidate list; widen and retry.
		if len(results) >= k || ef >= len(h.nodes) {
			sortResults(results)
			if len(results) > k {
				results = results[:k]
			}
			return results, nil
		}
		ef *= 2
	}
}

// compact rebuilds the graph from live nodes in insertion order.
func (h *HNSWIndex) compact() {
	if h.deleted == 0 {
		return
	}
	old := h.nodes
	h.reset()
	for _, n := range old {
		if !n.deleted {
			h.insert(n.id, n.vec)
		}
	}
}

func (h *HNSWIndex) header() fileHeader {
	return fileHeader{indexType: fileTypeHNSW, dim: uint32(h.opts.Dimensions), model: h.opts.Model}
}

// Save compacts tombstones and writes the graph to path.
func (h *HNSWIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.compact()
	le := binary.LittleEndian
	return saveIndexFile(path, h.header(), func(w io.Writer) error {
		if err := binary.Write(w, le, int32(h.entry)); err != nil {
			return err
		}
		if err := binary.Write(w, le, uint32(len(h.nodes))); err != nil {
			return err
		}
		for _, n := range h.nodes {
			if err := binary.Write(w, le, n.id); err != nil {
				return err
			}
			if err := binary.Write(w, le, uint16(n.level())); err != nil {
				return err
			}
			if err := writeVector(w, n.vec); err != nil {
				return err
			}
			for _, fr := range n.friends {
				if err := binary.Write(w, le, uint32(len(fr))); err != nil {
					return err
				}
				if err := binary.Write(w, le, fr); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Load replaces the graph with the one at path. A missing file leaves the index unchanged.
func (h *HNSWIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	le := binary.LittleEndian
	var (
		entry    int32
		nodes    []*hnswNode
		maxLevel = -1
	)
	found, err := loadIndexFile(path, h.header(), func(r *bytes.Reader) error {
		var count uint32
		if err := binary.Read(r, le, &entry); err != nil {
			return err
		}
		if err := binary.Read(r, le, &count); err != nil {
			return err
		}
		if uint64(count)*uint64(8+2+4*h.opts.Dimensions) > uint64(r.Len()) {
			return io.ErrUnexpectedEOF
		}
		nodes = make([]*hnswNode, count)
		for i := range nodes {
			n := &hnswNode{}
			var level uint16
			if err := binary.Read(r, le, &n.id); err != nil {
				return err
			}
			if err := binary.Read(r, le, &level); err != nil {
				return err
			}
			vec, err := readVector(r, h.opts.Dimensions)
			if err != nil {
				return err
			}
			n.vec, n.mag = vec, magnitude(vec)
			n.friends = make([][]uint32, int(level)+1)
			for l := range n.friends {
				var fc uint32
				if err := binary.Read(r, le, &fc); err != nil {
					return err
				}
				if uint64(fc)*4 > uint64(r.Len()) {
					return io.ErrUnexpectedEOF
				}
				n.friends[l] = make([]uint32, fc)
				if err := binary.Read(r, le, n.friends[l]); err != nil {
					return err
				}
				for _, f := range n.friends[l] {
					if f >= count {
						return fmt.Errorf("neighbour %d out of range", f)
					}
				}
			}
			if int(level) > maxLevel {
				maxLevel = int(level)
			}
			nodes[i] = n
		}
		if (count == 0) != (entry < 0) || int64(entry) >= int64(count) {
			return fmt.Errorf("entry point %d out of range", entry)
		}
		return nil
	})
	if err != nil || !found {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.reset()
	h.nodes = nodes
	h.entry = int(entry)
	h.maxLevel = maxLevel
	for i, n := range nodes {
		h.byID[n.id] = uint32(i)
	}
	// Neighbour lists of friends must exist on every layer they are linked on.
	for _, n := range nodes {
		for l, fr := range n.friends {
			for _, f := range fr {
				if h.nodes[f].level() < l {
					h.reset()
					return fmt.Errorf("%w: neighbour below layer %d", ErrIndexCorrupt, l)
				}
			}
		}
	}
	return nil
}

// Size returns the number of live entries.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

// Close releases the graph.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reset()
	return nil
}

type candidate struct {
	idx  uint32
	dist float32
}

type minHeap []candidate

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].idx < h[j].idx
}
func (h minHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

type maxHeap []candidate

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].idx > h[j].idx
}
func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}
