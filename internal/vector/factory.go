package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeHNSW is the approximate graph index used by default.
	IndexTypeHNSW IndexType = "hnsw"
	// IndexTypeMemory uses exact brute-force search. Good for small datasets (<10k vectors).
	IndexTypeMemory IndexType = "memory"
)

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "hnsw" (default), "memory".
func NewVectorIndex(indexType string, opts Options) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeHNSW, "":
		return NewHNSWIndex(opts)
	case IndexTypeMemory:
		return NewMemoryIndex(opts)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: hnsw, memory)", indexType)
	}
}
