// Package keyword provides a Bleve-backed keyword index over document chunks,
// scoped per project. It backs the optional keyword fallback of retrieval.
package keyword

import (
	"context"

	"github.com/stritefax2/heelixnotes/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the contribution of matches in the document name.
	// Values <= 1 leave the name unboosted.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits of the query terms.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2, default 1).
	Fuzziness int
}

// ChunkIndex defines keyword indexing of chunks.
type ChunkIndex interface {
	// IndexChunks adds or replaces chunks. DocumentName is indexed as the title.
	IndexChunks(ctx context.Context, chunks []*models.DocumentChunk) error
	// DeleteChunks removes chunks by ID; unknown IDs are ignored.
	DeleteChunks(ctx context.Context, chunkIDs []int64) error
	// DeleteProject removes every chunk indexed under projectID.
	DeleteProject(ctx context.Context, projectID int64) error
	// Search returns at most limit chunks of projectID matching query, best first.
	Search(ctx context.Context, projectID int64, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// DocCount returns the total number of chunks in the index.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ChunkID int64
	Score   float64
}
