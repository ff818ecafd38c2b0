package retrieval

import (
	"fmt"
	"strings"

	"github.com/stritefax2/heelixnotes/internal/keyword"
	"github.com/stritefax2/heelixnotes/internal/models"
)

type rankedChunk struct {
	ChunkID int64
	Score   float64
}

// NormalizeKeywordScores scales keyword scores to [0,1] by the best hit, keeping rank order.
func NormalizeKeywordScores(results []*keyword.KeywordResult) []rankedChunk {
	if len(results) == 0 {
		return nil
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	out := make([]rankedChunk, len(results))
	for i, r := range results {
		out[i] = rankedChunk{ChunkID: r.ChunkID}
		if maxScore > 0 {
			out[i].Score = r.Score / maxScore
		}
	}
	return out
}

// DedupeByDocument keeps the first (highest-ranked) source of each document, preserving order.
func DedupeByDocument(sources []*models.Source) []*models.Source {
	seen := make(map[int64]struct{}, len(sources))
	out := make([]*models.Source, 0, len(sources))
	for _, s := range sources {
		if _, ok := seen[s.DocumentID]; ok {
			continue
		}
		seen[s.DocumentID] = struct{}{}
		out = append(out, s)
	}
	return out
}

// BuildContext renders sources as the prompt block handed to the chat model:
// "Chunk N (from document D):\n<text>\n\n" per source, N counting from 1.
// Sources without text in chunkTexts are skipped.
func BuildContext(sources []*models.Source, chunkTexts map[int64]string) string {
	var b strings.Builder
	n := 0
	for _, s := range sources {
		text, ok := chunkTexts[s.ChunkID]
		if !ok {
			continue
		}
		n++
		fmt.Fprintf(&b, "Chunk %d (from document %d):\n%s\n\n", n, s.DocumentID, text)
	}
	return b.String()
}
