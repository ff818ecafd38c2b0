package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stritefax2/heelixnotes/internal/models"
)

const (
	fieldProject  = "project_id"
	fieldDocument = "document_id"
	fieldTitle    = "title"
	fieldContent  = "content"

	deletePageSize = 1000
)

// BleveIndex implements ChunkIndex using a single Bleve index with a
// project_id keyword field.
type BleveIndex struct {
	index bleve.Index
}

var _ ChunkIndex = (*BleveIndex)(nil)

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reused; remove the directory after changing the mapping.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, chunkMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryBleveIndex creates an in-memory index, used when no path is configured.
func NewMemoryBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(chunkMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func chunkMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so exact words in notes match.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false
	docMapping.AddFieldMappingsAt(fieldContent, text)
	docMapping.AddFieldMappingsAt(fieldTitle, text)

	ids := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt(fieldProject, ids)
	docMapping.AddFieldMappingsAt(fieldDocument, ids)

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

func chunkKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// IndexChunks indexes chunks in one batch, replacing earlier versions with the same ID.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := map[string]interface{}{
			fieldProject:  chunkKey(c.ProjectID),
			fieldDocument: chunkKey(c.DocumentID),
			fieldTitle:    c.DocumentName,
			fieldContent:  c.Text,
		}
		if err := batch.Index(chunkKey(c.ID), doc); err != nil {
			return fmt.Errorf("failed to index chunk %d: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	return nil
}

// DeleteChunks removes chunks from the index.
func (b *BleveIndex) DeleteChunks(ctx context.Context, chunkIDs []int64) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(chunkKey(id))
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// DeleteProject removes all chunks of a project, a page at a time.
func (b *BleveIndex) DeleteProject(ctx context.Context, projectID int64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := bleve.NewSearchRequestOptions(projectQuery(projectID), deletePageSize, 0, false)
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to list project chunks: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete project chunks: %w", err)
		}
	}
}

func projectQuery(projectID int64) blevequery.Query {
	q := bleve.NewTermQuery(chunkKey(projectID))
	q.SetField(fieldProject)
	return q
}

// Search runs a match query over content (and the document name, boosted by
// opts.TitleBoost) restricted to projectID.
func (b *BleveIndex) Search(ctx context.Context, projectID int64, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if limit <= 0 || len(tokenizeQuery(query)) == 0 {
		return nil, nil
	}
	titleBoost := 1.0
	fuzziness := 0
	if opts != nil {
		if opts.TitleBoost > 1 {
			titleBoost = opts.TitleBoost
		}
		if opts.FuzzyEnabled {
			fuzziness = 1
			if opts.Fuzziness > 0 {
				fuzziness = opts.Fuzziness
			}
		}
	}

	content := bleve.NewMatchQuery(query)
	content.SetField(fieldContent)
	title := bleve.NewMatchQuery(query)
	title.SetField(fieldTitle)
	title.SetBoost(titleBoost)
	if fuzziness > 0 {
		content.SetFuzziness(fuzziness)
		title.SetFuzziness(fuzziness)
	}

	q := bleve.NewConjunctionQuery(
		projectQuery(projectID),
		bleve.NewDisjunctionQuery(content, title),
	)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*KeywordResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, &KeywordResult{ChunkID: id, Score: hit.Score})
	}
	return out, nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
