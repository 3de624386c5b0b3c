package categorization

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-import/internal/domain/import/normalizer"
)

// historyDocument is the indexed form of one history key.
type historyDocument struct {
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
}

// SearchResult is a history entry found by full-text search.
type SearchResult struct {
	Description string
	CategoryID  uuid.UUID
	Score       float64
}

// SearchIndex is an in-memory Bleve index over history descriptions. It answers
// "which past transactions look like this one", with typo tolerance.
type SearchIndex struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewSearchIndex creates an empty in-memory index.
func NewSearchIndex() (*SearchIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return &SearchIndex{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name
	textFieldMapping.Store = true

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name
	keywordFieldMapping.Store = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("description", textFieldMapping)
	docMapping.AddFieldMappingsAt("category_id", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// IndexHistory adds every key of index in one batch.
func (si *SearchIndex) IndexHistory(index *HistoryIndex) error {
	si.mu.Lock()
	defer si.mu.Unlock()

	batch := si.index.NewBatch()
	n := 0
	var indexErr error
	index.Each(func(key string, id uuid.UUID) bool {
		doc := historyDocument{Description: key, CategoryID: id.String()}
		if err := batch.Index(fmt.Sprintf("history_%d", n), doc); err != nil {
			indexErr = fmt.Errorf("failed to index %q: %w", key, err)
			return false
		}
		n++
		return true
	})
	if indexErr != nil {
		return indexErr
	}

	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// Search finds descriptions matching query, allowing one edit per term.
func (si *SearchIndex) Search(query string, limit int) ([]SearchResult, error) {
	text := normalizer.NormalizeText(query)
	if text == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	si.mu.RLock()
	defer si.mu.RUnlock()

	matchQuery := bleve.NewMatchQuery(text)
	matchQuery.SetField("description")
	matchQuery.SetFuzziness(1)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.Fields = []string{"*"}

	res, err := si.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := SearchResult{Score: hit.Score}
		if d, ok := hit.Fields["description"].(string); ok {
			r.Description = d
		}
		if c, ok := hit.Fields["category_id"].(string); ok {
			if id, err := uuid.Parse(c); err == nil {
				r.CategoryID = id
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// DocumentCount returns the number of indexed descriptions.
func (si *SearchIndex) DocumentCount() (uint64, error) {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.index.DocCount()
}

// Close releases the index.
func (si *SearchIndex) Close() error {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.index.Close()
}
