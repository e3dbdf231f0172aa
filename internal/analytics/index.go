package analytics

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/preventia/preventia-core/internal/domain"
)

// SearchIndex is the free-text side of articles_search, a bleve index over
// completed Articles' title/summary/keywords. Generalized from the
// teacher's SearchManager (pkg/search/manager.go): same open-or-create
// index mapping approach, here over article documents instead of files.
type SearchIndex struct {
	index bleve.Index
	path  string
}

// OpenOrCreateIndex opens path's bleve index, creating it with the article
// mapping if it doesn't exist yet.
func OpenOrCreateIndex(path string) (*SearchIndex, error) {
	idx, err := bleve.Open(path)
	if err == nil {
		return &SearchIndex{index: idx, path: path}, nil
	}
	if err != bleve.ErrorIndexPathDoesNotExist {
		return nil, fmt.Errorf("analytics: open search index: %w", err)
	}

	idx, err = bleve.New(path, articleIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("analytics: create search index: %w", err)
	}
	return &SearchIndex{index: idx, path: path}, nil
}

func articleIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	articleMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Store = false
	titleField.Index = true
	titleField.Analyzer = standard.Name
	articleMapping.AddFieldMappingsAt("title", titleField)

	summaryField := bleve.NewTextFieldMapping()
	summaryField.Store = false
	summaryField.Index = true
	summaryField.Analyzer = standard.Name
	articleMapping.AddFieldMappingsAt("summary", summaryField)

	keywordsField := bleve.NewTextFieldMapping()
	keywordsField.Store = false
	keywordsField.Index = true
	keywordsField.Analyzer = standard.Name
	articleMapping.AddFieldMappingsAt("keywords", keywordsField)

	sourceField := bleve.NewTextFieldMapping()
	sourceField.Store = true
	sourceField.Index = true
	sourceField.Analyzer = "keyword"
	articleMapping.AddFieldMappingsAt("source_id", sourceField)

	indexMapping.AddDocumentMapping("article", articleMapping)
	indexMapping.DefaultType = "article"
	return indexMapping
}

type articleDoc struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Keywords string `json:"keywords"`
	SourceID string `json:"source_id"`
}

// Index upserts article's free-text fields, called once an Article reaches
// processing_status=completed (non-completed Articles are never
// searchable, matching spec.md §4.8's completed-only rule).
func (si *SearchIndex) Index(article *domain.Article, keywords []string) error {
	doc := articleDoc{
		Title:    article.Title,
		Summary:  article.Summary,
		Keywords: joinKeywords(keywords),
		SourceID: strconv.FormatInt(article.SourceID, 10),
	}
	return si.index.Index(strconv.FormatInt(article.ArticleID, 10), doc)
}

// Remove drops articleID from the index, e.g. after a retention purge.
func (si *SearchIndex) Remove(articleID int64) error {
	return si.index.Delete(strconv.FormatInt(articleID, 10))
}

// Search returns, in relevance order, the article IDs matching queryStr
// across title/summary/keywords, capped at limit.
func (si *SearchIndex) Search(queryStr string, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50
	}
	q := bleve.NewQueryStringQuery(queryStr)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)

	res, err := si.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("analytics: search index query: %w", err)
	}

	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close releases the underlying bleve index.
func (si *SearchIndex) Close() error { return si.index.Close() }

func joinKeywords(keywords []string) string {
	out := ""
	for i, k := range keywords {
		if i > 0 {
			out += " "
		}
		out += k
	}
	return out
}
