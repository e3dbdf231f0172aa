package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/preventia/preventia-core/internal/domain"
)

// SearchFilters is articles_search's filter set (spec.md §4.8): sentiment,
// topic, country, language, date range, free-text and source.
type SearchFilters struct {
	Sentiment *domain.SentimentLabel
	Topic     *domain.Topic
	Country   string
	Language  string
	DateFrom  *time.Time
	DateTo    *time.Time
	SourceID  *int64
	Query     string
}

// Pagination is a 1-indexed page request.
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) normalized() (limit, offset int) {
	page, size := p.Page, p.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return size, (page - 1) * size
}

// SearchResult is articles_search's paginated return shape.
type SearchResult struct {
	Articles []domain.Article
	Total    int
	Page     int
	PageSize int
}

// ArticlesSearch implements spec.md §4.8's articles_search. When filters.Query
// is set and a bleve index was supplied at construction, candidate IDs come
// from the free-text index first and the remaining filters are applied as a
// SQL WHERE over that ID set; otherwise it's a plain filtered SQL scan with
// an ILIKE fallback for free text.
func (s *Service) ArticlesSearch(ctx context.Context, filters SearchFilters, page Pagination) (*SearchResult, error) {
	limit, offset := page.normalized()

	var candidateIDs []int64
	if filters.Query != "" && s.index != nil {
		ids, err := s.index.Search(filters.Query, 1000)
		if err != nil {
			return nil, err
		}
		candidateIDs = ids
		if len(candidateIDs) == 0 {
			return &SearchResult{Page: page.Page, PageSize: limit}, nil
		}
	}

	where := []string{"a." + completedOnly}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Sentiment != nil {
		where = append(where, "a.sentiment_label = "+arg(string(*filters.Sentiment)))
	}
	if filters.Topic != nil {
		where = append(where, "a.topic_category = "+arg(string(*filters.Topic)))
	}
	if filters.Country != "" {
		where = append(where, "s.country = "+arg(filters.Country))
	}
	if filters.Language != "" {
		where = append(where, "a.language = "+arg(filters.Language))
	}
	if filters.SourceID != nil {
		where = append(where, "a.source_id = "+arg(*filters.SourceID))
	}
	if filters.DateFrom != nil {
		where = append(where, "a.published_at >= "+arg(*filters.DateFrom))
	}
	if filters.DateTo != nil {
		where = append(where, "a.published_at <= "+arg(*filters.DateTo))
	}
	if candidateIDs != nil {
		where = append(where, "a.article_id = ANY("+arg(candidateIDs)+")")
	} else if filters.Query != "" {
		where = append(where, "(a.title ILIKE "+arg("%"+filters.Query+"%")+" OR a.summary ILIKE "+arg("%"+filters.Query+"%")+")")
	}

	whereClause := strings.Join(where, " AND ")

	countRow := s.db.QueryRow(ctx, `
		SELECT count(*) FROM articles a JOIN sources s ON s.source_id = a.source_id
		WHERE `+whereClause, args...)
	var total int
	if err := countRow.Scan(&total); err != nil {
		return nil, err
	}

	limitArg := arg(limit)
	offsetArg := arg(offset)
	rows, err := s.db.Query(ctx, `
		SELECT a.article_id, a.url, a.content_hash, a.source_id, a.title, a.summary,
		       a.content, a.word_count, a.language, a.published_at, a.scraped_at, a.author,
		       a.robots_txt_compliant, a.copyright_status, a.fair_use_basis,
		       a.scraping_permission, a.legal_review_status, a.data_retention_expires_at,
		       a.sentiment_label, a.sentiment_score, a.sentiment_confidence,
		       a.topic_category, a.topic_confidence, a.processing_status
		FROM articles a JOIN sources s ON s.source_id = a.source_id
		WHERE `+whereClause+`
		ORDER BY a.published_at DESC NULLS LAST
		LIMIT `+limitArg+` OFFSET `+offsetArg,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		var sentimentLabel, topicCategory *string
		if err := rows.Scan(
			&a.ArticleID, &a.URL, &a.ContentHash, &a.SourceID, &a.Title, &a.Summary,
			&a.Content, &a.WordCount, &a.Language, &a.PublishedAt, &a.ScrapedAt, &a.Author,
			&a.RobotsTxtCompliant, &a.CopyrightStatus, &a.FairUseBasis,
			&a.ScrapingPermission, &a.LegalReviewStatus, &a.DataRetentionExpiresAt,
			&sentimentLabel, &a.SentimentScore, &a.SentimentConfidence,
			&topicCategory, &a.TopicConfidence, &a.ProcessingStatus,
		); err != nil {
			return nil, err
		}
		if sentimentLabel != nil {
			lbl := domain.SentimentLabel(*sentimentLabel)
			a.SentimentLabel = &lbl
		}
		if topicCategory != nil {
			t := domain.Topic(*topicCategory)
			a.TopicCategory = &t
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &SearchResult{Articles: articles, Total: total, Page: page.Page, PageSize: limit}, nil
}
