package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/errs"
	"github.com/preventia/preventia-core/internal/nlp"
)

// duplicateContentHashConstraint is the unique index name the schema
// places on articles.content_hash (see migrations/0001_init.up.sql).
const duplicateContentHashConstraint = "articles_content_hash_key"

// ExistingByHash implements orchestrator.ArticleStore.
func (db *Database) ExistingByHash(ctx context.Context, hash string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM articles WHERE content_hash = $1)`
	var exists bool
	if err := db.pool.QueryRow(ctx, query, hash).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: check existing content_hash: %w", err)
	}
	return exists, nil
}

const insertArticleQuery = `
	INSERT INTO articles (
		url, content_hash, source_id, title, summary, content, word_count,
		language, published_at, scraped_at, author, robots_txt_compliant,
		copyright_status, fair_use_basis, scraping_permission, legal_review_status,
		data_retention_expires_at, processing_status
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
	) RETURNING article_id`

func insertArticleArgs(a *domain.Article) []interface{} {
	return []interface{}{
		a.URL, a.ContentHash, a.SourceID, a.Title, a.Summary, a.Content, a.WordCount,
		a.Language, a.PublishedAt, a.ScrapedAt, a.Author, a.RobotsTxtCompliant,
		a.CopyrightStatus, a.FairUseBasis, a.ScrapingPermission, a.LegalReviewStatus,
		a.DataRetentionExpiresAt, a.ProcessingStatus,
	}
}

// InsertArticle implements orchestrator.ArticleStore: persists a new
// Article with processing_status=pending and its create-audit row in the
// same transaction, so an external observer can never see the Article
// without the AuditEntry backing it (spec.md §5, §4.7, §8 scenario 1).
// Returns errs.ErrDuplicateContentHash on a content_hash conflict; entry's
// TableName/RecordID/hash-chain fields are filled in here and need not be
// set by the caller.
func (db *Database) InsertArticle(ctx context.Context, a *domain.Article, auditLog *audit.Log, entry domain.ComplianceAuditEntry) (int64, error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx, insertArticleQuery, insertArticleArgs(a)...).Scan(&id); err != nil {
		if isUniqueViolation(err, duplicateContentHashConstraint) {
			return 0, errs.ErrDuplicateContentHash
		}
		return 0, fmt.Errorf("postgres: insert article: %w", err)
	}

	previousHash, err := db.lastEntryHashTx(ctx, tx)
	if err != nil {
		return 0, err
	}
	entry.TableName = "articles"
	entry.RecordID = id
	entry = auditLog.ChainEntry(entry, previousHash)
	if _, err := db.insertAuditEntryTx(ctx, tx, entry); err != nil {
		return 0, fmt.Errorf("postgres: insert create-audit entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit article insert: %w", err)
	}
	return id, nil
}

// GetArticle implements nlp.Store.
func (db *Database) GetArticle(ctx context.Context, id int64) (*domain.Article, error) {
	const query = `
		SELECT article_id, url, content_hash, source_id, title, summary, content,
			word_count, language, published_at, scraped_at, author,
			robots_txt_compliant, copyright_status, fair_use_basis, scraping_permission,
			legal_review_status, data_retention_expires_at, sentiment_label,
			sentiment_score, sentiment_confidence, topic_category, topic_confidence,
			processing_status
		FROM articles WHERE article_id = $1`

	a := &domain.Article{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&a.ArticleID, &a.URL, &a.ContentHash, &a.SourceID, &a.Title, &a.Summary, &a.Content,
		&a.WordCount, &a.Language, &a.PublishedAt, &a.ScrapedAt, &a.Author,
		&a.RobotsTxtCompliant, &a.CopyrightStatus, &a.FairUseBasis, &a.ScrapingPermission,
		&a.LegalReviewStatus, &a.DataRetentionExpiresAt, &a.SentimentLabel,
		&a.SentimentScore, &a.SentimentConfidence, &a.TopicCategory, &a.TopicConfidence,
		&a.ProcessingStatus,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get article: %w", err)
	}
	return a, nil
}

// CompleteNLP implements nlp.Store: fills every NLP field and inserts its
// keywords in one transaction, flipping processing_status to completed
// (spec.md §4.6: "fills the NLP fields in one transaction... never
// partially fills").
func (db *Database) CompleteNLP(ctx context.Context, articleID int64, result nlp.Result) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const updateQuery = `
		UPDATE articles SET
			sentiment_label = $2, sentiment_score = $3, sentiment_confidence = $4,
			topic_category = $5, topic_confidence = $6, processing_status = $7
		WHERE article_id = $1`
	if err := tx.Exec(ctx, updateQuery,
		articleID, result.SentimentLabel, result.SentimentScore, result.SentimentConfidence,
		result.TopicCategory, result.TopicConfidence, domain.ProcessingCompleted,
	); err != nil {
		return fmt.Errorf("postgres: complete nlp fields: %w", err)
	}

	const keywordQuery = `
		INSERT INTO article_keywords (article_id, keyword, relevance_score, keyword_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (article_id, keyword) DO UPDATE SET
			relevance_score = EXCLUDED.relevance_score, keyword_type = EXCLUDED.keyword_type`
	for _, kw := range result.Keywords {
		if err := tx.Exec(ctx, keywordQuery, articleID, kw.Keyword, kw.RelevanceScore, kw.KeywordType); err != nil {
			return fmt.Errorf("postgres: insert article keyword: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit nlp completion: %w", err)
	}
	return nil
}

// FailNLP implements nlp.Store: leaves every NLP field untouched and
// transitions processing_status to failed.
func (db *Database) FailNLP(ctx context.Context, articleID int64, reason string) error {
	const query = `UPDATE articles SET processing_status = $2 WHERE article_id = $1`
	result, err := db.pool.Exec(ctx, query, articleID, domain.ProcessingFailed)
	if err != nil {
		return fmt.Errorf("postgres: fail nlp (%s): %w", reason, err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// PurgeExpiredContent implements internal/retention's Store dependency:
// clears content/summary for every Article past its retention window,
// leaving tombstone fields, and returns the affected article IDs for
// audit logging (spec.md §8 scenario 5).
func (db *Database) PurgeExpiredContent(ctx context.Context, now time.Time) ([]int64, error) {
	const query = `
		UPDATE articles SET content = NULL, summary = '[redacted: retention period expired]'
		WHERE data_retention_expires_at <= $1
			AND (content IS NOT NULL OR summary NOT IN ('', '[redacted: retention period expired]'))
		RETURNING article_id`

	rows, err := db.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: purge expired content: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan purged article id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	return strings.Contains(err.Error(), constraint) && strings.Contains(err.Error(), "duplicate key")
}
