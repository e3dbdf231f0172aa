package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/errs"
)

// InsertSource implements sources.Store.
func (db *Database) InsertSource(ctx context.Context, s *domain.Source) (int64, error) {
	const query = `
		INSERT INTO sources (
			name, base_url, country, language, source_type, robots_txt_url,
			robots_txt_last_checked, crawl_delay_seconds, scraping_allowed,
			terms_reviewed_at, legal_contact_email, fair_use_basis, compliance_score,
			content_type, data_retention_days, max_articles_per_run, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW()
		) RETURNING source_id`

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	var id int64
	err := db.pool.QueryRow(ctx, query,
		s.Name, s.BaseURL, s.Country, s.Language, s.SourceType, s.RobotsTxtURL,
		s.RobotsTxtLastChecked, s.CrawlDelaySeconds, s.ScrapingAllowed,
		s.TermsReviewedAt, s.LegalContactEmail, s.FairUseBasis, s.ComplianceScore,
		s.ContentType, s.DataRetentionDays, s.MaxArticlesPerRun, s.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert source: %w", err)
	}
	return id, nil
}

// UpdateSource implements sources.Store.
func (db *Database) UpdateSource(ctx context.Context, s *domain.Source) error {
	const query = `
		UPDATE sources SET
			name = $2, base_url = $3, country = $4, language = $5, source_type = $6,
			robots_txt_url = $7, robots_txt_last_checked = $8, crawl_delay_seconds = $9,
			scraping_allowed = $10, terms_reviewed_at = $11, legal_contact_email = $12,
			fair_use_basis = $13, compliance_score = $14, content_type = $15,
			data_retention_days = $16, max_articles_per_run = $17, status = $18,
			updated_at = NOW()
		WHERE source_id = $1`

	result, err := db.pool.Exec(ctx, query,
		s.SourceID, s.Name, s.BaseURL, s.Country, s.Language, s.SourceType,
		s.RobotsTxtURL, s.RobotsTxtLastChecked, s.CrawlDelaySeconds, s.ScrapingAllowed,
		s.TermsReviewedAt, s.LegalContactEmail, s.FairUseBasis, s.ComplianceScore,
		s.ContentType, s.DataRetentionDays, s.MaxArticlesPerRun, s.Status,
	)
	if err != nil {
		return fmt.Errorf("postgres: update source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// GetSource implements sources.Store.
func (db *Database) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	const query = `
		SELECT source_id, name, base_url, country, language, source_type, robots_txt_url,
			robots_txt_last_checked, crawl_delay_seconds, scraping_allowed,
			terms_reviewed_at, legal_contact_email, fair_use_basis, compliance_score,
			content_type, data_retention_days, max_articles_per_run, status,
			created_at, updated_at
		FROM sources WHERE source_id = $1`

	s := &domain.Source{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&s.SourceID, &s.Name, &s.BaseURL, &s.Country, &s.Language, &s.SourceType, &s.RobotsTxtURL,
		&s.RobotsTxtLastChecked, &s.CrawlDelaySeconds, &s.ScrapingAllowed,
		&s.TermsReviewedAt, &s.LegalContactEmail, &s.FairUseBasis, &s.ComplianceScore,
		&s.ContentType, &s.DataRetentionDays, &s.MaxArticlesPerRun, &s.Status,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get source: %w", err)
	}
	return s, nil
}

// ListSources implements sources.Store. An empty status lists every
// source regardless of lifecycle state.
func (db *Database) ListSources(ctx context.Context, status domain.SourceStatus) ([]*domain.Source, error) {
	query := `
		SELECT source_id, name, base_url, country, language, source_type, robots_txt_url,
			robots_txt_last_checked, crawl_delay_seconds, scraping_allowed,
			terms_reviewed_at, legal_contact_email, fair_use_basis, compliance_score,
			content_type, data_retention_days, max_articles_per_run, status,
			created_at, updated_at
		FROM sources`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY source_id ASC"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sources: %w", err)
	}
	defer rows.Close()

	var out []*domain.Source
	for rows.Next() {
		s := &domain.Source{}
		if err := rows.Scan(
			&s.SourceID, &s.Name, &s.BaseURL, &s.Country, &s.Language, &s.SourceType, &s.RobotsTxtURL,
			&s.RobotsTxtLastChecked, &s.CrawlDelaySeconds, &s.ScrapingAllowed,
			&s.TermsReviewedAt, &s.LegalContactEmail, &s.FairUseBasis, &s.ComplianceScore,
			&s.ContentType, &s.DataRetentionDays, &s.MaxArticlesPerRun, &s.Status,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan source: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate sources: %w", err)
	}
	return out, nil
}

// SoftDeleteSource implements sources.Store: marks a source deleted
// rather than removing its row, preserving its Articles' foreign key and
// audit history (spec.md §4.1's deleted terminal state).
func (db *Database) SoftDeleteSource(ctx context.Context, id int64, performedBy string) error {
	const query = `UPDATE sources SET status = $2, updated_at = NOW() WHERE source_id = $1`
	result, err := db.pool.Exec(ctx, query, id, domain.SourceStatusDeleted)
	if err != nil {
		return fmt.Errorf("postgres: soft delete source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
