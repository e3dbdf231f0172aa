package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/errs"
)

// ActiveNoticeForDomain implements compliance.LegalNoticeChecker.
func (db *Database) ActiveNoticeForDomain(ctx context.Context, forDomain string) (*domain.LegalNotice, error) {
	const query = `
		SELECT notice_id, notice_type, source_domain, affected_articles, status,
			received_at, resolved_at, created_at, updated_at
		FROM legal_notices
		WHERE source_domain = $1 AND status IN ('received', 'reviewing', 'active')
		ORDER BY received_at DESC LIMIT 1`

	n := &domain.LegalNotice{}
	var affected []int64
	err := db.pool.QueryRow(ctx, query, forDomain).Scan(
		&n.NoticeID, &n.NoticeType, &n.SourceDomain, &affected, &n.Status,
		&n.ReceivedAt, &n.ResolvedAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: active legal notice for domain: %w", err)
	}
	n.AffectedArticles = affected
	return n, nil
}

// InsertLegalNotice records a newly received notice (supplemented legal
// notice lifecycle, see SPEC_FULL.md §5).
func (db *Database) InsertLegalNotice(ctx context.Context, n *domain.LegalNotice) (int64, error) {
	const query = `
		INSERT INTO legal_notices (
			notice_type, source_domain, affected_articles, status, received_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING notice_id`

	var id int64
	err := db.pool.QueryRow(ctx, query,
		n.NoticeType, n.SourceDomain, n.AffectedArticles, n.Status, n.ReceivedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert legal notice: %w", err)
	}
	return id, nil
}

// TransitionLegalNotice sets a notice's status and resolved_at. It accepts
// any target status: the move is not checked against the notice lifecycle,
// and no audit row is written.
func (db *Database) TransitionLegalNotice(ctx context.Context, id int64, to domain.LegalNoticeStatus, resolvedAt *time.Time) error {
	const query = `
		UPDATE legal_notices SET status = $2, resolved_at = $3, updated_at = NOW()
		WHERE notice_id = $1`
	result, err := db.pool.Exec(ctx, query, id, to, resolvedAt)
	if err != nil {
		return fmt.Errorf("postgres: transition legal notice: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
