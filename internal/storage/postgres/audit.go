package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/preventia/preventia-core/internal/domain"
)

const insertAuditEntryQuery = `
	INSERT INTO compliance_audit_entries (
		table_name, record_id, action, status, old_values, new_values,
		legal_basis, performed_by, performed_at, compliance_score_before,
		compliance_score_after, risk_level, reason, previous_hash, entry_hash
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
	) RETURNING entry_id`

// InsertAuditEntry implements audit.Store. Entries are append-only: there
// is no corresponding update/delete method anywhere in this package.
func (db *Database) InsertAuditEntry(ctx context.Context, entry domain.ComplianceAuditEntry) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx, insertAuditEntryQuery,
		entry.TableName, entry.RecordID, entry.Action, entry.Status,
		entry.OldValues, entry.NewValues, entry.LegalBasis, entry.PerformedBy,
		entry.PerformedAt, entry.ComplianceScoreBefore, entry.ComplianceScoreAfter,
		riskLevelOrEmpty(entry.RiskLevel), entry.Reason, entry.PreviousHash, entry.EntryHash,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert audit entry: %w", err)
	}
	return id, nil
}

// LastEntryHash implements audit.Store: the most recently inserted entry's
// hash, by entry_id, or "" if the table is empty (the Log treats that as
// the genesis hash).
func (db *Database) LastEntryHash(ctx context.Context) (string, error) {
	const query = `SELECT entry_hash FROM compliance_audit_entries ORDER BY entry_id DESC LIMIT 1`

	var hash string
	err := db.pool.QueryRow(ctx, query).Scan(&hash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("postgres: last audit entry hash: %w", err)
	}
	return hash, nil
}

// lastEntryHashTx is LastEntryHash run inside an existing transaction,
// after taking a transaction-scoped advisory lock so two transactions
// computing a hash-chain link concurrently serialize instead of both
// linking to the same previous hash. Used by InsertArticle to keep the
// Article row and its create-audit row atomic.
func (db *Database) lastEntryHashTx(ctx context.Context, tx Tx) (string, error) {
	const lockQuery = `SELECT pg_advisory_xact_lock(hashtext('compliance_audit_entries'))`
	const query = `SELECT entry_hash FROM compliance_audit_entries ORDER BY entry_id DESC LIMIT 1 FOR UPDATE`

	if err := tx.Exec(ctx, lockQuery); err != nil {
		return "", fmt.Errorf("postgres: lock audit chain (tx): %w", err)
	}

	var hash string
	err := tx.QueryRow(ctx, query).Scan(&hash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("postgres: last audit entry hash (tx): %w", err)
	}
	return hash, nil
}

// insertAuditEntryTx is InsertAuditEntry run inside an existing transaction.
func (db *Database) insertAuditEntryTx(ctx context.Context, tx Tx, entry domain.ComplianceAuditEntry) (int64, error) {
	var id int64
	row := tx.QueryRow(ctx, insertAuditEntryQuery,
		entry.TableName, entry.RecordID, entry.Action, entry.Status,
		entry.OldValues, entry.NewValues, entry.LegalBasis, entry.PerformedBy,
		entry.PerformedAt, entry.ComplianceScoreBefore, entry.ComplianceScoreAfter,
		riskLevelOrEmpty(entry.RiskLevel), entry.Reason, entry.PreviousHash, entry.EntryHash,
	)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("postgres: insert audit entry (tx): %w", err)
	}
	return id, nil
}

// EntriesForRecord implements audit.Store.
func (db *Database) EntriesForRecord(ctx context.Context, tableName string, recordID int64) ([]domain.ComplianceAuditEntry, error) {
	const query = `
		SELECT entry_id, table_name, record_id, action, status, old_values, new_values,
			legal_basis, performed_by, performed_at, compliance_score_before,
			compliance_score_after, risk_level, reason, previous_hash, entry_hash
		FROM compliance_audit_entries
		WHERE table_name = $1 AND record_id = $2
		ORDER BY entry_id ASC`

	rows, err := db.pool.Query(ctx, query, tableName, recordID)
	if err != nil {
		return nil, fmt.Errorf("postgres: entries for record: %w", err)
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

// EntriesInRange implements audit.Store.
func (db *Database) EntriesInRange(ctx context.Context, from, to time.Time) ([]domain.ComplianceAuditEntry, error) {
	const query = `
		SELECT entry_id, table_name, record_id, action, status, old_values, new_values,
			legal_basis, performed_by, performed_at, compliance_score_before,
			compliance_score_after, risk_level, reason, previous_hash, entry_hash
		FROM compliance_audit_entries
		WHERE performed_at BETWEEN $1 AND $2
		ORDER BY entry_id ASC`

	rows, err := db.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: entries in range: %w", err)
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows pgx.Rows) ([]domain.ComplianceAuditEntry, error) {
	var entries []domain.ComplianceAuditEntry
	for rows.Next() {
		var e domain.ComplianceAuditEntry
		var riskLevel *string
		if err := rows.Scan(
			&e.EntryID, &e.TableName, &e.RecordID, &e.Action, &e.Status,
			&e.OldValues, &e.NewValues, &e.LegalBasis, &e.PerformedBy, &e.PerformedAt,
			&e.ComplianceScoreBefore, &e.ComplianceScoreAfter, &riskLevel, &e.Reason,
			&e.PreviousHash, &e.EntryHash,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		if riskLevel != nil {
			e.RiskLevel = domain.RiskLevel(*riskLevel)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate audit entries: %w", err)
	}
	return entries, nil
}
