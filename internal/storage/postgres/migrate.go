package postgres

import (
	"context"
	"time"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/domain"
)

// MigrateAndAudit applies every pending migration and, on success, writes
// a migration_baseline audit row recording that the schema advanced —
// generalized from the teacher's migration-as-audited-event convention
// (pkg/compliance/storage/postgres/database.go's MigrateToLatest, extended
// here with the audit trail spec.md §4.2's AUDIT_ACTIONS set requires).
func (db *Database) MigrateAndAudit(ctx context.Context, auditLog *audit.Log) error {
	if err := db.MigrateToLatest(ctx); err != nil {
		return err
	}
	return auditLog.Record(ctx, domain.ComplianceAuditEntry{
		TableName:   "schema",
		RecordID:    0,
		Action:      domain.ActionMigrationBaseline,
		Status:      domain.AuditStatusPassed,
		PerformedBy: "postgres.migrate",
		PerformedAt: time.Now().UTC(),
	})
}
