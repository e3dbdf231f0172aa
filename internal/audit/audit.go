// Package audit implements the Audit Log (C2): an append-only record of
// every compliance-relevant decision and state transition. It never
// exposes a mutation API — entries are written once and read by
// (table_name, record_id) or time range.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/preventia/preventia-core/internal/domain"
)

// GenesisHash seeds the hash chain before the first entry exists, mirroring
// the teacher's audit chain convention of a fixed all-zero genesis value.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Store is the persistence contract the Audit Log needs from C7. It is
// intentionally narrow: append, and the two read shapes spec.md §4.2
// names (by table/record, and by time range).
type Store interface {
	InsertAuditEntry(ctx context.Context, entry domain.ComplianceAuditEntry) (int64, error)
	LastEntryHash(ctx context.Context) (string, error)
	EntriesForRecord(ctx context.Context, tableName string, recordID int64) ([]domain.ComplianceAuditEntry, error)
	EntriesInRange(ctx context.Context, from, to time.Time) ([]domain.ComplianceAuditEntry, error)
}

// Log is the Audit Log (C2) implementation: it chains every entry's hash
// to the previous one so a reader can detect tampering, generalized from
// the teacher's audit_entries hash chain (pkg/compliance/storage/postgres/audit.go)
// from DMCA event chaining to the AUDIT_ACTIONS set in spec.md §3.
type Log struct {
	store Store
}

// New builds a Log backed by store.
func New(store Store) *Log {
	return &Log{store: store}
}

// Record appends entry to the log, computing its hash chain link. It is the
// sole write path for ComplianceAuditEntry rows; callers never update or
// delete an entry once written (spec.md §4.2).
func (l *Log) Record(ctx context.Context, entry domain.ComplianceAuditEntry) error {
	previousHash, err := l.store.LastEntryHash(ctx)
	if err != nil {
		return fmt.Errorf("audit: get previous hash: %w", err)
	}
	entry = l.ChainEntry(entry, previousHash)

	if _, err := l.store.InsertAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// ChainEntry stamps entry with its hash-chain link given the current last
// entry hash (an empty previousHash is treated as the genesis hash) and
// fills PerformedAt if unset. It performs no storage I/O, so a caller that
// must write the entry inside its own transaction — Persistence's
// InsertArticle, to keep an Article row and its create-audit row atomic
// (spec.md §5) — can compute the link itself without depending on
// audit.Store.
func (l *Log) ChainEntry(entry domain.ComplianceAuditEntry, previousHash string) domain.ComplianceAuditEntry {
	if previousHash == "" {
		previousHash = GenesisHash
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now().UTC()
	}
	// Postgres keeps timestamps to the microsecond; hash what it will store.
	entry.PerformedAt = entry.PerformedAt.UTC().Truncate(time.Microsecond)
	entry.PreviousHash = previousHash
	entry.EntryHash = chainHash(entry, previousHash)
	return entry
}

// ForRecord returns every audit entry recorded against (tableName, recordID),
// in insertion order.
func (l *Log) ForRecord(ctx context.Context, tableName string, recordID int64) ([]domain.ComplianceAuditEntry, error) {
	return l.store.EntriesForRecord(ctx, tableName, recordID)
}

// InRange returns every audit entry performed within [from, to].
func (l *Log) InRange(ctx context.Context, from, to time.Time) ([]domain.ComplianceAuditEntry, error) {
	return l.store.EntriesInRange(ctx, from, to)
}

// VerifyChain re-derives every entry's hash from its neighbour and reports
// the first break, or ok=true if the whole chain in entries (assumed to be
// in insertion order) is intact.
func VerifyChain(entries []domain.ComplianceAuditEntry) (ok bool, brokenAt int64) {
	previous := GenesisHash
	for _, e := range entries {
		if e.PreviousHash != previous {
			return false, e.EntryID
		}
		if chainHash(e, previous) != e.EntryHash {
			return false, e.EntryID
		}
		previous = e.EntryHash
	}
	return true, 0
}

// chainHash computes the tamper-evident link for entry given the previous
// entry's hash, mirroring the teacher's calculateAuditEntryHash.
func chainHash(entry domain.ComplianceAuditEntry, previousHash string) string {
	// canonical renders a value the way it reads back from a jsonb column,
	// so a link computed before storage still verifies after a round trip.
	canonical := func(v interface{}) string {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		var generic interface{}
		if json.Unmarshal(data, &generic) == nil {
			data, _ = json.Marshal(generic)
		}
		return string(data)
	}
	input := fmt.Sprintf("%s|%d|%s|%s|%s|%s|%s|%s|%s",
		entry.TableName,
		entry.RecordID,
		entry.Action,
		entry.Status,
		canonical(entry.OldValues),
		canonical(entry.NewValues),
		previousHash,
		entry.PerformedBy,
		entry.PerformedAt.UTC().Format(time.RFC3339Nano),
	)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
