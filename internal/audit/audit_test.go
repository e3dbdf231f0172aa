package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preventia/preventia-core/internal/domain"
)

// fakeStore is an in-memory audit.Store backing the Log's chain logic
// without a real database, mirroring the teacher's preference for
// exercising hash-chain behavior against a lightweight stand-in.
type fakeStore struct {
	entries []domain.ComplianceAuditEntry
}

func (f *fakeStore) InsertAuditEntry(ctx context.Context, entry domain.ComplianceAuditEntry) (int64, error) {
	entry.EntryID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, entry)
	return entry.EntryID, nil
}

func (f *fakeStore) LastEntryHash(ctx context.Context) (string, error) {
	if len(f.entries) == 0 {
		return "", nil
	}
	return f.entries[len(f.entries)-1].EntryHash, nil
}

func (f *fakeStore) EntriesForRecord(ctx context.Context, tableName string, recordID int64) ([]domain.ComplianceAuditEntry, error) {
	var out []domain.ComplianceAuditEntry
	for _, e := range f.entries {
		if e.TableName == tableName && e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) EntriesInRange(ctx context.Context, from, to time.Time) ([]domain.ComplianceAuditEntry, error) {
	var out []domain.ComplianceAuditEntry
	for _, e := range f.entries {
		if !e.PerformedAt.Before(from) && !e.PerformedAt.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestLogRecordChainsEntries(t *testing.T) {
	store := &fakeStore{}
	log := New(store)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: 1, Action: domain.ActionCreate, Status: domain.AuditStatusPassed,
	}))
	require.NoError(t, log.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: 1, Action: domain.ActionUpdate, Status: domain.AuditStatusPassed,
	}))

	require.Len(t, store.entries, 2)
	assert.Equal(t, GenesisHash, store.entries[0].PreviousHash)
	assert.Equal(t, store.entries[0].EntryHash, store.entries[1].PreviousHash)
	assert.NotEmpty(t, store.entries[1].EntryHash)

	ok, brokenAt := VerifyChain(store.entries)
	assert.True(t, ok)
	assert.Zero(t, brokenAt)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	store := &fakeStore{}
	log := New(store)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: 1, Action: domain.ActionCreate, Status: domain.AuditStatusPassed,
	}))
	require.NoError(t, log.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: 1, Action: domain.ActionUpdate, Status: domain.AuditStatusPassed,
	}))

	entries := append([]domain.ComplianceAuditEntry{}, store.entries...)
	entries[0].Action = domain.ActionDelete // tamper with an already-chained entry

	ok, brokenAt := VerifyChain(entries)
	assert.False(t, ok)
	assert.Equal(t, entries[0].EntryID, brokenAt)
}

func TestForRecordAndInRange(t *testing.T) {
	store := &fakeStore{}
	log := New(store)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, log.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: 1, Action: domain.ActionCreate, Status: domain.AuditStatusPassed, PerformedAt: now,
	}))
	require.NoError(t, log.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: 2, Action: domain.ActionCreate, Status: domain.AuditStatusPassed, PerformedAt: now.Add(time.Hour),
	}))

	byRecord, err := log.ForRecord(ctx, "sources", 1)
	require.NoError(t, err)
	assert.Len(t, byRecord, 1)

	inRange, err := log.InRange(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, inRange, 1)
}
