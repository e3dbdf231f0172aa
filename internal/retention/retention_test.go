package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/domain"
)

type fakeAuditStore struct {
	entries []domain.ComplianceAuditEntry
}

func (f *fakeAuditStore) InsertAuditEntry(ctx context.Context, entry domain.ComplianceAuditEntry) (int64, error) {
	f.entries = append(f.entries, entry)
	return int64(len(f.entries)), nil
}
func (f *fakeAuditStore) LastEntryHash(ctx context.Context) (string, error) { return "", nil }
func (f *fakeAuditStore) EntriesForRecord(ctx context.Context, tableName string, recordID int64) ([]domain.ComplianceAuditEntry, error) {
	return nil, nil
}
func (f *fakeAuditStore) EntriesInRange(ctx context.Context, from, to time.Time) ([]domain.ComplianceAuditEntry, error) {
	return nil, nil
}

type fakeStore struct {
	purged []int64
	err    error
	calls  int
}

func (f *fakeStore) PurgeExpiredContent(ctx context.Context, now time.Time) ([]int64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.purged, nil
}

func TestSweepAuditsEveryPurgedArticle(t *testing.T) {
	store := &fakeStore{purged: []int64{10, 11}}
	auditStore := &fakeAuditStore{}
	s := New(store, audit.New(auditStore), time.Hour)

	s.sweep(context.Background())

	require.Len(t, auditStore.entries, 2)
	assert.Equal(t, domain.ActionContentRemoval, auditStore.entries[0].Action)
	assert.Equal(t, int64(10), auditStore.entries[0].RecordID)
	assert.Equal(t, int64(11), auditStore.entries[1].RecordID)
}

func TestSweepRecordsNothingWhenStoreFails(t *testing.T) {
	store := &fakeStore{err: assertErr("db unavailable")}
	auditStore := &fakeAuditStore{}
	s := New(store, audit.New(auditStore), time.Hour)

	s.sweep(context.Background())

	assert.Empty(t, auditStore.entries)
}

func TestSweepRecordsNothingWhenNoArticlesExpired(t *testing.T) {
	store := &fakeStore{}
	auditStore := &fakeAuditStore{}
	s := New(store, audit.New(auditStore), time.Hour)

	s.sweep(context.Background())

	assert.Empty(t, auditStore.entries)
}

func TestStartRunsSweepOnTickerAndStopsOnClose(t *testing.T) {
	store := &fakeStore{purged: []int64{1}}
	auditStore := &fakeAuditStore{}
	s := New(store, audit.New(auditStore), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	require.Eventually(t, func() bool { return store.calls > 0 }, time.Second, 5*time.Millisecond)

	s.Close()
	time.Sleep(30 * time.Millisecond) // let the loop observe the stop signal
	callsAtClose := store.calls
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, callsAtClose, store.calls)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
