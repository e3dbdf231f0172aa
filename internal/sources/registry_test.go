package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/domain"
)

type fakeStore struct {
	sources map[int64]*domain.Source
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{sources: make(map[int64]*domain.Source)}
}

func (f *fakeStore) InsertSource(ctx context.Context, s *domain.Source) (int64, error) {
	f.nextID++
	cp := *s
	cp.SourceID = f.nextID
	f.sources[f.nextID] = &cp
	return f.nextID, nil
}

func (f *fakeStore) UpdateSource(ctx context.Context, s *domain.Source) error {
	if _, ok := f.sources[s.SourceID]; !ok {
		return errNotFound
	}
	cp := *s
	f.sources[s.SourceID] = &cp
	return nil
}

func (f *fakeStore) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	s, ok := f.sources[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ListSources(ctx context.Context, status domain.SourceStatus) ([]*domain.Source, error) {
	var out []*domain.Source
	for _, s := range f.sources {
		if status == "" || s.Status == status {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) SoftDeleteSource(ctx context.Context, id int64, performedBy string) error {
	s, ok := f.sources[id]
	if !ok {
		return errNotFound
	}
	s.Status = domain.SourceStatusDeleted
	return nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

const errNotFound = simpleErr("not found")

func validSource() domain.Source {
	return domain.Source{
		Name:              "Example Medical News",
		BaseURL:           "https://example.org",
		Country:           "US",
		Language:          "en",
		FairUseBasis:      "republishing brief excerpts under fair use for commentary and analysis purposes",
		CrawlDelaySeconds: 2.0,
		DataRetentionDays: 365,
		MaxArticlesPerRun: 50,
		ContentType:       domain.ContentTypeSummaryOnly,
	}
}

func newTestRegistry() *Registry {
	store := newFakeStore()
	auditLog := audit.New(&auditFakeStore{})
	return New(store, auditLog, "")
}

// auditFakeStore is the minimal audit.Store the registry's audit.Log needs.
type auditFakeStore struct {
	entries []domain.ComplianceAuditEntry
}

func (a *auditFakeStore) InsertAuditEntry(ctx context.Context, entry domain.ComplianceAuditEntry) (int64, error) {
	a.entries = append(a.entries, entry)
	return int64(len(a.entries)), nil
}
func (a *auditFakeStore) LastEntryHash(ctx context.Context) (string, error) { return "", nil }
func (a *auditFakeStore) EntriesForRecord(ctx context.Context, tableName string, recordID int64) ([]domain.ComplianceAuditEntry, error) {
	return nil, nil
}
func (a *auditFakeStore) EntriesInRange(ctx context.Context, from, to time.Time) ([]domain.ComplianceAuditEntry, error) {
	return nil, nil
}

func TestCreateRejectsShortFairUseBasis(t *testing.T) {
	r := newTestRegistry()
	in := validSource()
	in.FairUseBasis = "too short"

	created, verrs := r.Create(context.Background(), CreateInput{Source: in})
	assert.Nil(t, created)
	require.NotEmpty(t, verrs)
	assert.Equal(t, "fair_use_basis", verrs[0].Field)
}

func TestCreateRejectsBlockedHost(t *testing.T) {
	r := newTestRegistry()
	in := validSource()
	in.BaseURL = "http://127.0.0.1/"

	created, verrs := r.Create(context.Background(), CreateInput{Source: in})
	assert.Nil(t, created)
	require.NotEmpty(t, verrs)
}

func TestCreateFullContentRequiresOverride(t *testing.T) {
	r := newTestRegistry()
	in := validSource()
	in.ContentType = domain.ContentTypeFull

	created, verrs := r.Create(context.Background(), CreateInput{Source: in})
	assert.Nil(t, created)
	require.NotEmpty(t, verrs)
}

func TestCreateFullContentSucceedsWithValidOverride(t *testing.T) {
	hash, err := HashOverrideToken("super-secret-token")
	require.NoError(t, err)

	store := newFakeStore()
	auditLog := audit.New(&auditFakeStore{})
	r := New(store, auditLog, hash)

	in := validSource()
	in.ContentType = domain.ContentTypeFull

	created, verrs := r.Create(context.Background(), CreateInput{Source: in, FullContentOverrideToken: "super-secret-token"})
	require.Empty(t, verrs)
	require.NotNil(t, created)
	assert.Equal(t, domain.SourceStatusUnderReview, created.Status)
}

func TestCreateSucceedsAndStartsUnderReview(t *testing.T) {
	r := newTestRegistry()
	created, verrs := r.Create(context.Background(), CreateInput{Source: validSource()})
	require.Empty(t, verrs)
	require.NotNil(t, created)
	assert.Equal(t, domain.SourceStatusUnderReview, created.Status)
	assert.Zero(t, created.ComplianceScore)
}

func TestTransitionStateMachine(t *testing.T) {
	r := newTestRegistry()
	created, verrs := r.Create(context.Background(), CreateInput{Source: validSource()})
	require.Empty(t, verrs)

	activated, err := r.Transition(context.Background(), created.SourceID, domain.SourceStatusActive, "approved")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceStatusActive, activated.Status)

	_, err = r.Transition(context.Background(), created.SourceID, domain.SourceStatusActive, "approved")
	require.NoError(t, err) // active -> active is a no-op transition, allowed

	deleted, err := r.Transition(context.Background(), created.SourceID, domain.SourceStatusDeleted, "operator request")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceStatusDeleted, deleted.Status)

	_, err = r.Transition(context.Background(), created.SourceID, domain.SourceStatusActive, "cannot resurrect")
	assert.Error(t, err)
}

func TestUpdateDiffsOldAndNewValues(t *testing.T) {
	auditStore := &auditFakeStore{}
	r := New(newFakeStore(), audit.New(auditStore), "")
	created, verrs := r.Create(context.Background(), CreateInput{Source: validSource()})
	require.Empty(t, verrs)

	updated, err := r.Update(context.Background(), created.SourceID, func(s *domain.Source) error {
		s.Name = "Renamed Source"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Source", updated.Name)

	require.NotEmpty(t, auditStore.entries)
	last := auditStore.entries[len(auditStore.entries)-1]
	assert.Equal(t, domain.ActionUpdate, last.Action)
	oldValues, ok := last.OldValues.(domain.Source)
	require.True(t, ok)
	newValues, ok := last.NewValues.(domain.Source)
	require.True(t, ok)
	assert.Equal(t, "Example Medical News", oldValues.Name)
	assert.Equal(t, "Renamed Source", newValues.Name)
}
