package postgres

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/errs"
	"github.com/preventia/preventia-core/internal/nlp"
)

// setupTestContainer starts a disposable Postgres instance and migrates it
// to the current schema, grounded on the teacher's
// pkg/compliance/storage/postgres/database_test.go helper of the same
// name (same image, wait strategy, and ConnectionString call).
func setupTestContainer(t *testing.T, ctx context.Context) *Database {
	t.Helper()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("preventia_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "should start PostgreSQL container")
	t.Cleanup(func() { container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := New(ctx, Config{
		ConnectionString: connStr,
		MaxConnections:   10,
		MigrationsPath:   "file://" + migrationsDir(t),
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.MigrateToLatest(ctx))
	return db
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	abs, err := filepath.Abs(filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations"))
	require.NoError(t, err)
	return abs
}

func testCreateEntry() domain.ComplianceAuditEntry {
	return domain.ComplianceAuditEntry{Action: domain.ActionCreate, Status: domain.AuditStatusPassed, PerformedBy: "test"}
}

func validTestSource() *domain.Source {
	return &domain.Source{
		Name: "Example Medical News", BaseURL: "https://example.org", Country: "US",
		Language: "en", SourceType: "rss", FairUseBasis: "republishing brief excerpts under fair use",
		CrawlDelaySeconds: 2.0, DataRetentionDays: 365, MaxArticlesPerRun: 50,
		ContentType: domain.ContentTypeSummaryOnly, Status: domain.SourceStatusUnderReview,
	}
}

func TestSourceCRUDRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := setupTestContainer(t, ctx)

	src := validTestSource()
	id, err := db.InsertSource(ctx, src)
	require.NoError(t, err)
	assert.Positive(t, id)

	fetched, err := db.GetSource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, src.Name, fetched.Name)
	assert.Equal(t, domain.SourceStatusUnderReview, fetched.Status)

	fetched.Status = domain.SourceStatusActive
	require.NoError(t, db.UpdateSource(ctx, fetched))

	reloaded, err := db.GetSource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceStatusActive, reloaded.Status)

	require.NoError(t, db.SoftDeleteSource(ctx, id, "operator"))
	deleted, err := db.GetSource(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceStatusDeleted, deleted.Status)
}

func TestArticleInsertDeduplicatesByContentHash(t *testing.T) {
	ctx := context.Background()
	db := setupTestContainer(t, ctx)
	auditLog := audit.New(db)

	src := validTestSource()
	sourceID, err := db.InsertSource(ctx, src)
	require.NoError(t, err)

	article := &domain.Article{
		URL: "https://example.org/a1", ContentHash: "hash-1", SourceID: sourceID,
		Title: "Breast cancer screening guidance updated", Summary: "Summary",
		ScrapedAt: time.Now().UTC(), DataRetentionExpiresAt: time.Now().AddDate(0, 0, 365),
		ProcessingStatus: domain.ProcessingPending,
	}
	id, err := db.InsertArticle(ctx, article, auditLog, testCreateEntry())
	require.NoError(t, err)
	assert.Positive(t, id)

	exists, err := db.ExistingByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, exists)

	entries, err := auditLog.ForRecord(ctx, "articles", id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionCreate, entries[0].Action)

	dup := *article
	dup.URL = "https://example.org/a1-dup"
	_, err = db.InsertArticle(ctx, &dup, auditLog, testCreateEntry())
	assert.ErrorIs(t, err, errs.ErrDuplicateContentHash)

	// The failed insert must not have left a dangling audit row for some
	// other article_id, and must not have advanced the hash chain.
	entriesAfter, err := auditLog.ForRecord(ctx, "articles", id)
	require.NoError(t, err)
	assert.Len(t, entriesAfter, 1)

	lastHash, err := db.LastEntryHash(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries[0].EntryHash, lastHash)
}

func TestCompleteNLPFillsFieldsAtomically(t *testing.T) {
	ctx := context.Background()
	db := setupTestContainer(t, ctx)
	auditLog := audit.New(db)

	src := validTestSource()
	sourceID, err := db.InsertSource(ctx, src)
	require.NoError(t, err)

	article := &domain.Article{
		URL: "https://example.org/a2", ContentHash: "hash-2", SourceID: sourceID,
		Title: "Mammography screening rates improve nationwide", Summary: "Summary",
		ScrapedAt: time.Now().UTC(), DataRetentionExpiresAt: time.Now().AddDate(0, 0, 365),
		ProcessingStatus: domain.ProcessingPending,
	}
	articleID, err := db.InsertArticle(ctx, article, auditLog, testCreateEntry())
	require.NoError(t, err)

	result := nlp.Result{
		SentimentLabel: domain.SentimentPositive, SentimentScore: 0.6, SentimentConfidence: 0.6,
		TopicCategory: domain.TopicScreening, TopicConfidence: 0.8,
		Keywords: []nlp.Keyword{{Keyword: "mammography", RelevanceScore: 0.9, KeywordType: "medical_entity"}},
	}
	require.NoError(t, db.CompleteNLP(ctx, articleID, result))

	loaded, err := db.GetArticle(ctx, articleID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingCompleted, loaded.ProcessingStatus)
	require.NotNil(t, loaded.SentimentLabel)
	assert.Equal(t, domain.SentimentPositive, *loaded.SentimentLabel)
}

func TestFailNLPTransitionsStatusWithoutTouchingFields(t *testing.T) {
	ctx := context.Background()
	db := setupTestContainer(t, ctx)
	auditLog := audit.New(db)

	src := validTestSource()
	sourceID, err := db.InsertSource(ctx, src)
	require.NoError(t, err)

	article := &domain.Article{
		URL: "https://example.org/a3", ContentHash: "hash-3", SourceID: sourceID,
		Title: "Too short", ScrapedAt: time.Now().UTC(),
		DataRetentionExpiresAt: time.Now().AddDate(0, 0, 365), ProcessingStatus: domain.ProcessingPending,
	}
	articleID, err := db.InsertArticle(ctx, article, auditLog, testCreateEntry())
	require.NoError(t, err)

	require.NoError(t, db.FailNLP(ctx, articleID, "content_too_short"))

	loaded, err := db.GetArticle(ctx, articleID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingFailed, loaded.ProcessingStatus)
	assert.Nil(t, loaded.SentimentLabel)
}

func TestPurgeExpiredContentRedactsPastRetention(t *testing.T) {
	ctx := context.Background()
	db := setupTestContainer(t, ctx)
	auditLog := audit.New(db)

	src := validTestSource()
	sourceID, err := db.InsertSource(ctx, src)
	require.NoError(t, err)

	content := "full article body"
	expired := &domain.Article{
		URL: "https://example.org/a4", ContentHash: "hash-4", SourceID: sourceID,
		Title: "Expired retention article", Content: &content, ScrapedAt: time.Now().UTC(),
		DataRetentionExpiresAt: time.Now().Add(-time.Hour), ProcessingStatus: domain.ProcessingPending,
	}
	id, err := db.InsertArticle(ctx, expired, auditLog, testCreateEntry())
	require.NoError(t, err)

	purged, err := db.PurgeExpiredContent(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Contains(t, purged, id)

	loaded, err := db.GetArticle(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, loaded.Content)
}

func TestAuditEntriesPersistAndChain(t *testing.T) {
	ctx := context.Background()
	db := setupTestContainer(t, ctx)
	auditLog := audit.New(db)

	require.NoError(t, auditLog.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: 1, Action: domain.ActionCreate, Status: domain.AuditStatusPassed,
		PerformedBy: "test", PerformedAt: time.Now().UTC(),
	}))
	require.NoError(t, auditLog.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: 1, Action: domain.ActionUpdate, Status: domain.AuditStatusPassed,
		PerformedBy: "test", PerformedAt: time.Now().UTC(),
	}))

	entries, err := auditLog.ForRecord(ctx, "sources", 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	ok, _ := audit.VerifyChain(entries)
	assert.True(t, ok)
}

func TestMigrateAndAuditWritesBaselineEntry(t *testing.T) {
	ctx := context.Background()
	db := setupTestContainer(t, ctx)
	auditLog := audit.New(db)

	require.NoError(t, db.MigrateAndAudit(ctx, auditLog))

	entries, err := auditLog.InRange(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if e.Action == domain.ActionMigrationBaseline {
			found = true
		}
	}
	assert.True(t, found)
}
