package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/compliance"
	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/extractor"
)

type fakeAuditStore struct{ entries []domain.ComplianceAuditEntry }

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

func newTestEvaluator() *compliance.Evaluator {
	return compliance.New(compliance.Config{UserAgent: "preventia-test/1.0", MinRequestDelay: 1.0, RobotsCacheTTL: time.Hour}, audit.New(&fakeAuditStore{}), nil)
}

type fakeSourceStore struct{ sources map[int64]*domain.Source }

func (f *fakeSourceStore) Get(ctx context.Context, id int64) (*domain.Source, error) {
	s, ok := f.sources[id]
	if !ok {
		return nil, simpleErr("source not found")
	}
	return s, nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

type fakeArticleStore struct {
	byHash  map[string]bool
	inserts []*domain.Article
}

func (f *fakeArticleStore) ExistingByHash(ctx context.Context, hash string) (bool, error) {
	return f.byHash[hash], nil
}

func (f *fakeArticleStore) InsertArticle(ctx context.Context, a *domain.Article, auditLog *audit.Log, entry domain.ComplianceAuditEntry) (int64, error) {
	f.inserts = append(f.inserts, a)
	if f.byHash == nil {
		f.byHash = map[string]bool{}
	}
	f.byHash[a.ContentHash] = true
	id := int64(len(f.inserts))
	entry.TableName, entry.RecordID = "articles", id
	if err := auditLog.Record(ctx, entry); err != nil {
		return 0, err
	}
	return id, nil
}

type fakeNLPQueue struct{ enqueued []int64 }

func (f *fakeNLPQueue) Enqueue(ctx context.Context, articleID int64) error {
	f.enqueued = append(f.enqueued, articleID)
	return nil
}

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) { return nil, nil }

func newOrchestrator(sources *fakeSourceStore, articles *fakeArticleStore, nlp *fakeNLPQueue, registry *extractor.Registry) *Orchestrator {
	evaluator := newTestEvaluator()
	return New(sources, articles, evaluator, registry, fakeFetcher{}, nlp, audit.New(&fakeAuditStore{}), Config{})
}

func TestRunSourceRejectsInactiveSource(t *testing.T) {
	sources := &fakeSourceStore{sources: map[int64]*domain.Source{
		1: {SourceID: 1, Status: domain.SourceStatusSuspended, BaseURL: "https://example.org"},
	}}
	o := newOrchestrator(sources, &fakeArticleStore{}, &fakeNLPQueue{}, extractor.NewRegistry())

	_, err := o.RunSource(context.Background(), 1, nil)
	assert.Error(t, err)
}

func TestRunSourceSkipsOnBlockedRootHost(t *testing.T) {
	sources := &fakeSourceStore{sources: map[int64]*domain.Source{
		1: {SourceID: 1, Status: domain.SourceStatusActive, BaseURL: "http://127.0.0.1:9/"},
	}}
	o := newOrchestrator(sources, &fakeArticleStore{}, &fakeNLPQueue{}, extractor.NewRegistry())

	report, err := o.RunSource(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Zero(t, report.ArticlesFound)
	assert.False(t, report.FinishedAt.IsZero())
}

type countingExtractor struct {
	attempts int
	failures []*extractor.Failure
	record   *extractor.ArticleRecord
}

func (c *countingExtractor) CanHandle(url string) bool { return true }
func (c *countingExtractor) ListArticles(ctx context.Context, f extractor.Fetcher, listingURL string, max int) ([]extractor.CandidateLink, error) {
	return nil, nil
}
func (c *countingExtractor) FetchArticle(ctx context.Context, f extractor.Fetcher, link extractor.CandidateLink) (*extractor.ArticleRecord, *extractor.Failure) {
	idx := c.attempts
	c.attempts++
	if idx < len(c.failures) {
		return nil, c.failures[idx]
	}
	return c.record, nil
}

func TestFetchWithRetryRetriesTransientFailures(t *testing.T) {
	o := newOrchestrator(&fakeSourceStore{}, &fakeArticleStore{}, &fakeNLPQueue{}, extractor.NewRegistry())
	o.cfg.MaxFetchRetries = 3

	ext := &countingExtractor{
		failures: []*extractor.Failure{{Kind: extractor.FailureNetwork, Detail: "timeout"}},
		record:   &extractor.ArticleRecord{URL: "https://example.org/a", ContentHash: "abc"},
	}

	record, failure := o.fetchWithRetry(context.Background(), ext, extractor.CandidateLink{URL: "https://example.org/a"})
	require.Nil(t, failure)
	require.NotNil(t, record)
	assert.Equal(t, 2, ext.attempts)
}

func TestFetchWithRetryDoesNotRetryPermanentFailures(t *testing.T) {
	o := newOrchestrator(&fakeSourceStore{}, &fakeArticleStore{}, &fakeNLPQueue{}, extractor.NewRegistry())
	ext := &countingExtractor{failures: []*extractor.Failure{
		{Kind: extractor.FailureNonMedical, Detail: "irrelevant"},
	}}

	record, failure := o.fetchWithRetry(context.Background(), ext, extractor.CandidateLink{URL: "https://example.org/a"})
	assert.Nil(t, record)
	require.NotNil(t, failure)
	assert.Equal(t, 1, ext.attempts)
	assert.Equal(t, extractor.FailureNonMedical, failure.Kind)
}

func TestFetchWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	o := newOrchestrator(&fakeSourceStore{}, &fakeArticleStore{}, &fakeNLPQueue{}, extractor.NewRegistry())
	o.cfg.MaxFetchRetries = 2

	ext := &countingExtractor{failures: []*extractor.Failure{
		{Kind: extractor.FailureNetwork, Detail: "timeout"},
		{Kind: extractor.FailureNetwork, Detail: "timeout"},
	}}

	record, failure := o.fetchWithRetry(context.Background(), ext, extractor.CandidateLink{URL: "https://example.org/a"})
	assert.Nil(t, record)
	require.NotNil(t, failure)
	assert.Equal(t, 2, ext.attempts)
}

func TestCheckDuplicateConsultsStoreWhenBloomHits(t *testing.T) {
	articles := &fakeArticleStore{byHash: map[string]bool{"seen-hash": true}}
	o := newOrchestrator(&fakeSourceStore{}, articles, &fakeNLPQueue{}, extractor.NewRegistry())
	o.dedup.Add("seen-hash")

	dup, err := o.checkDuplicate(context.Background(), "seen-hash")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestCheckDuplicateSkipsStoreWhenBloomMisses(t *testing.T) {
	articles := &fakeArticleStore{byHash: map[string]bool{"never-added": true}}
	o := newOrchestrator(&fakeSourceStore{}, articles, &fakeNLPQueue{}, extractor.NewRegistry())

	dup, err := o.checkDuplicate(context.Background(), "never-added")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestToArticleDowngradesContentWhenMetadataOnly(t *testing.T) {
	record := &extractor.ArticleRecord{
		URL: "https://example.org/a", Title: "Title", Summary: "Summary",
		Content: "full body text", ContentHash: "abc", WordCount: 3,
	}
	src := &domain.Source{SourceID: 1}
	decision := compliance.StoreDecision{
		Allowed: true, ContentLevel: domain.ContentTypeMetadataOnly,
		FairUseBasis: "too short", RetentionExpires: time.Now().AddDate(0, 0, 30),
	}

	article := toArticle(record, src, decision, time.Now().UTC())
	assert.Nil(t, article.Content)
	assert.Equal(t, domain.ProcessingPending, article.ProcessingStatus)
}

func TestToArticleKeepsContentWhenFullContentAllowed(t *testing.T) {
	record := &extractor.ArticleRecord{
		URL: "https://example.org/a", Title: "Title", Summary: "Summary",
		Content: "full body text", ContentHash: "abc", WordCount: 3,
		Author: "Jane Doe",
	}
	src := &domain.Source{SourceID: 1}
	decision := compliance.StoreDecision{Allowed: true, ContentLevel: domain.ContentTypeFull, FairUseBasis: "a reasonably long fair use basis statement over fifty chars"}

	article := toArticle(record, src, decision, time.Now().UTC())
	require.NotNil(t, article.Content)
	assert.Equal(t, "full body text", *article.Content)
	require.NotNil(t, article.Author)
	assert.Equal(t, "Jane Doe", *article.Author)
}
