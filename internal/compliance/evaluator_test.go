package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preventia/preventia-core/internal/domain"
)

type fakeAuditWriter struct {
	entries []domain.ComplianceAuditEntry
}

func (f *fakeAuditWriter) Record(ctx context.Context, entry domain.ComplianceAuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeNoticeChecker struct {
	notice *domain.LegalNotice
}

func (f *fakeNoticeChecker) ActiveNoticeForDomain(ctx context.Context, forDomain string) (*domain.LegalNotice, error) {
	return f.notice, nil
}

func newTestEvaluator(audit *fakeAuditWriter, notices LegalNoticeChecker) *Evaluator {
	return New(Config{UserAgent: "preventia-test/1.0", MinRequestDelay: 2.0, RobotsCacheTTL: time.Hour}, audit, notices)
}

func TestEvaluateFetchDeniesInactiveSource(t *testing.T) {
	audit := &fakeAuditWriter{}
	e := newTestEvaluator(audit, &fakeNoticeChecker{})
	defer e.Close()

	src := &domain.Source{SourceID: 1, Status: domain.SourceStatusSuspended, BaseURL: "https://example.org"}
	decision := e.EvaluateFetch(context.Background(), "https://example.org/article", src)

	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonSourceInactive, decision.Reason)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, domain.AuditStatusFailed, audit.entries[0].Status)
}

func TestEvaluateFetchDeniesBlockedHost(t *testing.T) {
	audit := &fakeAuditWriter{}
	e := newTestEvaluator(audit, &fakeNoticeChecker{})
	defer e.Close()

	src := &domain.Source{SourceID: 1, Status: domain.SourceStatusActive, BaseURL: "http://127.0.0.1:9/"}
	decision := e.EvaluateFetch(context.Background(), "http://127.0.0.1:9/article", src)

	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonBlockedHost, decision.Reason)
}

func TestEvaluateStoreBlocksOnActiveLegalNotice(t *testing.T) {
	audit := &fakeAuditWriter{}
	notice := &domain.LegalNotice{Status: domain.NoticeActive}
	e := newTestEvaluator(audit, &fakeNoticeChecker{notice: notice})
	defer e.Close()

	src := &domain.Source{BaseURL: "https://example.org", ContentType: domain.ContentTypeFull, FairUseBasis: "a reasonably long basis statement exceeding fifty characters total"}
	decision := e.EvaluateStore(context.Background(), time.Now(), src)

	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonLegalNoticeActive, decision.Reason)
}

func TestEvaluateStoreDowngradesContentWithoutFairUseBasis(t *testing.T) {
	audit := &fakeAuditWriter{}
	e := newTestEvaluator(audit, &fakeNoticeChecker{})
	defer e.Close()

	src := &domain.Source{BaseURL: "https://example.org", ContentType: domain.ContentTypeFull, FairUseBasis: "too short", DataRetentionDays: 365}
	scrapedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	decision := e.EvaluateStore(context.Background(), scrapedAt, src)

	assert.True(t, decision.Allowed)
	assert.Equal(t, domain.ContentTypeMetadataOnly, decision.ContentLevel)
	assert.Equal(t, scrapedAt.AddDate(0, 0, 365), decision.RetentionExpires)
}

func TestScoreSourceWeightsEachFactorEqually(t *testing.T) {
	audit := &fakeAuditWriter{}
	e := newTestEvaluator(audit, &fakeNoticeChecker{})
	defer e.Close()

	src := &domain.Source{SourceID: 5, ComplianceScore: 0.0}

	score, risk := e.ScoreSource(context.Background(), src, ScoreFactors{
		RobotsTxtCompliant:   true,
		LegalContactVerified: true,
		TermsAcceptable:      true,
		FairUseDocumented:    false,
		DataMinimizationApplied: false,
	})

	assert.InDelta(t, 0.6, score, 1e-9)
	assert.Equal(t, domain.RiskMedium, risk)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, domain.ActionValidate, audit.entries[0].Action)
}

func TestScoreSourceAllFactorsYieldsLowRisk(t *testing.T) {
	audit := &fakeAuditWriter{}
	e := newTestEvaluator(audit, &fakeNoticeChecker{})
	defer e.Close()

	score, risk := e.ScoreSource(context.Background(), &domain.Source{}, ScoreFactors{
		RobotsTxtCompliant: true, LegalContactVerified: true, TermsAcceptable: true,
		FairUseDocumented: true, DataMinimizationApplied: true,
	})

	assert.InDelta(t, 1.0, score, 1e-9)
	assert.Equal(t, domain.RiskLow, risk)
}

func TestIsBlockedHost(t *testing.T) {
	cases := []struct {
		url     string
		blocked bool
	}{
		{"http://localhost/robots.txt", true},
		{"http://127.0.0.1/robots.txt", true},
		{"http://10.1.2.3/robots.txt", true},
		{"http://192.168.1.1/robots.txt", true},
		{"https://example.org/robots.txt", false},
	}
	for _, c := range cases {
		blocked, err := IsBlockedHost(c.url)
		require.NoError(t, err)
		assert.Equal(t, c.blocked, blocked, c.url)
	}
}

func TestDomainRateLimiterEnforcesDelay(t *testing.T) {
	l := NewDomainRateLimiter(time.Minute, time.Hour)
	defer l.Close()

	allowed, retryAfter := l.CheckAndReserve("example.org", 50*time.Millisecond)
	assert.True(t, allowed)
	assert.Zero(t, retryAfter)

	allowed, retryAfter = l.CheckAndReserve("example.org", time.Hour)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
}
