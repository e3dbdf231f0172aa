// Package orchestrator implements the Scraper Orchestrator (C5): it drives
// one ingestion run per Source, asking the Compliance Evaluator (C1) before
// every fetch, dispatching to the Extractor Framework (C4), deduplicating
// against Persistence (C7), and handing completed records to the NLP
// pipeline (C6).
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/compliance"
	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/errs"
	"github.com/preventia/preventia-core/internal/extractor"
	"github.com/preventia/preventia-core/internal/logging"
)

// SourceStore is the subset of the Source Registry the orchestrator needs.
type SourceStore interface {
	Get(ctx context.Context, id int64) (*domain.Source, error)
}

// ArticleStore is the subset of Persistence (C7) the orchestrator needs.
type ArticleStore interface {
	// ExistingByHash reports whether an Article with this content_hash is
	// already stored.
	ExistingByHash(ctx context.Context, hash string) (bool, error)
	// InsertArticle persists a new Article with processing_status=pending
	// and writes entry as its create-audit row, both within the same
	// transaction (spec.md §5): external observers never see an Article
	// without its create-audit row. auditLog supplies the hash-chain link;
	// entry's TableName/RecordID/hash fields are filled in by the store.
	// Returns errs.ErrDuplicateContentHash if hash already exists.
	InsertArticle(ctx context.Context, a *domain.Article, auditLog *audit.Log, entry domain.ComplianceAuditEntry) (int64, error)
}

// NLPQueue hands a freshly persisted Article off to the NLP pipeline (C6).
type NLPQueue interface {
	Enqueue(ctx context.Context, articleID int64) error
}

// Config configures an Orchestrator.
type Config struct {
	Workers          int // default 4, per orchestrator.workers
	MaxRateLimitRetries int // default 3, per spec.md §4.5 step 4
	MaxFetchRetries     int // default 3, per spec.md §4.5's retry policy
}

// Orchestrator is the Scraper Orchestrator (C5).
type Orchestrator struct {
	sources   SourceStore
	articles  ArticleStore
	evaluator *compliance.Evaluator
	registry  *extractor.Registry
	fetcher   extractor.Fetcher
	nlp       NLPQueue
	auditLog  *audit.Log
	dedup     *DedupFilter
	cfg       Config
	log       *logging.Logger
}

// New builds an Orchestrator.
func New(sources SourceStore, articles ArticleStore, evaluator *compliance.Evaluator, registry *extractor.Registry, fetcher extractor.Fetcher, nlp NLPQueue, auditLog *audit.Log, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxRateLimitRetries <= 0 {
		cfg.MaxRateLimitRetries = 3
	}
	if cfg.MaxFetchRetries <= 0 {
		cfg.MaxFetchRetries = 3
	}
	return &Orchestrator{
		sources:   sources,
		articles:  articles,
		evaluator: evaluator,
		registry:  registry,
		fetcher:   fetcher,
		nlp:       nlp,
		auditLog:  auditLog,
		dedup:     NewDedupFilter(100000, 0.01),
		cfg:       cfg,
		log:       logging.Default().WithComponent("orchestrator"),
	}
}

// RunReport summarizes one run_source invocation (spec.md §4.5 step 7).
type RunReport struct {
	SourceID          int64
	ArticlesFound     int
	New               int
	Duplicates        int
	SkippedCompliance int
	Errors            int
	StartedAt         time.Time
	FinishedAt        time.Time
}

// RunSource implements run_source (spec.md §4.5).
func (o *Orchestrator) RunSource(ctx context.Context, sourceID int64, maxArticlesOverride *int) (*RunReport, error) {
	report := &RunReport{SourceID: sourceID, StartedAt: time.Now().UTC()}

	src, err := o.sources.Get(ctx, sourceID)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "load source", err)
	}
	if !src.IsActive() {
		o.auditLog.Record(ctx, domain.ComplianceAuditEntry{
			TableName: "sources", RecordID: src.SourceID,
			Action: domain.ActionRobotsCheck, Status: domain.AuditStatusFailed,
			PerformedBy: "orchestrator", PerformedAt: time.Now(),
			Reason: compliance.ReasonSourceInactive,
		})
		return nil, errs.New(errs.KindCompliance, "source not active")
	}

	rootDecision := o.evaluator.EvaluateFetch(ctx, src.BaseURL, src)
	if !rootDecision.Allowed {
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	ext := o.registry.For(src.BaseURL)
	if ext == nil {
		return nil, errs.New(errs.KindExtraction, "no extractor registered for source")
	}

	max := src.MaxArticlesPerRun
	if maxArticlesOverride != nil && *maxArticlesOverride > 0 {
		max = *maxArticlesOverride
	}

	links, err := ext.ListArticles(ctx, o.fetcher, src.BaseURL, max)
	if err != nil {
		return nil, errs.Wrap(errs.KindExtraction, "list articles", err)
	}
	report.ArticlesFound = len(links)

	jobs := make(chan extractor.CandidateLink)
	var mu sync.Mutex
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for link := range jobs {
			select {
			case <-ctx.Done():
				return
			default:
			}
			outcome := o.processCandidate(ctx, src, ext, link)
			mu.Lock()
			switch outcome {
			case outcomeNew:
				report.New++
			case outcomeDuplicate:
				report.Duplicates++
			case outcomeSkippedCompliance:
				report.SkippedCompliance++
			case outcomeError:
				report.Errors++
			}
			mu.Unlock()
		}
	}

	workers := o.cfg.Workers
	if workers > len(links) {
		workers = len(links)
	}
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

feed:
	for _, link := range links {
		select {
		case jobs <- link:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

type candidateOutcome int

const (
	outcomeNew candidateOutcome = iota
	outcomeDuplicate
	outcomeSkippedCompliance
	outcomeError
)

// processCandidate implements spec.md §4.5 steps 4-6 for one CandidateLink.
func (o *Orchestrator) processCandidate(ctx context.Context, src *domain.Source, ext extractor.Extractor, link extractor.CandidateLink) candidateOutcome {
	decision, ok := o.evaluateFetchWithRetry(ctx, link.URL, src)
	if !ok {
		return outcomeSkippedCompliance
	}
	if !decision.Allowed {
		return outcomeSkippedCompliance
	}

	record, failure := o.fetchWithRetry(ctx, ext, link)
	if failure != nil {
		o.log.WithFields(logging.Fields{"url": link.URL, "kind": failure.Kind}).Warn("extraction failed")
		return outcomeError
	}

	exists, err := o.checkDuplicate(ctx, record.ContentHash)
	if err != nil {
		o.log.WithField("url", link.URL).Warnf("duplicate check failed: %v", err)
		return outcomeError
	}
	if exists {
		return outcomeDuplicate
	}

	scrapedAt := time.Now().UTC()
	storeDecision := o.evaluator.EvaluateStore(ctx, scrapedAt, src)
	if !storeDecision.Allowed {
		return outcomeSkippedCompliance
	}

	article := toArticle(record, src, storeDecision, scrapedAt)
	createEntry := domain.ComplianceAuditEntry{
		Action: domain.ActionCreate, Status: domain.AuditStatusPassed,
		PerformedBy: "orchestrator",
	}
	id, err := o.articles.InsertArticle(ctx, article, o.auditLog, createEntry)
	if err != nil {
		if errors.Is(err, errs.ErrDuplicateContentHash) {
			return outcomeDuplicate
		}
		o.log.WithField("url", link.URL).Warnf("insert article failed: %v", err)
		return outcomeError
	}
	o.dedup.Add(record.ContentHash)

	if err := o.nlp.Enqueue(ctx, id); err != nil {
		o.log.WithField("article_id", id).Warnf("enqueue NLP failed: %v", err)
	}

	return outcomeNew
}

// evaluateFetchWithRetry retries a rate_limited decision up to
// MaxRateLimitRetries times, sleeping for the required delay each time
// (spec.md §4.5 step 4). ok=false means the caller should give up entirely
// (context cancelled mid-wait).
func (o *Orchestrator) evaluateFetchWithRetry(ctx context.Context, url string, src *domain.Source) (compliance.FetchDecision, bool) {
	var decision compliance.FetchDecision
	for attempt := 0; attempt <= o.cfg.MaxRateLimitRetries; attempt++ {
		decision = o.evaluator.EvaluateFetch(ctx, url, src)
		if decision.Reason != compliance.ReasonRateLimited {
			return decision, true
		}
		if attempt == o.cfg.MaxRateLimitRetries {
			break
		}
		select {
		case <-time.After(time.Duration(decision.RequiredDelaySeconds * float64(time.Second))):
		case <-ctx.Done():
			return decision, false
		}
	}
	return decision, true
}

// fetchWithRetry implements the transient-network backoff policy (spec.md
// §4.5: initial 2s, factor 2, cap 60s, max 3 attempts; non-transient 4xx
// never retries). A 429 is retried on the same backoff schedule; its
// Retry-After value is not consulted.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, ext extractor.Extractor, link extractor.CandidateLink) (*extractor.ArticleRecord, *extractor.Failure) {
	backoff := 2 * time.Second
	maxAttempts := o.cfg.MaxFetchRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	var lastFailure *extractor.Failure
	for attempt := 0; attempt < maxAttempts; attempt++ {
		record, failure := ext.FetchArticle(ctx, o.fetcher, link)
		if failure == nil {
			return record, nil
		}
		lastFailure = failure

		// Only network-level failures are retried; selector/parse failures,
		// non-medical content, and non-429 4xx responses are permanent for
		// this candidate.
		if failure.Kind != extractor.FailureNetwork && failure.Kind != extractor.FailureRateLimited {
			return nil, failure
		}

		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, lastFailure
		}
		backoff *= 2
		if backoff > 60*time.Second {
			backoff = 60 * time.Second
		}
	}
	return nil, lastFailure
}

// checkDuplicate consults the bloom pre-check before falling back to the
// real persistence lookup (spec.md §4.5 step 5).
func (o *Orchestrator) checkDuplicate(ctx context.Context, hash string) (bool, error) {
	if !o.dedup.MightContain(hash) {
		return false, nil
	}
	return o.articles.ExistingByHash(ctx, hash)
}

func toArticle(record *extractor.ArticleRecord, src *domain.Source, decision compliance.StoreDecision, scrapedAt time.Time) *domain.Article {
	a := &domain.Article{
		URL:                    record.URL,
		ContentHash:            record.ContentHash,
		SourceID:               src.SourceID,
		Title:                  record.Title,
		Summary:                record.Summary,
		WordCount:              record.WordCount,
		Language:               record.Language,
		ScrapedAt:              scrapedAt,
		RobotsTxtCompliant:     domain.ScrapingAllowedTrue,
		CopyrightStatus:        domain.CopyrightFairUse,
		FairUseBasis:           decision.FairUseBasis,
		ScrapingPermission:     true,
		LegalReviewStatus:      domain.LegalReviewPending,
		DataRetentionExpiresAt: decision.RetentionExpires,
		ProcessingStatus:       domain.ProcessingPending,
	}
	if !record.PublishedAt.IsZero() {
		p := record.PublishedAt
		a.PublishedAt = &p
	}
	if record.Author != "" {
		author := record.Author
		a.Author = &author
	}
	if decision.ContentLevel != domain.ContentTypeMetadataOnly && record.Content != "" {
		content := record.Content
		a.Content = &content
	}
	return a
}
