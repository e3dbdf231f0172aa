// Package compliance implements the Compliance Evaluator (C1): the single
// authority deciding whether a URL may be fetched and what a Source's
// compliance score is.
package compliance

import (
	"context"
	"net/url"
	"time"

	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/logging"
)

// FetchDecision is the result of evaluate_fetch (spec.md §4.1).
type FetchDecision struct {
	Allowed              bool
	Reason               string
	RequiredDelaySeconds float64
	RobotsTxtAge         time.Duration
}

// StoreDecision is the result of evaluate_store (spec.md §4.1).
type StoreDecision struct {
	Allowed          bool
	Reason           string
	ContentLevel     domain.ContentType
	FairUseBasis     string
	RetentionExpires time.Time
}

// Reason codes, matching spec.md §4.1 and §7 verbatim so audit rows and
// API responses carry a stable vocabulary.
const (
	ReasonSourceInactive     = "source_inactive"
	ReasonRobotsUnavailable  = "robots_unavailable"
	ReasonRobotsDisallow     = "robots_disallow"
	ReasonRateLimited        = "rate_limited"
	ReasonBlockedHost        = "blocked_host"
	ReasonLegalNoticeActive  = "legal_notice_active"
	ReasonOK                 = "ok"
)

// AuditWriter is the subset of the Audit Log (C2) the evaluator needs.
// Kept as a narrow interface here so this package never imports the
// storage layer directly.
type AuditWriter interface {
	Record(ctx context.Context, entry domain.ComplianceAuditEntry) error
}

// LegalNoticeChecker looks up active legal notices for a domain.
type LegalNoticeChecker interface {
	ActiveNoticeForDomain(ctx context.Context, forDomain string) (*domain.LegalNotice, error)
}

// Evaluator is the Compliance Evaluator (C1).
type Evaluator struct {
	robots      *RobotsCache
	limiter     *DomainRateLimiter
	audit       AuditWriter
	notices     LegalNoticeChecker
	userAgent   string
	minDelay    float64
	log         *logging.Logger
}

// Config configures an Evaluator.
type Config struct {
	UserAgent           string
	MinRequestDelay     float64
	RobotsCacheTTL      time.Duration
}

// New builds an Evaluator.
func New(cfg Config, audit AuditWriter, notices LegalNoticeChecker) *Evaluator {
	minDelay := cfg.MinRequestDelay
	if minDelay < 1.0 {
		minDelay = 1.0
	}
	return &Evaluator{
		robots:    NewRobotsCache(nil, cfg.UserAgent, cfg.RobotsCacheTTL),
		limiter:   NewDomainRateLimiter(10*time.Minute, 24*time.Hour),
		audit:     audit,
		notices:   notices,
		userAgent: cfg.UserAgent,
		minDelay:  minDelay,
		log:       logging.Default().WithComponent("compliance.evaluator"),
	}
}

// Close releases background resources (the rate limiter's cleanup loop).
func (e *Evaluator) Close() { e.limiter.Close() }

// EvaluateFetch implements evaluate_fetch (spec.md §4.1).
func (e *Evaluator) EvaluateFetch(ctx context.Context, rawURL string, src *domain.Source) FetchDecision {
	if !src.CanBeEvaluated() {
		return e.deny(ctx, src, rawURL, ReasonSourceInactive)
	}

	if blocked, err := IsBlockedHost(rawURL); err != nil {
		return e.deny(ctx, src, rawURL, "invalid_url")
	} else if blocked {
		return e.deny(ctx, src, rawURL, ReasonBlockedHost)
	}

	origin, err := Origin(src.BaseURL)
	if err != nil {
		return e.deny(ctx, src, rawURL, "invalid_base_url")
	}

	robotsData, age, err := e.robots.Get(ctx, origin)
	if err != nil || robotsData == nil {
		return e.deny(ctx, src, rawURL, ReasonRobotsUnavailable)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return e.deny(ctx, src, rawURL, "invalid_url")
	}

	group := robotsData.FindGroup(e.userAgent)
	if !group.Test(u.Path) {
		e.audit.Record(ctx, domain.ComplianceAuditEntry{
			TableName: "sources", RecordID: src.SourceID,
			Action: domain.ActionRobotsCheck, Status: domain.AuditStatusFailed,
			PerformedBy: "compliance_evaluator", PerformedAt: time.Now(),
			Reason: ReasonRobotsDisallow,
		})
		return FetchDecision{Allowed: false, Reason: ReasonRobotsDisallow, RobotsTxtAge: age}
	}

	requiredDelay := e.minDelay
	if group.CrawlDelay > 0 && group.CrawlDelay.Seconds() > requiredDelay {
		requiredDelay = group.CrawlDelay.Seconds()
	}
	if src.CrawlDelaySeconds > requiredDelay {
		requiredDelay = src.CrawlDelaySeconds
	}

	domainHost := u.Hostname()
	allowed, retryAfter := e.limiter.CheckAndReserve(domainHost, time.Duration(requiredDelay*float64(time.Second)))
	if !allowed {
		e.audit.Record(ctx, domain.ComplianceAuditEntry{
			TableName: "sources", RecordID: src.SourceID,
			Action: domain.ActionRobotsCheck, Status: domain.AuditStatusFailed,
			PerformedBy: "compliance_evaluator", PerformedAt: time.Now(),
			Reason: ReasonRateLimited,
		})
		return FetchDecision{
			Allowed: false, Reason: ReasonRateLimited,
			RequiredDelaySeconds: retryAfter.Seconds(), RobotsTxtAge: age,
		}
	}

	e.audit.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: src.SourceID,
		Action: domain.ActionRobotsCheck, Status: domain.AuditStatusPassed,
		PerformedBy: "compliance_evaluator", PerformedAt: time.Now(),
	})
	return FetchDecision{Allowed: true, Reason: ReasonOK, RequiredDelaySeconds: requiredDelay, RobotsTxtAge: age}
}

func (e *Evaluator) deny(ctx context.Context, src *domain.Source, rawURL, reason string) FetchDecision {
	e.audit.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: src.SourceID,
		Action: domain.ActionRobotsCheck, Status: domain.AuditStatusFailed,
		PerformedBy: "compliance_evaluator", PerformedAt: time.Now(),
		Reason: reason,
	})
	e.log.WithFields(logging.Fields{"url": rawURL, "reason": reason}).Warn("fetch denied")
	return FetchDecision{Allowed: false, Reason: reason}
}

// EvaluateStore implements evaluate_store (spec.md §4.1).
func (e *Evaluator) EvaluateStore(ctx context.Context, scrapedAt time.Time, src *domain.Source) StoreDecision {
	domainName, err := hostOf(src.BaseURL)
	if err == nil && e.notices != nil {
		if notice, err := e.notices.ActiveNoticeForDomain(ctx, domainName); err == nil && notice != nil && notice.IsActive() {
			e.audit.Record(ctx, domain.ComplianceAuditEntry{
				TableName: "sources", RecordID: src.SourceID,
				Action: domain.ActionValidate, Status: domain.AuditStatusFailed,
				PerformedBy: "compliance_evaluator", PerformedAt: time.Now(),
				Reason: ReasonLegalNoticeActive,
			})
			return StoreDecision{Allowed: false, Reason: ReasonLegalNoticeActive}
		}
	}

	contentLevel := src.ContentType
	if contentLevel != domain.ContentTypeMetadataOnly && len(src.FairUseBasis) < 50 {
		contentLevel = domain.ContentTypeMetadataOnly
	}

	retention := scrapedAt.AddDate(0, 0, src.DataRetentionDays)

	return StoreDecision{
		Allowed:          true,
		Reason:           ReasonOK,
		ContentLevel:     contentLevel,
		FairUseBasis:     src.FairUseBasis,
		RetentionExpires: retention,
	}
}

// ScoreFactors are the five booleans ScoreSource weighs, 0.2 each.
type ScoreFactors struct {
	RobotsTxtCompliant    bool
	LegalContactVerified  bool
	TermsAcceptable       bool
	FairUseDocumented     bool
	DataMinimizationApplied bool
}

// ScoreSource implements score_source (spec.md §4.1): a deterministic
// weighted sum over five booleans, each weighted 0.2.
func (e *Evaluator) ScoreSource(ctx context.Context, src *domain.Source, factors ScoreFactors) (float64, domain.RiskLevel) {
	score := 0.0
	for _, ok := range []bool{
		factors.RobotsTxtCompliant,
		factors.LegalContactVerified,
		factors.TermsAcceptable,
		factors.FairUseDocumented,
		factors.DataMinimizationApplied,
	} {
		if ok {
			score += 0.2
		}
	}

	risk := domain.RiskLevelForScore(score)

	before := src.ComplianceScore
	e.audit.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "sources", RecordID: src.SourceID,
		Action: domain.ActionValidate, Status: domain.AuditStatusPassed,
		PerformedBy:           "compliance_evaluator",
		PerformedAt:           time.Now(),
		ComplianceScoreBefore: &before,
		ComplianceScoreAfter:  &score,
		RiskLevel:             risk,
	})

	return score, risk
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}
