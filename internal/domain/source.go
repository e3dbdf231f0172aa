// Package domain holds PreventIA's core entity types: Source, Article,
// ArticleKeyword, ComplianceAuditEntry and LegalNotice, plus the fixed
// taxonomies (TOPIC_SET, AUDIT_ACTIONS) they reference.
package domain

import "time"

// SourceType enumerates the kinds of news site PreventIA ingests from.
type SourceType string

const (
	SourceTypeNewsSite       SourceType = "news_site"
	SourceTypeAcademic       SourceType = "academic"
	SourceTypeGovernment     SourceType = "government"
	SourceTypeNGO            SourceType = "ngo"
	SourceTypeMedicalJournal SourceType = "medical_journal"
)

// ScrapingAllowed is a tri-state robots.txt verdict.
type ScrapingAllowed string

const (
	ScrapingAllowedTrue    ScrapingAllowed = "true"
	ScrapingAllowedFalse   ScrapingAllowed = "false"
	ScrapingAllowedUnknown ScrapingAllowed = "unknown"
)

// ContentType is the stored content level a Source permits.
type ContentType string

const (
	ContentTypeMetadataOnly ContentType = "metadata_only"
	ContentTypeSummaryOnly  ContentType = "summary_only"
	ContentTypeFull         ContentType = "full"
)

// SourceStatus is the Source lifecycle state (§4.1's state machine).
type SourceStatus string

const (
	SourceStatusActive      SourceStatus = "active"
	SourceStatusInactive    SourceStatus = "inactive"
	SourceStatusSuspended   SourceStatus = "suspended"
	SourceStatusUnderReview SourceStatus = "under_review"
	SourceStatusDeleted     SourceStatus = "deleted"
)

// Source is a news site registered for ingestion (spec.md §3).
type Source struct {
	SourceID int64 `json:"source_id"`

	Name     string     `json:"name"`
	BaseURL  string     `json:"base_url"`
	Country  string     `json:"country"`
	Language string     `json:"language"`
	SourceType SourceType `json:"source_type"`

	RobotsTxtURL         string          `json:"robots_txt_url"`
	RobotsTxtLastChecked *time.Time      `json:"robots_txt_last_checked,omitempty"`
	CrawlDelaySeconds    float64         `json:"crawl_delay_seconds"`
	ScrapingAllowed      ScrapingAllowed `json:"scraping_allowed"`
	TermsReviewedAt      *time.Time      `json:"terms_reviewed_at,omitempty"`
	LegalContactEmail    string          `json:"legal_contact_email"`
	FairUseBasis         string          `json:"fair_use_basis"`
	ComplianceScore      float64         `json:"compliance_score"`

	ContentType        ContentType `json:"content_type"`
	DataRetentionDays  int         `json:"data_retention_days"`
	MaxArticlesPerRun  int         `json:"max_articles_per_run"`

	Status    SourceStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// IsActive reports whether this Source's status is active.
func (s *Source) IsActive() bool {
	return s.Status == SourceStatusActive
}

// CanBeEvaluated reports whether a fetch may be evaluated for this source:
// active or under_review sources only (§4.1).
func (s *Source) CanBeEvaluated() bool {
	return s.Status == SourceStatusActive || s.Status == SourceStatusUnderReview
}
