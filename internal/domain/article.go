package domain

import "time"

// SentimentLabel is the conservative VADER-style classification.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// CopyrightStatus tracks an Article's legal clearance.
type CopyrightStatus string

const (
	CopyrightUnknown   CopyrightStatus = "unknown"
	CopyrightCleared   CopyrightStatus = "cleared"
	CopyrightFairUse   CopyrightStatus = "fair_use"
	CopyrightViolation CopyrightStatus = "violation"
)

// LegalReviewStatus tracks manual legal review of an Article.
type LegalReviewStatus string

const (
	LegalReviewPending     LegalReviewStatus = "pending"
	LegalReviewNeedsReview LegalReviewStatus = "needs_review"
	LegalReviewApproved    LegalReviewStatus = "approved"
	LegalReviewRejected    LegalReviewStatus = "rejected"
)

// ProcessingStatus tracks the NLP pipeline's progress over an Article.
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// Topic is one of the ten fixed medical categories (TOPIC_SET).
type Topic string

const (
	TopicTreatment Topic = "treatment"
	TopicResearch  Topic = "research"
	TopicSurgery   Topic = "surgery"
	TopicDiagnosis Topic = "diagnosis"
	TopicGenetics  Topic = "genetics"
	TopicPrevention Topic = "prevention"
	TopicScreening Topic = "screening"
	TopicLifestyle Topic = "lifestyle"
	TopicPolicy    Topic = "policy"
	TopicGeneral   Topic = "general"
)

// TopicSet is TOPIC_SET, ordered by priority for tie-breaks (spec.md §3).
var TopicSet = []Topic{
	TopicTreatment,
	TopicResearch,
	TopicSurgery,
	TopicDiagnosis,
	TopicGenetics,
	TopicPrevention,
	TopicScreening,
	TopicLifestyle,
	TopicPolicy,
	TopicGeneral,
}

// TopicPriority returns t's tie-break rank (lower wins), or len(TopicSet)
// if t is not a recognised topic.
func TopicPriority(t Topic) int {
	for i, candidate := range TopicSet {
		if candidate == t {
			return i
		}
	}
	return len(TopicSet)
}

// Article is one ingested item (spec.md §3).
type Article struct {
	ArticleID   int64  `json:"article_id"`
	URL         string `json:"url"`
	ContentHash string `json:"content_hash"`

	SourceID int64 `json:"source_id"`

	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	Content    *string    `json:"content,omitempty"`
	WordCount  int        `json:"word_count"`
	Language   string     `json:"language"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ScrapedAt  time.Time  `json:"scraped_at"`
	Author     *string    `json:"author,omitempty"`

	RobotsTxtCompliant     ScrapingAllowed   `json:"robots_txt_compliant"`
	CopyrightStatus        CopyrightStatus   `json:"copyright_status"`
	FairUseBasis           string            `json:"fair_use_basis"`
	ScrapingPermission     bool              `json:"scraping_permission"`
	LegalReviewStatus      LegalReviewStatus `json:"legal_review_status"`
	DataRetentionExpiresAt time.Time         `json:"data_retention_expires_at"`

	SentimentLabel      *SentimentLabel   `json:"sentiment_label,omitempty"`
	SentimentScore      *float64          `json:"sentiment_score,omitempty"`
	SentimentConfidence *float64          `json:"sentiment_confidence,omitempty"`
	TopicCategory       *Topic            `json:"topic_category,omitempty"`
	TopicConfidence     *float64          `json:"topic_confidence,omitempty"`
	ProcessingStatus    ProcessingStatus  `json:"processing_status"`
}

// NLPFieldsComplete reports whether every NLP field is populated, which
// must hold iff ProcessingStatus == ProcessingCompleted (testable
// property 1).
func (a *Article) NLPFieldsComplete() bool {
	return a.SentimentLabel != nil && a.SentimentScore != nil &&
		a.SentimentConfidence != nil && a.TopicCategory != nil && a.TopicConfidence != nil
}

// ArticleKeyword is (article_id, keyword, relevance_score, keyword_type).
type ArticleKeyword struct {
	ArticleID      int64   `json:"article_id"`
	Keyword        string  `json:"keyword"`
	RelevanceScore float64 `json:"relevance_score"`
	KeywordType    string  `json:"keyword_type"`
}
