// Package nlp implements the NLP Pipeline (C6): lexicon-based sentiment
// scoring, rule-assisted topic classification, and keyword extraction,
// applied atomically to a pending Article.
package nlp

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/errs"
	"github.com/preventia/preventia-core/internal/logging"
)

// ReasonContentTooShort is the failure reason spec.md §4.6 names for
// input text under 20 characters.
const ReasonContentTooShort = "content_too_short"

const minContentLength = 20

// Config configures a Processor's thresholds (spec.md §6
// nlp.sentiment.*/nlp.keywords.*).
type Config struct {
	PositiveThreshold float64
	NegativeThreshold float64
	KeywordTopN       int
}

// Result is one Article's NLP output, filled atomically (spec.md §4.6:
// "fills the NLP fields in one transaction... Never partially fills").
type Result struct {
	SentimentLabel      domain.SentimentLabel
	SentimentScore      float64
	SentimentConfidence float64
	TopicCategory       domain.Topic
	TopicConfidence     float64
	Keywords            []Keyword
}

// Store is the persistence contract the Processor needs from C7.
type Store interface {
	GetArticle(ctx context.Context, id int64) (*domain.Article, error)
	CompleteNLP(ctx context.Context, articleID int64, result Result) error
	FailNLP(ctx context.Context, articleID int64, reason string) error
}

// SearchIndexer keeps the Analytics Query Layer's free-text index in sync
// with completed Articles (spec.md §4.8: articles_search only ever
// surfaces processing_status=completed rows).
type SearchIndexer interface {
	Index(article *domain.Article, keywords []string) error
}

// Processor is the NLP Pipeline (C6).
type Processor struct {
	store   Store
	audit   *audit.Log
	cfg     Config
	log     *logging.Logger
	indexer SearchIndexer
}

// SetIndexer attaches the search index Process keeps up to date on every
// successful completion. Optional: nil indexer (the default) just skips
// indexing.
func (p *Processor) SetIndexer(indexer SearchIndexer) { p.indexer = indexer }

// New builds a Processor.
func New(store Store, auditLog *audit.Log, cfg Config) *Processor {
	if cfg.KeywordTopN <= 0 {
		cfg.KeywordTopN = 15
	}
	if cfg.PositiveThreshold == 0 {
		cfg.PositiveThreshold = 0.3
	}
	if cfg.NegativeThreshold == 0 {
		cfg.NegativeThreshold = -0.3
	}
	return &Processor{
		store: store,
		audit: auditLog,
		cfg:   cfg,
		log:   logging.Default().WithComponent("nlp.processor"),
	}
}

// Analyze runs the pure scoring pipeline over title+summary, without
// touching persistence. Exposed separately so it stays a deterministic,
// side-effect-free function (spec.md §4.6's determinism guarantee: "for a
// fixed input and configuration, the full output is byte-identical across
// runs").
func (p *Processor) Analyze(title, summary string) (Result, error) {
	text := strings.TrimSpace(title + ". " + summary)
	if !utf8.ValidString(text) {
		return Result{}, errs.New(errs.KindNLPProcessing, "malformed UTF-8 input")
	}
	if len(strings.TrimSpace(title+summary)) < minContentLength {
		return Result{}, errs.New(errs.KindNLPProcessing, ReasonContentTooShort)
	}

	compound := CompoundScore(text)
	label := domain.SentimentNeutral
	switch {
	case compound >= p.cfg.PositiveThreshold:
		label = domain.SentimentPositive
	case compound <= p.cfg.NegativeThreshold:
		label = domain.SentimentNegative
	}

	topic, topicConfidence, matches := scoreTopics(text)
	keywords := ExtractKeywords(text, matches, p.cfg.KeywordTopN)

	return Result{
		SentimentLabel:      label,
		SentimentScore:      compound,
		SentimentConfidence: absFloat(compound),
		TopicCategory:       topic,
		TopicConfidence:      topicConfidence,
		Keywords:             keywords,
	}, nil
}

// Process implements the full C6 operation over one pending Article: load,
// analyze, and persist atomically, flipping processing_status to
// completed or failed (spec.md §4.6).
func (p *Processor) Process(ctx context.Context, articleID int64) error {
	article, err := p.store.GetArticle(ctx, articleID)
	if err != nil {
		return errs.Wrap(errs.KindPersistence, "load article", err)
	}
	if article.ProcessingStatus != domain.ProcessingPending {
		return nil
	}

	result, err := p.Analyze(article.Title, article.Summary)
	if err != nil {
		reason := err.Error()
		if kindErr, ok := err.(*errs.Error); ok {
			reason = kindErr.Reason
		}

		// Only content_too_short is a terminal verdict about this Article's
		// text (spec.md §4.6). Every other Analyze failure — malformed
		// UTF-8, or anything else preprocessing could reject — is reported
		// without mutating the Article: processing_status stays pending so
		// a later retry can pick it up (spec.md §7).
		if reason != ReasonContentTooShort {
			p.log.WithField("article_id", articleID).Warnf("nlp preprocessing error: %v", err)
			return errs.Wrap(errs.KindNLPProcessing, "analyze article", err)
		}

		if failErr := p.store.FailNLP(ctx, articleID, reason); failErr != nil {
			return errs.Wrap(errs.KindPersistence, "record nlp failure", failErr)
		}
		p.audit.Record(ctx, domain.ComplianceAuditEntry{
			TableName: "articles", RecordID: articleID,
			Action: domain.ActionUpdate, Status: domain.AuditStatusFailed,
			PerformedBy: "nlp_processor", PerformedAt: time.Now(),
			Reason: reason,
		})
		return nil
	}

	if err := p.store.CompleteNLP(ctx, articleID, result); err != nil {
		return errs.Wrap(errs.KindPersistence, "persist nlp result", err)
	}

	p.audit.Record(ctx, domain.ComplianceAuditEntry{
		TableName: "articles", RecordID: articleID,
		Action: domain.ActionUpdate, Status: domain.AuditStatusPassed,
		PerformedBy: "nlp_processor", PerformedAt: time.Now(),
	})

	if p.indexer != nil {
		article.ProcessingStatus = domain.ProcessingCompleted
		keywordStrings := make([]string, len(result.Keywords))
		for i, kw := range result.Keywords {
			keywordStrings[i] = kw.Keyword
		}
		if err := p.indexer.Index(article, keywordStrings); err != nil {
			p.log.Warnf("index article %d after nlp completion: %v", articleID, err)
		}
	}
	return nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
