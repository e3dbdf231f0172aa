// Package extractor implements the Extractor Framework (C4): a static
// registry of per-domain extractors producing canonical ArticleRecord
// values from listing and article pages. Extractors never fetch directly —
// every network call is routed through the Orchestrator's Fetcher so C1's
// Compliance Evaluator stays the single authority on what may be fetched.
package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// FailureKind enumerates the ways an extractor can fail to produce an
// ArticleRecord (spec.md §4.4).
type FailureKind string

const (
	FailureSelectorNotFound   FailureKind = "selector_not_found"
	FailureJavaScriptRequired FailureKind = "javascript_required"
	FailureNonMedical         FailureKind = "non_medical"
	FailureNetwork            FailureKind = "network"
	FailureRateLimited        FailureKind = "rate_limited"
)

// FailureHTTPStatus builds the http_{code} failure kind spec.md §4.4 names.
func FailureHTTPStatus(code int) FailureKind {
	return FailureKind("http_" + itoa(code))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

// Failure is a non-error per-article extraction outcome: it is counted in
// RunReport.errors, never surfaced as a Go error beyond the orchestrator.
type Failure struct {
	Kind   FailureKind
	Detail string
}

func (f Failure) Error() string { return string(f.Kind) + ": " + f.Detail }

// CandidateLink is one entry a listing page yields: a URL worth fetching
// as a candidate article.
type CandidateLink struct {
	URL         string
	Title       string
	PublishedAt *time.Time
}

// ArticleRecord is the canonical shape every extractor must produce
// (spec.md §4.4).
type ArticleRecord struct {
	URL         string
	Title       string
	Summary     string
	Content     string // full extracted body text; content_type downgrades are applied later, when the Article is built
	PublishedAt time.Time
	Author      string
	Language    string
	ContentHash string
	WordCount   int
}

// Fetcher is the only way an Extractor may reach the network: it routes
// through the Orchestrator, which consults the Compliance Evaluator before
// every call (spec.md §4.4: "Extractors MUST NOT bypass the Compliance
// Evaluator").
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TransientNetworkError marks a Fetcher failure the orchestrator's retry
// policy should retry with backoff (spec.md §7 TransientNetworkFail):
// connection resets, timeouts, DNS failures, 5xx responses.
type TransientNetworkError struct{ Cause error }

func (e *TransientNetworkError) Error() string {
	return "transient network error: " + e.Cause.Error()
}
func (e *TransientNetworkError) Unwrap() error { return e.Cause }

// RateLimitedFetchError signals the origin itself rate-limited the request
// (HTTP 429), distinct from the Compliance Evaluator's own rate_limited
// decision.
type RateLimitedFetchError struct{ RetryAfter time.Duration }

func (e *RateLimitedFetchError) Error() string { return "rate limited by origin (429)" }

// HTTPStatusFetchError is a non-retryable 4xx response other than 429.
type HTTPStatusFetchError struct{ Code int }

func (e *HTTPStatusFetchError) Error() string {
	return "http status " + itoa(e.Code)
}

// ClassifyFetchError turns a Fetcher error into the Failure an Extractor
// should report, preserving the distinction the orchestrator's retry policy
// needs between transient, rate-limited, and permanent fetch failures.
func ClassifyFetchError(err error) *Failure {
	var transient *TransientNetworkError
	var rateLimited *RateLimitedFetchError
	var status *HTTPStatusFetchError
	switch {
	case errors.As(err, &rateLimited):
		return &Failure{Kind: FailureRateLimited, Detail: err.Error()}
	case errors.As(err, &status):
		return &Failure{Kind: FailureHTTPStatus(status.Code), Detail: err.Error()}
	case errors.As(err, &transient):
		return &Failure{Kind: FailureNetwork, Detail: err.Error()}
	default:
		return &Failure{Kind: FailureNetwork, Detail: err.Error()}
	}
}

// Extractor is polymorphic over list_articles/fetch_article (spec.md §4.4).
type Extractor interface {
	// CanHandle reports whether this extractor knows how to process url.
	CanHandle(url string) bool
	// ListArticles enumerates candidate links from a Source's listing
	// page(s), bounded by the caller to source.max_articles_per_run.
	ListArticles(ctx context.Context, f Fetcher, listingURL string, max int) ([]CandidateLink, error)
	// FetchArticle fetches and parses one article page into a canonical
	// ArticleRecord, or a Failure describing why it could not.
	FetchArticle(ctx context.Context, f Fetcher, link CandidateLink) (*ArticleRecord, *Failure)
}

// Registry is the static dispatch table of concrete Extractors (§9's
// design note: "static registry of extractors implementing a common
// capability set; can_handle(url) drives dispatch").
type Registry struct {
	extractors []Extractor
}

// NewRegistry builds a Registry over the given extractors, tried in order.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// For returns the first registered Extractor that can handle url, or nil.
func (r *Registry) For(url string) Extractor {
	for _, e := range r.extractors {
		if e.CanHandle(url) {
			return e
		}
	}
	return nil
}

// ContentHash computes the SHA-256 over canonical article text, used for
// deduplication (spec.md §3's content_hash).
func ContentHash(title, body string) string {
	canonical := strings.TrimSpace(title) + "\n" + strings.TrimSpace(body)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// WordCount counts whitespace-delimited words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// HasMedicalKeyword reports whether any keyword in the configured medical
// keyword set appears (case-insensitive) in text, implementing the
// content-relevance filter spec.md §4.4 requires: "an ArticleRecord is
// discarded (not an error) if none of a configured medical keyword set
// appears in title + body."
func HasMedicalKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// DefaultMedicalKeywords is the baseline breast-cancer relevance filter
// vocabulary; a non-empty per-source keyword list replaces it.
var DefaultMedicalKeywords = []string{
	"breast cancer", "mammogram", "mammography", "chemotherapy", "oncology",
	"tumor", "tumour", "mastectomy", "lumpectomy", "metastasis", "carcinoma",
	"brca", "radiation therapy", "biopsy", "oncologist",
}
