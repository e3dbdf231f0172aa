// Package errs defines PreventIA's error taxonomy: a small set of sentinel
// kinds that every component-level error wraps, so callers can branch on
// errors.Is without parsing message strings.
package errs

import "errors"

// Kind is a coarse error category driving retry/propagation policy.
type Kind int

const (
	// KindCompliance covers robots disallow, rate limiting, legal notice
	// blocks, inactive sources and SSRF rejections. Never retried by the
	// caller; always audited.
	KindCompliance Kind = iota
	// KindExtraction covers selector failures, JS-required pages,
	// non-medical content and malformed HTML. Skipped per-article.
	KindExtraction
	// KindTransientNetwork covers timeouts, 5xx and connection resets.
	// Retried under the orchestrator's backoff policy.
	KindTransientNetwork
	// KindNLPProcessing covers model/load failures, empty content and
	// encoding errors.
	KindNLPProcessing
	// KindPersistence covers any database error other than the expected
	// content_hash duplicate signal.
	KindPersistence
	// KindConfiguration is fatal: the process must refuse to start.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindCompliance:
		return "compliance_fail"
	case KindExtraction:
		return "extraction_fail"
	case KindTransientNetwork:
		return "transient_network_fail"
	case KindNLPProcessing:
		return "nlp_processing_fail"
	case KindPersistence:
		return "persistence_fail"
	case KindConfiguration:
		return "configuration_fail"
	default:
		return "unknown"
	}
}

// Error is a typed, wrapped error carrying a Kind and a machine-readable
// reason code alongside the human message.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Reason + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Reason
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap builds an *Error wrapping cause.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: cause}
}

// Is reports whether err (or something it wraps) is a PreventIA *Error of
// the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// sentinels for conditions callers compare against directly, e.g. the
// content_hash duplicate signal which is an expected outcome, not a
// PersistenceFail.
var (
	// ErrDuplicateContentHash signals a content_hash unique-constraint hit.
	// Callers treat this as an expected "duplicate" outcome.
	ErrDuplicateContentHash = errors.New("duplicate content_hash")
	// ErrNotFound signals a missing row on a keyed lookup.
	ErrNotFound = errors.New("record not found")
)
