// Package sources implements the Source Registry (C3): CRUD and lifecycle
// management over Source, plus the creation-time validation spec.md §4.3
// requires (valid base URL, fair-use basis length, SSRF guard, crawl delay
// floor, content-type gate).
package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/compliance"
	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/errs"
	"github.com/preventia/preventia-core/internal/logging"
)

// Store is the persistence contract the registry needs from C7.
type Store interface {
	InsertSource(ctx context.Context, s *domain.Source) (int64, error)
	UpdateSource(ctx context.Context, s *domain.Source) error
	GetSource(ctx context.Context, id int64) (*domain.Source, error)
	ListSources(ctx context.Context, status domain.SourceStatus) ([]*domain.Source, error)
	SoftDeleteSource(ctx context.Context, id int64, performedBy string) error
}

// Registry is the Source Registry (C3).
type Registry struct {
	store Store
	audit *audit.Log
	log   *logging.Logger

	// fullOverrideHash is a bcrypt hash of the elevated-privilege override
	// token required to register a source with content_type=full. Empty
	// disables the override path entirely (§9's open question: full is
	// gated, never implicit).
	fullOverrideHash string
}

// New builds a Registry. fullOverrideHash may be empty to disable the
// full-content override path.
func New(store Store, auditLog *audit.Log, fullOverrideHash string) *Registry {
	return &Registry{
		store:            store,
		audit:            auditLog,
		log:              logging.Default().WithComponent("sources.registry"),
		fullOverrideHash: fullOverrideHash,
	}
}

// ValidationError reports one field-level failure, collected so a caller
// (e.g. the REST API) can surface every problem at once rather than one
// at a time.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CreateInput is the caller-supplied shape for Create; FullContentOverrideToken
// is only consulted when ContentType == domain.ContentTypeFull.
type CreateInput struct {
	Source                   domain.Source
	FullContentOverrideToken string
}

// Create validates and persists a new Source, emitting a `create` audit
// entry. Returns the collected ValidationErrors if input fails validation;
// no row is written and no audit entry is produced in that case (spec.md
// §4.3, §8 boundary behaviours).
func (r *Registry) Create(ctx context.Context, in CreateInput) (*domain.Source, []ValidationError) {
	s := in.Source

	if verrs := r.validateCreate(&s, in.FullContentOverrideToken); len(verrs) > 0 {
		return nil, verrs
	}

	now := time.Now().UTC()
	s.Status = domain.SourceStatusUnderReview
	s.CreatedAt = now
	s.UpdatedAt = now
	s.ComplianceScore = 0 // ScoreSource audits each score it computes but does not write it back here

	id, err := r.store.InsertSource(ctx, &s)
	if err != nil {
		r.log.WithField("base_url", s.BaseURL).Warnf("insert source failed: %v", err)
		return nil, []ValidationError{{Field: "_", Message: err.Error()}}
	}
	s.SourceID = id

	r.audit.Record(ctx, domain.ComplianceAuditEntry{
		TableName:   "sources",
		RecordID:    id,
		Action:      domain.ActionCreate,
		Status:      domain.AuditStatusPassed,
		NewValues:   s,
		PerformedBy: "source_registry",
		PerformedAt: now,
	})

	return &s, nil
}

func (r *Registry) validateCreate(s *domain.Source, overrideToken string) []ValidationError {
	var verrs []ValidationError

	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		verrs = append(verrs, ValidationError{"base_url", "must be a valid absolute URL"})
	} else if blocked, _ := compliance.IsBlockedHost(s.BaseURL); blocked {
		verrs = append(verrs, ValidationError{"base_url", "resolves to a private or loopback host"})
	}

	if len(s.FairUseBasis) < 50 {
		verrs = append(verrs, ValidationError{"fair_use_basis", "must be at least 50 characters"})
	}

	if s.CrawlDelaySeconds < 1.0 {
		verrs = append(verrs, ValidationError{"crawl_delay_seconds", "must be >= 1.0"})
	}

	if s.DataRetentionDays < 30 || s.DataRetentionDays > 2555 {
		verrs = append(verrs, ValidationError{"data_retention_days", "must be between 30 and 2555"})
	}

	if s.MaxArticlesPerRun < 1 || s.MaxArticlesPerRun > 500 {
		verrs = append(verrs, ValidationError{"max_articles_per_run", "must be between 1 and 500"})
	}

	switch s.ContentType {
	case domain.ContentTypeMetadataOnly, domain.ContentTypeSummaryOnly:
		// always permitted
	case domain.ContentTypeFull:
		if err := r.checkFullOverride(overrideToken); err != nil {
			verrs = append(verrs, ValidationError{"content_type", "full requires a valid operator override: " + err.Error()})
		}
	default:
		verrs = append(verrs, ValidationError{"content_type", "must be one of metadata_only, summary_only, full"})
	}

	return verrs
}

// checkFullOverride verifies token against the configured bcrypt hash. An
// empty configured hash disables the override path entirely.
func (r *Registry) checkFullOverride(token string) error {
	if r.fullOverrideHash == "" {
		return fmt.Errorf("full content override is not configured")
	}
	if token == "" {
		return fmt.Errorf("override token required")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(r.fullOverrideHash), []byte(token)); err != nil {
		return fmt.Errorf("invalid override token")
	}
	return nil
}

// Get returns a Source by id.
func (r *Registry) Get(ctx context.Context, id int64) (*domain.Source, error) {
	return r.store.GetSource(ctx, id)
}

// List returns every Source in the given status, or every Source,
// soft-deleted ones included, when status is empty.
func (r *Registry) List(ctx context.Context, status domain.SourceStatus) ([]*domain.Source, error) {
	return r.store.ListSources(ctx, status)
}

// Update applies a mutation to a Source, diffing old vs. new values into
// the audit entry (spec.md §4.3: "every mutation emits an audit entry with
// old_values/new_values diffs").
func (r *Registry) Update(ctx context.Context, id int64, mutate func(*domain.Source) error) (*domain.Source, error) {
	existing, err := r.store.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}
	old := *existing

	updated := *existing
	if err := mutate(&updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := r.store.UpdateSource(ctx, &updated); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "update source", err)
	}

	r.audit.Record(ctx, domain.ComplianceAuditEntry{
		TableName:   "sources",
		RecordID:    id,
		Action:      domain.ActionUpdate,
		Status:      domain.AuditStatusPassed,
		OldValues:   old,
		NewValues:   updated,
		PerformedBy: "source_registry",
		PerformedAt: updated.UpdatedAt,
	})

	return &updated, nil
}

// Transition drives the Source lifecycle state machine (spec.md §4.1):
// under_review<->active; active->suspended (legal notice or score<0.4);
// any->deleted (soft). Invalid transitions are rejected.
func (r *Registry) Transition(ctx context.Context, id int64, to domain.SourceStatus, reason string) (*domain.Source, error) {
	existing, err := r.store.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}
	if !validTransition(existing.Status, to) {
		return nil, fmt.Errorf("invalid transition %s -> %s", existing.Status, to)
	}

	action := domain.ActionUpdate
	switch to {
	case domain.SourceStatusActive:
		action = domain.ActionActivate
	case domain.SourceStatusSuspended:
		action = domain.ActionSuspend
	case domain.SourceStatusUnderReview:
		action = domain.ActionReview
	case domain.SourceStatusDeleted:
		action = domain.ActionDelete
	}

	old := *existing
	updated := *existing
	updated.Status = to
	updated.UpdatedAt = time.Now().UTC()

	if to == domain.SourceStatusDeleted {
		if err := r.store.SoftDeleteSource(ctx, id, "source_registry"); err != nil {
			return nil, errs.Wrap(errs.KindPersistence, "soft delete source", err)
		}
	} else if err := r.store.UpdateSource(ctx, &updated); err != nil {
		return nil, errs.Wrap(errs.KindPersistence, "transition source", err)
	}

	r.audit.Record(ctx, domain.ComplianceAuditEntry{
		TableName:   "sources",
		RecordID:    id,
		Action:      action,
		Status:      domain.AuditStatusPassed,
		OldValues:   old,
		NewValues:   updated,
		PerformedBy: "source_registry",
		PerformedAt: updated.UpdatedAt,
		Reason:      reason,
	})

	return &updated, nil
}

// validTransition implements the state machine in spec.md §4.1.
func validTransition(from, to domain.SourceStatus) bool {
	if to == domain.SourceStatusDeleted {
		return from != domain.SourceStatusDeleted
	}
	switch from {
	case domain.SourceStatusUnderReview:
		return to == domain.SourceStatusActive || to == domain.SourceStatusUnderReview
	case domain.SourceStatusActive:
		return to == domain.SourceStatusSuspended || to == domain.SourceStatusUnderReview || to == domain.SourceStatusActive
	case domain.SourceStatusSuspended:
		return to == domain.SourceStatusUnderReview || to == domain.SourceStatusActive
	case domain.SourceStatusInactive:
		return to == domain.SourceStatusActive || to == domain.SourceStatusUnderReview
	default:
		return false
	}
}

// HashOverrideToken is exposed for the admin CLI (cmd/preventia-admin) to
// produce the bcrypt hash an operator configures as
// Config.Sources.FullContentOverrideHash.
func HashOverrideToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
