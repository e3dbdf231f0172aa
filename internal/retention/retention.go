// Package retention implements the data-retention purge sweep
// (retention.default_days, spec.md §6): periodically clears the full
// content of Articles past their data_retention_expires_at, leaving the
// metadata row and an audit trail intact. Generalized from the teacher's
// pkg/announce/store.Store cleanupLoop (ticker-driven background sweep,
// stop channel, one cleanup() pass per tick).
package retention

import (
	"context"
	"time"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/domain"
	"github.com/preventia/preventia-core/internal/logging"
)

// Store is the persistence contract the sweep needs from C7.
type Store interface {
	PurgeExpiredContent(ctx context.Context, now time.Time) ([]int64, error)
}

// Sweeper periodically purges expired Article content.
type Sweeper struct {
	store    Store
	audit    *audit.Log
	interval time.Duration
	log      *logging.Logger
	stop     chan struct{}
}

// New builds a Sweeper. interval defaults to 1 hour, matching the
// teacher's default CleanupInterval.
func New(store Store, auditLog *audit.Log, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:    store,
		audit:    auditLog,
		interval: interval,
		log:      logging.Default().WithComponent("retention.sweeper"),
		stop:     make(chan struct{}),
	}
}

// Start runs the purge loop until Close is called.
func (s *Sweeper) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep performs one purge pass, auditing every Article it clears.
func (s *Sweeper) sweep(ctx context.Context) {
	purged, err := s.store.PurgeExpiredContent(ctx, time.Now().UTC())
	if err != nil {
		s.log.Warnf("purge sweep failed: %v", err)
		return
	}
	for _, articleID := range purged {
		s.audit.Record(ctx, domain.ComplianceAuditEntry{
			TableName:   "articles",
			RecordID:    articleID,
			Action:      domain.ActionContentRemoval,
			Status:      domain.AuditStatusPassed,
			PerformedBy: "retention.sweeper",
			PerformedAt: time.Now().UTC(),
			Reason:      "data_retention_expires_at elapsed",
		})
	}
	if len(purged) > 0 {
		s.log.WithField("count", len(purged)).Info("purged expired article content")
	}
}

// Close stops the sweep loop.
func (s *Sweeper) Close() { close(s.stop) }
