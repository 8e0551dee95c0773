package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/events"
)

const pruneAudit = `DELETE FROM console_session_audit WHERE created_at < $1`

// AuditPruner periodically drops session audit rows older than the
// retention window.
type AuditPruner struct {
	logger    *zap.Logger
	db        events.DBExecutor
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

func NewAuditPruner(logger *zap.Logger, db events.DBExecutor, interval, retention time.Duration) *AuditPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &AuditPruner{
		logger:    logger,
		db:        db,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the prune loop until Stop is called or ctx is done.
func (p *AuditPruner) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("audit_pruner.started",
		zap.Duration("interval", p.interval),
		zap.Duration("retention", p.retention))

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.stopCh:
			p.logger.Info("audit_pruner.stopped (manual stop)")
			return
		case <-ctx.Done():
			p.logger.Info("audit_pruner.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the pruner. Call it at most once.
func (p *AuditPruner) Stop() {
	close(p.stopCh)
}

func (p *AuditPruner) runOnce(ctx context.Context) {
	start := p.now()
	cutoff := start.Add(-p.retention).UTC()

	tag, err := p.db.Exec(ctx, pruneAudit, cutoff)
	if err != nil {
		p.logger.Error("audit_pruner.prune_failed", zap.Error(err))
		return
	}

	p.logger.Info("audit_pruner.success",
		zap.Int64("rows", tag.RowsAffected()),
		zap.Time("cutoff", cutoff),
		zap.Duration("duration", time.Since(start)))
}
