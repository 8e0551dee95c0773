package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/pkg/model"
)

// DBExecutor is the subset of pgxpool.Pool the audit writer needs.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createAuditTable = `
	CREATE TABLE IF NOT EXISTS console_session_audit (
		id         UUID PRIMARY KEY,
		event_type TEXT NOT NULL,
		workspace  TEXT NOT NULL,
		user_id    TEXT,
		role       TEXT,
		path       TEXT,
		reason     TEXT,
		source     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
`

const insertAuditRow = `
	INSERT INTO console_session_audit (
		id, event_type, workspace, user_id, role, path, reason, source, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING;
`

// AuditWriter appends session events to the console_session_audit table.
type AuditWriter struct {
	db     DBExecutor
	logger *zap.Logger
	source string
}

// NewAuditWriter constructs a writer. source identifies the console
// instance writing the rows.
func NewAuditWriter(db DBExecutor, logger *zap.Logger, source string) *AuditWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditWriter{db: db, logger: logger, source: source}
}

// EnsureSchema creates the audit table when missing.
func (w *AuditWriter) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, createAuditTable); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

func (w *AuditWriter) Name() string { return "audit" }

// Publish inserts evt. Replays of the same event id are ignored.
func (w *AuditWriter) Publish(ctx context.Context, evt model.SessionEvent) error {
	_, err := w.db.Exec(ctx, insertAuditRow,
		evt.ID,
		string(evt.Type),
		evt.Workspace,
		evt.UserID,
		string(evt.Role),
		evt.Path,
		evt.Reason,
		w.source,
		evt.Timestamp,
	)
	if err != nil {
		w.logger.Error("audit.insert_failed",
			zap.String("event_id", evt.ID.String()),
			zap.String("type", string(evt.Type)),
			zap.Error(err))
		return err
	}
	return nil
}
