package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockDB struct {
	mu    sync.Mutex
	calls [][]any
	sqls  []string
	err   error
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sqls = append(m.sqls, sql)
	m.calls = append(m.calls, args)
	return pgconn.NewCommandTag("DELETE 3"), m.err
}

func (m *mockDB) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestAuditPruner_RunOnceUsesRetentionCutoff(t *testing.T) {
	db := &mockDB{}
	p := NewAuditPruner(zap.NewNop(), db, time.Hour, 30*24*time.Hour)
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.runOnce(context.Background())

	require.Len(t, db.calls, 1)
	assert.Equal(t, pruneAudit, db.sqls[0])
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), db.calls[0][0])
}

func TestAuditPruner_RunOnceSurvivesError(t *testing.T) {
	db := &mockDB{err: errors.New("connection reset")}
	p := NewAuditPruner(zap.NewNop(), db, time.Hour, time.Hour)

	assert.NotPanics(t, func() { p.runOnce(context.Background()) })
	assert.Equal(t, 1, db.count())
}

func TestAuditPruner_StartTicksUntilStopped(t *testing.T) {
	db := &mockDB{}
	p := NewAuditPruner(zap.NewNop(), db, 5*time.Millisecond, time.Hour)

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return db.count() >= 2 }, time.Second, 5*time.Millisecond)
	p.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestAuditPruner_StopsOnContextCancel(t *testing.T) {
	p := NewAuditPruner(zap.NewNop(), &mockDB{}, time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner ignored cancellation")
	}
}

func TestAuditPruner_ZeroIntervalDoesNotPanic(t *testing.T) {
	p := NewAuditPruner(zap.NewNop(), &mockDB{}, 0, time.Hour)
	assert.Equal(t, 24*time.Hour, p.interval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { p.Start(ctx) })
}
