package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLimiter_BurstThenRefill(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	lim := newAt(Config{RequestsPerSecond: 2, Burst: 3}, clk.now)

	for i := 0; i < 3; i++ {
		assert.True(t, lim.Allow(), "burst token %d", i)
	}
	assert.False(t, lim.Allow(), "bucket must be empty after burst")

	clk.advance(500 * time.Millisecond)
	assert.True(t, lim.Allow(), "one token refilled after half a second at 2 rps")
	assert.False(t, lim.Allow())
}

func TestLimiter_RefillCappedAtBurst(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	lim := newAt(Config{RequestsPerSecond: 10, Burst: 2}, clk.now)

	clk.advance(time.Hour)
	assert.True(t, lim.Allow())
	assert.True(t, lim.Allow())
	assert.False(t, lim.Allow())
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	lim := New(Config{RequestsPerSecond: 1, Burst: 1})
	require.True(t, lim.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, lim.Wait(ctx), context.DeadlineExceeded)
}

func TestManager_PerKeyLimiters(t *testing.T) {
	m := NewManager(Config{RequestsPerSecond: 1, Burst: 1})

	a := m.GetLimiter("ws-a")
	assert.Same(t, a, m.GetLimiter("ws-a"))
	assert.NotSame(t, a, m.GetLimiter("ws-b"))
	assert.Equal(t, 2, m.Len())

	m.Forget("ws-a")
	assert.Equal(t, 1, m.Len())
}

func TestManager_DisabledNeverBlocks(t *testing.T) {
	m := NewManager(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Wait(ctx, "ws"))
	}
	assert.Equal(t, 0, m.Len())

	var nilMgr *Manager
	assert.NoError(t, nilMgr.Wait(ctx, "ws"))
}
