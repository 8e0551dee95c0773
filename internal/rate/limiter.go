package rate

import (
	"context"
	"sync"
	"time"
)

// Config bounds how fast one workspace may call the upstream API.
type Config struct {
	RequestsPerSecond int
	Burst             int
}

// Enabled reports whether cfg describes a real limit.
func (c Config) Enabled() bool {
	return c.RequestsPerSecond > 0 && c.Burst > 0
}

// Limiter is a token bucket.
type Limiter struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
	rate   float64
	burst  float64
	now    func() time.Time
}

// New creates a limiter with a full bucket.
func New(cfg Config) *Limiter {
	return newAt(cfg, time.Now)
}

func newAt(cfg Config, now func() time.Time) *Limiter {
	return &Limiter{
		tokens: float64(cfg.Burst),
		last:   now(),
		rate:   float64(cfg.RequestsPerSecond),
		burst:  float64(cfg.Burst),
		now:    now,
	}
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.last).Seconds()
	l.last = now

	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}

	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Wait blocks until a token becomes available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Manager holds one limiter per workspace.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults Config
}

func NewManager(defaults Config) *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
		defaults: defaults,
	}
}

func (m *Manager) GetLimiter(key string) *Limiter {
	m.mu.RLock()
	if lim, ok := m.limiters[key]; ok {
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[key]; ok {
		return lim
	}
	lim := New(m.defaults)
	m.limiters[key] = lim
	return lim
}

// Wait blocks until key may send another request. A manager with a
// disabled config never blocks.
func (m *Manager) Wait(ctx context.Context, key string) error {
	if m == nil || !m.defaults.Enabled() {
		return nil
	}
	return m.GetLimiter(key).Wait(ctx)
}

// Forget drops the limiter for key once its workspace is evicted.
func (m *Manager) Forget(key string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.limiters, key)
	m.mu.Unlock()
}

// Len returns the number of tracked workspaces.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.limiters)
}
