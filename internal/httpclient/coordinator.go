package httpclient

import "sync"

type refreshOutcome struct {
	access string
	err    error
}

// refreshing is the non-idle coordinator state: one refresh is outstanding
// and these waiters are parked behind it.
type refreshing struct {
	waiters []chan refreshOutcome
}

// coordinator is the single-flight gate in front of the refresh endpoint.
// A nil inflight is the idle state.
type coordinator struct {
	mu       sync.Mutex
	inflight *refreshing
}

// join either makes the caller the leader (returns leader=true) or parks it
// behind the outstanding refresh. Waiter channels are buffered so settle
// never blocks on a waiter that stopped listening.
func (c *coordinator) join() (wait <-chan refreshOutcome, leader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight != nil {
		ch := make(chan refreshOutcome, 1)
		c.inflight.waiters = append(c.inflight.waiters, ch)
		return ch, false
	}
	c.inflight = &refreshing{}
	return nil, true
}

// settle returns the coordinator to idle and releases every waiter with the
// same outcome. It returns how many waiters were released.
func (c *coordinator) settle(out refreshOutcome) int {
	c.mu.Lock()
	r := c.inflight
	c.inflight = nil
	c.mu.Unlock()

	if r == nil {
		return 0
	}
	for _, ch := range r.waiters {
		ch <- out
	}
	return len(r.waiters)
}

// busy reports whether a refresh is outstanding.
func (c *coordinator) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}
