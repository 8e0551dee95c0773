package workspace

import (
	"context"
	"sync"
)

type navKey struct{}

// Navigation is the browser request a workspace call is serving: where the
// browser is, and where it must be sent once the call returns.
type Navigation struct {
	location string

	mu     sync.Mutex
	target string
}

// WithNavigation binds a Navigation for location to ctx.
func WithNavigation(ctx context.Context, location string) (context.Context, *Navigation) {
	n := &Navigation{location: location}
	return context.WithValue(ctx, navKey{}, n), n
}

// NavigationFrom returns the Navigation bound to ctx, or nil.
func NavigationFrom(ctx context.Context) *Navigation {
	n, _ := ctx.Value(navKey{}).(*Navigation)
	return n
}

func (n *Navigation) Location() string { return n.location }

// Target is the pending redirect, empty when none was requested.
func (n *Navigation) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.target
}

func (n *Navigation) redirect(to string) {
	n.mu.Lock()
	n.target = to
	n.mu.Unlock()
}

// Navigator resolves location and redirects against the Navigation bound to
// the call's ctx. The last redirect requested during a call wins, so a
// guard's sign-in URL carrying the return location replaces the client's
// bare sign-in redirect.
type Navigator struct{}

func (Navigator) Location(ctx context.Context) string {
	if n := NavigationFrom(ctx); n != nil {
		return n.location
	}
	return ""
}

func (Navigator) Redirect(ctx context.Context, to string) {
	if n := NavigationFrom(ctx); n != nil {
		n.redirect(to)
	}
}
