package httpclient

import (
	"context"
	"strings"
)

// Navigator exposes the caller's current location and performs hard
// redirects. The console binds it to the browser request carried in ctx.
type Navigator interface {
	Location(ctx context.Context) string
	Redirect(ctx context.Context, to string)
}

// Endpoints names the routes the authorization protocol treats specially.
type Endpoints struct {
	Refresh string // upstream refresh endpoint
	Logout  string // upstream sign-out endpoint
	SignIn  string // console sign-in entry point
}

// DefaultEndpoints returns the supplier API layout.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Refresh: "/auth/refresh",
		Logout:  "/auth/logout",
		SignIn:  "/login",
	}
}

// AtSignIn reports whether location (path plus optional query) is the
// sign-in entry point.
func (e Endpoints) AtSignIn(location string) bool {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	return strings.TrimSuffix(location, "/") == strings.TrimSuffix(e.SignIn, "/")
}

func (e Endpoints) exempt(path string) bool {
	p := stripQuery(path)
	return p == e.Refresh || p == e.Logout
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
