// Package credentials holds the access and refresh credentials of a console
// workspace. It is the only code allowed to touch credential storage.
package credentials

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/scp-platform/supplier-console/pkg/model"
)

// Fixed entry names in durable storage.
const (
	AccessKey  = "auth_token"
	RefreshKey = "refresh_token"
	UserKey    = "user_data"
)

// Store is the credential holder shared by the request client, the session
// guard and the login/logout flows. Implementations never return errors:
// storage failures read as "not authenticated".
type Store interface {
	// Get returns the credential pair when a usable access credential exists.
	// An absent, expired-looking or unreadable access entry yields false.
	Get(ctx context.Context) (model.Credential, bool)
	// Refresh returns the refresh credential, if any.
	Refresh(ctx context.Context) (string, bool)
	// Present reports whether the access entry exists at all.
	Present(ctx context.Context) bool
	// Set writes access, and refresh only when it is non-empty.
	Set(ctx context.Context, access, refresh string)
	// Clear removes both credentials and the identity snapshot.
	Clear(ctx context.Context)

	User(ctx context.Context) (*model.UserIdentity, bool)
	SetUser(ctx context.Context, user model.UserIdentity)
}

var parser = jwt.NewParser()

// looksExpired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens never look expired; the upstream is the judge for those.
func looksExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
