// Package session implements the guard every protected page runs before it
// renders: one identity check per mount, role enforcement, and a
// revocation poll while the page stays open.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/access"
	"github.com/scp-platform/supplier-console/internal/credentials"
	"github.com/scp-platform/supplier-console/internal/httpclient"
	"github.com/scp-platform/supplier-console/internal/metrics"
	"github.com/scp-platform/supplier-console/pkg/model"
)

// DefaultPollInterval is how often an authorized guard checks that the
// access credential still exists.
const DefaultPollInterval = 2 * time.Second

var (
	errNoCredential = errors.New("no access credential")
	errNoResolver   = errors.New("identity cannot be resolved")
)

// State is a guard's position in its lifecycle.
type State int

const (
	Unchecked State = iota
	Checking
	Authorized
	Unauthorized
	Forbidden
	// Skipped is the sign-in page itself: children render, nothing is checked.
	Skipped
)

func (s State) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checking:
		return "checking"
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Resolver answers "who am I" for the current credential.
type Resolver interface {
	CurrentUser(ctx context.Context) (model.UserIdentity, error)
}

// TransitionHook observes every settled state.
type TransitionHook func(ctx context.Context, to State, identity *model.UserIdentity, location string)

// Config wires a Guard.
type Config struct {
	Store        credentials.Store
	Identities   *IdentityCache
	Resolver     Resolver
	Navigator    httpclient.Navigator
	AllowedRoles []model.Role
	// RedirectTo overrides the sign-in location used on Unauthorized.
	RedirectTo   string
	PollInterval time.Duration
	// SignOut is the best-effort cleanup run when the session is found gone.
	SignOut      func(ctx context.Context)
	OnTransition TransitionHook
	Logger       *zap.Logger
}

// Guard is the per-mount session state machine.
type Guard struct {
	cfg Config

	mountOnce  sync.Once
	redirected atomic.Bool

	mu       sync.Mutex
	state    State
	identity *model.UserIdentity
	location string

	settled       chan struct{}
	settleOnce    sync.Once
	signedOut     chan struct{}
	signedOutOnce sync.Once

	pollStop    chan struct{}
	pollDone    chan struct{}
	unmountOnce sync.Once
}

func NewGuard(cfg Config) *Guard {
	if cfg.Identities == nil {
		cfg.Identities = NewIdentityCache()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Navigator == nil {
		cfg.Navigator = nopNavigator{}
	}
	return &Guard{
		cfg:       cfg,
		state:     Unchecked,
		settled:   make(chan struct{}),
		signedOut: make(chan struct{}),
		pollStop:  make(chan struct{}),
	}
}

// Mount runs the identity check the first time it is called; later calls
// (re-renders) only report the current state.
func (g *Guard) Mount(ctx context.Context) State {
	g.mountOnce.Do(func() { g.check(ctx) })
	return g.State()
}

func (g *Guard) check(ctx context.Context) {
	loc := g.cfg.Navigator.Location(ctx)
	g.mu.Lock()
	g.location = loc
	g.mu.Unlock()

	if g.atSignIn(loc) {
		g.settle(ctx, Skipped, nil)
		return
	}

	g.setState(Checking)
	identity, err := g.resolve(ctx)
	switch {
	case err != nil:
		g.cfg.Logger.Info("guard.unauthorized", zap.String("location", loc), zap.Error(err))
		// Only a missing access entry ends the session; a failed lookup leaves
		// the stored credentials alone.
		g.unauthorized(ctx, errors.Is(err, errNoCredential))
	case !access.Allowed(identity.Role, g.cfg.AllowedRoles):
		g.settle(ctx, Forbidden, &identity)
		home := access.HomeFor(identity.Role)
		g.cfg.Logger.Info("guard.forbidden",
			zap.String("location", loc),
			zap.String("role", string(identity.Role)),
			zap.String("to", home))
		g.redirect(ctx, home)
	default:
		g.settle(ctx, Authorized, &identity)
		g.startPoll(ctx)
	}
}

func (g *Guard) atSignIn(loc string) bool {
	return httpclient.Endpoints{SignIn: access.SignIn}.AtSignIn(loc)
}

// resolve prefers the cached identity, then the stored snapshot, then the
// upstream. Nothing is resolvable without an access entry.
func (g *Guard) resolve(ctx context.Context) (model.UserIdentity, error) {
	if !g.cfg.Store.Present(ctx) {
		return model.UserIdentity{}, errNoCredential
	}
	if u, ok := g.cfg.Identities.Get(); ok {
		return u, nil
	}
	if u, ok := g.cfg.Store.User(ctx); ok {
		g.cfg.Identities.Set(*u)
		return *u, nil
	}
	if g.cfg.Resolver == nil {
		return model.UserIdentity{}, errNoResolver
	}
	u, err := g.cfg.Resolver.CurrentUser(ctx)
	if err != nil {
		return model.UserIdentity{}, err
	}
	g.cfg.Identities.Set(u)
	g.cfg.Store.SetUser(ctx, u)
	return u, nil
}

// unauthorized clears the cached identity and sends the visitor to sign-in.
// The best-effort sign-out runs only when signOut is set, i.e. the access
// entry is gone.
func (g *Guard) unauthorized(ctx context.Context, signOut bool) {
	g.cfg.Identities.Clear()
	if signOut && g.cfg.SignOut != nil {
		g.cfg.SignOut(ctx)
	}
	g.settle(ctx, Unauthorized, nil)

	to := g.cfg.RedirectTo
	if to == "" {
		to = access.SignInURL(g.Location())
	}
	g.redirect(ctx, to)
	g.signedOutOnce.Do(func() { close(g.signedOut) })
}

// redirect issues at most one redirect per guard.
func (g *Guard) redirect(ctx context.Context, to string) {
	if !g.redirected.CompareAndSwap(false, true) {
		return
	}
	g.cfg.Logger.Debug("guard.redirect", zap.String("to", to))
	g.cfg.Navigator.Redirect(ctx, to)
}

func (g *Guard) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

func (g *Guard) settle(ctx context.Context, s State, identity *model.UserIdentity) {
	g.mu.Lock()
	g.state = s
	g.identity = identity
	loc := g.location
	g.mu.Unlock()

	g.settleOnce.Do(func() { close(g.settled) })
	metrics.IncGuardOutcome(s.String())
	if g.cfg.OnTransition != nil {
		g.cfg.OnTransition(ctx, s, identity, loc)
	}
}

func (g *Guard) startPoll(ctx context.Context) {
	g.mu.Lock()
	g.pollDone = make(chan struct{})
	done := g.pollDone
	g.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(g.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-g.pollStop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if g.State() != Authorized {
					return
				}
				if !g.cfg.Store.Present(ctx) {
					g.cfg.Logger.Info("guard.credential_revoked", zap.String("location", g.Location()))
					g.unauthorized(ctx, true)
					return
				}
			}
		}
	}()
}

// Unmount stops the revocation poll and waits for it to exit. It is safe to
// call more than once and before Mount.
func (g *Guard) Unmount() {
	g.unmountOnce.Do(func() { close(g.pollStop) })
	g.mu.Lock()
	done := g.pollDone
	g.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Wait blocks until the guard leaves Checking or ctx is done.
func (g *Guard) Wait(ctx context.Context) (State, error) {
	select {
	case <-g.settled:
		return g.State(), nil
	case <-ctx.Done():
		return g.State(), ctx.Err()
	}
}

// SignedOut is closed when the guard reaches Unauthorized.
func (g *Guard) SignedOut() <-chan struct{} {
	return g.signedOut
}

func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Renderable reports whether the page may render its children.
func (g *Guard) Renderable() bool {
	s := g.State()
	return s == Authorized || s == Skipped
}

// Session is the page-facing view of the guard.
func (g *Guard) Session() model.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	var id *model.UserIdentity
	if g.identity != nil {
		u := *g.identity
		id = &u
	}
	return model.Session{
		Identity: id,
		Checked:  g.state != Unchecked && g.state != Checking,
	}
}

// Location is the location the guard was mounted at.
func (g *Guard) Location() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.location
}

type nopNavigator struct{}

func (nopNavigator) Location(context.Context) string  { return "" }
func (nopNavigator) Redirect(context.Context, string) {}
