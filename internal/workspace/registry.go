// Package workspace holds one credential store, request client and identity
// cache per browser session, keyed by the session cookie.
package workspace

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/credentials"
	"github.com/scp-platform/supplier-console/internal/events"
	"github.com/scp-platform/supplier-console/internal/httpclient"
	"github.com/scp-platform/supplier-console/internal/rate"
	"github.com/scp-platform/supplier-console/internal/session"
	"github.com/scp-platform/supplier-console/internal/supplier"
	"github.com/scp-platform/supplier-console/pkg/cache"
	"github.com/scp-platform/supplier-console/pkg/model"
)

// KeyPrefix namespaces every workspace's redis keys.
const KeyPrefix = "console:"

// Config wires the Registry. A nil Redis keeps credentials in memory, which
// only lasts as long as the workspace stays cached.
type Config struct {
	APIBaseURL     string
	HTTP           *http.Client
	Redis          redis.Cmdable
	SessionTTL     time.Duration
	RefreshTimeout time.Duration
	PollInterval   time.Duration
	LoginRole      model.Role
	Limiter        *rate.Manager
	Recorder       *events.Recorder
	Logger         *zap.Logger
}

// Registry hands out workspaces and drops the idle ones.
type Registry struct {
	cfg   Config
	cache *cache.Cache[*Workspace]
}

// NewRegistry keeps a workspace for ttl after its last use.
func NewRegistry(cfg Config, ttl time.Duration) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := &Registry{cfg: cfg, cache: cache.New[*Workspace](ttl)}
	r.cache.OnEvict(func(id string, _ *Workspace) {
		r.cfg.Limiter.Forget(id)
		r.cfg.Logger.Debug("workspace.evicted", zap.String("workspace", id))
	})
	return r
}

// NewID mints a workspace id for a new browser session.
func NewID() string { return uuid.NewString() }

// ValidID reports whether id could have come from NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the workspace for id, building it on first use.
func (r *Registry) Get(id string) *Workspace {
	return r.cache.GetOrCreate(id, func() *Workspace { return r.build(id) })
}

// Forget drops the cached workspace. Stored credentials are untouched.
func (r *Registry) Forget(id string) { r.cache.Bust(id) }

func (r *Registry) Len() int { return r.cache.Len() }

// StartCleaner evicts idle workspaces every interval until stop is closed.
func (r *Registry) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	r.cache.StartCleaner(interval, stop)
}

func (r *Registry) build(id string) *Workspace {
	logger := r.cfg.Logger.With(zap.String("workspace", id))

	var store credentials.Store
	if r.cfg.Redis != nil {
		store = credentials.NewRedisStore(r.cfg.Redis, KeyPrefix+id+":", r.cfg.SessionTTL, logger)
	} else {
		store = credentials.NewMemoryStore()
	}

	w := &Workspace{
		ID:           id,
		Store:        store,
		Identities:   session.NewIdentityCache(),
		recorder:     r.cfg.Recorder,
		pollInterval: r.cfg.PollInterval,
		logger:       logger,
	}
	w.Client = httpclient.New(httpclient.Config{
		BaseURL:        r.cfg.APIBaseURL,
		HTTP:           r.cfg.HTTP,
		Store:          store,
		Navigator:      Navigator{},
		RefreshTimeout: r.cfg.RefreshTimeout,
		Limiter:        r.cfg.Limiter,
		LimiterKey:     id,
		Logger:         logger,
		OnRefresh:      w.refreshed,
	})
	w.Supplier = supplier.New(w.Client, store, r.cfg.LoginRole, logger)

	logger.Debug("workspace.created")
	return w
}

// Workspace is everything one browser session talks to the upstream with.
type Workspace struct {
	ID         string
	Store      credentials.Store
	Client     *httpclient.Client
	Identities *session.IdentityCache
	Supplier   *supplier.Service

	recorder     *events.Recorder
	pollInterval time.Duration
	logger       *zap.Logger
}

// Guard builds a session guard for one page of this workspace.
func (w *Workspace) Guard(allowed []model.Role, redirectTo string) *session.Guard {
	return session.NewGuard(session.Config{
		Store:        w.Store,
		Identities:   w.Identities,
		Resolver:     w.Supplier,
		Navigator:    Navigator{},
		AllowedRoles: allowed,
		RedirectTo:   redirectTo,
		PollInterval: w.pollInterval,
		SignOut:      w.signOut,
		OnTransition: w.transition,
		Logger:       w.logger,
	})
}

// Identity returns the cached identity, falling back to the stored snapshot.
func (w *Workspace) Identity(ctx context.Context) (*model.UserIdentity, bool) {
	if u, ok := w.Identities.Get(); ok {
		return &u, true
	}
	if u, ok := w.Store.User(ctx); ok {
		w.Identities.Set(*u)
		return u, true
	}
	return nil, false
}

// Login signs in and records the session start.
func (w *Workspace) Login(ctx context.Context, in supplier.LoginInput) (model.UserIdentity, error) {
	w.Identities.Clear()
	u, err := w.Supplier.Login(ctx, in)
	if err != nil {
		return u, err
	}
	w.Identities.Set(u)
	w.Emit(ctx, model.EventSignedIn, &u, "", "")
	return u, nil
}

// Logout signs out upstream (best effort) and always forgets the session
// locally.
func (w *Workspace) Logout(ctx context.Context, reason string) error {
	u, _ := w.Identity(ctx)
	w.Identities.Clear()
	err := w.Supplier.Logout(ctx)
	w.Emit(ctx, model.EventSignedOut, u, "", reason)
	return err
}

// Emit records a session event for this workspace.
func (w *Workspace) Emit(ctx context.Context, typ model.SessionEventType, u *model.UserIdentity, path, reason string) {
	evt := model.NewSessionEvent(typ, w.ID)
	if u != nil {
		evt.UserID = u.ID
		evt.Role = u.Role
	}
	evt.Path = path
	evt.Reason = reason
	_ = w.recorder.Record(ctx, evt)
}

func (w *Workspace) signOut(ctx context.Context) {
	_ = w.Supplier.Logout(ctx)
}

func (w *Workspace) refreshed(ctx context.Context, err error) {
	u, _ := w.Identities.Get()
	id := &u
	if u.ID == "" {
		id = nil
	}
	if err != nil {
		w.Identities.Clear()
		w.Emit(ctx, model.EventRefreshFailed, id, "", err.Error())
		return
	}
	w.Emit(ctx, model.EventRefreshSucceeded, id, "", "")
}

func (w *Workspace) transition(ctx context.Context, to session.State, u *model.UserIdentity, location string) {
	switch to {
	case session.Forbidden:
		w.Emit(ctx, model.EventAccessDenied, u, location, "role_mismatch")
	case session.Unauthorized:
		w.Emit(ctx, model.EventSignedOut, u, location, "session_lost")
	}
}
