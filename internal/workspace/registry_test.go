package workspace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scp-platform/supplier-console/internal/events"
	"github.com/scp-platform/supplier-console/internal/rate"
	"github.com/scp-platform/supplier-console/internal/session"
	"github.com/scp-platform/supplier-console/internal/supplier"
	"github.com/scp-platform/supplier-console/pkg/model"
)

type captureSink struct {
	mu   sync.Mutex
	seen []model.SessionEvent
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Publish(_ context.Context, evt model.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, evt)
	return nil
}

func (s *captureSink) Types() []model.SessionEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SessionEventType, len(s.seen))
	for i, e := range s.seen {
		out[i] = e.Type
	}
	return out
}

func newRegistry(t *testing.T, upstream string, sink *captureSink) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := NewRegistry(Config{
		APIBaseURL:   upstream,
		Redis:        rdb,
		SessionTTL:   time.Hour,
		PollInterval: 10 * time.Millisecond,
		LoginRole:    model.RoleOwner,
		Limiter:      rate.NewManager(rate.Config{RequestsPerSecond: 100, Burst: 100}),
		Recorder:     events.NewRecorder(nil, sink),
	}, time.Minute)
	return reg, mr
}

func TestNavigator_LastRedirectWins(t *testing.T) {
	ctx, nav := WithNavigation(context.Background(), "/owner/team")
	n := Navigator{}

	assert.Equal(t, "/owner/team", n.Location(ctx))
	assert.Empty(t, nav.Target())

	n.Redirect(ctx, "/login")
	n.Redirect(ctx, "/login?redirect=%2Fowner%2Fteam")
	assert.Equal(t, "/login?redirect=%2Fowner%2Fteam", nav.Target())

	// Unbound contexts are ignored.
	assert.Empty(t, n.Location(context.Background()))
	n.Redirect(context.Background(), "/login")
	assert.Nil(t, NavigationFrom(context.Background()))
}

func TestRegistry_GetReusesWorkspace(t *testing.T) {
	reg, _ := newRegistry(t, "http://unused", &captureSink{})
	id := NewID()
	require.True(t, ValidID(id))
	assert.False(t, ValidID("not-a-session"))

	a := reg.Get(id)
	b := reg.Get(id)
	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Len())

	reg.Forget(id)
	assert.Equal(t, 0, reg.Len())
	assert.NotSame(t, a, reg.Get(id))
}

func TestRegistry_CredentialsSurviveEviction(t *testing.T) {
	reg, mr := newRegistry(t, "http://unused", &captureSink{})
	id := NewID()
	ctx := context.Background()

	reg.Get(id).Store.Set(ctx, "A1", "R1")
	assert.True(t, mr.Exists(KeyPrefix+id+":auth_token"))

	reg.Forget(id)
	cred, ok := reg.Get(id).Store.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "A1", cred.Access)
	assert.Equal(t, "R1", cred.Refresh)
}

func TestRegistry_EvictionForgetsLimiter(t *testing.T) {
	lim := rate.NewManager(rate.Config{RequestsPerSecond: 1, Burst: 1})
	reg := NewRegistry(Config{APIBaseURL: "http://unused", Limiter: lim}, time.Minute)
	id := NewID()
	reg.Get(id)
	lim.GetLimiter(id)
	require.Equal(t, 1, lim.Len())

	reg.Forget(id)
	assert.Equal(t, 0, lim.Len())
}

func TestWorkspace_LoginRefreshAndLogoutEmitEvents(t *testing.T) {
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			_, _ = w.Write([]byte(`{"access_token":"A1","refresh_token":"R1","user":{"id":"u-1","email":"o@x.test","role":"owner","first_name":"Olga"}}`))
		case "/auth/refresh":
			refreshes.Add(1)
			_, _ = w.Write([]byte(`{"access_token":"A2"}`))
		case "/supplier/dashboard/stats":
			if r.Header.Get("Authorization") != "Bearer A2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"total_orders":3,"pending_orders":1}`))
		case "/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	sink := &captureSink{}
	reg, _ := newRegistry(t, srv.URL, sink)
	ws := reg.Get(NewID())
	ctx := context.Background()

	u, err := ws.Login(ctx, supplier.LoginInput{Email: "o@x.test", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, u.Role)
	cached, ok := ws.Identity(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-1", cached.ID)

	stats, err := ws.Supplier.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.EqualValues(t, 1, refreshes.Load())

	require.NoError(t, ws.Logout(ctx, "user"))
	assert.False(t, ws.Store.Present(ctx))

	assert.Equal(t, []model.SessionEventType{
		model.EventSignedIn,
		model.EventRefreshSucceeded,
		model.EventSignedOut,
	}, sink.Types())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, ws.ID, sink.seen[0].Workspace)
	assert.Equal(t, "u-1", sink.seen[1].UserID)
	assert.Equal(t, "user", sink.seen[2].Reason)
}

func TestWorkspace_GuardEmitsAccessDenied(t *testing.T) {
	sink := &captureSink{}
	reg, _ := newRegistry(t, "http://unused", sink)
	ws := reg.Get(NewID())
	ctx, nav := WithNavigation(context.Background(), "/owner/team")

	ws.Store.Set(ctx, "A1", "R1")
	ws.Store.SetUser(ctx, model.UserIdentity{ID: "u-3", Role: model.RoleSales})

	g := ws.Guard([]model.Role{model.RoleOwner}, "")
	defer g.Unmount()

	assert.Equal(t, session.Forbidden, g.Mount(ctx))
	assert.Equal(t, "/sales/dashboard", nav.Target())
	require.Equal(t, []model.SessionEventType{model.EventAccessDenied}, sink.Types())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "/owner/team", sink.seen[0].Path)
	assert.Equal(t, model.RoleSales, sink.seen[0].Role)
}

func TestWorkspace_GuardNoticesRevocation(t *testing.T) {
	var logouts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/logout" {
			logouts.Add(1)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := &captureSink{}
	reg, _ := newRegistry(t, srv.URL, sink)
	ws := reg.Get(NewID())
	ctx, nav := WithNavigation(context.Background(), "/owner/products")

	ws.Store.Set(ctx, "A1", "")
	ws.Store.SetUser(ctx, model.UserIdentity{ID: "u-1", Role: model.RoleOwner})

	g := ws.Guard([]model.Role{model.RoleOwner}, "")
	defer g.Unmount()
	require.Equal(t, session.Authorized, g.Mount(ctx))

	ws.Store.Clear(ctx)
	select {
	case <-g.SignedOut():
	case <-time.After(time.Second):
		t.Fatal("revocation not noticed")
	}
	assert.Equal(t, "/login?redirect=%2Fowner%2Fproducts", nav.Target())
	assert.EqualValues(t, 1, logouts.Load(), "best-effort upstream sign-out")
	assert.Contains(t, sink.Types(), model.EventSignedOut)
}

func TestWorkspace_GuardKeepsCredentialsWhenLookupFails(t *testing.T) {
	var logouts, lookups atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/me":
			lookups.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/auth/logout":
			logouts.Add(1)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	reg, mr := newRegistry(t, srv.URL, &captureSink{})
	id := NewID()
	ws := reg.Get(id)
	ctx, nav := WithNavigation(context.Background(), "/owner/orders")

	ws.Store.Set(ctx, "A1", "R1")

	g := ws.Guard([]model.Role{model.RoleOwner}, "")
	defer g.Unmount()

	assert.Equal(t, session.Unauthorized, g.Mount(ctx))
	assert.Equal(t, "/login?redirect=%2Fowner%2Forders", nav.Target())
	assert.EqualValues(t, 1, lookups.Load())
	assert.EqualValues(t, 0, logouts.Load(), "no upstream sign-out")
	assert.True(t, ws.Store.Present(ctx), "credentials survive a 503 from /auth/me")
	assert.True(t, mr.Exists(KeyPrefix+id+":refresh_token"))
}
