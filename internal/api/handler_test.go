package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/workspace"
	"github.com/scp-platform/supplier-console/pkg/model"
)

const cookieName = "console_sid"

// --- upstream fake ---

type upstream struct {
	mu       sync.Mutex
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
	hits     map[string]*atomic.Int32
	loginFor string
}

func newUpstream(t *testing.T) (*upstream, *httptest.Server) {
	t.Helper()
	u := &upstream{
		routes:   map[string]func(http.ResponseWriter, *http.Request){},
		hits:     map[string]*atomic.Int32{},
		loginFor: "owner",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		u.mu.Lock()
		fn, ok := u.routes[key]
		if u.hits[key] == nil {
			u.hits[key] = &atomic.Int32{}
		}
		u.hits[key].Add(1)
		u.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"not found"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fn(w, r)
	}))
	t.Cleanup(srv.Close)

	u.on("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		u.mu.Lock()
		role := u.loginFor
		u.mu.Unlock()
		_, _ = w.Write([]byte(`{"access_token":"A1","refresh_token":"R1","user":{"id":"u-1","email":"` + body["email"] + `","role":"` + role + `","first_name":"Olga"}}`))
	})
	u.on("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	u.on("GET /supplier/dashboard/stats", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"total_orders":7,"pending_orders":2}}`))
	})
	return u, srv
}

func (u *upstream) on(route string, fn func(http.ResponseWriter, *http.Request)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[route] = fn
}

func (u *upstream) count(route string) int32 {
	u.mu.Lock()
	defer u.mu.Unlock()
	if c := u.hits[route]; c != nil {
		return c.Load()
	}
	return 0
}

// --- console under test ---

type console struct {
	app *fiber.App
	reg *workspace.Registry
	mr  *miniredis.Miniredis
}

func newConsole(t *testing.T, upstreamURL string) *console {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := workspace.NewRegistry(workspace.Config{
		APIBaseURL:   upstreamURL,
		Redis:        rdb,
		SessionTTL:   time.Hour,
		PollInterval: 10 * time.Millisecond,
		LoginRole:    model.RoleOwner,
	}, time.Minute)

	app := fiber.New()
	h := NewConsoleHandler(zap.NewNop(), reg, CookieConfig{Name: cookieName, MaxAge: time.Hour}, 2*time.Second)
	RegisterRoutes(app, h, zap.NewNop(), HealthCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	return &console{app: app, reg: reg, mr: mr}
}

func (c *console) do(t *testing.T, method, path, sid, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: sid})
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (c *console) login(t *testing.T, body string) (string, LoginResponse) {
	t.Helper()
	resp := c.do(t, http.MethodPost, "/login", "", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	for _, ck := range resp.Cookies() {
		if ck.Name == cookieName {
			assert.True(t, ck.HttpOnly)
			return ck.Value, out
		}
	}
	t.Fatal("login did not set the session cookie")
	return "", out
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// --- tests ---

func TestHealth(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)

	resp := c.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "ok", body["status"])

	c.mr.Close()
	resp = c.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)

	resp := c.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProtectedPageWithoutSessionRedirectsToSignIn(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)

	resp := c.do(t, http.MethodGet, "/owner/team", "", "")
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?redirect=%2Fowner%2Fteam", resp.Header.Get("Location"))
}

func TestLoginThenDashboard(t *testing.T) {
	up, srv := newUpstream(t)
	c := newConsole(t, srv.URL)

	sid, out := c.login(t, `{"email":"o@x.test","password":"secret"}`)
	assert.Equal(t, "/owner/dashboard", out.Redirect)
	assert.Equal(t, model.RoleOwner, out.User.Role)
	assert.True(t, c.mr.Exists(workspace.KeyPrefix+sid+":auth_token"))

	resp := c.do(t, http.MethodGet, "/owner/dashboard", sid, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 7, data["total_orders"])
	sess := body["session"].(map[string]any)
	assert.Equal(t, true, sess["checked"])

	assert.EqualValues(t, 0, up.count("GET /auth/me"), "identity came from the login snapshot")
}

func TestLoginHonorsRedirectWithinOwnWorkspace(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)

	_, out := c.login(t, `{"email":"o@x.test","password":"secret","redirect":"/owner/team"}`)
	assert.Equal(t, "/owner/team", out.Redirect)

	_, out = c.login(t, `{"email":"o@x.test","password":"secret","redirect":"/sales/orders"}`)
	assert.Equal(t, "/owner/dashboard", out.Redirect, "another role's page falls back to home")

	_, out = c.login(t, `{"email":"o@x.test","password":"secret","redirect":"https://evil.test/"}`)
	assert.Equal(t, "/owner/dashboard", out.Redirect)
}

func TestLoginRejections(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)

	resp := c.do(t, http.MethodPost, "/login", "", `{"email":"o@x.test","password":"wrong"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = c.do(t, http.MethodPost, "/login", "", `{"email":"","password":"secret"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = c.do(t, http.MethodPost, "/login", "", `{"email":"o@x.test","password":"secret","role":"admin"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRoleMismatchRedirectsToOwnHome(t *testing.T) {
	up, srv := newUpstream(t)
	up.mu.Lock()
	up.loginFor = "sales_rep"
	up.mu.Unlock()
	c := newConsole(t, srv.URL)

	sid, out := c.login(t, `{"email":"s@x.test","password":"secret","role":"sales"}`)
	assert.Equal(t, "/sales/dashboard", out.Redirect)

	resp := c.do(t, http.MethodGet, "/owner/products", sid, "")
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/sales/dashboard", resp.Header.Get("Location"))
}

func TestEdgeFollowsStoredIdentity(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)

	sid, _ := c.login(t, `{"email":"o@x.test","password":"secret"}`)
	// A fresh workspace picks the role up from the stored snapshot.
	c.reg.Get(sid).Store.SetUser(context.Background(), model.UserIdentity{ID: "u-1", Role: model.RoleManager})
	c.reg.Forget(sid)

	resp := c.do(t, http.MethodGet, "/manager/dashboard", sid, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = c.do(t, http.MethodPost, "/owner/orders/o-1/accept", sid, "")
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/manager/dashboard", resp.Header.Get("Location"))
}

func TestRefreshFailureDuringPageSignsOut(t *testing.T) {
	up, srv := newUpstream(t)
	up.on("GET /supplier/dashboard/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	up.on("POST /auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newConsole(t, srv.URL)

	sid, _ := c.login(t, `{"email":"o@x.test","password":"secret"}`)

	resp := c.do(t, http.MethodGet, "/owner/dashboard", sid, "")
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	// Either the client's bare sign-in or the guard's, if its poll noticed first.
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login"))
	assert.EqualValues(t, 1, up.count("POST /auth/refresh"))
	assert.False(t, c.mr.Exists(workspace.KeyPrefix+sid+":auth_token"), "credentials cleared")
	assert.False(t, c.mr.Exists(workspace.KeyPrefix+sid+":refresh_token"))

	// The next visit is stopped at the edge.
	resp = c.do(t, http.MethodGet, "/owner/dashboard", sid, "")
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?redirect=%2Fowner%2Fdashboard", resp.Header.Get("Location"))
}

func TestActionRedirectIsJSONForNonGet(t *testing.T) {
	up, srv := newUpstream(t)
	up.on("POST /supplier/orders/o-1/accept", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newConsole(t, srv.URL)
	sid, _ := c.login(t, `{"email":"o@x.test","password":"secret"}`)

	resp := c.do(t, http.MethodPost, "/owner/orders/o-1/accept", sid, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	body := decode(t, resp)
	assert.True(t, strings.HasPrefix(body["redirect"].(string), "/login"))
	assert.EqualValues(t, 1, up.count("POST /auth/refresh"), "refresh attempted once")
}

func TestOrderActionsAndValidation(t *testing.T) {
	up, srv := newUpstream(t)
	up.on("POST /supplier/orders/o-1/accept", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	c := newConsole(t, srv.URL)
	sid, _ := c.login(t, `{"email":"o@x.test","password":"secret"}`)

	resp := c.do(t, http.MethodPost, "/owner/orders/o-1/accept", sid, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, up.count("POST /supplier/orders/o-1/accept"))

	resp = c.do(t, http.MethodPost, "/owner/products", sid, `{"name":"","unit":"kg","price":"1.50","min_order_quantity":1}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = c.do(t, http.MethodGet, "/owner/products/not-a-uuid", sid, "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = c.do(t, http.MethodGet, "/owner/orders/missing", sid, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "not found", body["error"])
}

func TestUpstreamMarkupIsBadGateway(t *testing.T) {
	up, srv := newUpstream(t)
	up.on("GET /supplier/me", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<!DOCTYPE html><html><body>gateway</body></html>`))
	})
	c := newConsole(t, srv.URL)
	sid, _ := c.login(t, `{"email":"o@x.test","password":"secret"}`)

	resp := c.do(t, http.MethodGet, "/owner/profile", sid, "")
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestSalesWorkspaceHasNoCatalog(t *testing.T) {
	up, srv := newUpstream(t)
	up.mu.Lock()
	up.loginFor = "sales_rep"
	up.mu.Unlock()
	c := newConsole(t, srv.URL)
	sid, _ := c.login(t, `{"email":"s@x.test","password":"secret","role":"sales"}`)

	resp := c.do(t, http.MethodGet, "/sales/products", sid, "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestLogoutClearsSession(t *testing.T) {
	up, srv := newUpstream(t)
	c := newConsole(t, srv.URL)
	sid, _ := c.login(t, `{"email":"o@x.test","password":"secret"}`)

	resp := c.do(t, http.MethodPost, "/logout", sid, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, up.count("POST /auth/logout"))
	assert.False(t, c.mr.Exists(workspace.KeyPrefix+sid+":auth_token"))

	var cleared bool
	for _, ck := range resp.Cookies() {
		if ck.Name == cookieName && ck.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie expired")

	resp = c.do(t, http.MethodGet, "/session", sid, "")
	body := decode(t, resp)
	assert.Equal(t, false, body["authenticated"])
}

func TestSessionReportsIdentity(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)
	sid, _ := c.login(t, `{"email":"o@x.test","password":"secret"}`)

	resp := c.do(t, http.MethodGet, "/session", sid, "")
	body := decode(t, resp)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "/owner/dashboard", body["home"])
}

func TestWatchReturnsOnRevocation(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)
	sid, _ := c.login(t, `{"email":"o@x.test","password":"secret"}`)

	go func() {
		time.Sleep(100 * time.Millisecond)
		// Another tab signs out.
		c.mr.Del(workspace.KeyPrefix + sid + ":auth_token")
	}()

	start := time.Now()
	resp := c.do(t, http.MethodGet, "/session/watch?location=/owner/products", sid, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out WatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, "unauthorized", out.State)
	assert.Equal(t, "/login?redirect=%2Fowner%2Fproducts", out.Redirect)
	assert.Less(t, time.Since(start), 2*time.Second, "returned before the watch timeout")
}

func TestWatchAtSignInIsSkipped(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)
	sid, _ := c.login(t, `{"email":"o@x.test","password":"secret"}`)

	resp := c.do(t, http.MethodGet, "/session/watch?location=/login", sid, "")
	var out WatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "skipped", out.State)
	assert.True(t, out.Session.Checked)
	assert.Empty(t, out.Redirect)
}

func TestWatchWithoutSession(t *testing.T) {
	_, srv := newUpstream(t)
	c := newConsole(t, srv.URL)

	resp := c.do(t, http.MethodGet, "/session/watch?location=/manager/orders", "", "")
	var out WatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "unauthorized", out.State)
	assert.Equal(t, "/login?redirect=%2Fmanager%2Forders", out.Redirect)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusBadGateway, statusFor(errors.New("dial tcp: refused")))
	assert.Equal(t, fiber.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, fiber.StatusBadRequest, statusFor(fiber.NewError(fiber.StatusBadRequest, "bad json")))
}

func TestLanding(t *testing.T) {
	assert.Equal(t, "/manager/orders", landing("/manager/orders", model.RoleManager))
	assert.Equal(t, "/manager/dashboard", landing("", model.RoleManager))
	assert.Equal(t, "/manager/dashboard", landing("//evil.test", model.RoleManager))
	assert.Equal(t, "/manager/dashboard", landing("/login?redirect=%2F", model.RoleManager))
	assert.Equal(t, "/", landing("/", model.RoleManager))
}
