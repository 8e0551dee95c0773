package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/credentials"
	"github.com/scp-platform/supplier-console/internal/metrics"
	"github.com/scp-platform/supplier-console/internal/rate"
	"github.com/scp-platform/supplier-console/pkg/utils"
)

const maxBodyBytes = 8 << 20

// RefreshHook observes the outcome of every refresh the client leads.
type RefreshHook func(ctx context.Context, err error)

// Config wires a Client. Store is required; the rest have defaults.
type Config struct {
	BaseURL        string
	HTTP           *http.Client
	Store          credentials.Store
	Navigator      Navigator
	Endpoints      Endpoints
	RefreshTimeout time.Duration
	Limiter        *rate.Manager
	LimiterKey     string
	Logger         *zap.Logger
	OnRefresh      RefreshHook
}

// Client is the authorized request primitive every domain call goes through.
// It attaches the bearer credential, normalizes bodies and runs the
// refresh-and-replay protocol on 401.
type Client struct {
	baseURL        string
	http           *http.Client
	store          credentials.Store
	nav            Navigator
	endpoints      Endpoints
	refreshTimeout time.Duration
	limiter        *rate.Manager
	limiterKey     string
	logger         *zap.Logger
	onRefresh      RefreshHook
	coord          coordinator
}

func New(cfg Config) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		http:           cfg.HTTP,
		store:          cfg.Store,
		nav:            cfg.Navigator,
		endpoints:      cfg.Endpoints,
		refreshTimeout: cfg.RefreshTimeout,
		limiter:        cfg.Limiter,
		limiterKey:     cfg.LimiterKey,
		logger:         cfg.Logger,
		onRefresh:      cfg.OnRefresh,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.store == nil {
		c.store = credentials.NewMemoryStore()
	}
	if c.endpoints == (Endpoints{}) {
		c.endpoints = DefaultEndpoints()
	}
	if c.refreshTimeout <= 0 {
		c.refreshTimeout = 10 * time.Second
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Store returns the credential store the client reads and mutates.
func (c *Client) Store() credentials.Store { return c.store }

// Endpoints returns the special routes the client was built with.
func (c *Client) Endpoints() Endpoints { return c.endpoints }

// Refreshing reports whether a refresh is outstanding.
func (c *Client) Refreshing() bool { return c.coord.busy() }

type requestOptions struct {
	credential  string
	explicit    bool
	skipRefresh bool
	header      http.Header
}

// RequestOption tunes a single call.
type RequestOption func(*requestOptions)

// WithCredential sends token instead of the stored access credential.
// Such calls never refresh: the caller owns the credential.
func WithCredential(token string) RequestOption {
	return func(o *requestOptions) {
		o.credential = token
		o.explicit = true
	}
}

// SkipAuthRefresh marks calls whose 401 means bad input rather than an
// expired session, such as sign-in.
func SkipAuthRefresh() RequestOption {
	return func(o *requestOptions) { o.skipRefresh = true }
}

// WithHeader adds a header to the outbound request.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Add(key, value)
	}
}

// Do performs Request and decodes the normalized body into out (if non-nil).
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	raw, err := c.Request(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("console.decode_failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Request sends method path with body (JSON-encoded unless it is already
// []byte or json.RawMessage) and returns the normalized response body.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (json.RawMessage, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
	}

	token := o.credential
	if !o.explicit {
		if cred, ok := c.store.Get(ctx); ok {
			token = cred.Access
		}
	}

	status, raw, err := c.send(ctx, method, path, payload, token, o.header)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && c.refreshable(path, o) {
		access, rerr := c.recoverAccess(ctx, token)
		if rerr != nil {
			if !errors.Is(rerr, ErrRefreshFailed) && !errors.Is(rerr, ErrNoRefreshCredential) {
				// The caller stopped waiting; the refresh itself is still settling.
				return nil, rerr
			}
			c.signOut(ctx, path)
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, rerr)
		}

		status, raw, err = c.send(ctx, method, path, payload, access, o.header)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			c.logger.Warn("console.replay_unauthorized",
				zap.String("method", method),
				zap.String("path", path))
			c.store.Clear(context.WithoutCancel(ctx))
			c.signOut(ctx, path)
			_, ferr := c.finish(method, path, status, raw)
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ferr)
		}
	}

	return c.finish(method, path, status, raw)
}

func (c *Client) refreshable(path string, o requestOptions) bool {
	if o.skipRefresh || o.explicit {
		return false
	}
	return stripQuery(path) != c.endpoints.Refresh
}

// recoverAccess returns an access credential to replay with. When another
// request already replaced the credential this one was rejected with, the
// replacement is used as is; otherwise the caller leads or joins a refresh.
func (c *Client) recoverAccess(ctx context.Context, rejected string) (string, error) {
	wait, leader := c.coord.join()
	if !leader {
		select {
		case out := <-wait:
			return out.access, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	// A refresh that settled between our 401 and join already replaced the
	// rejected credential.
	if cred, ok := c.store.Get(ctx); ok && cred.Access != rejected {
		c.coord.settle(refreshOutcome{access: cred.Access})
		return cred.Access, nil
	}

	c.logger.Info("console.refresh_started", zap.String("workspace", c.limiterKey))
	access, err := c.refresh(ctx)
	if err != nil {
		// Cleared before waiters are released so none of them can observe
		// the stale credential.
		c.store.Clear(context.WithoutCancel(ctx))
	}
	released := c.coord.settle(refreshOutcome{access: access, err: err})
	metrics.RefreshWaiters.Observe(float64(released))

	if err != nil {
		metrics.IncRefresh("failed")
		c.logger.Warn("console.refresh_failed",
			zap.String("workspace", c.limiterKey),
			zap.Int("waiters", released),
			zap.Error(err))
	} else {
		metrics.IncRefresh("succeeded")
		c.logger.Info("console.refresh_succeeded",
			zap.String("workspace", c.limiterKey),
			zap.String("access", utils.MaskToken(access)),
			zap.Int("waiters", released))
	}
	if c.onRefresh != nil {
		c.onRefresh(ctx, err)
	}
	return access, err
}

type tokenPayload struct {
	AccessToken  string          `json:"access_token"`
	Access       string          `json:"access"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refresh_token"`
	Refresh      string          `json:"refresh"`
	Data         json.RawMessage `json:"data"`
}

func (p tokenPayload) access() string {
	return firstNonEmpty(p.AccessToken, p.Access, p.Token)
}

func (p tokenPayload) refresh() string {
	return firstNonEmpty(p.RefreshToken, p.Refresh)
}

// refresh exchanges the stored refresh credential for a new access
// credential and stores it. It runs detached from ctx cancellation: the
// outcome is shared by every waiter, not owned by the leader.
func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken, ok := c.store.Refresh(ctx)
	if !ok {
		return "", ErrNoRefreshCredential
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	status, raw, err := c.send(rctx, http.MethodPost, c.endpoints.Refresh, payload, "", nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: upstream returned %d", ErrRefreshFailed, status)
	}

	body, err := Normalize(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	var tok tokenPayload
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if tok.access() == "" && len(tok.Data) > 0 {
		_ = json.Unmarshal(tok.Data, &tok)
	}
	access := tok.access()
	if access == "" {
		return "", fmt.Errorf("%w: response carried no access credential", ErrRefreshFailed)
	}

	c.store.Set(rctx, access, tok.refresh())
	return access, nil
}

// signOut performs the terminal redirect to the sign-in entry point unless
// the caller is already there or the failing call is itself refresh or
// sign-out.
func (c *Client) signOut(ctx context.Context, path string) {
	if c.nav == nil || c.endpoints.exempt(path) {
		return
	}
	if c.endpoints.AtSignIn(c.nav.Location(ctx)) {
		return
	}
	c.logger.Info("console.redirect_sign_in",
		zap.String("workspace", c.limiterKey),
		zap.String("path", path))
	c.nav.Redirect(ctx, c.endpoints.SignIn)
}

// send performs exactly one HTTP exchange. Only transport failures are
// returned as errors; every status is handed back to the caller.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string, extra http.Header) (int, []byte, error) {
	if err := c.limiter.Wait(ctx, c.limiterKey); err != nil {
		return 0, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(method, 0, start)
		c.logger.Warn("console.http_failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.ObserveUpstream(method, resp.StatusCode, start)
	if err != nil {
		c.logger.Warn("console.read_failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return 0, nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	c.logger.Debug("console.http_done",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	return resp.StatusCode, raw, nil
}

func (c *Client) finish(method, path string, status int, raw []byte) (json.RawMessage, error) {
	body, nerr := Normalize(raw)
	if status >= 200 && status < 300 {
		if nerr != nil {
			c.logger.Warn("console.non_data_response",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", status))
			return nil, fmt.Errorf("%s %s: %w", method, path, nerr)
		}
		return body, nil
	}

	se := &StatusError{Method: method, Path: path, Status: status}
	if nerr != nil {
		return nil, fmt.Errorf("%w: %w", nerr, se)
	}
	se.Body = body
	se.Message = upstreamMessage(body)
	return nil, se
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// IsTerminal reports whether err ended the session (credentials cleared).
func IsTerminal(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
