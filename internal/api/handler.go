package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/access"
	"github.com/scp-platform/supplier-console/internal/httpclient"
	"github.com/scp-platform/supplier-console/internal/supplier"
	"github.com/scp-platform/supplier-console/internal/workspace"
	"github.com/scp-platform/supplier-console/pkg/model"
)

// CookieConfig describes the browser session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// ConsoleHandler serves the browser-facing routes of the console.
type ConsoleHandler struct {
	logger       *zap.Logger
	registry     *workspace.Registry
	cookie       CookieConfig
	watchTimeout time.Duration
}

func NewConsoleHandler(logger *zap.Logger, registry *workspace.Registry, cookie CookieConfig, watchTimeout time.Duration) *ConsoleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cookie.Name == "" {
		cookie.Name = "console_sid"
	}
	if watchTimeout <= 0 {
		watchTimeout = 25 * time.Second
	}
	return &ConsoleHandler{
		logger:       logger,
		registry:     registry,
		cookie:       cookie,
		watchTimeout: watchTimeout,
	}
}

// sessionID returns the caller's workspace id if the cookie carries a
// well-formed one.
func (h *ConsoleHandler) sessionID(c *fiber.Ctx) (string, bool) {
	id := c.Cookies(h.cookie.Name)
	if !workspace.ValidID(id) {
		return "", false
	}
	return id, true
}

func (h *ConsoleHandler) startSession(c *fiber.Ctx) string {
	id := workspace.NewID()
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		Secure:   h.cookie.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return id
}

func (h *ConsoleHandler) endSession(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   h.cookie.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Visitor resolves the edge view of the caller from the stored credential
// and the cached identity, without calling upstream.
func (h *ConsoleHandler) Visitor(c *fiber.Ctx) access.Visitor {
	id, ok := h.sessionID(c)
	if !ok {
		return access.Visitor{}
	}
	ws := h.registry.Get(id)
	ctx := c.UserContext()
	if !ws.Store.Present(ctx) {
		return access.Visitor{}
	}
	u, _ := ws.Identity(ctx)
	return access.Visitor{Authenticated: true, Identity: u}
}

// loadFunc produces a guarded page's data or performs a guarded action.
type loadFunc func(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error)

// guarded mounts a session guard for the request, runs load only when the
// guard lets the page render, and turns any redirect requested along the
// way into the response.
func (h *ConsoleHandler) guarded(allowed []model.Role, load loadFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := h.sessionID(c)
		if !ok {
			return h.redirect(c, access.SignInURL(c.OriginalURL()))
		}
		ws := h.registry.Get(id)
		ctx, nav := workspace.WithNavigation(c.UserContext(), c.OriginalURL())

		g := ws.Guard(allowed, "")
		defer g.Unmount()
		g.Mount(ctx)
		if !g.Renderable() {
			return h.redirect(c, nav.Target())
		}

		data, err := load(ctx, c, ws)
		if to := nav.Target(); to != "" {
			return h.redirect(c, to)
		}
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(fiber.Map{
			"session": g.Session(),
			"data":    data,
		})
	}
}

// redirect sends page loads to to with a 302; API calls get the target in
// a JSON body so the browser can navigate itself.
func (h *ConsoleHandler) redirect(c *fiber.Ctx, to string) error {
	if to == "" {
		to = access.SignIn
	}
	if c.Method() == fiber.MethodGet {
		return c.Redirect(to, fiber.StatusFound)
	}
	status := fiber.StatusForbidden
	if to == access.SignIn || access.Public(to) {
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).JSON(fiber.Map{
		"error":    http.StatusText(status),
		"redirect": to,
	})
}

// fail maps domain and upstream errors onto console responses.
func (h *ConsoleHandler) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	msg := err.Error()
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.Message != "" {
		msg = se.Message
	}
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("console.request_failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func statusFor(err error) int {
	var se *httpclient.StatusError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, supplier.ErrMissingID),
		errors.Is(err, supplier.ErrInvalidID),
		errors.Is(err, supplier.ErrInvalidProduct),
		errors.Is(err, supplier.ErrInvalidMember),
		errors.Is(err, supplier.ErrMissingResolution),
		errors.Is(err, model.ErrUnknownRole):
		return fiber.StatusBadRequest
	case errors.Is(err, supplier.ErrInvalidCredentials), errors.Is(err, httpclient.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, httpclient.ErrNonDataResponse), errors.Is(err, supplier.ErrUnexpectedFormat):
		return fiber.StatusBadGateway
	case errors.As(err, &se):
		if se.Status >= 400 && se.Status < 500 {
			return se.Status
		}
		return fiber.StatusBadGateway
	default:
		return fiber.StatusBadGateway
	}
}
