package api

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/access"
	"github.com/scp-platform/supplier-console/internal/session"
	"github.com/scp-platform/supplier-console/internal/supplier"
	"github.com/scp-platform/supplier-console/internal/workspace"
	"github.com/scp-platform/supplier-console/pkg/model"
)

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
	Redirect string `json:"redirect" form:"redirect"`
}

func (r LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return errors.New("email and password are required")
	}
	return nil
}

// LoginResponse tells the browser who signed in and where to go next.
type LoginResponse struct {
	User     model.UserIdentity `json:"user"`
	Redirect string             `json:"redirect"`
}

// WatchResponse reports how a watched page's guard settled.
type WatchResponse struct {
	State    string        `json:"state"`
	Session  model.Session `json:"session"`
	Redirect string        `json:"redirect,omitempty"`
}

// Login signs the caller in under a fresh session cookie.
func (h *ConsoleHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	var role model.Role
	if req.Role != "" {
		r, err := model.ParseRole(req.Role)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		role = r
	}
	if req.Redirect == "" {
		req.Redirect = c.Query(access.RedirectParam)
	}

	ctx := c.UserContext()
	if old, ok := h.sessionID(c); ok {
		h.registry.Get(old).Store.Clear(ctx)
		h.registry.Forget(old)
	}
	ws := h.registry.Get(h.startSession(c))

	u, err := ws.Login(ctx, supplier.LoginInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		h.logger.Info("console.login_failed", zap.String("workspace", ws.ID), zap.Error(err))
		if errors.Is(err, supplier.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": supplier.ErrInvalidCredentials.Error()})
		}
		return h.fail(c, err)
	}

	return c.JSON(LoginResponse{User: u, Redirect: landing(req.Redirect, u.Role)})
}

// landing picks the post-login destination: the requested local path when
// it belongs to role's workspace (or no workspace), else role's home.
func landing(requested string, role model.Role) string {
	home := access.HomeFor(role)
	to := access.SafeRedirect(requested, home)
	if owner, ok := access.OwnerOf(to); ok && owner != role {
		return home
	}
	return to
}

// Logout signs the caller out upstream (best effort) and drops the session.
func (h *ConsoleHandler) Logout(c *fiber.Ctx) error {
	if id, ok := h.sessionID(c); ok {
		ws := h.registry.Get(id)
		if err := ws.Logout(c.UserContext(), "user"); err != nil {
			h.logger.Debug("console.logout_upstream_failed", zap.String("workspace", id), zap.Error(err))
		}
		h.registry.Forget(id)
	}
	h.endSession(c)
	return c.JSON(fiber.Map{"redirect": access.SignIn})
}

// Session reports the edge view of the caller.
func (h *ConsoleHandler) Session(c *fiber.Ctx) error {
	v := h.Visitor(c)
	resp := fiber.Map{"authenticated": v.Authenticated, "identity": v.Identity}
	if v.Identity != nil {
		resp["home"] = access.HomeFor(v.Identity.Role)
	}
	return c.JSON(resp)
}

// Watch mounts a guard for the page at ?location= and holds the request
// until the session is revoked or the watch times out.
func (h *ConsoleHandler) Watch(c *fiber.Ctx) error {
	location := c.Query("location")
	if !strings.HasPrefix(location, "/") || strings.HasPrefix(location, "//") {
		location = "/"
	}

	id, ok := h.sessionID(c)
	if !ok {
		if access.Protected(location) {
			return c.JSON(WatchResponse{State: session.Unauthorized.String(), Redirect: access.SignInURL(location)})
		}
		return c.JSON(WatchResponse{State: session.Skipped.String()})
	}
	ws := h.registry.Get(id)

	var allowed []model.Role
	if owner, ok := access.OwnerOf(location); ok {
		allowed = []model.Role{owner}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.watchTimeout)
	defer cancel()
	ctx, nav := workspace.WithNavigation(ctx, location)

	g := ws.Guard(allowed, "")
	defer g.Unmount()
	if g.Mount(ctx) == session.Authorized {
		select {
		case <-g.SignedOut():
		case <-ctx.Done():
		}
	}

	return c.JSON(WatchResponse{
		State:    g.State().String(),
		Session:  g.Session(),
		Redirect: nav.Target(),
	})
}
