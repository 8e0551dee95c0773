package access

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/metrics"
	"github.com/scp-platform/supplier-console/pkg/model"
)

// Visitor is what the edge knows about the caller without calling upstream.
type Visitor struct {
	Authenticated bool
	Identity      *model.UserIdentity
}

// VisitorFunc resolves the visitor for a request.
type VisitorFunc func(c *fiber.Ctx) Visitor

// Middleware enforces the role policy at the routing layer. Visitors
// without an access entry are sent to sign-in with their destination
// preserved; visitors whose cached role does not own the workspace are
// sent to their own landing route.
func Middleware(resolve VisitorFunc, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if Public(path) {
			return c.Next()
		}
		owner, protected := OwnerOf(path)
		if !protected {
			return c.Next()
		}

		v := resolve(c)
		if !v.Authenticated {
			metrics.IncEdgeRedirect("unauthenticated")
			logger.Debug("access.redirect_sign_in", zap.String("path", path))
			return c.Redirect(SignInURL(path), fiber.StatusFound)
		}
		if v.Identity != nil && v.Identity.Role != owner {
			home := HomeFor(v.Identity.Role)
			metrics.IncEdgeRedirect("role_mismatch")
			logger.Info("access.redirect_role",
				zap.String("path", path),
				zap.String("role", string(v.Identity.Role)),
				zap.String("to", home))
			return c.Redirect(home, fiber.StatusFound)
		}
		return c.Next()
	}
}
