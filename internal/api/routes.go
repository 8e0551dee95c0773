package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/access"
	"github.com/scp-platform/supplier-console/pkg/model"
)

// HealthCheck is one dependency probed by /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// workspaceRoutes lists which sections each role's workspace carries.
var workspaceRoutes = []struct {
	role    model.Role
	catalog bool
	links   bool
	team    bool
}{
	{role: model.RoleOwner, catalog: true, links: true, team: true},
	{role: model.RoleManager, catalog: true, links: true},
	{role: model.RoleSales},
}

func RegisterRoutes(app *fiber.App, h *ConsoleHandler, logger *zap.Logger, checks ...HealthCheck) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		results := make(map[string]string, len(checks))
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, hc := range checks {
			if err := hc.Check(healthCtx); err != nil {
				results[hc.Name] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
				continue
			}
			results[hc.Name] = "ok"
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	})

	app.Use(access.Middleware(h.Visitor, logger))

	app.Post(access.SignIn, h.Login)
	app.Post("/logout", h.Logout)
	app.Get("/session", h.Session)
	app.Get("/session/watch", h.Watch)

	for _, wr := range workspaceRoutes {
		allowed := []model.Role{wr.role}
		page := func(load loadFunc) fiber.Handler { return h.guarded(allowed, load) }
		g := app.Group(access.PrefixFor(wr.role))

		g.Get("/dashboard", page(dashboardPage))
		g.Get("/profile", page(profilePage))

		g.Get("/orders", page(ordersPage))
		g.Get("/orders/:id", page(orderPage))
		g.Post("/orders/:id/accept", page(acceptOrder))
		g.Post("/orders/:id/reject", page(rejectOrder))

		g.Get("/complaints", page(complaintsPage))
		g.Get("/complaints/:id", page(complaintPage))
		g.Post("/complaints/:id/escalate", page(escalateComplaint))
		g.Post("/complaints/:id/resolve", page(resolveComplaint))
		g.Get("/conversations/:id/messages", page(messagesPage))

		if wr.catalog {
			g.Get("/products", page(productsPage))
			g.Post("/products", page(createProduct))
			g.Get("/products/:id", page(productPage))
			g.Put("/products/:id", page(updateProduct))
			g.Delete("/products/:id", page(deleteProduct))
		}
		if wr.links {
			g.Get("/links", page(linksPage))
			g.Post("/links/:id/approve", page(approveLink))
			g.Post("/links/:id/reject", page(rejectLink))
			g.Post("/links/:id/block", page(blockLink))
		}
		if wr.team {
			g.Get("/team", page(teamPage))
			g.Post("/team", page(addTeamMember))
			g.Delete("/team/:id", page(removeTeamMember))
		}
	}
}
