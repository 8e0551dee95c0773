package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/scp-platform/supplier-console/internal/supplier"
	"github.com/scp-platform/supplier-console/internal/workspace"
	"github.com/scp-platform/supplier-console/pkg/model"
)

// ResolveRequest closes a complaint.
type ResolveRequest struct {
	Resolution string `json:"resolution" form:"resolution"`
}

func paging(c *fiber.Ctx) (int, int) {
	return c.QueryInt("page", supplier.DefaultPage), c.QueryInt("page_size", supplier.DefaultPageSize)
}

func dashboardPage(ctx context.Context, _ *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return ws.Supplier.DashboardStats(ctx)
}

func profilePage(ctx context.Context, _ *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return ws.Supplier.Profile(ctx)
}

func productsPage(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	page, size := paging(c)
	return ws.Supplier.Products(ctx, page, size)
}

func productPage(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return ws.Supplier.Product(ctx, c.Params("id"))
}

func ordersPage(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	page, size := paging(c)
	return ws.Supplier.Orders(ctx, page, size)
}

func orderPage(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return ws.Supplier.Order(ctx, c.Params("id"))
}

func linksPage(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	page, size := paging(c)
	return ws.Supplier.ConsumerLinks(ctx, page, size)
}

func complaintsPage(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	page, size := paging(c)
	return ws.Supplier.Complaints(ctx, c.Query("status"), page, size)
}

func complaintPage(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return ws.Supplier.Complaint(ctx, c.Params("id"))
}

func messagesPage(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return ws.Supplier.ConversationMessages(ctx, c.Params("id"))
}

func teamPage(ctx context.Context, _ *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return ws.Supplier.Team(ctx)
}

func createProduct(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	var in model.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return nil, badRequest(err)
	}
	return ws.Supplier.CreateProduct(ctx, in)
}

func updateProduct(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	var in model.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return nil, badRequest(err)
	}
	return ws.Supplier.UpdateProduct(ctx, c.Params("id"), in)
}

func deleteProduct(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return done(ws.Supplier.DeleteProduct(ctx, c.Params("id")))
}

func acceptOrder(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return done(ws.Supplier.AcceptOrder(ctx, c.Params("id")))
}

func rejectOrder(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return done(ws.Supplier.RejectOrder(ctx, c.Params("id")))
}

func approveLink(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return done(ws.Supplier.ApproveLink(ctx, c.Params("id")))
}

func rejectLink(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return done(ws.Supplier.RejectLink(ctx, c.Params("id")))
}

func blockLink(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return done(ws.Supplier.BlockLink(ctx, c.Params("id")))
}

func escalateComplaint(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return ws.Supplier.EscalateComplaint(ctx, c.Params("id"))
}

func resolveComplaint(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, badRequest(err)
	}
	return ws.Supplier.ResolveComplaint(ctx, c.Params("id"), req.Resolution)
}

func addTeamMember(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	var in model.NewTeamMember
	if err := c.BodyParser(&in); err != nil {
		return nil, badRequest(err)
	}
	return ws.Supplier.AddTeamMember(ctx, in)
}

func removeTeamMember(ctx context.Context, c *fiber.Ctx, ws *workspace.Workspace) (any, error) {
	return done(ws.Supplier.RemoveTeamMember(ctx, c.Params("id")))
}

func done(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return fiber.Map{"ok": true}, nil
}

func badRequest(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}
