package supplier

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/scp-platform/supplier-console/pkg/model"
)

// DashboardStats returns the landing-page summary. Missing lists come back
// empty rather than nil.
func (s *Service) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	raw, err := s.api.Request(ctx, http.MethodGet, "/supplier/dashboard/stats", nil)
	if err != nil {
		return model.DashboardStats{}, err
	}
	body := unwrap(raw)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return model.DashboardStats{}, ErrUnexpectedFormat
	}
	if _, ok := probe["total_orders"]; !ok {
		return model.DashboardStats{}, ErrUnexpectedFormat
	}

	stats, err := decodeOne[model.DashboardStats](body)
	if err != nil {
		return model.DashboardStats{}, err
	}
	if stats.RecentOrders == nil {
		stats.RecentOrders = []model.Order{}
	}
	if stats.LowStockProducts == nil {
		stats.LowStockProducts = []model.Product{}
	}
	return stats, nil
}
