package supplier

import (
	"context"
	"net/http"

	"github.com/scp-platform/supplier-console/pkg/model"
)

const ordersPath = "/supplier/orders"

func (s *Service) Orders(ctx context.Context, page, pageSize int) (model.Page[model.Order], error) {
	page, pageSize, q := pageQuery(page, pageSize, nil)
	raw, err := s.api.Request(ctx, http.MethodGet, ordersPath+q, nil)
	if err != nil {
		return model.EmptyPage[model.Order](page, pageSize), err
	}
	return decodePage[model.Order](raw, page, pageSize)
}

func (s *Service) Order(ctx context.Context, id string) (model.Order, error) {
	path, err := resource(ordersPath, id)
	if err != nil {
		return model.Order{}, err
	}
	raw, err := s.api.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return model.Order{}, err
	}
	return decodeOne[model.Order](raw)
}

func (s *Service) AcceptOrder(ctx context.Context, id string) error {
	return s.orderAction(ctx, id, "accept")
}

func (s *Service) RejectOrder(ctx context.Context, id string) error {
	return s.orderAction(ctx, id, "reject")
}

func (s *Service) orderAction(ctx context.Context, id, action string) error {
	path, err := resource(ordersPath, id, action)
	if err != nil {
		return err
	}
	_, err = s.api.Request(ctx, http.MethodPost, path, nil)
	return err
}
