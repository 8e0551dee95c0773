package supplier

import (
	"context"
	"net/http"

	"github.com/scp-platform/supplier-console/pkg/model"
)

const linksPath = "/supplier/consumer-links"

// ConsumerLinks lists link requests from consumers.
func (s *Service) ConsumerLinks(ctx context.Context, page, pageSize int) (model.Page[model.ConsumerLink], error) {
	page, pageSize, q := pageQuery(page, pageSize, nil)
	raw, err := s.api.Request(ctx, http.MethodGet, linksPath+q, nil)
	if err != nil {
		return model.EmptyPage[model.ConsumerLink](page, pageSize), err
	}
	return decodePage[model.ConsumerLink](raw, page, pageSize)
}

func (s *Service) ApproveLink(ctx context.Context, id string) error {
	return s.linkAction(ctx, id, "approve")
}

func (s *Service) RejectLink(ctx context.Context, id string) error {
	return s.linkAction(ctx, id, "reject")
}

func (s *Service) BlockLink(ctx context.Context, id string) error {
	return s.linkAction(ctx, id, "block")
}

func (s *Service) linkAction(ctx context.Context, id, action string) error {
	path, err := resource(linksPath, id, action)
	if err != nil {
		return err
	}
	_, err = s.api.Request(ctx, http.MethodPost, path, nil)
	return err
}
