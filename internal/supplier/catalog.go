package supplier

import (
	"context"
	"errors"
	"net/http"

	"github.com/scp-platform/supplier-console/pkg/model"
)

var ErrInvalidProduct = errors.New("invalid product")

// Products lists the catalog one page at a time.
func (s *Service) Products(ctx context.Context, page, pageSize int) (model.Page[model.Product], error) {
	page, pageSize, q := pageQuery(page, pageSize, nil)
	raw, err := s.api.Request(ctx, http.MethodGet, "/supplier/products"+q, nil)
	if err != nil {
		return model.EmptyPage[model.Product](page, pageSize), err
	}
	return decodePage[model.Product](raw, page, pageSize)
}

func (s *Service) Product(ctx context.Context, id string) (model.Product, error) {
	path, err := productResource(id)
	if err != nil {
		return model.Product{}, err
	}
	raw, err := s.api.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return model.Product{}, err
	}
	return decodeOne[model.Product](raw)
}

func (s *Service) CreateProduct(ctx context.Context, in model.ProductInput) (model.Product, error) {
	if err := validateProduct(in); err != nil {
		return model.Product{}, err
	}
	raw, err := s.api.Request(ctx, http.MethodPost, "/supplier/products", in)
	if err != nil {
		return model.Product{}, err
	}
	return decodeOne[model.Product](raw)
}

func (s *Service) UpdateProduct(ctx context.Context, id string, in model.ProductInput) (model.Product, error) {
	path, err := productResource(id)
	if err != nil {
		return model.Product{}, err
	}
	if err := validateProduct(in); err != nil {
		return model.Product{}, err
	}
	raw, err := s.api.Request(ctx, http.MethodPut, path, in)
	if err != nil {
		return model.Product{}, err
	}
	return decodeOne[model.Product](raw)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	path, err := productResource(id)
	if err != nil {
		return err
	}
	_, err = s.api.Request(ctx, http.MethodDelete, path, nil)
	return err
}

func validateProduct(in model.ProductInput) error {
	switch {
	case in.Name == "":
		return errors.Join(ErrInvalidProduct, errors.New("name is required"))
	case in.Unit == "":
		return errors.Join(ErrInvalidProduct, errors.New("unit is required"))
	case in.Price.IsNegative():
		return errors.Join(ErrInvalidProduct, errors.New("price must not be negative"))
	case in.StockLevel < 0:
		return errors.Join(ErrInvalidProduct, errors.New("stock level must not be negative"))
	case in.MinOrderQuantity < 1:
		return errors.Join(ErrInvalidProduct, errors.New("minimum order quantity must be at least 1"))
	}
	return nil
}
