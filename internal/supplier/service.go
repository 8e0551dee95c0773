// Package supplier wraps the supplier API endpoints the console pages use.
// Every call goes through the authorized request client; this package only
// knows paths, payloads and the envelope variants the upstream ships.
package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/credentials"
	"github.com/scp-platform/supplier-console/internal/httpclient"
	"github.com/scp-platform/supplier-console/pkg/model"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
)

var (
	ErrMissingID        = errors.New("id is required")
	ErrInvalidID        = errors.New("invalid id format")
	ErrUnexpectedFormat = errors.New("unexpected response format")
)

// Requester is the authorized request primitive.
type Requester interface {
	Request(ctx context.Context, method, path string, body any, opts ...httpclient.RequestOption) (json.RawMessage, error)
}

// Service is one workspace's view of the supplier API.
type Service struct {
	api         Requester
	store       credentials.Store
	defaultRole model.Role
	logger      *zap.Logger
}

func New(api Requester, store credentials.Store, defaultRole model.Role, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultRole == "" {
		defaultRole = model.RoleOwner
	}
	return &Service{
		api:         api,
		store:       store,
		defaultRole: defaultRole,
		logger:      logger,
	}
}

// unwrap strips the {"success": true, "data": ...} envelope when present.
func unwrap(raw json.RawMessage) json.RawMessage {
	var env struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw
	}
	if env.Success == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return raw
	}
	return env.Data
}

// decodeOne decodes a single resource, enveloped or not.
func decodeOne[T any](raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(unwrap(raw), &out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrUnexpectedFormat, err)
	}
	return out, nil
}

// decodePage accepts {results, pagination}, {results, page, page_size, total},
// either of those inside the success envelope, or a bare array. Anything
// else is an empty page.
func decodePage[T any](raw json.RawMessage, page, pageSize int) (model.Page[T], error) {
	body := bytes.TrimSpace(unwrap(raw))

	if len(body) > 0 && body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return model.EmptyPage[T](page, pageSize), fmt.Errorf("%w: %w", ErrUnexpectedFormat, err)
		}
		if items == nil {
			items = []T{}
		}
		return model.Page[T]{
			Results:    items,
			Pagination: model.Pagination{Page: page, PageSize: pageSize, Total: len(items), TotalPages: 1},
		}, nil
	}

	var env struct {
		Results    json.RawMessage   `json:"results"`
		Pagination *model.Pagination `json:"pagination"`
		Page       int               `json:"page"`
		PageSize   int               `json:"page_size"`
		Total      int               `json:"total"`
		TotalPages int               `json:"total_pages"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Results) == 0 {
		return model.EmptyPage[T](page, pageSize), nil
	}

	var items []T
	if string(env.Results) != "null" {
		if err := json.Unmarshal(env.Results, &items); err != nil {
			return model.EmptyPage[T](page, pageSize), fmt.Errorf("%w: %w", ErrUnexpectedFormat, err)
		}
	}
	if items == nil {
		items = []T{}
	}

	out := model.Page[T]{Results: items}
	if env.Pagination != nil {
		out.Pagination = *env.Pagination
		return out, nil
	}
	out.Pagination = model.Pagination{
		Page:       orDefault(env.Page, page),
		PageSize:   orDefault(env.PageSize, pageSize),
		Total:      env.Total,
		TotalPages: env.TotalPages,
	}
	if out.Pagination.TotalPages == 0 && out.Pagination.PageSize > 0 {
		out.Pagination.TotalPages = (env.Total + out.Pagination.PageSize - 1) / out.Pagination.PageSize
	}
	return out, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// pageQuery normalizes paging arguments and renders the query string.
func pageQuery(page, pageSize int, extra url.Values) (int, int, string) {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	q := url.Values{}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	return page, pageSize, "?" + q.Encode()
}

// resource builds "<base>/<id>[/<action>]" with the id escaped.
func resource(base, id string, action ...string) (string, error) {
	if id == "" {
		return "", ErrMissingID
	}
	p := base + "/" + url.PathEscape(id)
	for _, a := range action {
		p += "/" + a
	}
	return p, nil
}

// productResource additionally requires a UUID, as the catalog does.
func productResource(id string) (string, error) {
	if id == "" {
		return "", ErrMissingID
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return resource("/supplier/products", id)
}
