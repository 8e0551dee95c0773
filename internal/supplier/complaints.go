package supplier

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/scp-platform/supplier-console/pkg/model"
)

const complaintsPath = "/supplier/complaints"

var ErrMissingResolution = errors.New("resolution is required")

// Complaints lists complaints, optionally filtered by status.
func (s *Service) Complaints(ctx context.Context, status string, page, pageSize int) (model.Page[model.Complaint], error) {
	var extra url.Values
	if status != "" {
		extra = url.Values{"status": {status}}
	}
	page, pageSize, q := pageQuery(page, pageSize, extra)
	raw, err := s.api.Request(ctx, http.MethodGet, complaintsPath+q, nil)
	if err != nil {
		return model.EmptyPage[model.Complaint](page, pageSize), err
	}
	return decodePage[model.Complaint](raw, page, pageSize)
}

func (s *Service) Complaint(ctx context.Context, id string) (model.Complaint, error) {
	path, err := resource(complaintsPath, id)
	if err != nil {
		return model.Complaint{}, err
	}
	raw, err := s.api.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return model.Complaint{}, err
	}
	return decodeOne[model.Complaint](raw)
}

func (s *Service) EscalateComplaint(ctx context.Context, id string) (model.Complaint, error) {
	path, err := resource(complaintsPath, id, "escalate")
	if err != nil {
		return model.Complaint{}, err
	}
	raw, err := s.api.Request(ctx, http.MethodPost, path, struct{}{})
	if err != nil {
		return model.Complaint{}, err
	}
	return decodeOne[model.Complaint](raw)
}

func (s *Service) ResolveComplaint(ctx context.Context, id, resolution string) (model.Complaint, error) {
	path, err := resource(complaintsPath, id, "resolve")
	if err != nil {
		return model.Complaint{}, err
	}
	if resolution == "" {
		return model.Complaint{}, ErrMissingResolution
	}
	raw, err := s.api.Request(ctx, http.MethodPost, path, map[string]string{"resolution": resolution})
	if err != nil {
		return model.Complaint{}, err
	}
	return decodeOne[model.Complaint](raw)
}

// ConversationMessages returns the first hundred messages of a complaint's
// conversation.
func (s *Service) ConversationMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	path, err := resource("/supplier/conversations", conversationID, "messages")
	if err != nil {
		return nil, err
	}
	raw, err := s.api.Request(ctx, http.MethodGet, path+"?page=1&page_size=100", nil)
	if err != nil {
		return nil, err
	}
	p, err := decodePage[model.Message](raw, 1, 100)
	return p.Results, err
}
