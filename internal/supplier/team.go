package supplier

import (
	"context"
	"errors"
	"net/http"

	"github.com/scp-platform/supplier-console/pkg/model"
)

const usersPath = "/supplier/users"

var ErrInvalidMember = errors.New("invalid team member")

// Team lists the supplier's staff. Owners are not part of the managed team
// and are filtered out.
func (s *Service) Team(ctx context.Context) ([]model.TeamMember, error) {
	raw, err := s.api.Request(ctx, http.MethodGet, usersPath, nil)
	if err != nil {
		return []model.TeamMember{}, err
	}
	p, err := decodePage[model.TeamMember](raw, 1, 0)
	if err != nil {
		return []model.TeamMember{}, err
	}
	team := make([]model.TeamMember, 0, len(p.Results))
	for _, m := range p.Results {
		role, err := model.ParseRole(m.Role)
		if err != nil || role == model.RoleOwner {
			continue
		}
		team = append(team, m)
	}
	return team, nil
}

// AddTeamMember creates a manager or sales account.
func (s *Service) AddTeamMember(ctx context.Context, in model.NewTeamMember) (model.TeamMember, error) {
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return model.TeamMember{}, errors.Join(ErrInvalidMember, err)
	}
	if role == model.RoleOwner {
		return model.TeamMember{}, errors.Join(ErrInvalidMember, errors.New("owners cannot be created from the console"))
	}
	if in.Email == "" || len(in.Password) < 6 {
		return model.TeamMember{}, errors.Join(ErrInvalidMember, errors.New("email and a password of at least 6 characters are required"))
	}
	in.Role = role.WireName()

	raw, err := s.api.Request(ctx, http.MethodPost, usersPath, in)
	if err != nil {
		return model.TeamMember{}, err
	}
	m, err := decodeOne[model.TeamMember](raw)
	if err != nil {
		return model.TeamMember{}, err
	}
	if m.ID == "" {
		return model.TeamMember{}, ErrUnexpectedFormat
	}
	return m, nil
}

func (s *Service) RemoveTeamMember(ctx context.Context, id string) error {
	path, err := resource(usersPath, id)
	if err != nil {
		return err
	}
	_, err = s.api.Request(ctx, http.MethodDelete, path, nil)
	return err
}
