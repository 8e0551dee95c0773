package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/scp-platform/supplier-console/internal/httpclient"
	"github.com/scp-platform/supplier-console/pkg/model"
	"github.com/scp-platform/supplier-console/pkg/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrLoginFailed        = errors.New("login failed")
)

// LoginInput is the sign-in form. An empty Role uses the service default.
type LoginInput struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role,omitempty"`
}

type loginResponse struct {
	AccessToken     string            `json:"access_token"`
	AccessTokenAlt  string            `json:"accessToken"`
	RefreshToken    string            `json:"refresh_token"`
	RefreshTokenAlt string            `json:"refreshToken"`
	User            *model.UserRecord `json:"user"`
}

// Login exchanges email and password for credentials, stores them with the
// identity snapshot, and returns the identity. Any previous session in the
// store is discarded first.
func (s *Service) Login(ctx context.Context, in LoginInput) (model.UserIdentity, error) {
	role := in.Role
	if role == "" {
		role = s.defaultRole
	}
	body := map[string]string{
		"email":    in.Email,
		"password": in.Password,
		"role":     role.WireName(),
	}

	raw, err := s.api.Request(ctx, http.MethodPost, "/auth/login", body, httpclient.SkipAuthRefresh())
	if err != nil {
		if httpclient.IsStatus(err, http.StatusUnauthorized) {
			return model.UserIdentity{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return model.UserIdentity{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	resp, err := decodeOne[loginResponse](raw)
	if err != nil {
		return model.UserIdentity{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	access := firstNonEmpty(resp.AccessToken, resp.AccessTokenAlt)
	if access == "" {
		return model.UserIdentity{}, fmt.Errorf("%w: response carried no access credential", ErrLoginFailed)
	}
	if resp.User == nil {
		return model.UserIdentity{}, fmt.Errorf("%w: response carried no user", ErrLoginFailed)
	}
	identity, err := resp.User.Normalize()
	if err != nil {
		return model.UserIdentity{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	s.store.Clear(ctx)
	s.store.Set(ctx, access, firstNonEmpty(resp.RefreshToken, resp.RefreshTokenAlt))
	s.store.SetUser(ctx, identity)

	s.logger.Info("supplier.login",
		zap.String("user_id", identity.ID),
		zap.String("role", string(identity.Role)),
		zap.String("access", utils.MaskToken(access)))
	return identity, nil
}

// Logout tells the upstream (best effort) and clears the store regardless.
// The upstream error is returned for logging only.
func (s *Service) Logout(ctx context.Context) error {
	_, err := s.api.Request(ctx, http.MethodPost, "/auth/logout", nil)
	s.store.Clear(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Debug("supplier.logout_upstream_failed", zap.Error(err))
	}
	return err
}

// CurrentUser asks the upstream who the stored credential belongs to. The
// record may come bare or as {"user": ...}.
func (s *Service) CurrentUser(ctx context.Context) (model.UserIdentity, error) {
	raw, err := s.api.Request(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return model.UserIdentity{}, err
	}
	body := unwrap(raw)

	var wrapped struct {
		User *model.UserRecord `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User.Normalize()
	}

	rec, err := decodeOne[model.UserRecord](body)
	if err != nil {
		return model.UserIdentity{}, err
	}
	return rec.Normalize()
}

// Profile returns the supplier the signed-in staff member belongs to.
func (s *Service) Profile(ctx context.Context) (model.SupplierProfile, error) {
	raw, err := s.api.Request(ctx, http.MethodGet, "/supplier/me", nil)
	if err != nil {
		return model.SupplierProfile{}, err
	}
	return decodeOne[model.SupplierProfile](raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
