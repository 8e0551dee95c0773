package model

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of supplier-side console roles.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleManager Role = "manager"
	RoleSales   Role = "sales"
)

var ErrUnknownRole = errors.New("unknown role")

// Roles lists every role in display order.
func Roles() []Role {
	return []Role{RoleOwner, RoleManager, RoleSales}
}

// ParseRole maps a wire role onto the closed enumeration.
// The upstream names the sales role "sales_rep".
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "owner":
		return RoleOwner, nil
	case "manager":
		return RoleManager, nil
	case "sales", "sales_rep", "sales-rep":
		return RoleSales, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// WireName is the role name the upstream API expects.
func (r Role) WireName() string {
	if r == RoleSales {
		return "sales_rep"
	}
	return string(r)
}

// Credential is the access/refresh pair held by the credential store.
type Credential struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// UserIdentity is the normalized identity every guard and page works with.
type UserIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// Session is what a guarded page sees: the identity (if any) and whether the
// check has completed.
type Session struct {
	Identity *UserIdentity `json:"identity"`
	Checked  bool          `json:"checked"`
}

// UserRecord is the upstream user payload. The API has shipped both snake_case
// and camelCase variants, so both are accepted.
type UserRecord struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	Role            string  `json:"role"`
	Name            *string `json:"name,omitempty"`
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	CompanyName     *string `json:"company_name,omitempty"`
	PhoneNumber     *string `json:"phone_number,omitempty"`
	ProfileImageURL *string `json:"profile_image_url,omitempty"`
	SupplierID      *string `json:"supplier_id,omitempty"`

	FirstNameAlt   *string `json:"firstName,omitempty"`
	LastNameAlt    *string `json:"lastName,omitempty"`
	CompanyNameAlt *string `json:"companyName,omitempty"`
}

// Normalize turns a wire record into a UserIdentity.
func (u UserRecord) Normalize() (UserIdentity, error) {
	if strings.TrimSpace(u.ID) == "" {
		return UserIdentity{}, errors.New("user record has no id")
	}
	role, err := ParseRole(u.Role)
	if err != nil {
		return UserIdentity{}, err
	}
	return UserIdentity{
		ID:          u.ID,
		DisplayName: u.displayName(),
		Email:       strings.TrimSpace(u.Email),
		Role:        role,
	}, nil
}

func (u UserRecord) displayName() string {
	if n := deref(u.Name); n != "" {
		return n
	}
	first := firstNonEmpty(deref(u.FirstName), deref(u.FirstNameAlt))
	last := firstNonEmpty(deref(u.LastName), deref(u.LastNameAlt))
	if full := strings.TrimSpace(first + " " + last); full != "" {
		return full
	}
	if company := firstNonEmpty(deref(u.CompanyName), deref(u.CompanyNameAlt)); company != "" {
		return company
	}
	return strings.TrimSpace(u.Email)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
