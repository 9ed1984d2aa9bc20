package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"tripdesk/internal/domain/shared/fault"
)

var (
	ErrNotFound      = fault.New(fault.NotFound, "account not found")
	ErrIDRequired    = errors.New("account: id is required")
	ErrEmailRequired = errors.New("account: email is required")
	ErrInvalidRole   = errors.New("account: invalid role")
)

type ID string

type Role string

const (
	RoleGuest Role = "guest"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Account is the slice of an externally managed user that bookings link to.
type Account struct {
	ID        ID
	Email     string
	Name      string
	Roles     []Role
	CreatedAt time.Time
}

type CreateParams struct {
	ID        ID
	Email     string
	Name      string
	Roles     []Role
	CreatedAt time.Time
}

func New(params CreateParams) (*Account, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	email := NormalizeEmail(params.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	roles, err := NormalizeRoles(params.Roles)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []Role{RoleGuest}
	}
	return &Account{
		ID:        ID(id),
		Email:     email,
		Name:      strings.TrimSpace(params.Name),
		Roles:     roles,
		CreatedAt: params.CreatedAt.UTC(),
	}, nil
}

func (a *Account) HasRole(role Role) bool {
	return HasRole(a.Roles, role)
}

// Directory resolves accounts by email. It returns ErrNotFound when no
// account matches.
type Directory interface {
	ByEmail(ctx context.Context, email string) (*Account, error)
}

// HasRole reports whether roles grants role. Admins hold every staff right.
func HasRole(roles []Role, role Role) bool {
	role = ParseRole(string(role))
	for _, current := range roles {
		current = ParseRole(string(current))
		if current == role || current == RoleAdmin && role == RoleStaff {
			return true
		}
	}
	return false
}

func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "guest":
		return RoleGuest
	case "staff":
		return RoleStaff
	case "admin":
		return RoleAdmin
	}
	return ""
}

func NormalizeRoles(roles []Role) ([]Role, error) {
	seen := make(map[Role]struct{}, len(roles))
	out := make([]Role, 0, len(roles))
	for _, role := range roles {
		parsed := ParseRole(string(role))
		if parsed == "" {
			return nil, ErrInvalidRole
		}
		if _, ok := seen[parsed]; ok {
			continue
		}
		seen[parsed] = struct{}{}
		out = append(out, parsed)
	}
	return out, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
