package policies

import (
	"context"

	"tripdesk/internal/domain/account"
	"tripdesk/internal/domain/shared/fault"
)

var (
	ErrUnauthenticated = fault.New(fault.Unauthenticated, "authentication required")
	ErrForbidden       = fault.New(fault.Forbidden, "not permitted for this account")
)

// Principal is the authenticated caller. The zero value is an anonymous guest.
type Principal struct {
	AccountID account.ID
	Roles     []account.Role
}

func (p Principal) Authenticated() bool {
	return p.AccountID != ""
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// RoleRequirement is implemented by messages restricted to a role.
type RoleRequirement interface {
	RequiredRole() account.Role
}

// RoleAuthorizer admits a message when the principal on ctx holds the role
// the message requires.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(ctx context.Context, message any) error {
	req, ok := message.(RoleRequirement)
	if !ok {
		return nil
	}
	p := PrincipalFrom(ctx)
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if !account.HasRole(p.Roles, req.RequiredRole()) {
		return ErrForbidden
	}
	return nil
}
