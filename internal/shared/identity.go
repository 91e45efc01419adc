package shared

import "context"

// RoleAdmin is the role allowed to see financial data.
const RoleAdmin = "admin"

// Identity is the signed-in user as seen by templates and handlers.
type Identity struct {
	Username string
	Role     string
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity stored in context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

type expiringContextKey struct{}

// ContextWithExpiring stores the count of policies in the renewal window.
func ContextWithExpiring(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, expiringContextKey{}, n)
}

// ExpiringFromContext returns the renewal window count, zero when unknown.
func ExpiringFromContext(ctx context.Context) int {
	n, _ := ctx.Value(expiringContextKey{}).(int)
	return n
}
