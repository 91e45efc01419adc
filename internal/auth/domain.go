package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wecare-insurance/portal/internal/shared"
)

// Session keys holding the API credentials.
const (
	sessionKeyToken    = "api_token"
	sessionKeyRole     = "role"
	sessionKeyUsername = "username"
	sessionKeyExpires  = "token_expires"
)

// SessionContext is the authenticated state restored on each request: the
// bearer token for the records API plus the user's role and name.
type SessionContext struct {
	Token     string
	Role      string
	Username  string
	ExpiresAt time.Time
}

// IsAdmin reports whether the session holds the admin role.
func (c SessionContext) IsAdmin() bool {
	return c.Role == shared.RoleAdmin
}

// Expired reports whether the token's exp claim has passed.
func (c SessionContext) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Identity converts the session to the template-facing identity.
func (c SessionContext) Identity() shared.Identity {
	return shared.Identity{Username: c.Username, Role: c.Role}
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role     string `json:"role,omitempty"`
	Username string `json:"username,omitempty"`
}

// inspectToken reads the claims of the API token without verifying its
// signature; the records API remains the authority on validity.
func inspectToken(token string) (tokenClaims, bool) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return tokenClaims{}, false
	}
	return claims, true
}

// Init stores a fresh login in the session.
func Init(sess *shared.Session, token, role, username string) SessionContext {
	sc := SessionContext{Token: token, Role: role, Username: username}
	if claims, ok := inspectToken(token); ok {
		if claims.ExpiresAt != nil {
			sc.ExpiresAt = claims.ExpiresAt.Time
		}
		if sc.Role == "" {
			sc.Role = claims.Role
		}
		if sc.Username == "" {
			sc.Username = claims.Username
		}
	}
	if sess == nil {
		return sc
	}
	sess.SetUser(sc.Username)
	sess.Set(sessionKeyToken, sc.Token)
	sess.Set(sessionKeyRole, sc.Role)
	sess.Set(sessionKeyUsername, sc.Username)
	if !sc.ExpiresAt.IsZero() {
		sess.Set(sessionKeyExpires, sc.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		sess.Delete(sessionKeyExpires)
	}
	return sc
}

// Clear removes the credentials from the session.
func Clear(sess *shared.Session) {
	if sess == nil {
		return
	}
	for _, key := range []string{sessionKeyToken, sessionKeyRole, sessionKeyUsername, sessionKeyExpires} {
		sess.Delete(key)
	}
	if sess.User() != "" {
		sess.SetUser("")
	}
}

// Restore rebuilds the SessionContext from a session. ok is false when the
// session carries no token.
func Restore(sess *shared.Session) (SessionContext, bool) {
	if sess == nil {
		return SessionContext{}, false
	}
	token := sess.Get(sessionKeyToken)
	if token == "" {
		return SessionContext{}, false
	}
	sc := SessionContext{
		Token:    token,
		Role:     sess.Get(sessionKeyRole),
		Username: sess.Get(sessionKeyUsername),
	}
	if raw := sess.Get(sessionKeyExpires); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			sc.ExpiresAt = t
		}
	}
	return sc, true
}

type contextKey struct{}

// ContextWith stores the SessionContext and its identity in ctx.
func ContextWith(ctx context.Context, sc SessionContext) context.Context {
	ctx = shared.ContextWithIdentity(ctx, sc.Identity())
	return context.WithValue(ctx, contextKey{}, sc)
}

// FromContext returns the SessionContext of the request.
func FromContext(ctx context.Context) (SessionContext, bool) {
	sc, ok := ctx.Value(contextKey{}).(SessionContext)
	return sc, ok
}
