package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/samiti/portal/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// principalKey is the context key for the authenticated principal.
const principalKey contextKey = "principal"

// Role names carried in tokens and stored on user records.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
	RoleMember  = "member"
)

// Principal is the identity attached to a request by RequireAuth.
type Principal struct {
	UserID    string
	Email     string
	Name      string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Authenticator resolves a raw bearer token to a known principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// RequireAuth returns middleware that validates a Bearer token and injects
// the principal into the request context. Any failure ends the request with
// 401 before the next handler runs.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "authorization header required")
				return
			}

			raw, ok := bearer(authHeader)
			if !ok {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			p, err := authn.Authenticate(r.Context(), raw)
			if err != nil {
				response.FromError(w, err, "internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole returns middleware that admits only principals holding one of
// roles. It must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				response.Unauthorized(w, "unauthorized")
				return
			}
			if !slices.Contains(roles, p.Role) {
				response.Forbidden(w, roles[0]+" access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireAuth followed by RequireRole(RoleAdmin).
func RequireAdmin(authn Authenticator) func(http.Handler) http.Handler {
	authMW := RequireAuth(authn)
	roleMW := RequireRole(RoleAdmin)
	return func(next http.Handler) http.Handler {
		return authMW(roleMW(next))
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal stored by RequireAuth.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func bearer(h string) (string, bool) {
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}
