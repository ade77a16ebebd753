package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ruralhealth/screening-api/internal/domain"
	"github.com/ruralhealth/screening-api/pkg/auth"
)

type ctxKey string

const ctxPrincipal ctxKey = "principal"

// Principal is the authenticated caller, resolved from a verified token.
type Principal struct {
	Subject  string
	Role     domain.Role
	WorkerID *int64
	PersonID *int64
}

// RequireAuth verifies the bearer token and stores the principal in the
// request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			Unauthorized(w, "invalid authorization header")
			return
		}
		claims, err := auth.Parse(strings.TrimPrefix(authz, "Bearer "), h.cfg.Auth.JWTSecret)
		if err != nil {
			Unauthorized(w, "invalid authorization token")
			return
		}
		principal := &Principal{
			Subject:  claims.Subject,
			Role:     domain.Role(claims.Role),
			WorkerID: claims.WorkerID,
			PersonID: claims.PersonID,
		}
		ctx := context.WithValue(r.Context(), ctxPrincipal, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePerm gates a route on one capability. Every denial is the same 403
// regardless of role, so responses never leak what a capability is called or
// who holds it.
func RequirePerm(cap string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r)
			if p == nil || !domain.HasPerm(p.Role, cap) {
				Forbidden(w, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal returns the authenticated caller, or nil outside RequireAuth.
func GetPrincipal(r *http.Request) *Principal {
	v := r.Context().Value(ctxPrincipal)
	if v == nil {
		return nil
	}
	return v.(*Principal)
}
