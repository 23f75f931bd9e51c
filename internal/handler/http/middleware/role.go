package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/rbac"
)

// RequirePermission checks the principal's role against the casbin policy.
func RequirePermission(enforcer *rbac.Enforcer, obj rbac.Object, act rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				response.Unauthorized(w, "Authentication required")
				return
			}

			allowed, err := enforcer.Allowed(p.Role(), obj, act)
			if err != nil {
				slog.Error("Permission check failed", "role", p.Role(), "object", obj, "action", act, "error", err)
				response.InternalServerError(w, "An unexpected error occurred")
				return
			}
			if !allowed {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s:%s', but role is '%s'", obj, act, p.Role()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
