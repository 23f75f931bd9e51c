package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/kiosk"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/rbac"
	"github.com/go-chi/jwtauth/v5"
)

const (
	HeaderKioskToken = "X-Kiosk-Token"
	HeaderKioskID    = "X-Kiosk-ID"
)

type principalKey struct{}

// Principal is the authenticated caller: an employee holding an access token,
// or a kiosk device.
type Principal struct {
	Claims  jwt.Claims
	KioskID string
	IsKiosk bool
}

// Role is the casbin subject of the principal.
func (p Principal) Role() string {
	if p.IsKiosk {
		return rbac.RoleKiosk
	}
	return string(p.Claims.Role)
}

// Key identifies the caller for per-caller state such as rate limits.
func (p Principal) Key() string {
	if p.IsKiosk {
		return "kiosk:" + p.KioskID
	}
	return "user:" + strconv.FormatInt(p.Claims.UserID, 10)
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// AuthRequired verifies the bearer access token and stores the principal.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verifier(ja)(authenticate(next))
	}
}

func authenticate(next http.Handler) http.Handler {
	hfn := func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}
		if token == nil {
			response.Unauthorized(w, "Missing access token")
			return
		}

		claims, err := jwt.ClaimsFromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, "Invalid access token")
			return
		}

		ctx := WithPrincipal(r.Context(), Principal{Claims: claims})
		next.ServeHTTP(w, r.WithContext(ctx))
	}
	return http.HandlerFunc(hfn)
}

// KioskOrAuth accepts either a kiosk device or an employee token. A request
// carrying X-Kiosk-Token is a kiosk; when no kiosk token is configured, a
// request without Authorization is treated as a kiosk too.
func KioskOrAuth(ja *jwtauth.JWTAuth, kioskToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		employeeAuth := AuthRequired(ja)(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(HeaderKioskToken)
			isKiosk := presented != "" || (kioskToken == "" && r.Header.Get("Authorization") == "")
			if !isKiosk {
				employeeAuth.ServeHTTP(w, r)
				return
			}

			if kioskToken != "" && !ValidKioskToken(presented, kioskToken) {
				response.HandleError(w, kiosk.ErrInvalidKioskKey)
				return
			}

			p := Principal{IsKiosk: true, KioskID: kiosk.NormalizeKioskID(r.Header.Get(HeaderKioskID))}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// ValidKioskToken compares in constant time.
func ValidKioskToken(presented, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}
