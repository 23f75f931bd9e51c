package jwt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	TokenTypeAccess = "access"
	TokenTypeSSE    = "sse"

	sseTokenTTL = 5 * time.Minute
)

var ErrInvalidClaims = errors.New("token claims are missing or invalid")

// Claims is the caller identity carried by an access token. Tokens are issued
// by the auth service that shares JWT_SECRET.
type Claims struct {
	UserID       int64
	Role         employee.Role
	DepartmentID *int64
}

type Service interface {
	GenerateAccessToken(claims Claims) (token string, expiresAt int64, err error)
	GenerateSSEToken(kioskID string) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (kioskID string, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpiration time.Duration
	tokenAuth             *jwtauth.JWTAuth
	now                   func() time.Time
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpiration string) (*JWTService, error) {
	exp, err := time.ParseDuration(accessTokenExpiration)
	if err != nil {
		return nil, fmt.Errorf("invalid access token expiration %q: %w", accessTokenExpiration, err)
	}
	return &JWTService{
		accessTokenExpiration: exp,
		tokenAuth:             jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		now:                   time.Now,
	}, nil
}

func (j *JWTService) GenerateAccessToken(c Claims) (token string, expiresAt int64, err error) {
	expiresAt = j.now().Add(j.accessTokenExpiration).Unix()

	claims := map[string]interface{}{
		"user_id":       c.UserID,
		"role":          string(c.Role),
		"department_id": nil,
		"type":          TokenTypeAccess,
		"exp":           expiresAt,
	}
	if c.DepartmentID != nil {
		claims["department_id"] = *c.DepartmentID
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// GenerateSSEToken generates a short-lived token bound to one kiosk feed.
// Browsers cannot set headers on EventSource, so it travels in the query.
func (j *JWTService) GenerateSSEToken(kioskID string) (token string, expiresIn int, err error) {
	expiresAt := j.now().Add(sseTokenTTL).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"kiosk_id": kioskID,
		"type":     TokenTypeSSE,
		"exp":      expiresAt,
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, int(sseTokenTTL.Seconds()), nil
}

// ValidateSSEToken validates an SSE token and returns the kiosk it is bound to.
func (j *JWTService) ValidateSSEToken(tokenString string) (kioskID string, err error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return "", err
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != TokenTypeSSE {
		return "", jwt.ErrInvalidJWT()
	}

	val, ok := token.Get("kiosk_id")
	if !ok {
		return "", jwt.ErrInvalidJWT()
	}
	kioskID, ok = val.(string)
	if !ok || kioskID == "" {
		return "", jwt.ErrInvalidJWT()
	}

	return kioskID, nil
}

// ClaimsFromContext reads the verified access token placed in ctx by jwtauth.Verifier.
func ClaimsFromContext(ctx context.Context) (Claims, error) {
	_, raw, err := jwtauth.FromContext(ctx)
	if err != nil {
		return Claims{}, err
	}

	if t, _ := raw["type"].(string); t != TokenTypeAccess {
		return Claims{}, ErrInvalidClaims
	}

	userID, ok := toInt64(raw["user_id"])
	if !ok || userID <= 0 {
		return Claims{}, ErrInvalidClaims
	}
	role, _ := raw["role"].(string)
	if role == "" {
		return Claims{}, ErrInvalidClaims
	}

	c := Claims{UserID: userID, Role: employee.Role(role)}
	if dept, ok := toInt64(raw["department_id"]); ok {
		c.DepartmentID = &dept
	}
	return c, nil
}

// toInt64 accepts the numeric shapes a decoded JSON claim can take.
func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n == float64(int64(n))
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
