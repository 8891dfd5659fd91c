package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"rentacar/internal/app/auth"
)

var (
	ErrTokenInvalid        = errors.New("security: token invalid")
	ErrSecretNotConfigured = errors.New("security: jwt secret not configured")
)

// Claims are issued by the identity service. Role may hold a single role or
// a comma separated list.
type Claims struct {
	Sub   string `json:"sub"`
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 bearer tokens and maps them to principals.
type JWTVerifier struct {
	Secret []byte
	Leeway time.Duration
}

func (v JWTVerifier) Verify(token string) (auth.Principal, error) {
	if len(v.Secret) == 0 {
		return auth.Principal{}, ErrSecretNotConfigured
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(v.Leeway))
	if err != nil {
		return auth.Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return auth.Principal{}, ErrTokenInvalid
	}
	subject := claims.Sub
	if subject == "" {
		subject = claims.Subject
	}
	if subject == "" {
		return auth.Principal{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return auth.Principal{UserID: subject, Email: claims.Email, Roles: splitRoles(claims.Role)}, nil
}

// Issue signs a token for p. The service never issues tokens itself; tests
// and local tooling use this.
func (v JWTVerifier) Issue(p auth.Principal, ttl time.Duration) (string, error) {
	if len(v.Secret) == 0 {
		return "", ErrSecretNotConfigured
	}
	claims := Claims{
		Sub:   p.UserID,
		Role:  strings.Join(p.Roles, ","),
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

func splitRoles(raw string) []string {
	out := make([]string, 0, 1)
	for _, r := range strings.Split(raw, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
