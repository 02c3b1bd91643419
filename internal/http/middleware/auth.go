package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tendant/simple-idm-docstore/internal/httputil"
)

type contextKey string

const claimsKey contextKey = "admin_claims"

// AdminClaims are the claims carried by an admin API bearer token.
type AdminClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token grants role.
func (c *AdminClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// AdminAuthConfig configures bearer token validation.
type AdminAuthConfig struct {
	Secret []byte
	Issuer string // checked when non-empty
	Role   string // required role
}

var errMissingToken = errors.New("missing authorization")

// AdminAuth creates middleware that requires an HS256 bearer token whose
// roles claim contains the configured role.
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims := &AdminClaims{}
			_, err = parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
				return cfg.Secret, nil
			})
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if !claims.HasRole(cfg.Role) {
				httputil.Error(w, http.StatusForbidden, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errMissingToken
	}
	return parts[1], nil
}

// GetClaims extracts the admin token claims from the request context.
func GetClaims(ctx context.Context) (*AdminClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*AdminClaims)
	return claims, ok
}
