package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lingora-app/lingora/internal/api"
)

type contextKey string

const serviceClaimsKey contextKey = "service_claims"

// ServiceClaims identifies the internal caller (api gateway, chat backend).
type ServiceClaims struct {
	Service string `json:"svc"`
	jwt.RegisteredClaims
}

// ServiceAuth validates HS256 service tokens on the internal API. This is
// service-to-service authentication; end-user identity arrives as a plain
// path parameter because callers are trusted once their token checks out.
func ServiceAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims := &ServiceClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Service == "" {
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), serviceClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetServiceClaims returns the caller's claims from the context, or nil.
func GetServiceClaims(ctx context.Context) *ServiceClaims {
	claims, _ := ctx.Value(serviceClaimsKey).(*ServiceClaims)
	return claims
}
