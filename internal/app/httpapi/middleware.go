package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/OpenCustody-Network/vault_layer/internal/app/domain/vault"
	"github.com/OpenCustody-Network/vault_layer/pkg/logger"
)

type callerKey struct{}

// Claims carries the authenticated caller identity. The subject claim holds
// the caller's account address.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthMiddleware authenticates callers via HMAC-signed bearer tokens and
// stores the caller address in the request context. Read-only endpoints are
// left open.
type AuthMiddleware struct {
	secret []byte
	log    *logger.Logger
}

// NewAuthMiddleware creates the middleware. An empty secret disables
// authentication entirely, which is only acceptable for local development.
func NewAuthMiddleware(secret string, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("httpapi-auth")
	}
	return &AuthMiddleware{secret: []byte(secret), log: log}
}

// Handler wraps next with bearer-token authentication for mutating methods.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || len(m.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("missing Authorization header"))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid Authorization header format"))
			return
		}

		caller, err := m.validate(parts[1])
		if err != nil {
			m.log.WithError(err).Warn("token validation failed")
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

func (m *AuthMiddleware) validate(tokenString string) (vault.Address, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return vault.ZeroAddress, err
	}
	if !token.Valid {
		return vault.ZeroAddress, fmt.Errorf("token invalid")
	}
	return vault.ParseAddress(claims.Subject)
}

func withCaller(ctx context.Context, caller vault.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the authenticated caller address, if any.
func CallerFromContext(ctx context.Context) (vault.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(vault.Address)
	return caller, ok
}

// RateLimit applies a global token-bucket limit to all requests.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
