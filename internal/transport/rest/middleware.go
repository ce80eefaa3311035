package rest

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	appCtx "github.com/baechuer/rapidphoto/internal/pkg/context"
	"github.com/baechuer/rapidphoto/internal/security"
	"github.com/baechuer/rapidphoto/internal/transport/rest/response"
)

// AuthMiddleware validates the Bearer access token and stores the caller's
// identity in context.
func AuthMiddleware(verifier security.AccessTokenVerifier, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := appCtx.GetRequestID(r.Context())

			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				response.Fail(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil, rid)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))

			claims, err := verifier.VerifyAccessToken(raw)
			if err != nil {
				code := "UNAUTHORIZED"
				msg := "invalid token"
				if errors.Is(err, security.ErrTokenExpired) {
					msg = "token expired"
				}
				response.Fail(w, http.StatusUnauthorized, code, msg, nil, rid)
				return
			}
			if issuer != "" && claims.Issuer != issuer {
				response.Fail(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token issuer", nil, rid)
				return
			}

			uid, err := uuid.Parse(claims.UserID)
			if err != nil {
				response.Fail(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token subject", nil, rid)
				return
			}

			ctx := withAuth(r.Context(), AuthContext{UserID: uid, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PipelineSecret guards the internal processing callback with a shared secret.
// Compare is constant time.
func PipelineSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := appCtx.GetRequestID(r.Context())

			got := r.Header.Get("X-Pipeline-Secret")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				response.Fail(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid pipeline secret", nil, rid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLimiter answers whether one more request from ip fits in the window.
type RequestLimiter interface {
	AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error)
}

// RateLimitMiddleware applies a fixed-window per-IP limit. Limiter failures
// fail open; dropping requests because redis hiccuped is worse than letting a
// burst through.
func RateLimitMiddleware(limiter RequestLimiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				ip = host
			}

			ok, err := limiter.AllowRequest(r.Context(), ip, limit, window)
			if err == nil && !ok {
				rid := appCtx.GetRequestID(r.Context())
				response.Fail(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil, rid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
