package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/lingora-app/lingora/internal/ratelimit"
)

// RateLimit protects this service's own API per client IP, reusing the
// shared window counters. On limiter errors it fails open — the business
// quota behind it still fails closed.
func RateLimit(limiter *ratelimit.Limiter, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			res, err := limiter.Check(r.Context(), "ip:"+ip, route)
			if err != nil {
				slog.Warn("rate limiter: store error, failing open", "error", err, "ip", ip)
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(res.RetryAfter.Seconds())+1, 10))
				http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// Check X-Forwarded-For first (trusted reverse proxy)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
