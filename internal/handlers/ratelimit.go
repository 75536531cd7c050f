package handlers

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/peakscape/tours-api/internal/repository"
	"github.com/peakscape/tours-api/pkg/logger"
)

// RateLimit caps requests per client IP over a fixed window. Limiter errors
// fail open.
func RateLimit(limiter repository.RateLimiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), clientIP(r), limit, window)
			if err != nil {
				logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
			} else if !allowed {
				writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"status":  "fail",
					"message": "too many requests from this IP; please try again later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
