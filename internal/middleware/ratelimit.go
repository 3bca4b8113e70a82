package middleware

import (
	"net/http"
	"strconv"

	"github.com/parallax/parallax-api/internal/pkg/logger"
	"github.com/parallax/parallax-api/internal/pkg/ratelimit"
	"github.com/parallax/parallax-api/internal/pkg/response"
)

// RateLimit admits at most limit.Max requests per client address per
// limit.Window. Store errors let the request through.
func RateLimit(limit ratelimit.Limit) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(limit.Window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			allowed, err := limit.Allow(r.Context(), ip)
			if err != nil {
				logger.FromContext(r.Context()).Warn().
					Err(err).
					Str("ip", ip).
					Msg("Rate limit store unavailable, allowing request")
				allowed = true
			}
			if !allowed {
				logger.FromContext(r.Context()).Warn().
					Str("ip", ip).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", retryAfter)
				response.TooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
