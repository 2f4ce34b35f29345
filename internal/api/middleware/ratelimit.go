package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/swissweather/swissweather/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

var (
	// RefreshRateLimit applies to manual refreshes, which hit upstream (6 req/min).
	RefreshRateLimit = RateLimitConfig{
		RequestLimit: 6,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to read endpoints (120 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 120,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP limits requests per client IP. It relies on chi's RealIP
// middleware for proxied requests.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Round(time.Second).Seconds()))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
			problem.Instance = r.URL.Path

			// httprate does not expose the window reset time.
			w.Header().Set("Retry-After", retryAfter)
			problem.Write(w)
		}),
	)
}
