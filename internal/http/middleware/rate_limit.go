package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prodemyx/prodemyx-api/internal/http/response"
	"github.com/prodemyx/prodemyx-api/internal/repo"
	"github.com/prodemyx/prodemyx-api/pkg/logger"
)

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Requests int                            // Max requests per window
	Window   time.Duration                  // Time window duration
	KeyFunc  func(r *http.Request) []string // Function to generate rate limit keys
}

// RateLimiter provides rate limiting functionality
type RateLimiter struct {
	store  repo.RateLimiter
	config RateLimitConfig
}

func NewRateLimiter(store repo.RateLimiter, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKeyFunc("ip")
	}
	return &RateLimiter{store: store, config: config}
}

// Middleware returns the rate limiting middleware. Storage errors fail open.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, key := range rl.config.KeyFunc(r) {
				allowed, err := rl.store.Allow(r.Context(), key, rl.config.Requests, rl.config.Window)
				if err != nil {
					logger.ErrorContext(r.Context(), "Rate limit check failed", "error", err)
					continue
				}
				if !allowed {
					w.Header().Set("Retry-After", retryAfter(rl.config.Window))
					response.RateLimit(w, "Too many requests. Try again later.")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIPKeyFunc limits by client IP under the given scope.
func ClientIPKeyFunc(scope string) func(r *http.Request) []string {
	return func(r *http.Request) []string {
		ip := getClientIP(r)
		if ip == "" {
			return nil
		}
		return []string{scope + ":" + ip}
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// getClientIP reads the peer address only. Forwarding headers are honoured
// when the router runs chi's RealIP first, which the API does behind a
// trusted proxy.
func getClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
