package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodemyx/prodemyx-api/internal/repo/memory"
	"github.com/prodemyx/prodemyx-api/pkg/auth"
)

const secret = "test-secret"

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func bearer(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := auth.NewAccessToken(7, "s@example.com", role, secret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRequireJWT(t *testing.T) {
	var got *auth.Claims
	h := RequireJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Claims(r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", bearer(t, auth.RoleStudent))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.Sub)
}

func TestRequireCapability(t *testing.T) {
	h := RequireJWT(secret)(RequireCapability(auth.CapViewOwnEnrollments)(http.HandlerFunc(ok)))

	tests := []struct {
		role auth.Role
		want int
	}{
		{auth.RoleStudent, http.StatusOK},
		{auth.RoleAdmin, http.StatusOK},
		{auth.RoleInstructor, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/student/enrolled-courses", nil)
			req.Header.Set("Authorization", bearer(t, tt.role))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimiter_BlocksPerIP(t *testing.T) {
	rl := NewRateLimiter(memory.NewRateLimiter(memory.NewDB()), RateLimitConfig{
		Requests: 2,
		Window:   time.Minute,
		KeyFunc:  ClientIPKeyFunc("register-guest"),
	})
	h := rl.Middleware()(http.HandlerFunc(ok))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register-guest", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("203.0.113.5").Code)
	assert.Equal(t, http.StatusOK, send("203.0.113.5").Code)
	blocked := send("203.0.113.5")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("198.51.100.9").Code)
}

func TestRateLimiter_ForwardedHeaders(t *testing.T) {
	limit := func() http.Handler {
		rl := NewRateLimiter(memory.NewRateLimiter(memory.NewDB()), RateLimitConfig{
			Requests: 1,
			Window:   time.Minute,
			KeyFunc:  ClientIPKeyFunc("register-guest"),
		})
		return rl.Middleware()(http.HandlerFunc(ok))
	}
	send := func(h http.Handler, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register-guest", nil)
		req.RemoteAddr = "203.0.113.5:40000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("untrusted header is ignored", func(t *testing.T) {
		h := limit()
		assert.Equal(t, http.StatusOK, send(h, "198.51.100.1"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "198.51.100.2"))
	})

	t.Run("behind RealIP", func(t *testing.T) {
		h := chimw.RealIP(limit())
		assert.Equal(t, http.StatusOK, send(h, "198.51.100.1"))
		assert.Equal(t, http.StatusOK, send(h, "198.51.100.2"))
		assert.Equal(t, http.StatusTooManyRequests, send(h, "198.51.100.2"))
	})
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	rl := NewRateLimiter(brokenLimiter{}, RateLimitConfig{Requests: 1, Window: time.Minute})
	rec := httptest.NewRecorder()
	rl.Middleware()(http.HandlerFunc(ok)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "192.0.2.7")
	req.Header.Set("X-Real-IP", "192.0.2.8")
	assert.Equal(t, "192.0.2.1", getClientIP(req))
}
