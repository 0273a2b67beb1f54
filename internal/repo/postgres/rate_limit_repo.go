package postgres

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodemyx/prodemyx-api/internal/repo"
)

type rateLimitRepo struct{ pool *pgxpool.Pool }

func NewRateLimitRepo(pool *pgxpool.Pool) repo.RateLimiter { return &rateLimitRepo{pool: pool} }

// Allow counts one hit for key in a fixed window and reports whether it is within limits.
func (r *rateLimitRepo) Allow(ctx context.Context, key string, requests int, window time.Duration) (bool, error) {
	// Keys contain client IPs; only the hash is stored.
	hashedKey := fmt.Sprintf("%x", sha256.Sum256([]byte(key)))

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	now := time.Now()
	windowStart := now.Add(-window)

	const q = `
INSERT INTO rate_limits (rl_key, count, window_start, expires_at)
VALUES ($1, 1, $4, $3)
ON CONFLICT (rl_key) DO UPDATE SET
	count = CASE WHEN rate_limits.window_start < $2 THEN 1 ELSE rate_limits.count + 1 END,
	window_start = CASE WHEN rate_limits.window_start < $2 THEN $4 ELSE rate_limits.window_start END,
	expires_at = $3
RETURNING count`

	var count int
	if err := r.pool.QueryRow(ctx, q, hashedKey, windowStart, now.Add(window+time.Hour), now).Scan(&count); err != nil {
		return true, err
	}
	return count <= requests, nil
}
