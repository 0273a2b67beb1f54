package postgres

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepo stores Idempotency-Key responses when Redis is not configured.
// It satisfies the IdempotencyStore of pkg/middleware.
type IdempotencyRepo struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum)
}

// Get returns "" on a miss or an expired record.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var body string
	err := r.pool.QueryRow(ctx,
		`SELECT body FROM idempotency_responses WHERE key_hash = $1 AND expires_at > now()`,
		hashKey(key),
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return body, nil
}

// Set keeps the first stored response for a key until it expires.
func (r *IdempotencyRepo) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_responses (key_hash, body, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key_hash) DO UPDATE SET
			body = EXCLUDED.body,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_responses.expires_at <= now()`,
		hashKey(key), value, time.Now().Add(ttl),
	)
	return err
}

// CleanupExpired removes expired idempotency and rate limit records.
func (r *IdempotencyRepo) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var total int64
	for _, q := range []string{
		`DELETE FROM idempotency_responses WHERE expires_at < now()`,
		`DELETE FROM rate_limits WHERE expires_at < now()`,
	} {
		result, err := r.pool.Exec(ctx, q)
		if err != nil {
			return total, err
		}
		total += result.RowsAffected()
	}
	return total, nil
}
