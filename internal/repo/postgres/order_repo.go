package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/repo"
)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) repo.OrderStore { return &orderRepo{pool: pool} }

func (r *orderRepo) Create(ctx context.Context, o *domain.PaymentOrder) error {
	const q = `
INSERT INTO payment_orders (id, gateway, receipt, amount_minor, currency, customer_email, customer_name, course_ids, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.pool.QueryRow(ctx, q,
		o.ID, o.Gateway, o.Receipt, o.AmountMinor, o.Currency,
		o.CustomerEmail, o.CustomerName, o.CourseIDs, o.Status,
	).Scan(&o.CreatedAt)
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.PaymentOrder, error) {
	const q = `
SELECT id, gateway, receipt, amount_minor, currency, customer_email, customer_name, course_ids,
       status, payment_id, created_at, paid_at
FROM payment_orders WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.PaymentOrder
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&o.ID, &o.Gateway, &o.Receipt, &o.AmountMinor, &o.Currency, &o.CustomerEmail, &o.CustomerName,
		&o.CourseIDs, &o.Status, &o.PaymentID, &o.CreatedAt, &o.PaidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
