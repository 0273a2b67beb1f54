package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/repo"
	"github.com/prodemyx/prodemyx-api/pkg/database"
)

const accountColumns = `id, name, email, password_hash, role, COALESCE(phone, ''), COALESCE(address, ''), created_at`

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) repo.AccountStore { return &accountRepo{pool: pool} }

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.Phone, &a.Address, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findAccountByEmail(ctx context.Context, db rowQuerier, email string) (*domain.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM users WHERE email = $1`
	a, err := scanAccount(db.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func createAccountIfAbsent(ctx context.Context, db rowQuerier, in domain.NewAccount) (*domain.Account, error) {
	q := `
INSERT INTO users (name, email, password_hash, role, phone)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
ON CONFLICT (email) DO NOTHING
RETURNING ` + accountColumns
	a, err := scanAccount(db.QueryRow(ctx, q, in.Name, in.Email, in.PasswordHash, in.Role, in.Phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *accountRepo) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return findAccountByEmail(ctx, r.pool, email)
}

func (r *accountRepo) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAccount(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *accountRepo) CreateIfAbsent(ctx context.Context, in domain.NewAccount) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return createAccountIfAbsent(ctx, r.pool, in)
}

func (r *accountRepo) Create(ctx context.Context, in domain.NewAccount) (*domain.Account, error) {
	q := `
INSERT INTO users (name, email, password_hash, role, phone)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
RETURNING ` + accountColumns
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAccount(r.pool.QueryRow(ctx, q, in.Name, in.Email, in.PasswordHash, in.Role, in.Phone))
	if database.IsUniqueViolation(err) {
		return nil, domain.ErrEmailTaken
	}
	return a, err
}
