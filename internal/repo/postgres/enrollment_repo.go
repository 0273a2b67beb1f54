package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/repo"
)

type enrollmentRepo struct{ pool *pgxpool.Pool }

func NewEnrollmentRepo(pool *pgxpool.Pool) repo.EnrollmentStore { return &enrollmentRepo{pool: pool} }

// WithinTx borrows one connection for the whole unit of work. pgx.BeginTxFunc
// commits when fn returns nil and rolls back otherwise, panics included.
func (r *enrollmentRepo) WithinTx(ctx context.Context, fn func(tx repo.EnrollmentTx) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&enrollmentTx{tx: tx})
	})
}

type enrollmentTx struct{ tx pgx.Tx }

func (t *enrollmentTx) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return findAccountByEmail(ctx, t.tx, email)
}

// CreateIfAbsent waits on a concurrent uncommitted insert of the same email
// and returns (nil, nil) once that transaction commits.
func (t *enrollmentTx) CreateIfAbsent(ctx context.Context, in domain.NewAccount) (*domain.Account, error) {
	return createAccountIfAbsent(ctx, t.tx, in)
}

func (t *enrollmentTx) LockCourses(ctx context.Context, ids []int64) ([]domain.Course, error) {
	const q = `SELECT id, title, price::float8, COALESCE(status, '') FROM courses WHERE id = ANY($1) ORDER BY id FOR SHARE`
	rows, err := t.tx.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	return collectCourses(rows)
}

func (t *enrollmentTx) InsertPurchase(ctx context.Context, p domain.Purchase) (bool, error) {
	const q = `
INSERT INTO purchases (user_id, course_id, payment_id, amount, status, purchase_date)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, course_id, payment_id) DO NOTHING`
	tag, err := t.tx.Exec(ctx, q, p.UserID, p.CourseID, p.PaymentID, p.Amount, p.Status, p.PurchasedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *enrollmentTx) InsertAccessGrant(ctx context.Context, g domain.AccessGrant) (bool, error) {
	const q = `
INSERT INTO user_course_access (user_id, course_id, access_granted_date)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, course_id) DO NOTHING`
	tag, err := t.tx.Exec(ctx, q, g.UserID, g.CourseID, g.GrantedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *enrollmentTx) MarkOrderPaid(ctx context.Context, orderID, paymentID string) error {
	const q = `
UPDATE payment_orders SET status = 'paid', payment_id = $2, paid_at = now()
WHERE id = $1 AND status = 'created'`
	_, err := t.tx.Exec(ctx, q, orderID, paymentID)
	return err
}
