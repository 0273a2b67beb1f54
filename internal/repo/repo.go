// Package repo declares the storage capabilities the checkout flow depends on.
// Finders return (nil, nil) when nothing matches.
package repo

import (
	"context"
	"time"

	"github.com/prodemyx/prodemyx-api/internal/domain"
)

// AccountWriter is the part of account storage the provisioner needs. Both the
// standalone store and an open enrollment transaction implement it.
type AccountWriter interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// CreateIfAbsent inserts unless the email is taken; on conflict it returns (nil, nil).
	CreateIfAbsent(ctx context.Context, a domain.NewAccount) (*domain.Account, error)
}

type AccountStore interface {
	AccountWriter
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	// Create returns domain.ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, a domain.NewAccount) (*domain.Account, error)
}

type CourseStore interface {
	FindByIDs(ctx context.Context, ids []int64) ([]domain.Course, error)
	ListEnrolled(ctx context.Context, userID int64) ([]domain.EnrolledCourse, error)
}

type OrderStore interface {
	Create(ctx context.Context, o *domain.PaymentOrder) error
	FindByID(ctx context.Context, id string) (*domain.PaymentOrder, error)
}

// EnrollmentStore runs fn inside one transaction. The transaction commits only
// when fn returns nil and is rolled back on every other exit path.
type EnrollmentStore interface {
	WithinTx(ctx context.Context, fn func(tx EnrollmentTx) error) error
}

// EnrollmentTx also writes accounts, so a buyer created for a payment is
// rolled back together with its grants.
type EnrollmentTx interface {
	AccountWriter
	// LockCourses returns the subset of ids that exist, share-locked until commit.
	LockCourses(ctx context.Context, ids []int64) ([]domain.Course, error)
	// InsertPurchase reports false when the (user, course, payment) row already exists.
	InsertPurchase(ctx context.Context, p domain.Purchase) (bool, error)
	// InsertAccessGrant reports false when the user already has access to the course.
	InsertAccessGrant(ctx context.Context, g domain.AccessGrant) (bool, error)
	MarkOrderPaid(ctx context.Context, orderID, paymentID string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, requests int, window time.Duration) (bool, error)
}
