package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/repo"
)

// EnrollmentGranter records purchases and access grants for one verified
// payment in a single transaction. Either every requested course is granted
// or nothing is written.
type EnrollmentGranter struct {
	store repo.EnrollmentStore
	now   func() time.Time
}

func NewEnrollmentGranter(store repo.EnrollmentStore) *EnrollmentGranter {
	return &EnrollmentGranter{store: store, now: time.Now}
}

// AccountResolver runs first inside the grant transaction and returns the
// account that receives the courses. Accounts it creates roll back with the grants.
type AccountResolver func(ctx context.Context, tx repo.EnrollmentTx) (int64, error)

func (g *EnrollmentGranter) Grant(ctx context.Context, grant domain.Grant) (domain.GrantResult, error) {
	return g.GrantWith(ctx, grant, nil)
}

// GrantWith is Grant with the receiving account resolved inside the same
// transaction. grant.AccountID is ignored when resolve is set.
func (g *EnrollmentGranter) GrantWith(ctx context.Context, grant domain.Grant, resolve AccountResolver) (domain.GrantResult, error) {
	ids, err := domain.NormalizeCourseIDs(grant.CourseIDs)
	if err != nil {
		return domain.GrantResult{}, err
	}
	if (resolve == nil && grant.AccountID <= 0) || grant.PaymentID == "" {
		return domain.GrantResult{}, fmt.Errorf("%w: account and payment id are required", domain.ErrInvalidRequest)
	}

	var result domain.GrantResult
	err = g.store.WithinTx(ctx, func(tx repo.EnrollmentTx) error {
		if resolve != nil {
			id, err := resolve(ctx, tx)
			if err != nil {
				return fmt.Errorf("resolve account: %w", err)
			}
			grant.AccountID = id
		}

		courses, err := tx.LockCourses(ctx, ids)
		if err != nil {
			return fmt.Errorf("lock courses: %w", err)
		}
		byID := make(map[int64]domain.Course, len(courses))
		for _, c := range courses {
			byID[c.ID] = c
		}
		var missing []int64
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %v", domain.ErrUnknownCourse, missing)
		}

		now := g.now()
		granted := 0
		ordered := make([]domain.Course, 0, len(ids))
		for _, id := range ids {
			course := byID[id]
			ordered = append(ordered, course)

			inserted, err := tx.InsertPurchase(ctx, domain.Purchase{
				UserID:      grant.AccountID,
				CourseID:    id,
				PaymentID:   grant.PaymentID,
				Amount:      course.PriceOrZero(),
				Status:      domain.PurchaseSuccess,
				PurchasedAt: now,
			})
			if err != nil {
				return fmt.Errorf("insert purchase for course %d: %w", id, err)
			}
			if inserted {
				granted++
			}

			if _, err := tx.InsertAccessGrant(ctx, domain.AccessGrant{
				UserID:    grant.AccountID,
				CourseID:  id,
				GrantedAt: now,
			}); err != nil {
				return fmt.Errorf("insert access for course %d: %w", id, err)
			}
		}

		if grant.OrderID != "" {
			if err := tx.MarkOrderPaid(ctx, grant.OrderID, grant.PaymentID); err != nil {
				return fmt.Errorf("mark order paid: %w", err)
			}
		}

		result = domain.GrantResult{Granted: granted, Replayed: granted == 0, Courses: ordered}
		return nil
	})
	if err != nil {
		return domain.GrantResult{}, fmt.Errorf("%w: %w", domain.ErrFulfillmentFailed, err)
	}
	return result, nil
}
