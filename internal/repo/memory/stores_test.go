package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/repo"
	"github.com/prodemyx/prodemyx-api/pkg/auth"
)

func TestEnrollmentTx_RollsBackOnError(t *testing.T) {
	db := NewDB()
	store := NewEnrollmentRepo(db)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx repo.EnrollmentTx) error {
		ok, err := tx.InsertPurchase(ctx, domain.Purchase{UserID: 1, CourseID: 5, PaymentID: "pay_1"})
		require.NoError(t, err)
		require.True(t, ok)
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Empty(t, db.Purchases())
}

func TestEnrollmentTx_AccountsFollowTheTransaction(t *testing.T) {
	db := NewDB()
	store := NewEnrollmentRepo(db)
	ctx := context.Background()
	in := domain.NewAccount{Email: "tx@example.com", Role: auth.RoleStudent}

	err := store.WithinTx(ctx, func(tx repo.EnrollmentTx) error {
		a, err := tx.CreateIfAbsent(ctx, in)
		require.NoError(t, err)
		require.NotNil(t, a)
		seen, err := tx.FindByEmail(ctx, in.Email)
		require.NoError(t, err)
		require.NotNil(t, seen)
		again, err := tx.CreateIfAbsent(ctx, in)
		require.NoError(t, err)
		assert.Nil(t, again)
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Empty(t, db.Accounts())

	require.NoError(t, store.WithinTx(ctx, func(tx repo.EnrollmentTx) error {
		_, err := tx.CreateIfAbsent(ctx, in)
		return err
	}))
	accounts := db.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "tx@example.com", accounts[0].Email)
}

func TestSeedCatalog(t *testing.T) {
	db := NewDB()
	n, err := db.SeedCatalog([]byte(`[{"id":5,"title":"Go Fundamentals","price":499},{"id":9,"title":"Free Intro"}]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	courses, err := NewCourseRepo(db).FindByIDs(context.Background(), []int64{9, 5})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "Go Fundamentals", courses[0].Title)
	require.NotNil(t, courses[0].Price)
	assert.Equal(t, 499.0, *courses[0].Price)
	assert.Nil(t, courses[1].Price)

	_, err = db.SeedCatalog([]byte(`{"id":1}`))
	assert.Error(t, err)
	_, err = db.SeedCatalog([]byte(`[{"title":"no id"}]`))
	assert.Error(t, err)
}

func TestEnrollmentTx_UniqueGuards(t *testing.T) {
	db := NewDB()
	store := NewEnrollmentRepo(db)
	ctx := context.Background()

	insert := func(paymentID string) (bool, bool) {
		var p, g bool
		require.NoError(t, store.WithinTx(ctx, func(tx repo.EnrollmentTx) error {
			var err error
			if p, err = tx.InsertPurchase(ctx, domain.Purchase{UserID: 1, CourseID: 5, PaymentID: paymentID}); err != nil {
				return err
			}
			g, err = tx.InsertAccessGrant(ctx, domain.AccessGrant{UserID: 1, CourseID: 5, GrantedAt: time.Now()})
			return err
		}))
		return p, g
	}

	p, g := insert("pay_1")
	assert.True(t, p)
	assert.True(t, g)

	p, g = insert("pay_1")
	assert.False(t, p)
	assert.False(t, g)

	p, g = insert("pay_2")
	assert.True(t, p, "a new payment records a new purchase")
	assert.False(t, g, "access is granted once per course")

	assert.Len(t, db.Purchases(), 2)
	assert.Len(t, db.AccessGrants(), 1)
}

func TestAccountRepo_CreateIfAbsent(t *testing.T) {
	accounts := NewAccountRepo(NewDB())
	ctx := context.Background()

	a, err := accounts.CreateIfAbsent(ctx, domain.NewAccount{Email: "x@y.z", Role: auth.RoleStudent})
	require.NoError(t, err)
	require.NotNil(t, a)

	again, err := accounts.CreateIfAbsent(ctx, domain.NewAccount{Email: "x@y.z", Role: auth.RoleStudent})
	require.NoError(t, err)
	assert.Nil(t, again)

	_, err = accounts.Create(ctx, domain.NewAccount{Email: "x@y.z"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	other, err := accounts.FindByEmail(ctx, "X@y.z")
	require.NoError(t, err)
	assert.Nil(t, other, "email match is case-sensitive")
}

func TestRateLimiter_Window(t *testing.T) {
	rl := NewRateLimiter(NewDB())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow(ctx, "ip:1", 3, time.Minute)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "ip:1", 3, time.Minute)
	assert.False(t, ok)
	ok, _ = rl.Allow(ctx, "ip:2", 3, time.Minute)
	assert.True(t, ok)
}
