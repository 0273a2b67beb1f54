package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/notify"
	"github.com/prodemyx/prodemyx-api/internal/repo/memory"
	"github.com/prodemyx/prodemyx-api/pkg/auth"
	"github.com/prodemyx/prodemyx-api/pkg/config"
)

var testAuth = config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour}

func newAccountService(db *memory.DB, n Notifier) AccountService {
	accounts := memory.NewAccountRepo(db)
	return NewAccountService(accounts, memory.NewCourseRepo(db), NewProvisioner(accounts, nil), n, testAuth, "http://localhost/login")
}

func TestRegisterGuest_WelcomesOnlyNewAccounts(t *testing.T) {
	db := memory.NewDB()
	n := &recordingNotifier{}
	svc := newAccountService(db, n)
	req := domain.RegisterGuestReq{Name: "Asha", Email: "asha@example.com", Phone: "9999999999"}

	require.NoError(t, svc.RegisterGuest(context.Background(), req))
	require.NoError(t, svc.RegisterGuest(context.Background(), req))

	assert.Len(t, db.Accounts(), 1)
	jobs := n.sent()
	require.Len(t, jobs, 1)
	assert.Equal(t, notify.KindWelcome, jobs[0].Kind)
	assert.Equal(t, "asha@example.com", jobs[0].Message.ToEmail)
	assert.Equal(t, "9999999999", db.Accounts()[0].Phone)
}

func TestRegisterAndLogin(t *testing.T) {
	db := memory.NewDB()
	svc := newAccountService(db, &recordingNotifier{})
	ctx := context.Background()

	acc, err := svc.Register(ctx, domain.RegisterReq{Name: "Ravi", Email: "ravi@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, acc.Role)

	_, err = svc.Register(ctx, domain.RegisterReq{Name: "Ravi", Email: "ravi@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	tok, err := svc.Login(ctx, domain.LoginReq{Email: "ravi@example.com", Password: "longenough"})
	require.NoError(t, err)
	claims, err := auth.Parse(tok.Token, testAuth.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, claims.Sub)
	assert.Equal(t, auth.RoleStudent, claims.Role)

	_, err = svc.Login(ctx, domain.LoginReq{Email: "ravi@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.Login(ctx, domain.LoginReq{Email: "nobody@example.com", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_LegacyBcryptHash(t *testing.T) {
	db := memory.NewDB()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), 10)
	require.NoError(t, err)
	_, err = memory.NewAccountRepo(db).Create(context.Background(), domain.NewAccount{
		Name: "Admin User", Email: "admin@example.com", PasswordHash: string(hash), Role: auth.RoleAdmin,
	})
	require.NoError(t, err)

	tok, err := newAccountService(db, &recordingNotifier{}).Login(context.Background(), domain.LoginReq{Email: "admin@example.com", Password: "admin"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, tok.User.Role)
}

func TestEnrolledCourses(t *testing.T) {
	f := newFixture(t, CheckoutOptions{}, nil)
	order := f.order(t, 999, "asha@example.com", 5, 7)
	res, err := f.svc.VerifyAndFulfill(context.Background(), verifyReq(order.ID, "pay_lib", "asha@example.com"))
	require.NoError(t, err)

	svc := newAccountService(f.db, &recordingNotifier{})
	courses, err := svc.EnrolledCourses(context.Background(), res.AccountID)
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	_, err = svc.Me(context.Background(), 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
