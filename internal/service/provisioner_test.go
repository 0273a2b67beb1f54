package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"unicode"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/repo"
	"github.com/prodemyx/prodemyx-api/internal/repo/memory"
)

func TestProvision_SequentialSameEmail(t *testing.T) {
	db := memory.NewDB()
	p := NewProvisioner(memory.NewAccountRepo(db), nil)
	ctx := context.Background()

	first, err := p.Provision(ctx, ProvisionInput{Email: "a@example.com"})
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	assert.Len(t, first.TempPassword, 12)

	second, err := p.Provision(ctx, ProvisionInput{Email: " a@example.com "})
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Empty(t, second.TempPassword)
	assert.Equal(t, first.AccountID, second.AccountID)

	accounts := db.Accounts()
	require.Len(t, accounts, 1)
	assert.Equal(t, "Learner", accounts[0].Name)
	assert.NotContains(t, accounts[0].PasswordHash, first.TempPassword)

	ok, err := argon2id.ComparePasswordAndHash(first.TempPassword, accounts[0].PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProvision_ConcurrentSameEmail(t *testing.T) {
	db := memory.NewDB()
	p := NewProvisioner(memory.NewAccountRepo(db), nil)

	const callers = 16
	ids := make([]int64, callers)
	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.Provision(context.Background(), ProvisionInput{Email: "race@example.com", Name: "Racer"})
			assert.NoError(t, err)
			ids[i] = res.AccountID
			if res.IsNew {
				fresh.Add(1)
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int32(1), fresh.Load(), "exactly one caller sees the new account")
	assert.Len(t, db.Accounts(), 1)
}

// racingStore inserts the same email from "another replica" right before the provisioner's insert.
type racingStore struct {
	repo.AccountStore
	winner int64
}

func (s *racingStore) CreateIfAbsent(ctx context.Context, in domain.NewAccount) (*domain.Account, error) {
	other, err := s.AccountStore.Create(ctx, domain.NewAccount{Name: "Other", Email: in.Email, PasswordHash: "x", Role: in.Role})
	if err != nil {
		return nil, err
	}
	s.winner = other.ID
	return s.AccountStore.CreateIfAbsent(ctx, in)
}

func TestProvision_InsertConflictReusesAccount(t *testing.T) {
	db := memory.NewDB()
	inner := memory.NewAccountRepo(db)
	store := &racingStore{AccountStore: inner}
	p := NewProvisioner(store, nil)

	res, err := p.Provision(context.Background(), ProvisionInput{Email: "late@example.com"})
	require.NoError(t, err)
	assert.False(t, res.IsNew)
	assert.Equal(t, store.winner, res.AccountID)
	assert.Len(t, db.Accounts(), 1)
}

// ctxStore fails lookups once the caller's context is done.
type ctxStore struct {
	repo.AccountStore
}

func (s ctxStore) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.AccountStore.FindByEmail(ctx, email)
}

func TestProvision_SharedWorkIgnoresCallerCancellation(t *testing.T) {
	db := memory.NewDB()
	p := NewProvisioner(ctxStore{memory.NewAccountRepo(db)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.Provision(ctx, ProvisionInput{Email: "gone@example.com"})
	require.NoError(t, err)
	assert.True(t, res.IsNew)
	assert.Len(t, db.Accounts(), 1)
}

func TestProvisionIn_RollsBackWithTransaction(t *testing.T) {
	db := memory.NewDB()
	p := NewProvisioner(memory.NewAccountRepo(db), nil)
	ctx := context.Background()

	err := memory.NewEnrollmentRepo(db).WithinTx(ctx, func(tx repo.EnrollmentTx) error {
		res, err := p.ProvisionIn(ctx, tx, ProvisionInput{Email: "tx@example.com"})
		require.NoError(t, err)
		assert.True(t, res.IsNew)
		assert.NotEmpty(t, res.TempPassword)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, db.Accounts())

	res, err := p.Provision(ctx, ProvisionInput{Email: "tx@example.com"})
	require.NoError(t, err)
	assert.True(t, res.IsNew, "nothing survived the rollback")
}

func TestProvision_RequiresEmail(t *testing.T) {
	p := NewProvisioner(memory.NewAccountRepo(memory.NewDB()), nil)
	_, err := p.Provision(context.Background(), ProvisionInput{Email: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestGenerateTempPassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		pw, err := GenerateTempPassword()
		require.NoError(t, err)
		require.Len(t, pw, 12)
		for _, r := range pw {
			assert.True(t, r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), "unexpected %q", r)
		}
		assert.False(t, seen[pw])
		seen[pw] = true
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	ok, err := CheckPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = CheckPassword("wrong", hash)
	assert.False(t, ok)

	legacy, err := bcrypt.GenerateFromPassword([]byte("admin"), 10)
	require.NoError(t, err)
	ok, err = CheckPassword("admin", string(legacy))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = CheckPassword("nope", string(legacy))
	require.NoError(t, err)
	assert.False(t, ok)
}
