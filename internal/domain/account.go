package domain

import (
	"log/slog"
	"time"

	"github.com/prodemyx/prodemyx-api/pkg/auth"
)

type Account struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAccount is the insert shape for the account store.
type NewAccount struct {
	Name         string
	Email        string
	PasswordHash string
	Role         auth.Role
	Phone        string
}

// Provisioned is the result of resolving a buyer to an account.
// TempPassword is set only when IsNew is true.
type Provisioned struct {
	AccountID    int64
	IsNew        bool
	TempPassword string
}

// LogValue keeps the temporary password out of structured logs.
func (p Provisioned) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("account_id", p.AccountID),
		slog.Bool("is_new", p.IsNew),
	)
}

type RegisterGuestReq struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=320"`
	Phone string `json:"phone" validate:"required,max=32"`
}

type RegisterReq struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	Address  string `json:"address" validate:"omitempty,max=500"`
}

type LoginReq struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	// ExpectedRole lets a dashboard refuse accounts of any other role.
	ExpectedRole string `json:"expected_role,omitempty" validate:"omitempty,oneof=student instructor admin"`
}

type TokenResponse struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expires_in"`
	User      *Account `json:"user"`
}
