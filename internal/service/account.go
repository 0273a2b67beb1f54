package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/notify"
	"github.com/prodemyx/prodemyx-api/internal/platform/mailer"
	"github.com/prodemyx/prodemyx-api/internal/repo"
	"github.com/prodemyx/prodemyx-api/pkg/auth"
	"github.com/prodemyx/prodemyx-api/pkg/config"
	"github.com/prodemyx/prodemyx-api/pkg/logger"
)

type AccountService interface {
	RegisterGuest(ctx context.Context, req domain.RegisterGuestReq) error
	Register(ctx context.Context, req domain.RegisterReq) (*domain.Account, error)
	Login(ctx context.Context, req domain.LoginReq) (*domain.TokenResponse, error)
	Me(ctx context.Context, id int64) (*domain.Account, error)
	EnrolledCourses(ctx context.Context, userID int64) ([]domain.EnrolledCourse, error)
}

type accountService struct {
	accounts    repo.AccountStore
	courses     repo.CourseStore
	provisioner *Provisioner
	notifier    Notifier
	auth        config.AuthConfig
	loginURL    string
}

func NewAccountService(
	accounts repo.AccountStore,
	courses repo.CourseStore,
	provisioner *Provisioner,
	notifier Notifier,
	authCfg config.AuthConfig,
	loginURL string,
) AccountService {
	return &accountService{
		accounts:    accounts,
		courses:     courses,
		provisioner: provisioner,
		notifier:    notifier,
		auth:        authCfg,
		loginURL:    loginURL,
	}
}

// RegisterGuest provisions a student account ahead of checkout. The outcome is
// the same for new and existing emails; only new accounts get a welcome email.
func (s *accountService) RegisterGuest(ctx context.Context, req domain.RegisterGuestReq) error {
	res, err := s.provisioner.Provision(ctx, ProvisionInput{
		Email:  req.Email,
		Name:   req.Name,
		Phone:  req.Phone,
		Source: "register-guest",
	})
	if err != nil {
		return err
	}
	if !res.IsNew {
		return nil
	}

	msg, err := mailer.GuestWelcome(mailer.WelcomeData{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		TempPassword: res.TempPassword,
		LoginURL:     s.loginURL,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to render welcome email", "error", fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err))
		return nil
	}
	if err := s.notifier.Enqueue(ctx, notify.Job{Kind: notify.KindWelcome, Message: msg}); err != nil {
		logger.ErrorContext(ctx, "Failed to queue welcome email", "account_id", res.AccountID, "error", err)
	}
	return nil
}

// Register creates a student account. Roles are only changed by admins.
func (s *accountService) Register(ctx context.Context, req domain.RegisterReq) (*domain.Account, error) {
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	account, err := s.accounts.Create(ctx, domain.NewAccount{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Role:         auth.RoleStudent,
		Phone:        strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Account registered", "account_id", account.ID)
	return account, nil
}

func (s *accountService) Login(ctx context.Context, req domain.LoginReq) (*domain.TokenResponse, error) {
	account, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, domain.ErrUnauthorized
	}

	ok, err := CheckPassword(req.Password, account.PasswordHash)
	if err != nil {
		logger.WarnContext(ctx, "Password hash check failed", "account_id", account.ID, "error", err)
		return nil, domain.ErrUnauthorized
	}
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	// Checked after the password so a mismatch never confirms an email exists.
	if req.ExpectedRole != "" {
		want, err := auth.ParseRole(req.ExpectedRole)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
		}
		if account.Role != want {
			logger.WarnContext(ctx, "Login refused for role", "account_id", account.ID, "role", account.Role, "expected_role", want)
			return nil, fmt.Errorf("%w: account role %s, expected %s", domain.ErrForbidden, account.Role, want)
		}
	}

	token, err := auth.NewAccessToken(account.ID, account.Email, account.Role, s.auth.JWTSecret, s.auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &domain.TokenResponse{
		Token:     token,
		ExpiresIn: int64(s.auth.AccessTokenTTL / time.Second),
		User:      account,
	}, nil
}

func (s *accountService) Me(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func (s *accountService) EnrolledCourses(ctx context.Context, userID int64) ([]domain.EnrolledCourse, error) {
	courses, err := s.courses.ListEnrolled(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrolled courses: %w", err)
	}
	return courses, nil
}
