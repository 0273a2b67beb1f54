package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/repo"
	"github.com/prodemyx/prodemyx-api/pkg/auth"
	"github.com/prodemyx/prodemyx-api/pkg/events"
	"github.com/prodemyx/prodemyx-api/pkg/logger"
	"github.com/prodemyx/prodemyx-api/pkg/metrics"
)

const defaultLearnerName = "Learner"

type ProvisionInput struct {
	Email  string
	Name   string
	Phone  string
	Source string // checkout, register-guest, stripe-webhook
}

// Provisioner resolves a buyer email to an account, creating a student
// account with a temporary password on first sight.
type Provisioner struct {
	accounts repo.AccountStore
	events   events.Publisher
	group    singleflight.Group
}

func NewProvisioner(accounts repo.AccountStore, publisher events.Publisher) *Provisioner {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Provisioner{accounts: accounts, events: publisher}
}

// provisionCall lets exactly one of the callers sharing a singleflight result
// observe IsNew and the temporary password.
type provisionCall struct {
	result  domain.Provisioned
	claimed atomic.Bool
}

func normalizeInput(in ProvisionInput) (ProvisionInput, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" {
		return in, fmt.Errorf("%w: email is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = defaultLearnerName
	}
	return in, nil
}

// Provision resolves the email against committed storage. Concurrent calls
// for one email share a single lookup and insert.
func (p *Provisioner) Provision(ctx context.Context, in ProvisionInput) (domain.Provisioned, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return domain.Provisioned{}, err
	}

	v, err, _ := p.group.Do(in.Email, func() (interface{}, error) {
		// Shared by every waiting caller, so one cancelled request cannot fail the rest.
		shared := context.WithoutCancel(ctx)
		res, err := p.provision(shared, p.accounts, in)
		if err != nil {
			return nil, err
		}
		p.Announce(shared, res, in)
		return &provisionCall{result: res}, nil
	})
	if err != nil {
		return domain.Provisioned{}, err
	}

	call := v.(*provisionCall)
	if call.result.IsNew && call.claimed.CompareAndSwap(false, true) {
		return call.result, nil
	}
	return domain.Provisioned{AccountID: call.result.AccountID}, nil
}

// ProvisionIn resolves the email inside an open transaction. The account is
// only durable once that transaction commits, so the caller announces it
// afterwards.
func (p *Provisioner) ProvisionIn(ctx context.Context, store repo.AccountWriter, in ProvisionInput) (domain.Provisioned, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return domain.Provisioned{}, err
	}
	return p.provision(ctx, store, in)
}

// Announce records a newly created account. It is a no-op for existing ones.
func (p *Provisioner) Announce(ctx context.Context, res domain.Provisioned, in ProvisionInput) {
	if !res.IsNew {
		return
	}
	metrics.AccountsProvisioned.Inc()
	logger.InfoContext(ctx, "Student account provisioned", "account", res, "source", in.Source)

	if err := p.events.Publish(ctx, events.AccountProvisioned, events.AccountProvisionedEvent{
		AccountID: res.AccountID,
		Email:     in.Email,
		Source:    in.Source,
		CreatedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish account provisioned event", "error", err)
	}
}

func (p *Provisioner) provision(ctx context.Context, store repo.AccountWriter, in ProvisionInput) (domain.Provisioned, error) {
	existing, err := store.FindByEmail(ctx, in.Email)
	if err != nil {
		return domain.Provisioned{}, fmt.Errorf("lookup account: %w", err)
	}
	if existing != nil {
		return domain.Provisioned{AccountID: existing.ID}, nil
	}

	password, err := GenerateTempPassword()
	if err != nil {
		return domain.Provisioned{}, fmt.Errorf("generate temporary password: %w", err)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return domain.Provisioned{}, fmt.Errorf("hash temporary password: %w", err)
	}

	created, err := store.CreateIfAbsent(ctx, domain.NewAccount{
		Name:         strings.TrimSpace(in.Name),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         auth.RoleStudent,
		Phone:        strings.TrimSpace(in.Phone),
	})
	if err != nil {
		return domain.Provisioned{}, fmt.Errorf("create account: %w", err)
	}

	if created == nil {
		// Another replica inserted the same email between lookup and insert.
		existing, err = store.FindByEmail(ctx, in.Email)
		if err != nil {
			return domain.Provisioned{}, fmt.Errorf("lookup account after conflict: %w", err)
		}
		if existing == nil {
			return domain.Provisioned{}, fmt.Errorf("account for conflicting email vanished")
		}
		logger.DebugContext(ctx, "Account created concurrently, reusing", "account_id", existing.ID)
		return domain.Provisioned{AccountID: existing.ID}, nil
	}
	return domain.Provisioned{AccountID: created.ID, IsNew: true, TempPassword: password}, nil
}
