// Package gateway creates orders with the configured payment processor and
// verifies its callbacks.
package gateway

import (
	"context"
	"errors"

	"github.com/prodemyx/prodemyx-api/internal/domain"
)

const (
	Razorpay = "razorpay"
	Stripe   = "stripe"
)

var ErrNotConfigured = errors.New("payment gateway not configured")

type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       domain.OrderNotes
}

type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*domain.GatewayOrder, error)
}

// call runs a blocking SDK request and gives up when ctx is done. The SDKs used
// here do not take a context, so an abandoned call finishes in the background.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
