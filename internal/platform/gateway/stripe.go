package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/pkg/metrics"
)

const (
	metaCustomerEmail = "customer_email"
	metaCustomerName  = "customer_name"
	metaCourseIDs     = "course_ids"
	metaReceipt       = "receipt"
)

type paymentIntentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type StripeGateway struct {
	intents       paymentIntentCreator
	webhookSecret string
	timeout       time.Duration
}

func NewStripe(secretKey, webhookSecret string, timeout time.Duration) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe: %w", ErrNotConfigured)
	}
	sc := client.New(secretKey, nil)
	return &StripeGateway{intents: sc.PaymentIntents, webhookSecret: webhookSecret, timeout: timeout}, nil
}

func (g *StripeGateway) Name() string { return Stripe }

// CreateOrder opens a PaymentIntent; the cart travels in its metadata.
func (g *StripeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*domain.GatewayOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	params.AddMetadata(metaCustomerEmail, req.Notes.CustomerEmail)
	params.AddMetadata(metaCustomerName, req.Notes.CustomerName)
	params.AddMetadata(metaCourseIDs, req.Notes.CourseIDs)
	params.AddMetadata(metaReceipt, req.Receipt)
	params.SetIdempotencyKey(req.Receipt)

	start := time.Now()
	pi, err := g.intents.New(params)
	metrics.GatewayLatency.WithLabelValues(Stripe).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	return &domain.GatewayOrder{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
		Receipt:      req.Receipt,
		Status:       string(pi.Status),
		Notes:        req.Notes,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// StripePayment is a verified payment_intent.succeeded notification.
type StripePayment struct {
	OrderID     string
	PaymentID   string
	AmountMinor int64
	Notes       domain.OrderNotes
}

// ParseWebhook verifies the Stripe-Signature header and returns the succeeded
// payment. ok is false for event types this service ignores.
func (g *StripeGateway) ParseWebhook(payload []byte, sigHeader string) (payment *StripePayment, ok bool, err error) {
	if g.webhookSecret == "" {
		return nil, false, fmt.Errorf("stripe webhook: %w", ErrNotConfigured)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	if string(event.Type) != "payment_intent.succeeded" {
		return nil, false, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, false, fmt.Errorf("stripe webhook: decode payment intent: %w", err)
	}

	paymentID := pi.ID
	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		paymentID = pi.LatestCharge.ID
	}
	return &StripePayment{
		OrderID:     pi.ID,
		PaymentID:   paymentID,
		AmountMinor: pi.Amount,
		Notes: domain.OrderNotes{
			CustomerEmail: pi.Metadata[metaCustomerEmail],
			CustomerName:  pi.Metadata[metaCustomerName],
			CourseIDs:     pi.Metadata[metaCourseIDs],
		},
	}, true, nil
}
