package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/prodemyx/prodemyx-api/internal/domain"
)

type fakeIntents struct {
	params *stripe.PaymentIntentParams
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.params = params
	return &stripe.PaymentIntent{
		ID:           "pi_123",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
		ClientSecret: "pi_123_secret",
	}, nil
}

func TestStripe_CreateOrder(t *testing.T) {
	fake := &fakeIntents{}
	g := &StripeGateway{intents: fake, timeout: time.Second}

	order, err := g.CreateOrder(context.Background(), OrderRequest{
		AmountMinor: 1999,
		Currency:    "INR",
		Receipt:     "rcpt_9",
		Notes:       domain.OrderNotes{CustomerEmail: "a@b.co", CourseIDs: "[3]"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", order.ID)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "pi_123_secret", order.ClientSecret)
	assert.Equal(t, "inr", *fake.params.Currency)
	assert.Equal(t, "[3]", fake.params.Metadata["course_ids"])
}

const testEvent = `{
  "id": "evt_1",
  "object": "event",
  "api_version": "2023-10-16",
  "type": "%s",
  "data": {"object": {
    "id": "pi_123",
    "object": "payment_intent",
    "amount": 1999,
    "currency": "inr",
    "latest_charge": "ch_456",
    "metadata": {"customer_email": "a@b.co", "customer_name": "Asha", "course_ids": "[3]"}
  }}
}`

func signed(t *testing.T, eventType, secret string) ([]byte, string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(fmt.Sprintf(testEvent, eventType)),
		Secret:  secret,
	})
	return sp.Payload, sp.Header
}

func TestStripe_ParseWebhook(t *testing.T) {
	g := &StripeGateway{webhookSecret: "whsec_test"}

	payload, header := signed(t, "payment_intent.succeeded", "whsec_test")
	p, ok, err := g.ParseWebhook(payload, header)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pi_123", p.OrderID)
	assert.Equal(t, "ch_456", p.PaymentID)
	assert.Equal(t, int64(1999), p.AmountMinor)
	assert.Equal(t, "[3]", p.Notes.CourseIDs)
	assert.Equal(t, "a@b.co", p.Notes.CustomerEmail)
}

func TestStripe_ParseWebhookIgnoresOtherEvents(t *testing.T) {
	g := &StripeGateway{webhookSecret: "whsec_test"}
	payload, header := signed(t, "payment_intent.created", "whsec_test")
	p, ok, err := g.ParseWebhook(payload, header)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, p)
}

func TestStripe_ParseWebhookBadSignature(t *testing.T) {
	g := &StripeGateway{webhookSecret: "whsec_test"}
	payload, header := signed(t, "payment_intent.succeeded", "whsec_other")
	_, _, err := g.ParseWebhook(payload, header)
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
}
