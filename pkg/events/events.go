package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/prodemyx/prodemyx-api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("prodemyx-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	return n.conn.Drain()
}

// NopPublisher drops events; used when NATS_URL is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

const (
	PaymentOrderCreated = "payment.order.created"
	PaymentCaptured     = "payment.captured"
	PaymentRejected     = "payment.rejected"
	AccountProvisioned  = "account.provisioned"
)

// Event payloads never carry credentials.

type PaymentOrderCreatedEvent struct {
	OrderID     string    `json:"order_id"`
	Gateway     string    `json:"gateway"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	CourseIDs   []int64   `json:"course_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

type PaymentCapturedEvent struct {
	OrderID    string    `json:"order_id"`
	PaymentID  string    `json:"payment_id"`
	AccountID  int64     `json:"account_id"`
	CourseIDs  []int64   `json:"course_ids"`
	Granted    int       `json:"granted"`
	CapturedAt time.Time `json:"captured_at"`
}

type PaymentRejectedEvent struct {
	OrderID    string    `json:"order_id"`
	Reason     string    `json:"reason"`
	RejectedAt time.Time `json:"rejected_at"`
}

type AccountProvisionedEvent struct {
	AccountID int64     `json:"account_id"`
	Email     string    `json:"email"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
