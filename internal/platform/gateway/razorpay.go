package gateway

import (
	"context"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/pkg/metrics"
)

// orderCreator is the subset of the Razorpay Orders resource used here.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayGateway struct {
	orders  orderCreator
	timeout time.Duration
}

func NewRazorpay(keyID, keySecret string, timeout time.Duration) (*RazorpayGateway, error) {
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("razorpay: %w", ErrNotConfigured)
	}
	client := razorpay.NewClient(keyID, keySecret)
	return &RazorpayGateway{orders: client.Order, timeout: timeout}, nil
}

func (g *RazorpayGateway) Name() string { return Razorpay }

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*domain.GatewayOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	data := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes": map[string]interface{}{
			"customer_email": req.Notes.CustomerEmail,
			"customer_name":  req.Notes.CustomerName,
			"course_ids":     req.Notes.CourseIDs,
		},
	}

	start := time.Now()
	body, err := call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	metrics.GatewayLatency.WithLabelValues(Razorpay).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay create order: response has no id")
	}

	order := &domain.GatewayOrder{
		ID:       id,
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
		Notes:    req.Notes,
	}
	if amount, ok := body["amount"].(float64); ok {
		order.Amount = int64(amount)
	}
	if currency, ok := body["currency"].(string); ok && currency != "" {
		order.Currency = currency
	}
	if status, ok := body["status"].(string); ok && status != "" {
		order.Status = status
	}
	return order, nil
}
