package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/notify"
	"github.com/prodemyx/prodemyx-api/internal/platform/gateway"
	"github.com/prodemyx/prodemyx-api/internal/platform/mailer"
	"github.com/prodemyx/prodemyx-api/internal/repo"
	"github.com/prodemyx/prodemyx-api/pkg/events"
	"github.com/prodemyx/prodemyx-api/pkg/logger"
	"github.com/prodemyx/prodemyx-api/pkg/metrics"
)

type Notifier interface {
	Enqueue(ctx context.Context, job notify.Job) error
}

type CheckoutService interface {
	CreateOrder(ctx context.Context, req domain.CreateOrderReq) (*domain.GatewayOrder, error)
	VerifyAndFulfill(ctx context.Context, req domain.VerifyPaymentReq) (*VerifyResult, error)
	FulfillStripe(ctx context.Context, p gateway.StripePayment) (*VerifyResult, error)
}

type VerifyResult struct {
	AccountID int64
	Granted   int
	Replayed  bool
	State     domain.TxState
}

type CheckoutOptions struct {
	Currency        string
	SignatureSecret string // Razorpay key secret
	TrustClientCart bool
	LoginURL        string
}

type checkoutService struct {
	gateway     gateway.Gateway
	orders      repo.OrderStore
	provisioner *Provisioner
	granter     *EnrollmentGranter
	notifier    Notifier
	events      events.Publisher
	opts        CheckoutOptions
}

func NewCheckoutService(
	gw gateway.Gateway,
	orders repo.OrderStore,
	provisioner *Provisioner,
	granter *EnrollmentGranter,
	notifier Notifier,
	publisher events.Publisher,
	opts CheckoutOptions,
) CheckoutService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &checkoutService{
		gateway:     gw,
		orders:      orders,
		provisioner: provisioner,
		granter:     granter,
		notifier:    notifier,
		events:      publisher,
		opts:        opts,
	}
}

func (s *checkoutService) CreateOrder(ctx context.Context, req domain.CreateOrderReq) (*domain.GatewayOrder, error) {
	cart, err := req.Cart()
	if err != nil {
		return nil, err
	}

	receiptID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("%w: receipt: %w", domain.ErrOrderCreationFailed, err)
	}
	receipt := "rcpt_" + receiptID.String()

	notes := domain.OrderNotes{
		CustomerEmail: cart.CustomerEmail,
		CustomerName:  cart.CustomerName,
		CourseIDs:     domain.EncodeCourseIDs(cart.CourseIDs),
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderRequest{
		AmountMinor: cart.AmountMinor,
		Currency:    s.opts.Currency,
		Receipt:     receipt,
		Notes:       notes,
	})
	if err != nil {
		metrics.OrdersCreated.WithLabelValues(s.gateway.Name(), "gateway_error").Inc()
		logger.ErrorContext(ctx, "Gateway order creation failed", "gateway", s.gateway.Name(), "receipt", receipt, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrOrderCreationFailed, err)
	}

	if err := s.orders.Create(ctx, &domain.PaymentOrder{
		ID:            order.ID,
		Gateway:       s.gateway.Name(),
		Receipt:       receipt,
		AmountMinor:   order.Amount,
		Currency:      order.Currency,
		CustomerEmail: cart.CustomerEmail,
		CustomerName:  cart.CustomerName,
		CourseIDs:     cart.CourseIDs,
		Status:        domain.OrderCreated,
	}); err != nil {
		metrics.OrdersCreated.WithLabelValues(s.gateway.Name(), "store_error").Inc()
		logger.ErrorContext(ctx, "Failed to record payment order", "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: record order: %w", domain.ErrOrderCreationFailed, err)
	}

	metrics.OrdersCreated.WithLabelValues(s.gateway.Name(), "created").Inc()
	logger.InfoContext(logger.WithOrderID(ctx, order.ID), "Payment order created",
		"state", domain.StateCreated,
		"amount_minor", order.Amount,
		"courses", len(cart.CourseIDs),
	)

	if err := s.events.Publish(ctx, events.PaymentOrderCreated, events.PaymentOrderCreatedEvent{
		OrderID:     order.ID,
		Gateway:     s.gateway.Name(),
		AmountMinor: order.Amount,
		Currency:    order.Currency,
		CourseIDs:   cart.CourseIDs,
		CreatedAt:   time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish order created event", "error", err)
	}
	return order, nil
}

// fulfillment is a verified payment with its resolved cart.
type fulfillment struct {
	orderID     string
	paymentID   string
	email       string
	name        string
	phone       string
	courseIDs   []int64
	amountMinor int64
	currency    string
	source      string
}

func (s *checkoutService) VerifyAndFulfill(ctx context.Context, req domain.VerifyPaymentReq) (*VerifyResult, error) {
	ctx = logger.WithOrderID(ctx, req.OrderID)
	tr := newTrace(ctx)
	tr.to(domain.StateVerifying)

	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		tr.to(domain.StateRejected)
		return tr.result(), fmt.Errorf("%w: order id, payment id and signature are required", domain.ErrInvalidRequest)
	}

	if !gateway.VerifySignature(s.opts.SignatureSecret, req.OrderID, req.PaymentID, req.Signature) {
		tr.to(domain.StateRejected)
		s.publishRejected(ctx, req.OrderID, "invalid_signature")
		return tr.result(), domain.ErrInvalidSignature
	}
	tr.to(domain.StateVerified)

	f, err := s.resolveCart(ctx, req)
	if err != nil {
		tr.fail(err)
		return tr.result(), err
	}
	return s.fulfill(ctx, tr, f)
}

func (s *checkoutService) FulfillStripe(ctx context.Context, p gateway.StripePayment) (*VerifyResult, error) {
	ctx = logger.WithOrderID(ctx, p.OrderID)
	tr := newTrace(ctx)
	tr.to(domain.StateVerifying)
	// Stripe-Signature was checked by the webhook parser.
	tr.to(domain.StateVerified)

	f := fulfillment{
		orderID:     p.OrderID,
		paymentID:   p.PaymentID,
		email:       strings.TrimSpace(p.Notes.CustomerEmail),
		name:        p.Notes.CustomerName,
		amountMinor: p.AmountMinor,
		currency:    s.opts.Currency,
		source:      "stripe-webhook",
	}

	stored, err := s.orders.FindByID(ctx, p.OrderID)
	if err != nil {
		err = fmt.Errorf("%w: load order: %w", domain.ErrFulfillmentFailed, err)
		tr.fail(err)
		return tr.result(), err
	}
	if stored != nil {
		f.courseIDs = stored.CourseIDs
		f.currency = stored.Currency
		if stored.CustomerEmail != "" {
			f.email = stored.CustomerEmail
		}
		if stored.CustomerName != "" {
			f.name = stored.CustomerName
		}
	} else {
		// PaymentIntent metadata is written by this service at order time.
		var ids domain.CourseIDList
		if err := ids.UnmarshalJSON([]byte(p.Notes.CourseIDs)); err != nil {
			err = fmt.Errorf("%w: course_ids metadata: %v", domain.ErrInvalidRequest, err)
			tr.fail(err)
			return tr.result(), err
		}
		f.courseIDs = ids
	}
	if f.email == "" {
		err := fmt.Errorf("%w: payment has no customer email", domain.ErrInvalidRequest)
		tr.fail(err)
		return tr.result(), err
	}
	return s.fulfill(ctx, tr, f)
}

// resolveCart picks the authoritative cart for a verified Razorpay payment:
// the recorded order when there is one, the client echo only in trust mode.
func (s *checkoutService) resolveCart(ctx context.Context, req domain.VerifyPaymentReq) (fulfillment, error) {
	f := fulfillment{
		orderID:   req.OrderID,
		paymentID: req.PaymentID,
		email:     strings.TrimSpace(req.CustomerEmail),
		name:      strings.TrimSpace(req.CustomerName),
		phone:     strings.TrimSpace(req.CustomerPhone),
		currency:  s.opts.Currency,
		source:    "checkout",
	}

	stored, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		return f, fmt.Errorf("%w: load order: %w", domain.ErrFulfillmentFailed, err)
	}

	switch {
	case stored != nil:
		if len(req.CourseIDs) > 0 && !domain.SameCourses(stored.CourseIDs, req.CourseIDs) {
			return f, domain.ErrCartMismatch
		}
		if req.Amount != nil {
			echo, err := domain.ToMinorUnits(*req.Amount)
			if err != nil || echo != stored.AmountMinor {
				return f, domain.ErrCartMismatch
			}
		}
		f.courseIDs = stored.CourseIDs
		f.amountMinor = stored.AmountMinor
		f.currency = stored.Currency
		if stored.CustomerEmail != "" {
			f.email = stored.CustomerEmail
		}
		if stored.CustomerName != "" && f.name == "" {
			f.name = stored.CustomerName
		}
	case s.opts.TrustClientCart:
		logger.WarnContext(ctx, "Verifying unrecorded order with client-supplied cart")
		ids, err := domain.NormalizeCourseIDs(req.CourseIDs)
		if err != nil {
			return f, err
		}
		f.courseIDs = ids
		if req.Amount != nil {
			if minor, err := domain.ToMinorUnits(*req.Amount); err == nil {
				f.amountMinor = minor
			}
		}
	default:
		return f, domain.ErrOrderNotFound
	}

	if f.email == "" {
		return f, fmt.Errorf("%w: customer_email is required", domain.ErrInvalidRequest)
	}
	return f, nil
}

// fulfill provisions the buyer and grants the courses in one transaction, so a
// failed grant never leaves behind an account whose password nobody received.
func (s *checkoutService) fulfill(ctx context.Context, tr *trace, f fulfillment) (*VerifyResult, error) {
	buyer, err := normalizeInput(ProvisionInput{
		Email:  f.email,
		Name:   f.name,
		Phone:  f.phone,
		Source: f.source,
	})
	if err != nil {
		tr.fail(err)
		return tr.result(), err
	}

	var account domain.Provisioned
	granted, err := s.granter.GrantWith(ctx, domain.Grant{
		OrderID:   f.orderID,
		PaymentID: f.paymentID,
		CourseIDs: f.courseIDs,
	}, func(ctx context.Context, tx repo.EnrollmentTx) (int64, error) {
		res, err := s.provisioner.ProvisionIn(ctx, tx, buyer)
		if err != nil {
			return 0, fmt.Errorf("provision account: %w", err)
		}
		account = res
		return res.AccountID, nil
	})
	if err != nil {
		tr.fail(err)
		return tr.result(), err
	}
	tr.accountID = account.AccountID
	tr.to(domain.StateProvisioned)
	s.provisioner.Announce(ctx, account, buyer)

	tr.granted, tr.replayed = granted.Granted, granted.Replayed
	tr.to(domain.StateFulfilled)
	metrics.CoursesGranted.Add(float64(granted.Granted))

	if err := s.events.Publish(ctx, events.PaymentCaptured, events.PaymentCapturedEvent{
		OrderID:    f.orderID,
		PaymentID:  f.paymentID,
		AccountID:  account.AccountID,
		CourseIDs:  f.courseIDs,
		Granted:    granted.Granted,
		CapturedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish payment captured event", "error", err)
	}

	if granted.Replayed {
		logger.InfoContext(ctx, "Verified payment already fulfilled, skipping notification")
	} else {
		s.notifyPurchase(ctx, f, account, granted.Courses)
	}
	tr.to(domain.StateNotified)
	return tr.result(), nil
}

func (s *checkoutService) notifyPurchase(ctx context.Context, f fulfillment, account domain.Provisioned, courses []domain.Course) {
	titles := make([]string, 0, len(courses))
	for _, c := range courses {
		if t := strings.TrimSpace(c.Title); t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) == 0 {
		titles = []string{domain.FallbackCourseTitle}
	}

	name := f.name
	if name == "" {
		name = defaultLearnerName
	}
	msg, err := mailer.PurchaseConfirmation(mailer.PurchaseData{
		Name:         name,
		Email:        f.email,
		TempPassword: account.TempPassword,
		CourseTitles: titles,
		AmountMinor:  f.amountMinor,
		Currency:     f.currency,
		OrderID:      f.orderID,
		LoginURL:     s.opts.LoginURL,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to render purchase email", "error", fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err))
		return
	}
	if err := s.notifier.Enqueue(ctx, notify.Job{Kind: notify.KindPurchase, OrderID: f.orderID, Message: msg}); err != nil {
		logger.ErrorContext(ctx, "Failed to queue purchase email", "error", err)
	}
}

func (s *checkoutService) publishRejected(ctx context.Context, orderID, reason string) {
	if err := s.events.Publish(ctx, events.PaymentRejected, events.PaymentRejectedEvent{
		OrderID:    orderID,
		Reason:     reason,
		RejectedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish payment rejected event", "error", err)
	}
}

// trace walks one verify call through the TxState machine and logs every step.
type trace struct {
	ctx       context.Context
	state     domain.TxState
	accountID int64
	granted   int
	replayed  bool
}

func newTrace(ctx context.Context) *trace {
	return &trace{ctx: ctx, state: domain.StateCreated}
}

func (t *trace) to(next domain.TxState) {
	if !t.state.CanTransition(next) {
		logger.ErrorContext(t.ctx, "Illegal checkout state transition", "from", t.state, "to", next)
	}
	logger.InfoContext(t.ctx, "Checkout state", "from", t.state, "to", next)
	t.state = next
	if next.Terminal() {
		metrics.Verifications.WithLabelValues(string(next)).Inc()
	}
}

func (t *trace) fail(err error) {
	logger.ErrorContext(t.ctx, "Checkout failed", "state", t.state, "error", err)
	if t.state == domain.StateVerified || t.state == domain.StateProvisioned {
		t.to(domain.StateFailed)
		return
	}
	t.state = domain.StateFailed
	metrics.Verifications.WithLabelValues(string(domain.StateFailed)).Inc()
}

func (t *trace) result() *VerifyResult {
	return &VerifyResult{AccountID: t.accountID, Granted: t.granted, Replayed: t.replayed, State: t.state}
}
