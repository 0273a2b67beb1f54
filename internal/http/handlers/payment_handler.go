package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/http/response"
	"github.com/prodemyx/prodemyx-api/internal/platform/gateway"
	"github.com/prodemyx/prodemyx-api/internal/service"
	"github.com/prodemyx/prodemyx-api/pkg/logger"
)

// StripeWebhook verifies and decodes Stripe event deliveries.
type StripeWebhook interface {
	ParseWebhook(payload []byte, sigHeader string) (*gateway.StripePayment, bool, error)
}

type PaymentHandler struct {
	Checkout service.CheckoutService
	Webhook  StripeWebhook // nil unless the Stripe gateway is enabled
}

func NewPaymentHandler(checkout service.CheckoutService, webhook StripeWebhook) *PaymentHandler {
	return &PaymentHandler{Checkout: checkout, Webhook: webhook}
}

func (h *PaymentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/order", h.createOrder)
	r.Post("/verify", h.verify)
	r.Post("/stripe/webhook", h.stripeWebhook)
	return r
}

func (h *PaymentHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateOrderReq
	if !decode(w, r, &in) {
		return
	}
	order, err := h.Checkout.CreateOrder(r.Context(), in)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, order)
}

func (h *PaymentHandler) verify(w http.ResponseWriter, r *http.Request) {
	var in domain.VerifyPaymentReq
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Checkout.VerifyAndFulfill(r.Context(), in)
	if err != nil {
		response.FromError(r.Context(), w, err)
		return
	}
	logger.InfoContext(r.Context(), "Payment verified",
		"order_id", in.OrderID,
		"account_id", res.AccountID,
		"granted", res.Granted,
		"replayed", res.Replayed,
	)
	response.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *PaymentHandler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.Webhook == nil {
		response.WriteError(w, http.StatusNotFound, "Stripe is not enabled", response.CodeGatewayNotEnabled)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		response.BadRequest(w, "Invalid request")
		return
	}

	payment, ok, err := h.Webhook.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, gateway.ErrNotConfigured) {
			response.FromError(r.Context(), w, err)
			return
		}
		response.FromError(r.Context(), w, errors.Join(domain.ErrInvalidRequest, err))
		return
	}
	if !ok {
		response.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	// A non-2xx makes Stripe redeliver; fulfillment is idempotent per payment.
	if _, err := h.Checkout.FulfillStripe(r.Context(), *payment); err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			// Redelivery cannot repair the payload, so acknowledge and leave it to an operator.
			logger.ErrorContext(r.Context(), "Stripe payment cannot be fulfilled", "order_id", payment.OrderID, "payment_id", payment.PaymentID, "error", err)
			response.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		response.FromError(r.Context(), w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
