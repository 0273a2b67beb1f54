package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/pkg/logger"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Message: message, Code: code})
}

// Common error codes
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
	CodeCartMismatch      = "CART_MISMATCH"
	CodeUnknownOrder      = "UNKNOWN_ORDER"
	CodeOrderFailed       = "ORDER_FAILED"
	CodeVerifyFailed      = "VERIFY_FAILED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeEmailExists       = "EMAIL_EXISTS"
	CodeGatewayNotEnabled = "GATEWAY_NOT_ENABLED"
)

// FromError maps a service error onto a fixed client message. The error text
// itself is logged and never written to the client.
func FromError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Request failed", "status", status, "error", err)
	} else {
		logger.WarnContext(ctx, "Request rejected", "status", status, "code", code, "error", err)
	}
	WriteError(w, status, message, code)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "Invalid signature", CodeInvalidSignature
	case errors.Is(err, domain.ErrCartMismatch):
		return http.StatusBadRequest, "Order details do not match", CodeCartMismatch
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusBadRequest, "Unknown order", CodeUnknownOrder
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request", CodeInvalidInput
	case errors.Is(err, domain.ErrOrderCreationFailed):
		return http.StatusInternalServerError, "Order failed", CodeOrderFailed
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid credentials", CodeUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Access denied for this account role", CodeForbidden
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, "Email already registered", CodeEmailExists
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found", CodeNotFound
	case errors.Is(err, domain.ErrFulfillmentFailed):
		return http.StatusInternalServerError, "Payment verify failed", CodeVerifyFailed
	default:
		return http.StatusInternalServerError, "Internal server error", CodeInternalError
	}
}

// Convenience functions for common errors
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeForbidden)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}
