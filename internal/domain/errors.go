package domain

import "errors"

// Client-facing failure classes. Handlers map these with errors.Is to fixed messages;
// wrapped causes are only ever logged.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrOrderCreationFailed = errors.New("order creation failed")
	ErrFulfillmentFailed   = errors.New("fulfillment failed")
	ErrNotificationFailed  = errors.New("notification failed")
)

var (
	ErrUnknownCourse = errors.New("unknown course")
	ErrCartMismatch  = errors.New("cart does not match order")
	ErrOrderNotFound = errors.New("order not found")
	ErrUnauthorized  = errors.New("invalid credentials")
	ErrForbidden     = errors.New("role not permitted")
	ErrEmailTaken    = errors.New("email already registered")
	ErrNotFound      = errors.New("not found")
)
