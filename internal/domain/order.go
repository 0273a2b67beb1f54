package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderCreated OrderStatus = "created"
	OrderPaid    OrderStatus = "paid"
)

// OrderNotes is the metadata attached to a gateway order. CourseIDs holds the
// JSON-encoded cart so it can be read back unmodified.
type OrderNotes struct {
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	CourseIDs     string `json:"course_ids"`
}

// GatewayOrder is what the client receives to open the payment widget.
type GatewayOrder struct {
	ID       string     `json:"id"`
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	Receipt  string     `json:"receipt"`
	Status   string     `json:"status"`
	Notes    OrderNotes `json:"notes"`
	// ClientSecret is only set for Stripe PaymentIntents.
	ClientSecret string `json:"client_secret,omitempty"`
}

// PaymentOrder is the local mirror of a gateway order and the authoritative cart at verify time.
type PaymentOrder struct {
	ID            string
	Gateway       string
	Receipt       string
	AmountMinor   int64
	Currency      string
	CustomerEmail string
	CustomerName  string
	CourseIDs     []int64
	Status        OrderStatus
	PaymentID     *string
	CreatedAt     time.Time
	PaidAt        *time.Time
}

// Cart is the normalized input of order creation.
type Cart struct {
	AmountMinor   int64
	CourseIDs     []int64
	CustomerName  string
	CustomerEmail string
}

type CreateOrderReq struct {
	Amount        *float64     `json:"amount" validate:"required"`
	CourseID      CourseIDList `json:"course_id,omitempty"`
	CourseIDs     CourseIDList `json:"course_ids,omitempty"`
	CustomerName  string       `json:"customer_name,omitempty" validate:"max=200"`
	CustomerEmail string       `json:"customer_email,omitempty" validate:"omitempty,email,max=320"`
}

// Cart validates the request and converts it to minor units.
// course_ids wins over course_id when both are present.
func (r CreateOrderReq) Cart() (Cart, error) {
	if r.Amount == nil {
		return Cart{}, fmt.Errorf("%w: amount is required", ErrInvalidRequest)
	}
	minor, err := ToMinorUnits(*r.Amount)
	if err != nil {
		return Cart{}, err
	}
	ids := []int64(r.CourseIDs)
	if len(ids) == 0 {
		ids = r.CourseID
	}
	ids, err = NormalizeCourseIDs(ids)
	if err != nil {
		return Cart{}, err
	}
	return Cart{
		AmountMinor:   minor,
		CourseIDs:     ids,
		CustomerName:  strings.TrimSpace(r.CustomerName),
		CustomerEmail: strings.TrimSpace(r.CustomerEmail),
	}, nil
}

type VerifyPaymentReq struct {
	OrderID       string       `json:"razorpay_order_id" validate:"required,max=64"`
	PaymentID     string       `json:"razorpay_payment_id" validate:"required,max=64"`
	Signature     string       `json:"razorpay_signature" validate:"required,max=256"`
	CustomerEmail string       `json:"customer_email" validate:"omitempty,email,max=320"`
	CustomerName  string       `json:"customer_name,omitempty" validate:"max=200"`
	CustomerPhone string       `json:"customer_phone,omitempty" validate:"max=32"`
	CourseIDs     CourseIDList `json:"course_ids"`
	Amount        *float64     `json:"amount,omitempty"`
}

// ToMinorUnits converts a major-unit amount to the gateway's integer minor units.
func ToMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, fmt.Errorf("%w: amount must be a positive number", ErrInvalidRequest)
	}
	minor := math.Round(amount * 100)
	if minor < 1 || minor > math.MaxInt64/2 {
		return 0, fmt.Errorf("%w: amount out of range", ErrInvalidRequest)
	}
	return int64(minor), nil
}

// NormalizeCourseIDs drops duplicates, keeps first-seen order and rejects non-positive ids.
func NormalizeCourseIDs(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one course is required", ErrInvalidRequest)
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: invalid course id %d", ErrInvalidRequest, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// SameCourses reports whether a and b contain the same ids, ignoring order and duplicates.
func SameCourses(a, b []int64) bool {
	set := make(map[int64]bool, len(a))
	for _, id := range a {
		set[id] = false
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
		set[id] = true
	}
	for _, matched := range set {
		if !matched {
			return false
		}
	}
	return true
}

// EncodeCourseIDs renders the cart the way it is stored in gateway notes.
func EncodeCourseIDs(ids []int64) string {
	b, _ := json.Marshal(ids)
	return string(b)
}

// CourseIDList decodes the course-id shapes clients send: a number, a numeric string,
// an array of numbers or numeric strings, or a JSON-encoded array inside a string.
type CourseIDList []int64

func (l *CourseIDList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*l = nil
			return nil
		}
		if strings.HasPrefix(s, "[") {
			return l.UnmarshalJSON([]byte(s))
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("course id %q is not a number", s)
		}
		*l = CourseIDList{id}
		return nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		out := make(CourseIDList, 0, len(raw))
		for _, item := range raw {
			var one CourseIDList
			if err := one.UnmarshalJSON(item); err != nil {
				return err
			}
			if len(one) != 1 {
				return fmt.Errorf("invalid course id %s", item)
			}
			out = append(out, one[0])
		}
		*l = out
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		id, err := n.Int64()
		if err != nil {
			return fmt.Errorf("course id %s is not an integer", n)
		}
		*l = CourseIDList{id}
		return nil
	}
}
