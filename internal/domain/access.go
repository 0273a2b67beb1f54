package domain

import "time"

const PurchaseSuccess = "success"

type Purchase struct {
	UserID      int64
	CourseID    int64
	PaymentID   string
	Amount      float64
	Status      string
	PurchasedAt time.Time
}

type AccessGrant struct {
	UserID    int64
	CourseID  int64
	GrantedAt time.Time
}

// Grant describes one verified payment to fulfill.
type Grant struct {
	AccountID int64
	OrderID   string
	PaymentID string
	CourseIDs []int64
}

// GrantResult reports how many courses were newly granted. Replayed is true when every
// purchase row already existed, i.e. the same verified callback was submitted again.
type GrantResult struct {
	Granted  int
	Replayed bool
	Courses  []Course
}
