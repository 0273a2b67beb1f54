// Package memory holds map-backed stores used by tests and by the API's
// in-memory storage mode.
package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/prodemyx/prodemyx-api/internal/domain"
)

type purchaseKey struct {
	userID    int64
	courseID  int64
	paymentID string
}

type accessKey struct {
	userID   int64
	courseID int64
}

type DB struct {
	mu         sync.RWMutex
	accountSeq int64
	accounts   map[int64]*domain.Account
	courses    map[int64]domain.Course
	orders     map[string]domain.PaymentOrder
	purchases  map[purchaseKey]domain.Purchase
	access     map[accessKey]domain.AccessGrant
	hits       map[string]*window

	// FailPurchase, when set, is consulted before every purchase insert.
	FailPurchase func(domain.Purchase) error
}

func NewDB() *DB {
	return &DB{
		accounts:  map[int64]*domain.Account{},
		courses:   map[int64]domain.Course{},
		orders:    map[string]domain.PaymentOrder{},
		purchases: map[purchaseKey]domain.Purchase{},
		access:    map[accessKey]domain.AccessGrant{},
		hits:      map[string]*window{},
	}
}

func (db *DB) SeedCourse(c domain.Course) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.courses[c.ID] = c
}

// SeedCatalog loads a JSON array of courses, e.g. [{"id":5,"title":"Go","price":499}].
func (db *DB) SeedCatalog(raw []byte) (int, error) {
	var courses []domain.Course
	if err := json.Unmarshal(raw, &courses); err != nil {
		return 0, fmt.Errorf("decode course catalog: %w", err)
	}
	for _, c := range courses {
		if c.ID <= 0 {
			return 0, fmt.Errorf("course %q has no positive id", c.Title)
		}
	}
	for _, c := range courses {
		db.SeedCourse(c)
	}
	return len(courses), nil
}

func (db *DB) Purchases() []domain.Purchase {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]domain.Purchase, 0, len(db.purchases))
	for _, p := range db.purchases {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}

func (db *DB) AccessGrants() []domain.AccessGrant {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]domain.AccessGrant, 0, len(db.access))
	for _, g := range db.access {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}

func (db *DB) Accounts() []domain.Account {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]domain.Account, 0, len(db.accounts))
	for _, a := range db.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
