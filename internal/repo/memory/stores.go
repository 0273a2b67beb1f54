package memory

import (
	"context"
	"sort"
	"time"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/repo"
)

type accountRepo struct{ db *DB }

func NewAccountRepo(db *DB) repo.AccountStore { return &accountRepo{db: db} }

func (r *accountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.accountByEmail(email), nil
}

// accountByEmail expects db.mu to be held.
func (db *DB) accountByEmail(email string) *domain.Account {
	for _, a := range db.accounts {
		if a.Email == email {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (r *accountRepo) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if a, ok := r.db.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (r *accountRepo) CreateIfAbsent(_ context.Context, in domain.NewAccount) (*domain.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.accountByEmail(in.Email) != nil {
		return nil, nil
	}
	return r.db.insertAccount(r.db.newAccount(in)), nil
}

func (r *accountRepo) Create(_ context.Context, in domain.NewAccount) (*domain.Account, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.accountByEmail(in.Email) != nil {
		return nil, domain.ErrEmailTaken
	}
	return r.db.insertAccount(r.db.newAccount(in)), nil
}

// newAccount takes the next id like a sequence does: a rolled back
// transaction leaves a gap.
func (db *DB) newAccount(in domain.NewAccount) *domain.Account {
	db.accountSeq++
	return &domain.Account{
		ID:           db.accountSeq,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Phone:        in.Phone,
		CreatedAt:    time.Now(),
	}
}

func (db *DB) insertAccount(a *domain.Account) *domain.Account {
	db.accounts[a.ID] = a
	cp := *a
	return &cp
}

type courseRepo struct{ db *DB }

func NewCourseRepo(db *DB) repo.CourseStore { return &courseRepo{db: db} }

func (r *courseRepo) FindByIDs(_ context.Context, ids []int64) ([]domain.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.coursesByIDs(ids), nil
}

func (db *DB) coursesByIDs(ids []int64) []domain.Course {
	var out []domain.Course
	seen := map[int64]bool{}
	for _, id := range ids {
		if c, ok := db.courses[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *courseRepo) ListEnrolled(_ context.Context, userID int64) ([]domain.EnrolledCourse, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []domain.EnrolledCourse{}
	for k, g := range r.db.access {
		if k.userID != userID {
			continue
		}
		c := r.db.courses[k.courseID]
		out = append(out, domain.EnrolledCourse{CourseID: k.courseID, Title: c.Title, Price: c.Price, GrantedAt: g.GrantedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.After(out[j].GrantedAt) })
	return out, nil
}

type orderRepo struct{ db *DB }

func NewOrderRepo(db *DB) repo.OrderStore { return &orderRepo{db: db} }

func (r *orderRepo) Create(_ context.Context, o *domain.PaymentOrder) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o.CreatedAt = time.Now()
	r.db.orders[o.ID] = *o
	return nil
}

func (r *orderRepo) FindByID(_ context.Context, id string) (*domain.PaymentOrder, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if o, ok := r.db.orders[id]; ok {
		return &o, nil
	}
	return nil, nil
}

type enrollmentRepo struct{ db *DB }

func NewEnrollmentRepo(db *DB) repo.EnrollmentStore { return &enrollmentRepo{db: db} }

// WithinTx serializes transactions and stages writes until fn succeeds.
func (r *enrollmentRepo) WithinTx(ctx context.Context, fn func(tx repo.EnrollmentTx) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx := &enrollmentTx{
		db:        r.db,
		accounts:  map[int64]*domain.Account{},
		purchases: map[purchaseKey]domain.Purchase{},
		access:    map[accessKey]domain.AccessGrant{},
		orders:    map[string]domain.PaymentOrder{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	for _, a := range tx.accounts {
		r.db.insertAccount(a)
	}
	for k, v := range tx.purchases {
		r.db.purchases[k] = v
	}
	for k, v := range tx.access {
		r.db.access[k] = v
	}
	for k, v := range tx.orders {
		r.db.orders[k] = v
	}
	return nil
}

type enrollmentTx struct {
	db        *DB
	accounts  map[int64]*domain.Account
	purchases map[purchaseKey]domain.Purchase
	access    map[accessKey]domain.AccessGrant
	orders    map[string]domain.PaymentOrder
}

func (t *enrollmentTx) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	if a := t.db.accountByEmail(email); a != nil {
		return a, nil
	}
	for _, a := range t.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *enrollmentTx) CreateIfAbsent(ctx context.Context, in domain.NewAccount) (*domain.Account, error) {
	if existing, _ := t.FindByEmail(ctx, in.Email); existing != nil {
		return nil, nil
	}
	a := t.db.newAccount(in)
	t.accounts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (t *enrollmentTx) LockCourses(_ context.Context, ids []int64) ([]domain.Course, error) {
	return t.db.coursesByIDs(ids), nil
}

func (t *enrollmentTx) InsertPurchase(_ context.Context, p domain.Purchase) (bool, error) {
	if t.db.FailPurchase != nil {
		if err := t.db.FailPurchase(p); err != nil {
			return false, err
		}
	}
	k := purchaseKey{p.UserID, p.CourseID, p.PaymentID}
	if _, ok := t.db.purchases[k]; ok {
		return false, nil
	}
	if _, ok := t.purchases[k]; ok {
		return false, nil
	}
	t.purchases[k] = p
	return true, nil
}

func (t *enrollmentTx) InsertAccessGrant(_ context.Context, g domain.AccessGrant) (bool, error) {
	k := accessKey{g.UserID, g.CourseID}
	if _, ok := t.db.access[k]; ok {
		return false, nil
	}
	if _, ok := t.access[k]; ok {
		return false, nil
	}
	t.access[k] = g
	return true, nil
}

func (t *enrollmentTx) MarkOrderPaid(_ context.Context, orderID, paymentID string) error {
	o, ok := t.db.orders[orderID]
	if !ok || o.Status != domain.OrderCreated {
		return nil
	}
	now := time.Now()
	o.Status = domain.OrderPaid
	o.PaymentID = &paymentID
	o.PaidAt = &now
	t.orders[orderID] = o
	return nil
}

type window struct {
	start time.Time
	count int
}

type rateLimiter struct{ db *DB }

func NewRateLimiter(db *DB) repo.RateLimiter { return &rateLimiter{db: db} }

func (r *rateLimiter) Allow(_ context.Context, key string, requests int, period time.Duration) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	w, ok := r.db.hits[key]
	if !ok || now.Sub(w.start) > period {
		w = &window{start: now}
		r.db.hits[key] = w
	}
	w.count++
	return w.count <= requests, nil
}
