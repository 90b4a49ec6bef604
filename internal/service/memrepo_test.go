package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/repository"
)

type memTxKey struct{}

type outboxRow struct {
	id             int64
	notificationID string
	attempts       int
	status         string
	leasedUntil    time.Time
}

type memState struct {
	users         map[string]model.User
	orders        map[string]model.Order
	ledgers       map[string]model.PointsLedger
	coupons       map[string]model.Coupon
	products      map[string]model.Product
	reviews       map[string]model.Review
	notifications []model.Notification
	outbox        []outboxRow
	subs          map[string]model.PushSubscription
}

func (s memState) clone() memState {
	c := memState{
		users:         maps.Clone(s.users),
		orders:        maps.Clone(s.orders),
		ledgers:       make(map[string]model.PointsLedger, len(s.ledgers)),
		coupons:       maps.Clone(s.coupons),
		products:      maps.Clone(s.products),
		reviews:       maps.Clone(s.reviews),
		notifications: slices.Clone(s.notifications),
		outbox:        slices.Clone(s.outbox),
		subs:          maps.Clone(s.subs),
	}
	for k, l := range s.ledgers {
		l.Transactions = slices.Clone(l.Transactions)
		c.ledgers[k] = l
	}
	return c
}

// memRepo реализует хранилище в памяти с откатом транзакций.
type memRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex
	memState

	clock  time.Time
	nextID int64

	// takenNumbers — номера заказов, которые считаются занятыми.
	takenNumbers map[string]bool
	// failNotification — ошибка, возвращаемая при создании уведомления.
	failNotification error
	txCount          int
	// ops — журнал блокировок товаров и изменений отзывов в порядке вызова.
	ops []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		memState: memState{
			users:    map[string]model.User{},
			orders:   map[string]model.Order{},
			ledgers:  map[string]model.PointsLedger{},
			coupons:  map[string]model.Coupon{},
			products: map[string]model.Product{},
			reviews:  map[string]model.Review{},
			subs:     map[string]model.PushSubscription{},
		},
		clock:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		takenNumbers: map[string]bool{},
	}
}

// tick возвращает строго возрастающее время создания записей.
func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memRepo) Close() error { return nil }

func (r *memRepo) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.memState.clone()
	r.txCount++
	r.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		r.mu.Lock()
		r.memState = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) CreateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Email]; ok {
		return fmt.Errorf("%w: %s", repository.ErrUserExists, u.Email)
	}
	u.CreatedAt = r.tick()
	r.users[u.Email] = *u
	return nil
}

func (r *memRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *memRepo) CreateOrder(_ context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.takenNumbers[o.Number] {
		return fmt.Errorf("%w: %s", repository.ErrOrderNumberTaken, o.Number)
	}
	for _, existing := range r.orders {
		if existing.Number == o.Number {
			return fmt.Errorf("%w: %s", repository.ErrOrderNumberTaken, o.Number)
		}
	}
	o.CreatedAt = r.tick()
	o.UpdatedAt = o.CreatedAt
	r.orders[o.ID] = *o
	return nil
}

func (r *memRepo) GetOrder(_ context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, repository.ErrNotFound)
	}
	return &o, nil
}

func (r *memRepo) GetOrderByNumber(_ context.Context, number string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Number == number {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", number, repository.ErrNotFound)
}

func (r *memRepo) GetOrderForUpdate(ctx context.Context, id string) (*model.Order, error) {
	return r.GetOrder(ctx, id)
}

func (r *memRepo) UpdateOrderStatus(_ context.Context, id string, status model.OrderStatus, payment model.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, repository.ErrNotFound)
	}
	o.Status = status
	o.PaymentStatus = payment
	o.UpdatedAt = r.tick()
	r.orders[id] = o
	return nil
}

func (r *memRepo) DeleteOrder(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return fmt.Errorf("order %s: %w", id, repository.ErrNotFound)
	}
	delete(r.orders, id)
	return nil
}

func (r *memRepo) ListOrders(_ context.Context, f model.OrderFilter) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Order
	for _, o := range r.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !o.CreatedAt.Before(*f.To) {
			continue
		}
		res = append(res, o)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *memRepo) CountOrdersByStatus(_ context.Context) (model.StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := model.StatusCounts{}
	for _, s := range model.OrderStatuses {
		counts[s] = 0
	}
	for _, o := range r.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (r *memRepo) GetLedger(_ context.Context, userID string) (*model.PointsLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[userID]
	if !ok {
		return nil, fmt.Errorf("ledger %s: %w", userID, repository.ErrNotFound)
	}
	l.Transactions = slices.Clone(l.Transactions)
	slices.Reverse(l.Transactions)
	return &l, nil
}

func (r *memRepo) LockLedger(_ context.Context, userID string) (*model.PointsLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ledgers[userID]
	if !ok {
		l = model.PointsLedger{UserID: userID}
		r.ledgers[userID] = l
	}
	return &model.PointsLedger{UserID: userID, TotalPoints: l.TotalPoints, LifetimePoints: l.LifetimePoints}, nil
}

func (r *memRepo) SaveLedgerBalance(_ context.Context, l *model.PointsLedger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.TotalPoints < 0 {
		return fmt.Errorf("ledger %s: negative balance", l.UserID)
	}
	stored := r.ledgers[l.UserID]
	stored.UserID = l.UserID
	stored.TotalPoints = l.TotalPoints
	stored.LifetimePoints = l.LifetimePoints
	r.ledgers[l.UserID] = stored
	return nil
}

func (r *memRepo) AddPointsTransaction(_ context.Context, userID string, t *model.PointsTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.CreatedAt = r.tick()
	l := r.ledgers[userID]
	l.Transactions = append(l.Transactions, *t)
	r.ledgers[userID] = l
	return nil
}

func (r *memRepo) CreateCoupon(_ context.Context, c *model.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.coupons[c.Code]; ok {
		return fmt.Errorf("coupon %s: %w", c.Code, repository.ErrDuplicate)
	}
	c.CreatedAt = r.tick()
	r.coupons[c.Code] = *c
	return nil
}

func (r *memRepo) GetCouponByCode(_ context.Context, code string) (*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	if !ok {
		return nil, fmt.Errorf("coupon %s: %w", code, repository.ErrNotFound)
	}
	return &c, nil
}

func (r *memRepo) ListCoupons(_ context.Context) ([]model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Collect(maps.Values(r.coupons)), nil
}

func (r *memRepo) RedeemCoupon(_ context.Context, code string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	switch {
	case !ok || !c.IsActive:
		return fmt.Errorf("coupon %s: %w", code, repository.ErrCouponUnavailable)
	case c.Exhausted():
		return fmt.Errorf("coupon %s: %w", code, repository.ErrCouponExhausted)
	case c.StartsAt != nil && now.Before(*c.StartsAt), c.ExpiresAt != nil && !now.Before(*c.ExpiresAt):
		return fmt.Errorf("coupon %s: %w", code, repository.ErrCouponUnavailable)
	}
	c.UsedCount++
	r.coupons[code] = c
	return nil
}

func (r *memRepo) CreateProduct(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.products {
		if existing.Slug == p.Slug {
			return fmt.Errorf("product slug %s: %w", p.Slug, repository.ErrDuplicate)
		}
	}
	p.CreatedAt = r.tick()
	p.UpdatedAt = p.CreatedAt
	r.products[p.ID] = *p
	return nil
}

func (r *memRepo) GetProduct(_ context.Context, id string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, repository.ErrNotFound)
	}
	return &p, nil
}

func (r *memRepo) GetProductForUpdate(ctx context.Context, id string) (*model.Product, error) {
	if ctx.Value(memTxKey{}) == nil {
		return nil, fmt.Errorf("lock product %s outside transaction", id)
	}
	r.mu.Lock()
	r.ops = append(r.ops, "lock:"+id)
	r.mu.Unlock()
	return r.GetProduct(ctx, id)
}

func (r *memRepo) ListProducts(_ context.Context, category string) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Product
	for _, p := range r.products {
		if category == "" || p.Category == category {
			res = append(res, p)
		}
	}
	return res, nil
}

func (r *memRepo) UpdateProductRating(_ context.Context, id string, rating float64, reviewCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, repository.ErrNotFound)
	}
	p.Rating = rating
	p.ReviewCount = reviewCount
	r.products[id] = p
	return nil
}

func (r *memRepo) CreateReview(_ context.Context, rv *model.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.ProductID == rv.ProductID && existing.UserID == rv.UserID {
			return fmt.Errorf("review: %w", repository.ErrDuplicate)
		}
	}
	rv.CreatedAt = r.tick()
	r.reviews[rv.ID] = *rv
	r.ops = append(r.ops, "add:"+rv.ProductID)
	return nil
}

func (r *memRepo) GetReview(_ context.Context, id string) (*model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rv, ok := r.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review %s: %w", id, repository.ErrNotFound)
	}
	return &rv, nil
}

func (r *memRepo) DeleteReview(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[id]; !ok {
		return fmt.Errorf("review %s: %w", id, repository.ErrNotFound)
	}
	r.ops = append(r.ops, "delete:"+r.reviews[id].ProductID)
	delete(r.reviews, id)
	return nil
}

func (r *memRepo) ListReviews(_ context.Context, productID string) ([]model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Review
	for _, rv := range r.reviews {
		if rv.ProductID == productID {
			res = append(res, rv)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *memRepo) ProductRatings(_ context.Context, productID string) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []int
	for _, rv := range r.reviews {
		if rv.ProductID == productID {
			res = append(res, rv.Rating)
		}
	}
	return res, nil
}

func (r *memRepo) CreateNotification(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNotification != nil {
		return r.failNotification
	}
	n.CreatedAt = r.tick()
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *memRepo) GetNotification(_ context.Context, id string) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, fmt.Errorf("notification %s: %w", id, repository.ErrNotFound)
}

func (r *memRepo) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Notification
	for i := len(r.notifications) - 1; i >= 0 && len(res) < limit; i-- {
		n := r.notifications[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		res = append(res, n)
	}
	return res, nil
}

func (r *memRepo) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cnt := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			cnt++
		}
	}
	return cnt, nil
}

func (r *memRepo) MarkNotificationRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].ID == id {
			r.notifications[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, repository.ErrNotFound)
}

func (r *memRepo) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.notifications {
		if r.notifications[i].UserID == userID && !r.notifications[i].Read {
			r.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

func (r *memRepo) DeleteNotification(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].ID == id {
			r.notifications = slices.Delete(r.notifications, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, repository.ErrNotFound)
}

func (r *memRepo) EnqueuePush(_ context.Context, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.outbox = append(r.outbox, outboxRow{id: r.nextID, notificationID: notificationID, status: "pending"})
	return nil
}

func (r *memRepo) ClaimPushJobs(_ context.Context, limit int, lease time.Duration) ([]model.PushJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var res []model.PushJob
	for i, row := range r.outbox {
		if row.status != "pending" || now.Before(row.leasedUntil) || len(res) >= limit {
			continue
		}
		for _, n := range r.notifications {
			if n.ID == row.notificationID {
				r.outbox[i].leasedUntil = now.Add(lease)
				res = append(res, model.PushJob{ID: row.id, Attempts: row.attempts, Notification: n})
			}
		}
	}
	return res, nil
}

func (r *memRepo) outboxStatus(id int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.outbox {
		if row.id == id {
			return row.status
		}
	}
	return ""
}

func (r *memRepo) CompletePushJob(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.outbox {
		if r.outbox[i].id == id {
			r.outbox[i].status = "done"
			r.outbox[i].leasedUntil = time.Time{}
		}
	}
	return nil
}

func (r *memRepo) RetryPushJob(_ context.Context, id int64, maxAttempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.outbox {
		if r.outbox[i].id == id {
			r.outbox[i].attempts++
			r.outbox[i].leasedUntil = time.Time{}
			if r.outbox[i].attempts >= maxAttempts {
				r.outbox[i].status = "failed"
			}
		}
	}
	return nil
}

func (r *memRepo) SavePushSubscription(_ context.Context, s *model.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.CreatedAt = r.tick()
	r.subs[s.Endpoint] = *s
	return nil
}

func (r *memRepo) DeletePushSubscription(_ context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, endpoint)
	return nil
}

func (r *memRepo) PushSubscriptionsFor(_ context.Context, recipient string) ([]model.PushSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.PushSubscription
	for _, s := range r.subs {
		if recipient == model.AdminRecipient {
			if s.Role == model.RoleAdmin {
				res = append(res, s)
			}
			continue
		}
		if s.UserID == recipient {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Endpoint < res[j].Endpoint })
	return res, nil
}

func (r *memRepo) notificationsFor(userID string) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			res = append(res, n)
		}
	}
	return res
}
