// Package service реализует бизнес-логику магазина Wonderland.
package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/metrics"
	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/validation"
)

var (
	// ErrForbidden возвращается, если у пользователя нет прав на сущность.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition возвращается при недопустимой смене статуса заказа.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidCredentials возвращается при неверной почте или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	GetOrderForUpdate(ctx context.Context, id string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, payment model.PaymentStatus) error
	DeleteOrder(ctx context.Context, id string) error
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	CountOrdersByStatus(ctx context.Context) (model.StatusCounts, error)

	GetLedger(ctx context.Context, userID string) (*model.PointsLedger, error)
	LockLedger(ctx context.Context, userID string) (*model.PointsLedger, error)
	SaveLedgerBalance(ctx context.Context, l *model.PointsLedger) error
	AddPointsTransaction(ctx context.Context, userID string, t *model.PointsTransaction) error

	CreateCoupon(ctx context.Context, c *model.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	RedeemCoupon(ctx context.Context, code string, now time.Time) error

	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	GetProductForUpdate(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, category string) ([]model.Product, error)
	UpdateProductRating(ctx context.Context, id string, rating float64, reviewCount int) error

	CreateReview(ctx context.Context, rv *model.Review) error
	GetReview(ctx context.Context, id string) (*model.Review, error)
	DeleteReview(ctx context.Context, id string) error
	ListReviews(ctx context.Context, productID string) ([]model.Review, error)
	ProductRatings(ctx context.Context, productID string) ([]int, error)

	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, id string) error

	EnqueuePush(ctx context.Context, notificationID string) error
	ClaimPushJobs(ctx context.Context, limit int, lease time.Duration) ([]model.PushJob, error)
	CompletePushJob(ctx context.Context, id int64) error
	RetryPushJob(ctx context.Context, id int64, maxAttempts int) error
	SavePushSubscription(ctx context.Context, s *model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error
	PushSubscriptionsFor(ctx context.Context, recipient string) ([]model.PushSubscription, error)
}

// PushSender доставляет push-сообщение на одну подписку.
type PushSender interface {
	Send(ctx context.Context, sub model.PushSubscription, payload []byte) error
}

// Publisher получает уведомления после фиксации транзакции.
type Publisher interface {
	Publish(n model.Notification)
}

// Locker сериализует изменения одной сущности между экземплярами сервиса.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Actor описывает пользователя, от имени которого выполняется операция.
type Actor struct {
	UserID string
	Name   string
	Admin  bool
}

// Owns сообщает, может ли пользователь работать с данными адресата.
func (a Actor) Owns(userID string) bool {
	return a.Admin || (a.UserID != "" && a.UserID == userID)
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo        Repository
	logger      *zap.Logger
	push        PushSender
	publisher   Publisher
	locker      Locker
	metrics     *metrics.Metrics
	adminEmails map[string]struct{}
	now         func() time.Time
	randIntN    func(n int) int
}

// Option настраивает необязательные зависимости сервиса.
type Option func(*Service)

// WithPush включает доставку push-уведомлений.
func WithPush(sender PushSender) Option {
	return func(s *Service) { s.push = sender }
}

// WithPublisher включает рассылку уведомлений подключённым клиентам.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLocker включает распределённую блокировку счёта баллов.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithMetrics включает учёт доменных метрик.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAdminEmails задаёт адреса, которые при регистрации получают роль администратора.
func WithAdminEmails(emails []string) Option {
	return func(s *Service) {
		for _, e := range emails {
			if e = validation.NormalizeEmail(e); e != "" {
				s.adminEmails[e] = struct{}{}
			}
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		logger:      logger,
		adminEmails: make(map[string]struct{}),
		now:         time.Now,
		randIntN:    rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) isAdminEmail(email string) bool {
	_, ok := s.adminEmails[strings.ToLower(email)]
	return ok
}
