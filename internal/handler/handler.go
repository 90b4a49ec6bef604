// Package handler содержит HTTP-обработчики API магазина Wonderland.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/middleware"
	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/report"
	"github.com/mmeshcher/wonderland/internal/repository"
	"github.com/mmeshcher/wonderland/internal/service"
	"github.com/mmeshcher/wonderland/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, in service.RegisterInput) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)

	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, in service.UpdateStatusInput) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, actor service.Actor, id string) (*model.Order, error)
	ListOrders(ctx context.Context, actor service.Actor, f model.OrderFilter) (*service.OrderList, error)
	ExportOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	SalesReport(ctx context.Context, from, to *time.Time) (*report.Sales, error)

	GetBalance(ctx context.Context, userID string) (*model.PointsLedger, error)
	EarnPoints(ctx context.Context, userID string, orderAmount int64, orderID string) (*model.PointsLedger, error)
	RedeemPoints(ctx context.Context, userID string, points int64, description string) (*model.PointsLedger, error)
	ExpirePoints(ctx context.Context, userID string, points int64, description string) (*model.PointsLedger, error)

	AddReview(ctx context.Context, in service.AddReviewInput) (*model.Review, error)
	DeleteReview(ctx context.Context, reviewID, requesterID string) error
	ListReviews(ctx context.Context, productID string) ([]model.Review, error)

	Notify(ctx context.Context, in service.NotifyInput) (*model.Notification, error)
	ListNotifications(ctx context.Context, actor service.Actor, recipient string, unreadOnly bool) (*service.NotificationList, error)
	MarkNotificationRead(ctx context.Context, actor service.Actor, id string) error
	MarkAllNotificationsRead(ctx context.Context, actor service.Actor, recipient string) (int64, error)
	DeleteNotification(ctx context.Context, actor service.Actor, id string) error
	SubscribePush(ctx context.Context, actor service.Actor, sub model.PushSubscription) error
	UnsubscribePush(ctx context.Context, endpoint string) error

	CreateProduct(ctx context.Context, in service.CreateProductInput) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, category string) ([]model.Product, error)

	CreateCoupon(ctx context.Context, in service.CreateCouponInput) (*model.Coupon, error)
	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	ValidateCoupon(ctx context.Context, in service.ValidateCouponInput) (*service.CouponQuote, error)
}

// Streamer обслуживает websocket-подключения для уведомлений.
type Streamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string, admin bool)
}

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	stream         Streamer
	pinger         Pinger
	metrics        http.Handler
}

// Option настраивает необязательные зависимости обработчика.
type Option func(*Handler)

// WithStream включает websocket-поток уведомлений.
func WithStream(s Streamer) Option {
	return func(h *Handler) { h.stream = s }
}

// WithPinger подключает проверку хранилища к /healthz.
func WithPinger(p Pinger) Option {
	return func(h *Handler) { h.pinger = p }
}

// WithMetricsHandler публикует метрики на /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts ...Option) *Handler {
	h := &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return validation.New("invalid request body")
	}
	return nil
}

// fail переводит ошибку бизнес-логики в HTTP-ответ.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *validation.Error
	switch {
	case errors.As(err, &vErr):
		writeMessage(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrUserExists):
		writeMessage(w, http.StatusConflict, "user already exists")
	case errors.Is(err, repository.ErrDuplicate):
		writeMessage(w, http.StatusBadRequest, "already exists")
	case errors.Is(err, repository.ErrInsufficientBalance):
		writeMessage(w, http.StatusBadRequest, "insufficient points balance")
	case errors.Is(err, repository.ErrCouponExhausted):
		writeMessage(w, http.StatusBadRequest, "coupon usage limit reached")
	case errors.Is(err, repository.ErrCouponUnavailable):
		writeMessage(w, http.StatusBadRequest, "coupon is not available")
	case errors.Is(err, service.ErrInvalidTransition):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "invalid email or password")
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// actor возвращает пользователя запроса в терминах бизнес-логики.
func actor(r *http.Request) (service.Actor, bool) {
	u, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: u.ID, Name: u.Name, Admin: u.Admin()}, true
}

// Health отвечает 200, если хранилище доступно.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeMessage(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
