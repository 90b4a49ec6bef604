package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/repository"
	"github.com/mmeshcher/wonderland/internal/validation"
)

const orderNumberAttempts = 5

type statusTemplate struct {
	title   string
	message string
}

var statusTemplates = map[model.OrderStatus]statusTemplate{
	model.OrderStatusConfirmed:  {"Order confirmed", "Your order %s has been confirmed."},
	model.OrderStatusProcessing: {"Order processing", "Your order %s is being prepared."},
	model.OrderStatusShipped:    {"Order shipped", "Your order %s is on its way."},
	model.OrderStatusDelivered:  {"Order delivered", "Your order %s has been delivered. Thank you for shopping with Wonderland!"},
	model.OrderStatusCancelled:  {"Order cancelled", "Your order %s has been cancelled."},
}

// CreateOrderInput содержит данные оформления заказа.
type CreateOrderInput struct {
	UserID          string              `json:"userId"`
	Customer        model.Customer      `json:"customer"`
	ShippingAddress model.Address       `json:"shippingAddress"`
	Items           []model.OrderItem   `json:"items"`
	Subtotal        int64               `json:"subtotal"`
	Discount        int64               `json:"discount"`
	CouponCode      string              `json:"couponCode,omitempty"`
	CouponDiscount  int64               `json:"couponDiscount"`
	ShippingCost    int64               `json:"shippingCost"`
	Total           int64               `json:"total"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod"`
	Notes           string              `json:"notes,omitempty"`
}

// Validate проверяет обязательные поля заказа и сообщает обо всех нарушениях сразу.
func (in *CreateOrderInput) Validate() error {
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.PaymentMethodCOD
	}
	in.CouponCode = validation.NormalizeCouponCode(in.CouponCode)

	var c validation.Checker
	c.Require("userId", in.UserID)
	c.Require("customer.name", in.Customer.Name)
	c.Require("customer.phone", in.Customer.Phone)
	c.Check("shippingAddress", !in.ShippingAddress.Empty())
	c.Check("items", len(in.Items) > 0)
	for i, item := range in.Items {
		c.Check(fmt.Sprintf("items[%d].quantity", i), item.Quantity >= 1)
		c.Check(fmt.Sprintf("items[%d].price", i), item.Price >= 0)
	}
	c.Check("paymentMethod", in.PaymentMethod.Valid())
	c.Check("discount", in.Discount >= 0)
	c.Check("couponDiscount", in.CouponDiscount >= 0)
	c.Check("shippingCost", in.ShippingCost >= 0)
	return c.Err()
}

// pricing заполняет незаданные итоговые суммы по позициям заказа.
func (in *CreateOrderInput) pricing() (subtotal, total int64) {
	subtotal = in.Subtotal
	if subtotal == 0 {
		for _, item := range in.Items {
			subtotal += item.Price * int64(item.Quantity)
		}
	}
	total = in.Total
	if total == 0 {
		total = max(subtotal-in.Discount-in.CouponDiscount+in.ShippingCost, 0)
	}
	return subtotal, total
}

// UpdateStatusInput описывает частичное изменение статусов заказа.
type UpdateStatusInput struct {
	OrderID       string              `json:"orderId"`
	Status        model.OrderStatus   `json:"status,omitempty"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus,omitempty"`
}

// Validate проверяет, что задан заказ и хотя бы один известный статус.
func (in UpdateStatusInput) Validate() error {
	var c validation.Checker
	c.Require("orderId", in.OrderID)
	c.Check("status", in.Status != "" || in.PaymentStatus != "")
	if in.Status != "" {
		c.Check("status", in.Status.Valid())
	}
	if in.PaymentStatus != "" {
		c.Check("paymentStatus", in.PaymentStatus.Valid())
	}
	return c.Err()
}

// OrderList содержит заказы и, для администратора, их количество по статусам.
type OrderList struct {
	Orders       []model.Order      `json:"orders"`
	StatusCounts model.StatusCounts `json:"statusCounts,omitempty"`
}

// generateOrderNumber формирует номер вида WL + ГГММДД + четыре случайные цифры.
func (s *Service) generateOrderNumber() string {
	return fmt.Sprintf("WL%s%04d", s.now().Format("060102"), s.randIntN(10000))
}

// CreateOrder оформляет заказ. Сохранение заказа, списание купона и уведомление
// администраторов выполняются в одной транзакции.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	subtotal, total := in.pricing()
	order := &model.Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		Customer:        in.Customer,
		ShippingAddress: in.ShippingAddress,
		Items:           in.Items,
		Subtotal:        subtotal,
		Discount:        in.Discount,
		CouponCode:      in.CouponCode,
		CouponDiscount:  in.CouponDiscount,
		ShippingCost:    in.ShippingCost,
		Total:           total,
		Status:          model.OrderStatusPending,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   model.PaymentStatusPending,
		Notes:           in.Notes,
	}

	var note *model.Notification
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.insertOrder(ctx, order); err != nil {
			return err
		}

		if order.CouponCode != "" {
			if err := s.repo.RedeemCoupon(ctx, order.CouponCode, s.now()); err != nil {
				if errors.Is(err, repository.ErrCouponUnavailable) {
					return validation.New("coupon is not available", "couponCode")
				}
				return err
			}
		}

		var err error
		note, err = s.writeNotification(ctx, NotifyInput{
			UserID:  model.AdminRecipient,
			Title:   "New order",
			Message: fmt.Sprintf("Order %s from %s, total %d.", order.Number, order.Customer.Name, order.Total),
			Type:    model.NotificationOrder,
			Link:    "/admin/orders/" + order.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated()
	s.published(*note)
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("number", order.Number),
		zap.String("user_id", order.UserID),
		zap.Int64("total", order.Total),
	)
	return order, nil
}

func (s *Service) insertOrder(ctx context.Context, order *model.Order) error {
	var err error
	for range orderNumberAttempts {
		order.Number = s.generateOrderNumber()
		err = s.repo.CreateOrder(ctx, order)
		if !errors.Is(err, repository.ErrOrderNumberTaken) {
			return err
		}
		s.logger.Debug("order number collision", zap.String("number", order.Number))
	}
	return fmt.Errorf("generate order number: %w", err)
}

// UpdateOrderStatus меняет статус заказа и/или статус оплаты. При фактической смене
// статуса владельцу заказа отправляется уведомление.
func (s *Service) UpdateOrderStatus(ctx context.Context, in UpdateStatusInput) (*model.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var (
		order *model.Order
		note  *model.Notification
		prev  model.OrderStatus
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetOrderForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}

		prev = order.Status
		next := order.Status
		if in.Status != "" {
			next = in.Status
		}
		if !prev.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
		}

		payment := order.PaymentStatus
		if in.PaymentStatus != "" {
			payment = in.PaymentStatus
		}

		if err := s.repo.UpdateOrderStatus(ctx, order.ID, next, payment); err != nil {
			return err
		}
		order.Status = next
		order.PaymentStatus = payment
		order.UpdatedAt = s.now()

		tmpl, ok := statusTemplates[next]
		if next == prev || !ok {
			return nil
		}
		note, err = s.writeNotification(ctx, NotifyInput{
			UserID:  order.UserID,
			Title:   tmpl.title,
			Message: fmt.Sprintf(tmpl.message, order.Number),
			Type:    model.NotificationOrder,
			Link:    "/orders/" + order.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if order.Status != prev {
		s.metrics.StatusChanged(string(order.Status))
		s.logger.Info("order status changed",
			zap.String("order_id", order.ID),
			zap.String("from", string(prev)),
			zap.String("to", string(order.Status)),
		)
	}
	if note != nil {
		s.published(*note)
	}
	return order, nil
}

// DeleteOrder безвозвратно удаляет заказ. Начисленные баллы и использование купона не откатываются.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return validation.New("missing or invalid fields", "id")
	}
	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}
	s.logger.Info("order deleted", zap.String("order_id", id))
	return nil
}

// GetOrder возвращает заказ владельцу или администратору. Вместо
// идентификатора можно передать номер заказа вида WL2603010001.
func (s *Service) GetOrder(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	lookup := s.repo.GetOrder
	if validation.IsValidOrderNumber(id) {
		lookup = s.repo.GetOrderByNumber
	}
	order, err := lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(order.UserID) {
		return nil, ErrForbidden
	}
	return order, nil
}

// ListOrders возвращает заказы по фильтру. Без фильтра по владельцу список
// доступен только администратору и дополняется количеством заказов по статусам.
func (s *Service) ListOrders(ctx context.Context, actor Actor, f model.OrderFilter) (*OrderList, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validation.New("missing or invalid fields", "status")
	}
	if f.UserID == "" && !actor.Admin {
		f.UserID = actor.UserID
	}
	if f.UserID == "" || !actor.Owns(f.UserID) {
		if !actor.Admin {
			return nil, ErrForbidden
		}
	}

	orders, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}

	res := &OrderList{Orders: orders}
	if actor.Admin && f.UserID == "" {
		res.StatusCounts, err = s.repo.CountOrdersByStatus(ctx)
		if err != nil {
			return nil, fmt.Errorf("count orders: %w", err)
		}
	}
	return res, nil
}
