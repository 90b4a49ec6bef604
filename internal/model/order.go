package model

import "time"

// OrderStatus описывает этап жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses перечисляет статусы в порядке основной цепочки, cancelled последним.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid сообщает, является ли значение известным статусом.
func (s OrderStatus) Valid() bool {
	return s.rank() >= 0 || s == OrderStatusCancelled
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func (s OrderStatus) rank() int {
	switch s {
	case OrderStatusPending:
		return 0
	case OrderStatusConfirmed:
		return 1
	case OrderStatusProcessing:
		return 2
	case OrderStatusShipped:
		return 3
	case OrderStatusDelivered:
		return 4
	}
	return -1
}

// CanTransitionTo проверяет допустимость перехода. Повтор текущего статуса допустим.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	return next.rank() > s.rank()
}

// PaymentStatus описывает состояние оплаты, независимое от статуса заказа.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid сообщает, является ли значение известным статусом оплаты.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodEWallet      PaymentMethod = "e_wallet"
)

// Valid сообщает, является ли значение известным способом оплаты.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodEWallet:
		return true
	}
	return false
}

// Customer содержит контактные данные покупателя на момент оформления.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Address описывает адрес доставки.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	District   string `json:"district,omitempty"`
	Ward       string `json:"ward,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

// Empty сообщает, что адрес не заполнен.
func (a Address) Empty() bool {
	return a.Line1 == "" && a.City == ""
}

// OrderItem описывает позицию заказа со снимком названия и цены.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// Order описывает заказ покупателя.
type Order struct {
	ID              string        `json:"id"`
	Number          string        `json:"orderNumber"`
	UserID          string        `json:"userId"`
	Customer        Customer      `json:"customer"`
	ShippingAddress Address       `json:"shippingAddress"`
	Items           []OrderItem   `json:"items"`
	Subtotal        int64         `json:"subtotal"`
	Discount        int64         `json:"discount"`
	CouponCode      string        `json:"couponCode,omitempty"`
	CouponDiscount  int64         `json:"couponDiscount"`
	ShippingCost    int64         `json:"shippingCost"`
	Total           int64         `json:"total"`
	Status          OrderStatus   `json:"status"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// OrderFilter задаёт выборку заказов. Пустые поля не фильтруют.
type OrderFilter struct {
	UserID string
	Status OrderStatus
	From   *time.Time
	To     *time.Time
}

// StatusCounts содержит количество заказов по статусам.
type StatusCounts map[OrderStatus]int
