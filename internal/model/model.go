// Package model содержит доменные сущности магазина Wonderland.
package model

import "time"

// Role определяет уровень доступа учётной записи.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AdminRecipient задаёт адресата уведомлений, общего для всех администраторов.
const AdminRecipient = "admin"

// User представляет учётную запись покупателя или администратора.
type User struct {
	ID           string
	Email        string
	Name         string
	Phone        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Product содержит проекцию карточки товара, необходимая для отзывов и купонов.
type Product struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"reviewCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Review описывает отзыв пользователя о товаре.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"createdAt"`
}

// DiscountType описывает способ расчёта скидки по купону.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon описывает промокод и счётчик его использований.
type Coupon struct {
	ID             string       `json:"id"`
	Code           string       `json:"code"`
	DiscountType   DiscountType `json:"discountType"`
	DiscountValue  int64        `json:"discountValue"`
	MinOrderAmount *int64       `json:"minOrderAmount,omitempty"`
	MaxDiscount    *int64       `json:"maxDiscount,omitempty"`
	UsageLimit     *int         `json:"usageLimit,omitempty"`
	UsedCount      int          `json:"usedCount"`
	StartsAt       *time.Time   `json:"startsAt,omitempty"`
	ExpiresAt      *time.Time   `json:"expiresAt,omitempty"`
	IsActive       bool         `json:"isActive"`
	Categories     []string     `json:"categories"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Exhausted сообщает, исчерпан ли лимит использований купона.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}
