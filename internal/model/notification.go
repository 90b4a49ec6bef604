package model

import (
	"encoding/json"
	"time"
)

// NotificationType классифицирует уведомления.
type NotificationType string

const (
	NotificationOrder   NotificationType = "order"
	NotificationProduct NotificationType = "product"
	NotificationMessage NotificationType = "message"
	NotificationPromo   NotificationType = "promo"
	NotificationSystem  NotificationType = "system"
)

// Valid сообщает, является ли значение известным типом уведомления.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationOrder, NotificationProduct, NotificationMessage, NotificationPromo, NotificationSystem:
		return true
	}
	return false
}

// Notification описывает уведомление внутри приложения.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	Link      string           `json:"link,omitempty"`
	Data      json.RawMessage  `json:"data,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// PushSubscription описывает зарегистрированную браузером точку доставки push-уведомлений.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// PushJob описывает ожидающую доставки запись исходящей очереди push-уведомлений.
type PushJob struct {
	ID           int64
	Attempts     int
	Notification Notification
}
