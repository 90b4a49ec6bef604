package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/validation"
)

const notificationsPageSize = 50

// NotifyInput описывает новое уведомление.
type NotifyInput struct {
	UserID  string                 `json:"userId"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Type    model.NotificationType `json:"type"`
	Link    string                 `json:"link,omitempty"`
	Data    json.RawMessage        `json:"data,omitempty"`
}

// Validate проверяет обязательные поля уведомления.
func (in *NotifyInput) Validate() error {
	if in.Type == "" {
		in.Type = model.NotificationSystem
	}

	var c validation.Checker
	c.Require("userId", in.UserID)
	c.Require("title", in.Title)
	c.Require("message", in.Message)
	c.Check("type", in.Type.Valid())
	c.Check("data", len(in.Data) == 0 || json.Valid(in.Data))
	return c.Err()
}

// NotificationList содержит страницу уведомлений и количество непрочитанных.
type NotificationList struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
}

// Notify создаёт уведомление и ставит его в очередь push-доставки.
func (s *Service) Notify(ctx context.Context, in NotifyInput) (*model.Notification, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var n *model.Notification
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.writeNotification(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.published(*n)
	return n, nil
}

// writeNotification сохраняет уведомление и запись исходящей очереди в текущей транзакции.
// Рассылка подключённым клиентам выполняется вызывающим после фиксации.
func (s *Service) writeNotification(ctx context.Context, in NotifyInput) (*model.Notification, error) {
	n := &model.Notification{
		ID:      uuid.NewString(),
		UserID:  in.UserID,
		Title:   in.Title,
		Message: in.Message,
		Type:    in.Type,
		Link:    in.Link,
		Data:    in.Data,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if s.push != nil {
		if err := s.repo.EnqueuePush(ctx, n.ID); err != nil {
			return nil, fmt.Errorf("enqueue push: %w", err)
		}
	}
	return n, nil
}

func (s *Service) published(n model.Notification) {
	s.metrics.NotificationCreated(string(n.Type))
	if s.publisher != nil {
		s.publisher.Publish(n)
	}
}

// canAccessRecipient сообщает, может ли пользователь работать с уведомлениями адресата.
func canAccessRecipient(actor Actor, recipient string) bool {
	if recipient == model.AdminRecipient {
		return actor.Admin
	}
	return actor.Owns(recipient)
}

// ListNotifications возвращает уведомления адресата, новые первыми.
func (s *Service) ListNotifications(ctx context.Context, actor Actor, recipient string, unreadOnly bool) (*NotificationList, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, validation.New("missing or invalid fields", "userId")
	}
	if !canAccessRecipient(actor, recipient) {
		return nil, ErrForbidden
	}

	items, err := s.repo.ListNotifications(ctx, recipient, unreadOnly, notificationsPageSize)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.repo.CountUnreadNotifications(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}

	if items == nil {
		items = []model.Notification{}
	}
	return &NotificationList{Notifications: items, UnreadCount: unread}, nil
}

func (s *Service) ownedNotification(ctx context.Context, actor Actor, id string) (*model.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validation.New("missing or invalid fields", "id")
	}
	n, err := s.repo.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccessRecipient(actor, n.UserID) {
		return nil, ErrForbidden
	}
	return n, nil
}

// MarkNotificationRead отмечает одно уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, actor Actor, id string) error {
	if _, err := s.ownedNotification(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.MarkNotificationRead(ctx, id)
}

// MarkAllNotificationsRead отмечает прочитанными все уведомления адресата.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, actor Actor, recipient string) (int64, error) {
	if strings.TrimSpace(recipient) == "" {
		return 0, validation.New("missing or invalid fields", "userId")
	}
	if !canAccessRecipient(actor, recipient) {
		return 0, ErrForbidden
	}
	return s.repo.MarkAllNotificationsRead(ctx, recipient)
}

// DeleteNotification удаляет уведомление.
func (s *Service) DeleteNotification(ctx context.Context, actor Actor, id string) error {
	if _, err := s.ownedNotification(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.DeleteNotification(ctx, id)
}

// SubscribePush сохраняет push-подписку браузера пользователя.
func (s *Service) SubscribePush(ctx context.Context, actor Actor, sub model.PushSubscription) error {
	var c validation.Checker
	c.Require("endpoint", sub.Endpoint)
	c.Require("p256dh", sub.P256dh)
	c.Require("auth", sub.Auth)
	if err := c.Err(); err != nil {
		return err
	}
	if actor.UserID == "" {
		return ErrForbidden
	}

	sub.UserID = actor.UserID
	sub.Role = model.RoleUser
	if actor.Admin {
		sub.Role = model.RoleAdmin
	}

	if err := s.repo.SavePushSubscription(ctx, &sub); err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	s.logger.Debug("push subscription saved", zap.String("user_id", sub.UserID), zap.String("role", string(sub.Role)))
	return nil
}

// UnsubscribePush удаляет push-подписку по адресу доставки.
func (s *Service) UnsubscribePush(ctx context.Context, endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return validation.New("missing or invalid fields", "endpoint")
	}
	return s.repo.DeletePushSubscription(ctx, endpoint)
}
