// Package push предоставляет клиент доставки Web Push уведомлений.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/mmeshcher/wonderland/internal/model"
)

// ErrGone возвращается, если сервис доставки сообщил, что подписка больше не существует.
var ErrGone = errors.New("push subscription gone")

// Client инкапсулирует подписанную VAPID-ключами отправку push-уведомлений.
type Client struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	httpClient *http.Client
}

// Payload описывает тело push-сообщения, которое разбирает service worker браузера.
type Payload struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Type  string `json:"type"`
	Link  string `json:"link,omitempty"`
}

// NewClient создаёт клиент. Без пары VAPID-ключей возвращает nil: доставка отключена.
func NewClient(publicKey, privateKey, subscriber string) *Client {
	if publicKey == "" || privateKey == "" {
		return nil
	}
	return &Client{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		ttl:        24 * 60 * 60,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// EncodePayload формирует тело push-сообщения для уведомления.
func EncodePayload(n model.Notification) ([]byte, error) {
	body, err := json.Marshal(Payload{
		ID:    n.ID,
		Title: n.Title,
		Body:  n.Message,
		Type:  string(n.Type),
		Link:  n.Link,
	})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return body, nil
}

// Send доставляет сообщение на одну точку подписки.
func (c *Client) Send(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	if c == nil {
		return fmt.Errorf("push client not configured")
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      c.httpClient,
		Subscriber:      c.subscriber,
		TTL:             c.ttl,
		VAPIDPublicKey:  c.publicKey,
		VAPIDPrivateKey: c.privateKey,
	})
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrGone, sub.Endpoint)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}
