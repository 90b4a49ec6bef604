// Package lock содержит распределённую блокировку на Redis для сериализации изменений
// одной сущности между экземплярами сервиса.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ErrNotAcquired возвращается, если блокировку не удалось получить до истечения контекста.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker выдаёт блокировки с ограниченным временем жизни.
type Locker struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
	poll   time.Duration
}

// NewLocker создаёт блокировку поверх клиента Redis. Для nil-клиента возвращает nil.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Locker{
		client: client,
		script: redis.NewScript(releaseScript),
		ttl:    ttl,
		poll:   50 * time.Millisecond,
	}
}

// TryLock пытается однократно захватить ключ и возвращает токен владельца.
func (l *Locker) TryLock(ctx context.Context, key string) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return token, ok, nil
}

// Release снимает блокировку, только если она всё ещё принадлежит владельцу токена.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// Lock ожидает захвата ключа и возвращает функцию освобождения.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	for {
		token, ok, err := l.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = l.Release(releaseCtx, key, token)
			}, nil
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-timer.C:
		}
	}
}
