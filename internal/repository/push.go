package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/wonderland/internal/model"
)

const (
	pushStatusPending = "pending"
	pushStatusDone    = "done"
	pushStatusFailed  = "failed"
)

// EnqueuePush ставит уведомление в исходящую очередь push-доставки.
func (r *PostgresRepository) EnqueuePush(ctx context.Context, notificationID string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO push_outbox (notification_id, status) VALUES ($1, $2)`,
		notificationID, pushStatusPending,
	)
	if err != nil {
		return fmt.Errorf("enqueue push: %w", err)
	}
	return nil
}

// claimPushJobsQuery арендует ожидающие записи очереди: строки, захваченные другим
// экземпляром, пропускаются, а аренда продлевает locked_until. Запись, по которой
// экземпляр не отчитался, возвращается в выборку после истечения аренды.
const claimPushJobsQuery = `WITH claimed AS (
	SELECT id FROM push_outbox
	WHERE status = $1 AND (locked_until IS NULL OR locked_until < NOW())
	ORDER BY created_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
), leased AS (
	UPDATE push_outbox o
	SET locked_until = NOW() + make_interval(secs => $3), updated_at = NOW()
	FROM claimed
	WHERE o.id = claimed.id
	RETURNING o.id, o.attempts, o.notification_id, o.created_at
)
SELECT l.id, l.attempts, n.id, n.user_id, n.title, n.message, n.type, n.read, n.link, n.data, n.created_at
FROM leased l
JOIN notifications n ON n.id = l.notification_id
ORDER BY l.created_at`

// ClaimPushJobs арендует до limit ожидающих доставки уведомлений на время lease.
func (r *PostgresRepository) ClaimPushJobs(ctx context.Context, limit int, lease time.Duration) ([]model.PushJob, error) {
	rows, err := r.conn(ctx).Query(ctx, claimPushJobsQuery, pushStatusPending, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim push jobs: %w", err)
	}
	defer rows.Close()

	var res []model.PushJob
	for rows.Next() {
		var (
			job   model.PushJob
			ntype string
			data  []byte
		)
		n := &job.Notification
		if err := rows.Scan(&job.ID, &job.Attempts, &n.ID, &n.UserID, &n.Title, &n.Message,
			&ntype, &n.Read, &n.Link, &data, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push job: %w", err)
		}
		n.Type = model.NotificationType(ntype)
		if len(data) > 0 {
			n.Data = data
		}
		res = append(res, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CompletePushJob отмечает запись очереди обработанной.
func (r *PostgresRepository) CompletePushJob(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE push_outbox SET status = $2, attempts = attempts + 1, locked_until = NULL, updated_at = NOW() WHERE id = $1`,
		id, pushStatusDone,
	)
	if err != nil {
		return fmt.Errorf("complete push job: %w", err)
	}
	return nil
}

// RetryPushJob увеличивает счётчик попыток и снимает запись с очереди, когда попытки исчерпаны.
func (r *PostgresRepository) RetryPushJob(ctx context.Context, id int64, maxAttempts int) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE push_outbox
		 SET attempts = attempts + 1,
		     status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END,
		     locked_until = NULL,
		     updated_at = NOW()
		 WHERE id = $1`,
		id, maxAttempts, pushStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("retry push job: %w", err)
	}
	return nil
}

// SavePushSubscription сохраняет или обновляет подписку по адресу точки доставки.
func (r *PostgresRepository) SavePushSubscription(ctx context.Context, s *model.PushSubscription) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO push_subscriptions (endpoint, p256dh, auth, user_id, role)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (endpoint) DO UPDATE
		 SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth, user_id = EXCLUDED.user_id, role = EXCLUDED.role
		 RETURNING created_at`,
		s.Endpoint, s.P256dh, s.Auth, s.UserID, string(s.Role),
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}

// DeletePushSubscription удаляет подписку. Отсутствие подписки ошибкой не считается.
func (r *PostgresRepository) DeletePushSubscription(ctx context.Context, endpoint string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// PushSubscriptionsFor возвращает подписки адресата: для admin — все подписки администраторов.
func (r *PostgresRepository) PushSubscriptionsFor(ctx context.Context, recipient string) ([]model.PushSubscription, error) {
	query := `SELECT endpoint, p256dh, auth, user_id, role, created_at FROM push_subscriptions WHERE user_id = $1`
	arg := recipient
	if recipient == model.AdminRecipient {
		query = `SELECT endpoint, p256dh, auth, user_id, role, created_at FROM push_subscriptions WHERE role = $1`
		arg = string(model.RoleAdmin)
	}

	rows, err := r.conn(ctx).Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("select push subscriptions: %w", err)
	}
	defer rows.Close()

	var res []model.PushSubscription
	for rows.Next() {
		var (
			s    model.PushSubscription
			role string
		)
		if err := rows.Scan(&s.Endpoint, &s.P256dh, &s.Auth, &s.UserID, &role, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		s.Role = model.Role(role)
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}
