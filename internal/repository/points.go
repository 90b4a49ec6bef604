package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/wonderland/internal/model"
)

// GetLedger возвращает баланс и историю операций пользователя.
func (r *PostgresRepository) GetLedger(ctx context.Context, userID string) (*model.PointsLedger, error) {
	l := model.PointsLedger{UserID: userID}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT total_points, lifetime_points FROM point_ledgers WHERE user_id = $1`,
		userID,
	).Scan(&l.TotalPoints, &l.LifetimePoints)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ledger %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("get ledger: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, kind, points, description, order_id, created_at
		 FROM point_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select point transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    model.PointsTransaction
			kind string
		)
		if err := rows.Scan(&t.ID, &kind, &t.Points, &t.Description, &t.OrderID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan point transaction: %w", err)
		}
		t.Kind = model.PointsKind(kind)
		l.Transactions = append(l.Transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &l, nil
}

// LockLedger создаёт счёт пользователя при первом обращении и блокирует его строку
// до конца транзакции. История операций не загружается.
func (r *PostgresRepository) LockLedger(ctx context.Context, userID string) (*model.PointsLedger, error) {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO point_ledgers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("create ledger: %w", err)
	}

	l := model.PointsLedger{UserID: userID}
	err = r.conn(ctx).QueryRow(ctx,
		`SELECT total_points, lifetime_points FROM point_ledgers WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&l.TotalPoints, &l.LifetimePoints)
	if err != nil {
		return nil, fmt.Errorf("lock ledger for update: %w", err)
	}

	return &l, nil
}

// SaveLedgerBalance сохраняет баланс счёта.
func (r *PostgresRepository) SaveLedgerBalance(ctx context.Context, l *model.PointsLedger) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE point_ledgers SET total_points = $2, lifetime_points = $3, updated_at = NOW() WHERE user_id = $1`,
		l.UserID, l.TotalPoints, l.LifetimePoints,
	)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	return nil
}

// AddPointsTransaction добавляет запись в журнал операций счёта.
func (r *PostgresRepository) AddPointsTransaction(ctx context.Context, userID string, t *model.PointsTransaction) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO point_transactions (id, user_id, kind, points, description, order_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		t.ID, userID, string(t.Kind), t.Points, t.Description, t.OrderID,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert point transaction: %w", err)
	}
	return nil
}
