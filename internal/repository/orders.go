package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/wonderland/internal/model"
)

const orderColumns = `id, number, user_id, customer, shipping_address, items,
	subtotal, discount, coupon_code, coupon_discount, shipping_cost, total,
	status, payment_method, payment_status, notes, created_at, updated_at`

// CreateOrder сохраняет новый заказ. При коллизии номера возвращает ErrOrderNumberTaken,
// не прерывая текущую транзакцию.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal address: %w", err)
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx,
		`INSERT INTO orders (id, number, user_id, customer, shipping_address, items,
			subtotal, discount, coupon_code, coupon_discount, shipping_cost, total,
			status, payment_method, payment_status, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (number) DO NOTHING
		 RETURNING created_at, updated_at`,
		o.ID, o.Number, o.UserID, customer, address, items,
		o.Subtotal, o.Discount, o.CouponCode, o.CouponDiscount, o.ShippingCost, o.Total,
		string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus), o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrOrderNumberTaken, o.Number)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetOrderByNumber возвращает заказ по его номеру.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE number = $1`,
		number,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", number, ErrNotFound)
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return o, nil
}

// GetOrderForUpdate возвращает заказ и блокирует его строку до конца транзакции.
func (r *PostgresRepository) GetOrderForUpdate(ctx context.Context, id string) (*model.Order, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("lock order for update: %w", err)
	}
	return o, nil
}

// UpdateOrderStatus сохраняет статус заказа и статус оплаты.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus, payment model.PaymentStatus) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE orders SET status = $2, payment_status = $3, updated_at = NOW() WHERE id = $1`,
		id, string(status), string(payment),
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteOrder безвозвратно удаляет заказ.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListOrders возвращает заказы по фильтру, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// CountOrdersByStatus возвращает количество заказов по каждому статусу.
func (r *PostgresRepository) CountOrdersByStatus(ctx context.Context) (model.StatusCounts, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	defer rows.Close()

	counts := make(model.StatusCounts, len(model.OrderStatuses))
	for _, s := range model.OrderStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[model.OrderStatus(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}

func scanOrder(row scanner) (*model.Order, error) {
	var (
		o                        model.Order
		customer, address, items []byte
		status, method, payment  string
		createdAt, updatedAt     time.Time
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &customer, &address, &items,
		&o.Subtotal, &o.Discount, &o.CouponCode, &o.CouponDiscount, &o.ShippingCost, &o.Total,
		&status, &method, &payment, &o.Notes, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal address: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}

	o.Status = model.OrderStatus(status)
	o.PaymentMethod = model.PaymentMethod(method)
	o.PaymentStatus = model.PaymentStatus(payment)
	o.CreatedAt = createdAt
	o.UpdatedAt = updatedAt

	return &o, nil
}
