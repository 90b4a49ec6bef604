package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/wonderland/internal/model"
)

const couponColumns = `id, code, discount_type, discount_value, min_order_amount, max_discount,
	usage_limit, used_count, starts_at, expires_at, is_active, categories, created_at`

// CreateCoupon сохраняет новый купон.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, c *model.Coupon) error {
	categories := c.Categories
	if categories == nil {
		categories = []string{}
	}

	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO coupons (id, code, discount_type, discount_value, min_order_amount, max_discount,
			usage_limit, starts_at, expires_at, is_active, categories)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		c.ID, c.Code, string(c.DiscountType), c.DiscountValue, c.MinOrderAmount, c.MaxDiscount,
		c.UsageLimit, c.StartsAt, c.ExpiresAt, c.IsActive, categories,
	).Scan(&c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("coupon %s: %w", c.Code, ErrDuplicate)
		}
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

// GetCouponByCode возвращает купон по нормализованному коду.
func (r *PostgresRepository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)

	c, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("coupon %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// ListCoupons возвращает все купоны, новые первыми.
func (r *PostgresRepository) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select coupons: %w", err)
	}
	defer rows.Close()

	var res []model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// RedeemCoupon атомарно увеличивает счётчик использований, если купон активен,
// действует в момент now и лимит ещё не исчерпан.
func (r *PostgresRepository) RedeemCoupon(ctx context.Context, code string, now time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE coupons
		 SET used_count = used_count + 1
		 WHERE code = $1
		   AND is_active
		   AND (usage_limit IS NULL OR used_count < usage_limit)
		   AND (starts_at IS NULL OR starts_at <= $2)
		   AND (expires_at IS NULL OR expires_at > $2)`,
		code, now,
	)
	if err != nil {
		return fmt.Errorf("redeem coupon: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	c, err := r.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("coupon %s: %w", code, ErrCouponUnavailable)
		}
		return err
	}
	if c.IsActive && c.Exhausted() {
		return fmt.Errorf("coupon %s: %w", code, ErrCouponExhausted)
	}
	return fmt.Errorf("coupon %s: %w", code, ErrCouponUnavailable)
}

func scanCoupon(row scanner) (*model.Coupon, error) {
	var (
		c     model.Coupon
		dtype string
	)
	err := row.Scan(
		&c.ID, &c.Code, &dtype, &c.DiscountValue, &c.MinOrderAmount, &c.MaxDiscount,
		&c.UsageLimit, &c.UsedCount, &c.StartsAt, &c.ExpiresAt, &c.IsActive, &c.Categories, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.DiscountType = model.DiscountType(dtype)
	return &c, nil
}
