package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/wonderland/internal/model"
)

const reviewColumns = `id, product_id, user_id, user_name, rating, comment, images, created_at`

// CreateReview сохраняет отзыв. Повторный отзыв того же пользователя о товаре возвращает ErrDuplicate.
func (r *PostgresRepository) CreateReview(ctx context.Context, rv *model.Review) error {
	images := rv.Images
	if images == nil {
		images = []string{}
	}

	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO reviews (id, product_id, user_id, user_name, rating, comment, images)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (product_id, user_id) DO NOTHING
		 RETURNING created_at`,
		rv.ID, rv.ProductID, rv.UserID, rv.UserName, rv.Rating, rv.Comment, images,
	).Scan(&rv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("review of %s by %s: %w", rv.ProductID, rv.UserID, ErrDuplicate)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetReview возвращает отзыв по идентификатору.
func (r *PostgresRepository) GetReview(ctx context.Context, id string) (*model.Review, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)

	rv, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("review %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// DeleteReview удаляет отзыв.
func (r *PostgresRepository) DeleteReview(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListReviews возвращает отзывы о товаре, новые первыми.
func (r *PostgresRepository) ListReviews(ctx context.Context, productID string) ([]model.Review, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE product_id = $1 ORDER BY created_at DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var res []model.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		res = append(res, *rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ProductRatings возвращает оценки всех отзывов о товаре.
func (r *PostgresRepository) ProductRatings(ctx context.Context, productID string) ([]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT rating FROM reviews WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("select ratings: %w", err)
	}
	defer rows.Close()

	var res []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		res = append(res, rating)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func scanReview(row scanner) (*model.Review, error) {
	var rv model.Review
	err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.Images, &rv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}
