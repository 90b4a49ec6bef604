package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/wonderland/internal/model"
)

const productColumns = `id, slug, name, category, price, stock, rating, review_count, created_at, updated_at`

// CreateProduct сохраняет товар. Занятый slug возвращает ErrDuplicate без прерывания транзакции.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO products (id, slug, name, category, price, stock)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (slug) DO NOTHING
		 RETURNING created_at, updated_at`,
		p.ID, p.Slug, p.Name, p.Category, p.Price, p.Stock,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product slug %s: %w", p.Slug, ErrDuplicate)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProductForUpdate возвращает товар и блокирует его строку до конца транзакции.
func (r *PostgresRepository) GetProductForUpdate(ctx context.Context, id string) (*model.Product, error) {
	row := r.conn(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}
	return p, nil
}

// ListProducts возвращает товары, при непустой категории только из неё.
func (r *PostgresRepository) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// UpdateProductRating записывает агрегированный рейтинг товара.
func (r *PostgresRepository) UpdateProductRating(ctx context.Context, id string, rating float64, reviewCount int) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE products SET rating = $2, review_count = $3, updated_at = NOW() WHERE id = $1`,
		id, rating, reviewCount,
	)
	if err != nil {
		return fmt.Errorf("update product rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanProduct(row scanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Category, &p.Price, &p.Stock,
		&p.Rating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
