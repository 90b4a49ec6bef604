package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/repository"
	"github.com/mmeshcher/wonderland/internal/validation"
)

const slugAttempts = 5

// CreateProductInput описывает новый товар каталога.
type CreateProductInput struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
	Stock    int    `json:"stock"`
}

// CreateProduct добавляет товар. Slug строится из названия, при совпадении
// к нему добавляется короткий суффикс.
func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (*model.Product, error) {
	var c validation.Checker
	c.Require("name", in.Name)
	c.Require("category", in.Category)
	c.Check("price", in.Price > 0)
	c.Check("stock", in.Stock >= 0)
	if err := c.Err(); err != nil {
		return nil, err
	}

	base := slug.Make(in.Name)
	if base == "" {
		base = "product"
	}

	p := &model.Product{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(in.Name),
		Category: strings.TrimSpace(in.Category),
		Price:    in.Price,
		Stock:    in.Stock,
	}

	var err error
	for i := range slugAttempts {
		p.Slug = base
		if i > 0 {
			p.Slug = fmt.Sprintf("%s-%s", base, p.ID[:4*i])
		}
		err = s.repo.CreateProduct(ctx, p)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts возвращает товары, при непустой категории только из неё.
func (s *Service) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	products, err := s.repo.ListProducts(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}
