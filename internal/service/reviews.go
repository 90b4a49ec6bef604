package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/validation"
)

// AddReviewInput описывает новый отзыв о товаре.
type AddReviewInput struct {
	ProductID string   `json:"productId"`
	UserID    string   `json:"userId"`
	UserName  string   `json:"userName"`
	Rating    int      `json:"rating"`
	Comment   string   `json:"comment"`
	Images    []string `json:"images,omitempty"`
}

// Validate проверяет обязательные поля отзыва.
func (in AddReviewInput) Validate() error {
	var c validation.Checker
	c.Require("productId", in.ProductID)
	c.Require("userId", in.UserID)
	c.Require("comment", in.Comment)
	c.Check("rating", validation.IsValidRating(in.Rating))
	return c.Err()
}

// averageRating возвращает среднюю оценку, округлённую до одного знака.
func averageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromInt(int64(r)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(ratings)))).Round(1).InexactFloat64()
}

// AddReview сохраняет отзыв и пересчитывает рейтинг товара в одной транзакции.
// Строка товара блокируется до чтения оценок, параллельные отзывы пересчитываются по очереди.
func (s *Service) AddReview(ctx context.Context, in AddReviewInput) (*model.Review, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	rv := &model.Review{
		ID:        uuid.NewString(),
		ProductID: in.ProductID,
		UserID:    in.UserID,
		UserName:  in.UserName,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		Images:    in.Images,
	}
	if rv.Images == nil {
		rv.Images = []string{}
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetProductForUpdate(ctx, rv.ProductID); err != nil {
			return err
		}
		if err := s.repo.CreateReview(ctx, rv); err != nil {
			return err
		}
		return s.recomputeRating(ctx, rv.ProductID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("review added",
		zap.String("review_id", rv.ID),
		zap.String("product_id", rv.ProductID),
		zap.Int("rating", rv.Rating),
	)
	return rv, nil
}

// DeleteReview удаляет отзыв. Непустой requesterID должен совпадать с автором отзыва.
func (s *Service) DeleteReview(ctx context.Context, reviewID, requesterID string) error {
	if strings.TrimSpace(reviewID) == "" {
		return validation.New("missing or invalid fields", "id")
	}

	return s.repo.WithinTx(ctx, func(ctx context.Context) error {
		rv, err := s.repo.GetReview(ctx, reviewID)
		if err != nil {
			return err
		}
		if requesterID != "" && requesterID != rv.UserID {
			return ErrForbidden
		}
		if _, err := s.repo.GetProductForUpdate(ctx, rv.ProductID); err != nil {
			return err
		}
		if err := s.repo.DeleteReview(ctx, reviewID); err != nil {
			return err
		}
		return s.recomputeRating(ctx, rv.ProductID)
	})
}

// recomputeRating пересчитывает рейтинг по сохранённым оценкам. Вызывается под
// блокировкой строки товара.
func (s *Service) recomputeRating(ctx context.Context, productID string) error {
	ratings, err := s.repo.ProductRatings(ctx, productID)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	return s.repo.UpdateProductRating(ctx, productID, averageRating(ratings), len(ratings))
}

// ListReviews возвращает отзывы о товаре, новые первыми.
func (s *Service) ListReviews(ctx context.Context, productID string) ([]model.Review, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, validation.New("missing or invalid fields", "productId")
	}
	reviews, err := s.repo.ListReviews(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	return reviews, nil
}
