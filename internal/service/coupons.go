package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/repository"
	"github.com/mmeshcher/wonderland/internal/validation"
)

// CreateCouponInput содержит параметры нового купона.
type CreateCouponInput struct {
	Code           string             `json:"code"`
	DiscountType   model.DiscountType `json:"discountType"`
	DiscountValue  int64              `json:"discountValue"`
	MinOrderAmount *int64             `json:"minOrderAmount,omitempty"`
	MaxDiscount    *int64             `json:"maxDiscount,omitempty"`
	UsageLimit     *int               `json:"usageLimit,omitempty"`
	StartsAt       *time.Time         `json:"startsAt,omitempty"`
	ExpiresAt      *time.Time         `json:"expiresAt,omitempty"`
	IsActive       *bool              `json:"isActive,omitempty"`
	Categories     []string           `json:"categories,omitempty"`
}

// Validate проверяет параметры купона.
func (in *CreateCouponInput) Validate() error {
	in.Code = validation.NormalizeCouponCode(in.Code)

	var c validation.Checker
	c.Require("code", in.Code)
	c.Check("discountType", in.DiscountType == model.DiscountPercentage || in.DiscountType == model.DiscountFixed)
	c.Check("discountValue", in.DiscountValue > 0)
	if in.DiscountType == model.DiscountPercentage {
		c.Check("discountValue", in.DiscountValue <= 100)
	}
	c.Check("minOrderAmount", in.MinOrderAmount == nil || *in.MinOrderAmount >= 0)
	c.Check("maxDiscount", in.MaxDiscount == nil || *in.MaxDiscount > 0)
	c.Check("usageLimit", in.UsageLimit == nil || *in.UsageLimit > 0)
	c.Check("expiresAt", in.StartsAt == nil || in.ExpiresAt == nil || in.ExpiresAt.After(*in.StartsAt))
	return c.Err()
}

// ValidateCouponInput описывает проверку купона для корзины.
type ValidateCouponInput struct {
	Code        string   `json:"code"`
	OrderAmount int64    `json:"orderAmount"`
	Categories  []string `json:"categories,omitempty"`
}

// CouponQuote описывает скидку, которую предоставит купон.
type CouponQuote struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

// CreateCoupon сохраняет новый купон.
func (s *Service) CreateCoupon(ctx context.Context, in CreateCouponInput) (*model.Coupon, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := &model.Coupon{
		ID:             uuid.NewString(),
		Code:           in.Code,
		DiscountType:   in.DiscountType,
		DiscountValue:  in.DiscountValue,
		MinOrderAmount: in.MinOrderAmount,
		MaxDiscount:    in.MaxDiscount,
		UsageLimit:     in.UsageLimit,
		StartsAt:       in.StartsAt,
		ExpiresAt:      in.ExpiresAt,
		IsActive:       in.IsActive == nil || *in.IsActive,
		Categories:     in.Categories,
	}
	if c.Categories == nil {
		c.Categories = []string{}
	}

	if err := s.repo.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("coupon created", zap.String("code", c.Code))
	return c, nil
}

// ListCoupons возвращает все купоны.
func (s *Service) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	coupons, err := s.repo.ListCoupons(ctx)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	if coupons == nil {
		coupons = []model.Coupon{}
	}
	return coupons, nil
}

// ValidateCoupon рассчитывает скидку купона для суммы заказа, не расходуя его.
func (s *Service) ValidateCoupon(ctx context.Context, in ValidateCouponInput) (*CouponQuote, error) {
	code := validation.NormalizeCouponCode(in.Code)
	var c validation.Checker
	c.Require("code", code)
	c.Check("orderAmount", in.OrderAmount > 0)
	if err := c.Err(); err != nil {
		return nil, err
	}

	coupon, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validation.New("coupon not found", "code")
		}
		return nil, err
	}

	now := s.now()
	switch {
	case !coupon.IsActive:
		return nil, validation.New("coupon is not active", "code")
	case coupon.StartsAt != nil && now.Before(*coupon.StartsAt):
		return nil, validation.New("coupon is not yet valid", "code")
	case coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt):
		return nil, validation.New("coupon has expired", "code")
	case coupon.Exhausted():
		return nil, fmt.Errorf("coupon %s: %w", code, repository.ErrCouponExhausted)
	case coupon.MinOrderAmount != nil && in.OrderAmount < *coupon.MinOrderAmount:
		return nil, validation.New(fmt.Sprintf("minimum order amount is %d", *coupon.MinOrderAmount), "orderAmount")
	case !categoriesMatch(coupon.Categories, in.Categories):
		return nil, validation.New("coupon does not apply to these products", "categories")
	}

	discount := couponDiscount(coupon, in.OrderAmount)
	return &CouponQuote{Code: coupon.Code, Discount: discount, Total: in.OrderAmount - discount}, nil
}

// categoriesMatch сообщает, подходит ли корзина под ограничение купона по категориям.
func categoriesMatch(allowed, cart []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, c := range cart {
		if slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(a, c) }) {
			return true
		}
	}
	return false
}

// couponDiscount возвращает скидку купона, не превышающую сумму заказа.
func couponDiscount(c *model.Coupon, amount int64) int64 {
	var discount int64
	switch c.DiscountType {
	case model.DiscountPercentage:
		discount = decimal.NewFromInt(amount).
			Mul(decimal.NewFromInt(c.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
		if c.MaxDiscount != nil {
			discount = min(discount, *c.MaxDiscount)
		}
	case model.DiscountFixed:
		discount = c.DiscountValue
	}
	return min(discount, amount)
}
