package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/report"
	"github.com/mmeshcher/wonderland/internal/validation"
)

// SalesReport строит отчёт о продажах за период [from, to).
func (s *Service) SalesReport(ctx context.Context, from, to *time.Time) (*report.Sales, error) {
	if from != nil && to != nil && !to.After(*from) {
		return nil, validation.New("missing or invalid fields", "to")
	}

	orders, err := s.repo.ListOrders(ctx, model.OrderFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	res := report.BuildSales(orders, time.UTC)
	res.From, res.To = from, to
	return res, nil
}

// ExportOrders возвращает заказы для выгрузки администратором.
func (s *Service) ExportOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, validation.New("missing or invalid fields", "status")
	}
	orders, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
