package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/repository"
	"github.com/mmeshcher/wonderland/internal/validation"
)

// GetBalance возвращает счёт пользователя. Для пользователя без операций
// возвращается нулевой счёт, запись в хранилище не создаётся.
func (s *Service) GetBalance(ctx context.Context, userID string) (*model.PointsLedger, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validation.New("missing or invalid fields", "userId")
	}

	l, err := s.repo.GetLedger(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &model.PointsLedger{UserID: userID, Transactions: []model.PointsTransaction{}}, nil
		}
		return nil, err
	}
	if l.Transactions == nil {
		l.Transactions = []model.PointsTransaction{}
	}
	return l, nil
}

// EarnPoints начисляет один балл за каждые полные 1000 единиц суммы заказа.
func (s *Service) EarnPoints(ctx context.Context, userID string, orderAmount int64, orderID string) (*model.PointsLedger, error) {
	var c validation.Checker
	c.Require("userId", userID)
	c.Check("orderAmount", orderAmount > 0)
	if err := c.Err(); err != nil {
		return nil, err
	}

	points := orderAmount / model.PointsEarnDivisor
	if points == 0 {
		return s.GetBalance(ctx, userID)
	}

	return s.mutateLedger(ctx, userID, func(l *model.PointsLedger) (*model.PointsTransaction, error) {
		l.TotalPoints += points
		l.LifetimePoints += points
		desc := "Points earned"
		if orderID != "" {
			desc = "Points earned for order " + orderID
		}
		return &model.PointsTransaction{
			Kind:        model.PointsEarned,
			Points:      points,
			Description: desc,
			OrderID:     orderID,
		}, nil
	})
}

// RedeemPoints списывает баллы. При нехватке баланса счёт не меняется.
func (s *Service) RedeemPoints(ctx context.Context, userID string, points int64, description string) (*model.PointsLedger, error) {
	var c validation.Checker
	c.Require("userId", userID)
	c.Check("points", points > 0)
	if err := c.Err(); err != nil {
		return nil, err
	}

	return s.mutateLedger(ctx, userID, func(l *model.PointsLedger) (*model.PointsTransaction, error) {
		if points > l.TotalPoints {
			return nil, fmt.Errorf("redeem %d of %d points: %w", points, l.TotalPoints, repository.ErrInsufficientBalance)
		}
		l.TotalPoints -= points
		if description == "" {
			description = "Points redeemed"
		}
		return &model.PointsTransaction{
			Kind:        model.PointsRedeemed,
			Points:      points,
			Description: description,
		}, nil
	})
}

// ExpirePoints сгорает не больше баллов, чем есть на счёте. Если сгорать нечему,
// запись в журнал не добавляется.
func (s *Service) ExpirePoints(ctx context.Context, userID string, points int64, description string) (*model.PointsLedger, error) {
	var c validation.Checker
	c.Require("userId", userID)
	c.Check("points", points > 0)
	if err := c.Err(); err != nil {
		return nil, err
	}

	return s.mutateLedger(ctx, userID, func(l *model.PointsLedger) (*model.PointsTransaction, error) {
		expired := min(points, l.TotalPoints)
		if expired == 0 {
			return nil, nil
		}
		l.TotalPoints -= expired
		if description == "" {
			description = "Points expired"
		}
		return &model.PointsTransaction{
			Kind:        model.PointsExpired,
			Points:      expired,
			Description: description,
		}, nil
	})
}

// RedemptionValue возвращает стоимость баллов в денежных единицах.
func RedemptionValue(points int64) int64 {
	return points * model.PointValue
}

// mutateLedger изменяет счёт под блокировкой строки. Если fn не вернула операцию,
// счёт не сохраняется.
func (s *Service) mutateLedger(ctx context.Context, userID string, fn func(l *model.PointsLedger) (*model.PointsTransaction, error)) (*model.PointsLedger, error) {
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "points:"+userID)
		if err != nil {
			return nil, fmt.Errorf("lock ledger: %w", err)
		}
		defer unlock()
	}

	var tx *model.PointsTransaction
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.repo.LockLedger(ctx, userID)
		if err != nil {
			return err
		}

		tx, err = fn(l)
		if err != nil || tx == nil {
			return err
		}
		tx.ID = uuid.NewString()

		if err := s.repo.SaveLedgerBalance(ctx, l); err != nil {
			return err
		}
		return s.repo.AddPointsTransaction(ctx, userID, tx)
	})
	if err != nil {
		return nil, err
	}

	if tx != nil {
		s.metrics.PointsTransaction(string(tx.Kind))
		s.logger.Info("points transaction",
			zap.String("user_id", userID),
			zap.String("kind", string(tx.Kind)),
			zap.Int64("points", tx.Points),
		)
	}
	return s.GetBalance(ctx, userID)
}
