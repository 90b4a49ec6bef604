package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/repository"
	"github.com/mmeshcher/wonderland/internal/validation"
)

func TestGetBalance_ZeroShape(t *testing.T) {
	svc, repo := newTestService(t)

	l, err := svc.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", l.UserID)
	assert.Zero(t, l.TotalPoints)
	assert.Zero(t, l.LifetimePoints)
	assert.NotNil(t, l.Transactions)
	assert.Empty(t, l.Transactions)

	// Чтение не создаёт счёт.
	assert.Empty(t, repo.ledgers)
}

func TestEarnPoints(t *testing.T) {
	svc, _ := newTestService(t)

	l, err := svc.EarnPoints(context.Background(), "user-1", 50000, "order-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), l.TotalPoints)
	assert.Equal(t, int64(50), l.LifetimePoints)
	require.Len(t, l.Transactions, 1)
	assert.Equal(t, model.PointsEarned, l.Transactions[0].Kind)
	assert.Equal(t, int64(50), l.Transactions[0].Points)
	assert.Equal(t, "order-1", l.Transactions[0].OrderID)

	l, err = svc.EarnPoints(context.Background(), "user-1", 1999, "order-2")
	require.NoError(t, err)
	assert.Equal(t, int64(51), l.TotalPoints)
	assert.Equal(t, int64(51), l.LifetimePoints)
	assert.Len(t, l.Transactions, 2)
}

func TestEarnPoints_BelowRate(t *testing.T) {
	svc, repo := newTestService(t)

	l, err := svc.EarnPoints(context.Background(), "user-1", 999, "order-1")
	require.NoError(t, err)
	assert.Zero(t, l.TotalPoints)
	assert.Empty(t, l.Transactions)
	assert.Empty(t, repo.ledgers)
}

func TestEarnPoints_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	for _, amount := range []int64{0, -100} {
		_, err := svc.EarnPoints(context.Background(), "user-1", amount, "")
		assert.True(t, validation.IsError(err), "amount %d", amount)
	}
	_, err := svc.EarnPoints(context.Background(), "", 5000, "")
	assert.True(t, validation.IsError(err))
}

func TestRedeemPoints(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.EarnPoints(ctx, "user-1", 30000, "order-1")
	require.NoError(t, err)

	l, err := svc.RedeemPoints(ctx, "user-1", 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(20), l.TotalPoints)
	assert.Equal(t, int64(30), l.LifetimePoints)
	require.Len(t, l.Transactions, 2)
	assert.Equal(t, model.PointsRedeemed, l.Transactions[0].Kind)
	assert.Equal(t, int64(10), l.Transactions[0].Points)
}

func TestRedeemPoints_Insufficient(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.EarnPoints(ctx, "user-1", 30000, "order-1")
	require.NoError(t, err)

	_, err = svc.RedeemPoints(ctx, "user-1", 40, "")
	require.ErrorIs(t, err, repository.ErrInsufficientBalance)

	l, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), l.TotalPoints)
	assert.Len(t, l.Transactions, 1)
}

func TestRedeemPoints_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RedeemPoints(context.Background(), "user-1", 0, "")
	assert.True(t, validation.IsError(err))
}

func TestExpirePoints_Clamps(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.EarnPoints(ctx, "user-1", 10000, "order-1")
	require.NoError(t, err)

	l, err := svc.ExpirePoints(ctx, "user-1", 25, "")
	require.NoError(t, err)
	assert.Zero(t, l.TotalPoints)
	assert.Equal(t, int64(10), l.LifetimePoints)
	require.Len(t, l.Transactions, 2)
	assert.Equal(t, model.PointsExpired, l.Transactions[0].Kind)
	assert.Equal(t, int64(10), l.Transactions[0].Points)

	// Пустой счёт: запись не добавляется.
	l, err = svc.ExpirePoints(ctx, "user-1", 5, "")
	require.NoError(t, err)
	assert.Len(t, l.Transactions, 2)
}

func TestLedgerInvariants(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ops := []func() error{
		func() error { _, err := svc.EarnPoints(ctx, "user-1", 12000, "o1"); return err },
		func() error { _, err := svc.RedeemPoints(ctx, "user-1", 5, ""); return err },
		func() error { _, err := svc.RedeemPoints(ctx, "user-1", 100, ""); return err },
		func() error { _, err := svc.ExpirePoints(ctx, "user-1", 3, ""); return err },
		func() error { _, err := svc.EarnPoints(ctx, "user-1", 4000, "o2"); return err },
		func() error { _, err := svc.ExpirePoints(ctx, "user-1", 1000, ""); return err },
	}

	var lifetime int64
	for _, op := range ops {
		_ = op()
		l, err := svc.GetBalance(ctx, "user-1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, l.TotalPoints, int64(0))
		assert.GreaterOrEqual(t, l.LifetimePoints, lifetime)
		lifetime = l.LifetimePoints
	}
	assert.Equal(t, int64(16), lifetime)
}

// Проверяет сервисный поток под сериализованными транзакциями memRepo.
// Блокировку строки баланса (FOR UPDATE в LockLedger) этот тест не покрывает,
// она проверяется только на Postgres.
func TestRedeemPoints_Concurrent(t *testing.T) {
	locker := &countingLocker{}
	svc, _ := newTestService(t, WithLocker(locker))
	ctx := context.Background()
	_, err := svc.EarnPoints(ctx, "user-1", 10000, "o1")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RedeemPoints(ctx, "user-1", 1, ""); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	l, err := svc.GetBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 10, success)
	assert.Zero(t, l.TotalPoints)
	assert.Contains(t, locker.keys, "points:user-1")
}

func TestRedemptionValue(t *testing.T) {
	assert.Equal(t, int64(5000), RedemptionValue(50))
	assert.Zero(t, RedemptionValue(0))
}
