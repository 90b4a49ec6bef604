package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/wonderland/internal/metrics"
	"github.com/mmeshcher/wonderland/internal/model"
	"github.com/mmeshcher/wonderland/internal/push"
)

const (
	pushBatchSize   = 100
	pushMaxAttempts = 5
	// pushLease ограничивает время, на которое экземпляр забирает запись очереди.
	pushLease = time.Minute
)

// StartPushRelay доставляет уведомления из исходящей очереди до отмены ctx.
// Без настроенного отправителя возвращается сразу.
func (s *Service) StartPushRelay(ctx context.Context, interval time.Duration) {
	if s.push == nil {
		return
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processPushBatch(ctx)
		}
	}
}

func (s *Service) processPushBatch(ctx context.Context) {
	jobs, err := s.repo.ClaimPushJobs(ctx, pushBatchSize, pushLease)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("claim push jobs", zap.Error(err))
		}
		return
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		s.deliver(ctx, job)
	}
}

// deliver отправляет уведомление на все подписки адресата. Ошибка одной подписки
// не мешает остальным. Запись повторяется, только если не удалась ни одна доставка.
func (s *Service) deliver(ctx context.Context, job model.PushJob) {
	log := s.logger.With(zap.Int64("job_id", job.ID), zap.String("notification_id", job.Notification.ID))

	subs, err := s.repo.PushSubscriptionsFor(ctx, job.Notification.UserID)
	if err != nil {
		log.Error("load push subscriptions", zap.Error(err))
		return
	}

	payload, err := push.EncodePayload(job.Notification)
	if err != nil {
		log.Error("encode push payload", zap.Error(err))
		return
	}

	var sent, failed int
	for _, sub := range subs {
		err := s.push.Send(ctx, sub, payload)
		switch {
		case err == nil:
			sent++
			s.metrics.PushDelivery(metrics.PushResultSent)
		case errors.Is(err, push.ErrGone):
			s.metrics.PushDelivery(metrics.PushResultGone)
			if err := s.repo.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
				log.Warn("delete gone push subscription", zap.Error(err))
			}
		default:
			failed++
			s.metrics.PushDelivery(metrics.PushResultFailed)
			log.Warn("push delivery failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}

	if failed > 0 && sent == 0 {
		if err := s.repo.RetryPushJob(ctx, job.ID, pushMaxAttempts); err != nil {
			log.Error("reschedule push job", zap.Error(err))
		}
		return
	}
	if err := s.repo.CompletePushJob(ctx, job.ID); err != nil {
		log.Error("complete push job", zap.Error(err))
	}
}
