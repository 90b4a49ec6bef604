// Package main запускает HTTP-сервер магазина Wonderland.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/wonderland/internal/config"
	"github.com/mmeshcher/wonderland/internal/handler"
	"github.com/mmeshcher/wonderland/internal/lock"
	"github.com/mmeshcher/wonderland/internal/metrics"
	"github.com/mmeshcher/wonderland/internal/middleware"
	"github.com/mmeshcher/wonderland/internal/push"
	"github.com/mmeshcher/wonderland/internal/repository"
	"github.com/mmeshcher/wonderland/internal/service"
	"github.com/mmeshcher/wonderland/internal/stream"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	m := metrics.New()
	hub := stream.NewHub(logger)
	defer hub.Close()

	opts := []service.Option{
		service.WithPublisher(hub),
		service.WithMetrics(m),
		service.WithAdminEmails(cfg.AdminEmails),
	}

	if cfg.PushEnabled() {
		opts = append(opts, service.WithPush(push.NewClient(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)))
	} else {
		sugar.Info("web push disabled: VAPID keys are not configured")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts = append(opts, service.WithLocker(lock.NewLocker(rdb, cfg.LockTTL)))
	}

	svc := service.NewService(repo, logger, opts...)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is not set: tokens will not survive a restart")
	}

	h := handler.NewHandler(svc, logger, authMiddleware,
		handler.WithStream(hub),
		handler.WithPinger(repo),
		handler.WithMetricsHandler(m.Handler()),
	)

	r := h.SetupRouter(m)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая доставка push-уведомлений из очереди
	g.Go(func() error {
		svc.StartPushRelay(ctx, cfg.PushInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting wonderland server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
