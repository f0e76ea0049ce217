// Package main запускает HTTP-сервер сервиса бустмарт.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akazantsev/boostmart/internal/boost"
	"github.com/akazantsev/boostmart/internal/config"
	"github.com/akazantsev/boostmart/internal/handler"
	"github.com/akazantsev/boostmart/internal/lifecycle"
	"github.com/akazantsev/boostmart/internal/middleware"
	"github.com/akazantsev/boostmart/internal/notify"
	"github.com/akazantsev/boostmart/internal/payment"
	"github.com/akazantsev/boostmart/internal/pricing"
	"github.com/akazantsev/boostmart/internal/repository"
	"github.com/akazantsev/boostmart/internal/service"
	"github.com/akazantsev/boostmart/internal/validation"
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
	defer repo.Close()

	store := pricing.NewStore()

	// Таблицы цен загружаются из базы один раз при старте; дальше они
	// заменяются только загрузкой через админский API.
	tables, err := repo.LoadRateTables(context.Background())
	if err != nil {
		sugar.Fatalw("rate tables load error", "error", err.Error())
	}
	for code, rows := range tables {
		store.Load(code, rows)
	}
	sugar.Infow("rate tables loaded", "count", len(tables))

	notifier := notify.New(cfg.ChatWebhookURL, cfg.NotifyWebhookURL, logger)

	users := service.NewService(repo)
	defer users.Close()

	builder := boost.NewBuilder(repo, store, validation.New(), notifier, logger)
	lc := lifecycle.NewManager(repo, notifier, logger)
	payments := payment.NewProcessor(repo, notifier, logger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(users, builder, lc, payments, repo, store, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting boostmart server", "addr", cfg.RunAddress)
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
