package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignatzorin/freelance-escrow/internal/app"
	"github.com/ignatzorin/freelance-escrow/internal/auth"
	"github.com/ignatzorin/freelance-escrow/internal/config"
	"github.com/ignatzorin/freelance-escrow/internal/goroutine"
	httpRouter "github.com/ignatzorin/freelance-escrow/internal/http/router"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/handler"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка загрузки конфигурации")
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}

	// Вебсокеты получают события смены статусов вместе с брокером.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, "ws-hub", hub.Run)

	application, err := app.Build(ctx, cfg, hub)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка инициализации")
	}
	defer application.Close()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	engine := httpRouter.SetupRouter(cfg, httpRouter.Handlers{
		Project:     handler.NewProjectHandler(application.Catalog, application.Bids),
		Application: handler.NewApplicationHandler(application.Bids),
		Contract:    handler.NewContractHandler(application.Contracts, application.Escrow),
		Payout:      handler.NewPayoutHandler(application.Escrow),
		Webhook:     handler.NewWebhookHandler(application.Escrow),
		Admin:       handler.NewAdminHandler(application.Escrow),
		Health:      handler.NewHealthHandler(application.Checks),
		WS:          handler.NewWSHandler(hub, tokens, cfg.AllowedOrigins),
	}, tokens)

	// Сверка зависших платежей и невозвращённых удержаний.
	if cfg.SweepInterval > 0 {
		goroutine.SafeGoWithContext(ctx, "sweeper", func(ctx context.Context) {
			application.Escrow.Run(ctx, cfg.SweepInterval)
		})
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo("http-shutdown", func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	logger.Log.WithField("port", cfg.HTTPPort).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.WithError(err).Error("main: сервер завершился с ошибкой")
	}
}
