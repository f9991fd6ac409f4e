// Package app собирает зависимости сервиса из конфигурации; общий для cmd/server и cmd/reconciler.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/freelance-escrow/internal/config"
	"github.com/ignatzorin/freelance-escrow/internal/db"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/dedup"
	gwadapter "github.com/ignatzorin/freelance-escrow/internal/infrastructure/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/messaging"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/persistence"
	"github.com/ignatzorin/freelance-escrow/internal/interface/http/handler"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/bid"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/contract"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/project"
)

// App — собранные сценарии и инфраструктура.
type App struct {
	Ledger    repository.Ledger
	Gateway   gateway.Gateway
	Catalog   *project.Catalog
	Bids      *bid.Arbitration
	Contracts *contract.Manager
	Escrow    *escrow.Coordinator
	// Checks — зависимости для /health.
	Checks map[string]handler.Pinger

	closers []func()
}

// Build подключает хранилище, провайдера, Redis и RabbitMQ согласно cfg.
// Дополнительные издатели (например, WebSocket hub) получают события вместе с брокером.
func Build(ctx context.Context, cfg *config.Config, extra ...event.Publisher) (*App, error) {
	a := &App{Checks: make(map[string]handler.Pinger)}

	ledger, err := a.openLedger(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Ledger = ledger
	a.Gateway = newGateway(cfg)

	publishers := event.Multi{}
	for _, p := range extra {
		if p != nil {
			publishers = append(publishers, p)
		}
	}
	if cfg.AMQPURL != "" {
		producer, err := messaging.NewProducer(cfg.AMQPURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, producer.Close)
		publishers = append(publishers, producer)
		logger.Log.WithField("exchange", messaging.ExchangeName).Info("события публикуются в RabbitMQ")
	}

	var deduper escrow.Deduper
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.Checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		deduper = dedup.NewDeduper(rdb, cfg.DedupTTL)
	}

	commission, err := valueobject.NewCommission(cfg.CommissionBPS)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	a.Catalog = project.NewCatalog(ledger).WithDefaultCurrency(cfg.DefaultCurrency)
	a.Contracts = contract.NewManager(ledger, publishers)
	a.Bids = bid.NewArbitration(ledger, a.Contracts, publishers)
	a.Escrow = escrow.NewCoordinator(ledger, a.Gateway, a.Contracts, publishers, deduper, escrow.Config{
		Commission: commission,
		StaleAfter: cfg.StalePaymentAge,
	})
	return a, nil
}

func (a *App) openLedger(ctx context.Context, cfg *config.Config) (repository.Ledger, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Log.Warn("используется хранилище в памяти, данные не сохраняются между запусками")
		return memory.NewLedger(), nil
	}

	conn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPool())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := conn.Close(); err != nil {
			logger.Log.WithError(err).Warn("ошибка закрытия базы")
		}
	})
	if err := db.RunMigrations(ctx, conn, cfg.MigrationsPath); err != nil {
		return nil, err
	}
	a.Checks["database"] = conn
	return persistence.NewLedgerPostgres(conn), nil
}

var _ handler.Pinger = (*sqlx.DB)(nil)

func newGateway(cfg *config.Config) gateway.Gateway {
	if cfg.Gateway.Driver == config.GatewaySandbox {
		logger.Log.Warn("платёжный провайдер: sandbox")
		return gwadapter.NewSandbox(cfg.Gateway.WebhookSecret).WithAutoReady()
	}
	return gwadapter.NewStripe(gwadapter.StripeConfig{
		BaseURL:       cfg.Gateway.BaseURL,
		APIKey:        cfg.Gateway.APIKey,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Timeout:       cfg.Gateway.Timeout,
		RPS:           cfg.Gateway.RPS,
	})
}

// Close освобождает ресурсы в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
