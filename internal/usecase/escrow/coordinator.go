package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/metrics"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/contract"
)

// Deduper — быстрый путь отсечения повторных вебхуков.
type Deduper interface {
	Seen(ctx context.Context, eventID string) bool
	Remember(ctx context.Context, eventID string)
}

type Config struct {
	Commission valueobject.Commission
	// StaleAfter — возраст initiated-платежа, после которого сверка повторяет удержание.
	StaleAfter time.Duration
	SweepBatch int
}

// Coordinator связывает платежи в журнале с удержаниями и переводами у провайдера.
// Вызовы провайдера выполняются строго между транзакциями.
type Coordinator struct {
	ledger    repository.Ledger
	gateway   gateway.Gateway
	contracts *contract.Manager
	publisher event.Publisher
	deduper   Deduper
	cfg       Config
	now       func() time.Time
}

func NewCoordinator(ledger repository.Ledger, gw gateway.Gateway, contracts *contract.Manager, publisher event.Publisher, deduper Deduper, cfg Config) *Coordinator {
	if publisher == nil {
		publisher = event.Nop{}
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 100
	}
	c := &Coordinator{
		ledger:    ledger,
		gateway:   gw,
		contracts: contracts,
		publisher: publisher,
		deduper:   deduper,
		cfg:       cfg,
		now:       time.Now,
	}
	contracts.SetRefunder(c)
	return c
}

// gatewayCall оборачивает вызов провайдера метриками и переводит его ошибки в AppError.
func (c *Coordinator) gatewayCall(op string, fn func() error) error {
	started := time.Now()
	err := fn()

	outcome := "ok"
	switch {
	case err == nil:
	case isUnavailable(err):
		outcome = "unavailable"
	default:
		outcome = "declined"
	}
	metrics.RecordGatewayCall(op, outcome, time.Since(started))

	if err == nil {
		return nil
	}
	logger.Log.WithFields(logrus.Fields{
		"operation": op,
		"provider":  c.gateway.Name(),
		"outcome":   outcome,
	}).WithError(err).Warn("ошибка платёжного провайдера")

	if outcome == "unavailable" {
		return apperror.Wrap(err, apperror.ErrCodeGatewayUnavailable, apperror.ErrGatewayUnavailable.Message)
	}
	return apperror.Wrap(err, apperror.ErrCodePaymentDeclined, "платёжный провайдер отклонил операцию")
}

func isUnavailable(err error) bool {
	return errors.Is(err, gateway.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// lockChain блокирует проект, контракт и платёж в принятом порядке.
func lockChain(ctx context.Context, tx repository.Tx, contractID uuid.UUID, paymentID uuid.UUID) (*entity.Project, *entity.Contract, *entity.Payment, error) {
	c, err := tx.GetContract(ctx, contractID)
	if err != nil {
		return nil, nil, nil, err
	}
	project, err := tx.LockProject(ctx, c.ProjectID)
	if err != nil {
		return nil, nil, nil, err
	}
	locked, err := tx.LockContract(ctx, contractID)
	if err != nil {
		return nil, nil, nil, err
	}
	if paymentID == uuid.Nil {
		return project, locked, nil, nil
	}
	payment, err := tx.LockPayment(ctx, paymentID)
	if err != nil {
		return nil, nil, nil, err
	}
	return project, locked, payment, nil
}

// payoutDestination возвращает готовый счёт исполнителя или ErrPayeeNotReady.
func payoutDestination(ctx context.Context, r repository.Reader, userID uuid.UUID) (*entity.PayoutAccount, error) {
	account, err := r.GetPayoutAccount(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.ErrPayeeNotReady
	}
	if err != nil {
		return nil, err
	}
	if !account.Ready {
		return nil, apperror.ErrPayeeNotReady
	}
	return account, nil
}

func findPayment(payments []*entity.Payment, status valueobject.PaymentStatus) *entity.Payment {
	for _, p := range payments {
		if p.Is(status) {
			return p
		}
	}
	return nil
}

func paymentMetadata(p *entity.Payment) map[string]string {
	return map[string]string{
		gateway.MetaPaymentID:  p.ID.String(),
		gateway.MetaContractID: p.ContractID.String(),
	}
}

func (c *Coordinator) logPayment(p *entity.Payment) *logrus.Entry {
	return logger.Log.WithFields(logrus.Fields{
		"payment_id":  p.ID,
		"contract_id": p.ContractID,
		"status":      p.Status,
	})
}
