package escrow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/metrics"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// SweepReport — итог одного прохода сверки.
type SweepReport struct {
	Replayed  int `json:"replayed"`
	Failed    int `json:"failed"`
	Refunded  int `json:"refunded"`
	Anomalies int `json:"anomalies"`
	Errors    int `json:"errors"`
}

// Sweep доводит зависшие операции до конечного состояния: повторяет удержания initiated-платежей
// с тем же ключом идемпотентности, возвращает escrow отменённых контрактов и ищет следы
// частично применённого принятия отклика.
func (c *Coordinator) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	stale, err := c.ledger.ListStaleInitiatedPayments(ctx, c.now().Add(-c.cfg.StaleAfter), c.cfg.SweepBatch)
	if err != nil {
		return report, err
	}
	for _, p := range stale {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		c.sweepInitiated(ctx, p, &report)
	}

	escrowed, err := c.ledger.ListEscrowedPaymentsOfCancelledContracts(ctx, c.cfg.SweepBatch)
	if err != nil {
		return report, err
	}
	for _, p := range escrowed {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, err := c.RefundContract(ctx, p.ContractID); err != nil {
			report.Errors++
			c.logPayment(p).WithError(err).Warn("повторный возврат не выполнен")
			continue
		}
		report.Refunded++
		metrics.RecordSweepFinding("refund_retried")
	}

	anomalies, err := c.ledger.FindAcceptAnomalies(ctx, c.cfg.SweepBatch)
	if err != nil {
		return report, err
	}
	for _, a := range anomalies {
		report.Anomalies++
		metrics.RecordSweepFinding(a.Kind)
		logger.Log.WithFields(logrus.Fields{
			"project_id": a.ProjectID,
			"kind":       a.Kind,
		}).Error("нарушен инвариант принятия отклика")
	}

	logger.Log.WithFields(logrus.Fields{
		"replayed":  report.Replayed,
		"failed":    report.Failed,
		"refunded":  report.Refunded,
		"anomalies": report.Anomalies,
		"errors":    report.Errors,
	}).Info("сверка завершена")
	return report, nil
}

// sweepInitiated повторяет удержание, пока контракт ждёт оплаты, иначе закрывает платёж как неудачный.
func (c *Coordinator) sweepInitiated(ctx context.Context, p *entity.Payment, report *SweepReport) {
	log := c.logPayment(p)

	contract, err := c.ledger.GetContract(ctx, p.ContractID)
	if err != nil {
		report.Errors++
		log.WithError(err).Warn("контракт платежа не найден")
		return
	}
	if contract.Status != valueobject.ContractStatusPendingPayment {
		if err := c.failPayment(ctx, p.ID, "контракт больше не ожидает оплаты"); err != nil {
			report.Errors++
			log.WithError(err).Warn("не удалось закрыть зависший платёж")
			return
		}
		report.Failed++
		metrics.RecordSweepFinding("stale_payment_failed")
		return
	}

	var hold gateway.Hold
	err = c.gatewayCall("create_hold", func() error {
		var gwErr error
		hold, gwErr = c.gateway.CreateEscrowHold(ctx, gateway.HoldRequest{
			Amount:         p.Amount,
			Currency:       p.Currency,
			GroupKey:       contract.GroupKey(),
			IdempotencyKey: p.IdempotencyKey,
			Metadata:       paymentMetadata(p),
		})
		return gwErr
	})
	if err != nil {
		if apperror.Is(err, apperror.ErrCodePaymentDeclined) {
			if failErr := c.failPayment(ctx, p.ID, err.Error()); failErr == nil {
				report.Failed++
				metrics.RecordSweepFinding("stale_payment_failed")
				return
			}
		}
		report.Errors++
		return
	}

	confirmed, outcome, err := c.confirmHold(ctx, p.ID, hold.ID)
	if err != nil {
		report.Errors++
		log.WithError(err).Warn("не удалось применить повторённое удержание")
		return
	}
	switch outcome {
	case holdNeedsRefund:
		c.refundAfterCancel(ctx, confirmed.ContractID)
	case holdOrphaned:
		c.refundOrphanHold(ctx, confirmed, hold.ID)
	}
	log.WithField("hold_id", hold.ID).Info("удержание повторено")
	report.Replayed++
	metrics.RecordSweepFinding("stale_payment_replayed")
}

// Run запускает сверку по таймеру до отмены контекста.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := c.Sweep(ctx); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Error("ошибка сверки")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
