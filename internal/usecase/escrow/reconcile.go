package escrow

import (
	"context"
	"errors"

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
	"github.com/ignatzorin/freelance-escrow/internal/usecase/shared"
)

type ReconcileResult string

const (
	ReconcileApplied   ReconcileResult = "applied"
	ReconcileDuplicate ReconcileResult = "duplicate"
	ReconcileIgnored   ReconcileResult = "ignored"
)

// HandleWebhook проверяет подпись и применяет событие провайдера.
func (c *Coordinator) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (ReconcileResult, error) {
	evt, err := c.gateway.VerifyAndParseWebhook(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			metrics.RecordWebhook("unknown", "invalid_signature")
			return "", apperror.Wrap(err, apperror.ErrCodeInvalidSignature, apperror.ErrInvalidSignature.Message)
		}
		return "", apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное событие провайдера")
	}
	return c.Reconcile(ctx, evt)
}

// Reconcile применяет асинхронное подтверждение провайдера. Повторная доставка того же события
// ничего не меняет: факт обработки фиксируется в той же транзакции, что и изменение состояния.
func (c *Coordinator) Reconcile(ctx context.Context, evt gateway.Event) (ReconcileResult, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"event_id":   evt.ID,
		"event_type": evt.Type,
		"object_id":  evt.ObjectID,
	})
	if c.deduper != nil && c.deduper.Seen(ctx, evt.ID) {
		metrics.RecordWebhook(evt.Type, string(ReconcileDuplicate))
		return ReconcileDuplicate, nil
	}

	var result ReconcileResult
	var outcome holdOutcome
	var payment *entity.Payment
	var batch event.Batch

	err := c.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		outcome = holdApplied
		payment = nil

		fresh, err := tx.MarkEventProcessed(ctx, evt.ID, evt.Type)
		if err != nil {
			return err
		}
		if !fresh {
			result = ReconcileDuplicate
			return nil
		}

		result = ReconcileApplied
		switch evt.Type {
		case gateway.EventAccountUpdated:
			_, err = applyPayoutReady(ctx, tx, evt.ObjectID, evt.Ready, &batch)
		case gateway.EventEscrowHoldSucceeded:
			payment, err = c.onPayment(ctx, tx, evt, func(project *entity.Project, contract *entity.Contract, p *entity.Payment) error {
				var applyErr error
				outcome, applyErr = c.applyHold(ctx, tx, project, contract, p, evt.HoldID, &batch)
				return applyErr
			})
		case gateway.EventEscrowHoldFailed:
			payment, err = c.onPayment(ctx, tx, evt, func(_ *entity.Project, _ *entity.Contract, p *entity.Payment) error {
				return applyHoldFailed(ctx, tx, p, evt.Reason, &batch)
			})
		case gateway.EventTransferPaid:
			payment, err = c.onPayment(ctx, tx, evt, func(project *entity.Project, contract *entity.Contract, p *entity.Payment) error {
				return c.applyTransfer(ctx, tx, project, contract, p, evt.ObjectID, &batch)
			})
		case gateway.EventRefundSucceeded:
			payment, err = c.onPayment(ctx, tx, evt, func(_ *entity.Project, _ *entity.Contract, p *entity.Payment) error {
				return applyRefund(ctx, tx, p, evt.ObjectID, &batch)
			})
		default:
			result = ReconcileIgnored
			return nil
		}

		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrNotFound), apperror.IsInvalidState(err):
			// событие записано как обработанное, повтор ничего не изменит
			log.WithError(err).Warn("событие провайдера не применимо к текущему состоянию")
			batch.Reset()
			result = ReconcileIgnored
			return nil
		default:
			return err
		}
	})
	if err != nil {
		metrics.RecordWebhook(evt.Type, "error")
		log.WithError(err).Error("не удалось применить событие провайдера")
		return "", shared.LedgerError(err, nil)
	}

	if c.deduper != nil {
		c.deduper.Remember(ctx, evt.ID)
	}
	metrics.RecordWebhook(evt.Type, string(result))
	c.recordBatch(&batch)
	shared.Publish(ctx, c.publisher, &batch)

	if result == ReconcileApplied && payment != nil {
		switch outcome {
		case holdNeedsRefund:
			c.refundAfterCancel(ctx, payment.ContractID)
		case holdOrphaned:
			c.refundOrphanHold(ctx, payment, evt.HoldID)
		}
	}
	log.WithField("result", result).Info("событие провайдера обработано")
	return result, nil
}

type paymentFn func(project *entity.Project, contract *entity.Contract, payment *entity.Payment) error

// onPayment находит платёж события, блокирует цепочку и применяет fn.
func (c *Coordinator) onPayment(ctx context.Context, tx repository.Tx, evt gateway.Event, fn paymentFn) (*entity.Payment, error) {
	found, err := locatePayment(ctx, tx, evt)
	if err != nil {
		return nil, err
	}
	project, contract, payment, err := lockChain(ctx, tx, found.ContractID, found.ID)
	if err != nil {
		return nil, err
	}
	if err := fn(project, contract, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// locatePayment ищет платёж по метаданным события, затем по ссылке на удержание.
func locatePayment(ctx context.Context, r repository.Reader, evt gateway.Event) (*entity.Payment, error) {
	if raw := evt.Metadata[gateway.MetaPaymentID]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return r.GetPayment(ctx, id)
		}
	}
	if evt.HoldID != "" {
		return r.GetPaymentByTransactionRef(ctx, evt.HoldID)
	}
	return nil, repository.ErrNotFound
}

func applyHoldFailed(ctx context.Context, tx repository.Tx, payment *entity.Payment, reason string, batch *event.Batch) error {
	if payment.Is(valueobject.PaymentStatusFailed) {
		return nil
	}
	if !payment.Is(valueobject.PaymentStatusInitiated) {
		return apperror.New(apperror.ErrCodeInvalidState, "платёж уже подтверждён")
	}
	if reason == "" {
		reason = "удержание отклонено провайдером"
	}
	if err := payment.MarkFailed(reason); err != nil {
		return err
	}
	if err := tx.UpdatePayment(ctx, payment, valueobject.PaymentStatusInitiated); err != nil {
		return err
	}
	batch.Add(event.PaymentChanged(payment, string(valueobject.PaymentStatusInitiated)))
	return nil
}
