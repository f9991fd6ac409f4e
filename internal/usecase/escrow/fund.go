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

// FundResult — платёж и токен, которым клиент подтверждает оплату у провайдера.
type FundResult struct {
	Payment      *entity.Payment
	ClientSecret string
}

// holdOutcome — результат применения подтверждённого удержания.
type holdOutcome int

const (
	holdApplied holdOutcome = iota
	holdAlreadyApplied
	// средства удержаны, но контракт уже отменён
	holdNeedsRefund
	// удержание пришло для платежа, который уже помечен неудачным
	holdOrphaned
)

// Fund переводит оплату контракта в escrow.
func (c *Coordinator) Fund(ctx context.Context, actor valueobject.Actor, contractID uuid.UUID) (*FundResult, error) {
	var payment *entity.Payment
	var contract *entity.Contract
	var batch event.Batch

	err := c.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		_, locked, _, err := lockChain(ctx, tx, contractID, uuid.Nil)
		if err != nil {
			return err
		}
		contract = locked
		if !actor.Is(contract.EmployerID) {
			return apperror.New(apperror.ErrCodeForbidden, "оплатить контракт может только заказчик")
		}
		if contract.Status != valueobject.ContractStatusPendingPayment {
			return apperror.New(apperror.ErrCodeInvalidState, "контракт не ожидает оплаты")
		}
		if _, err := payoutDestination(ctx, tx, contract.FreelancerID); err != nil {
			return err
		}

		payments, err := tx.ListPaymentsByContract(ctx, contract.ID)
		if err != nil {
			return err
		}
		if findPayment(payments, valueobject.PaymentStatusEscrowed) != nil {
			return apperror.New(apperror.ErrCodeInvalidState, "средства по контракту уже в escrow")
		}
		if existing := findPayment(payments, valueobject.PaymentStatusInitiated); existing != nil {
			payment = existing
			return nil
		}

		payment = entity.NewPayment(contract, c.gateway.Name(), c.cfg.Commission)
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		batch.Add(event.PaymentChanged(payment, ""))
		return nil
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrContractNotFound)
	}
	shared.Publish(ctx, c.publisher, &batch)

	var hold gateway.Hold
	err = c.gatewayCall("create_hold", func() error {
		var gwErr error
		hold, gwErr = c.gateway.CreateEscrowHold(ctx, gateway.HoldRequest{
			Amount:         payment.Amount,
			Currency:       payment.Currency,
			GroupKey:       contract.GroupKey(),
			IdempotencyKey: payment.IdempotencyKey,
			Metadata:       paymentMetadata(payment),
		})
		return gwErr
	})
	if err != nil {
		if apperror.Is(err, apperror.ErrCodePaymentDeclined) {
			if failErr := c.failPayment(ctx, payment.ID, err.Error()); failErr != nil {
				c.logPayment(payment).WithError(failErr).Error("не удалось отметить платёж неудачным")
			}
		}
		return nil, err
	}

	confirmed, outcome, err := c.confirmHold(ctx, payment.ID, hold.ID)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case holdNeedsRefund:
		c.refundAfterCancel(ctx, confirmed.ContractID)
		return nil, apperror.New(apperror.ErrCodeInvalidState, "контракт отменён во время оплаты, средства будут возвращены")
	case holdOrphaned:
		c.refundOrphanHold(ctx, confirmed, hold.ID)
		return nil, apperror.New(apperror.ErrCodeInvalidState, "платёж уже отклонён, удержание будет возвращено")
	}

	logger.Log.WithFields(logrus.Fields{
		"contract_id": confirmed.ContractID,
		"payment_id":  confirmed.ID,
		"amount":      confirmed.Amount,
		"currency":    confirmed.Currency,
		"hold_id":     hold.ID,
	}).Info("средства переведены в escrow")
	return &FundResult{Payment: confirmed, ClientSecret: hold.ClientSecret}, nil
}

// confirmHold применяет подтверждённое удержание одной транзакцией.
func (c *Coordinator) confirmHold(ctx context.Context, paymentID uuid.UUID, holdRef string) (*entity.Payment, holdOutcome, error) {
	var payment *entity.Payment
	var outcome holdOutcome
	var batch event.Batch

	err := c.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		project, contract, locked, err := lockChain(ctx, tx, p.ContractID, p.ID)
		if err != nil {
			return err
		}
		payment = locked
		outcome, err = c.applyHold(ctx, tx, project, contract, payment, holdRef, &batch)
		return err
	})
	if err != nil {
		return nil, 0, shared.LedgerError(err, apperror.ErrPaymentNotFound)
	}
	c.recordBatch(&batch)
	shared.Publish(ctx, c.publisher, &batch)
	return payment, outcome, nil
}

// applyHold ожидает заблокированные проект, контракт и платёж.
func (c *Coordinator) applyHold(ctx context.Context, tx repository.Tx, project *entity.Project, contract *entity.Contract, payment *entity.Payment, holdRef string, batch *event.Batch) (holdOutcome, error) {
	switch payment.Status {
	case valueobject.PaymentStatusEscrowed, valueobject.PaymentStatusReleased, valueobject.PaymentStatusRefunded:
		if payment.TransactionRef != nil && *payment.TransactionRef == holdRef {
			return holdAlreadyApplied, nil
		}
		return 0, apperror.New(apperror.ErrCodeInvalidState, "платёж уже связан с другим удержанием")
	case valueobject.PaymentStatusFailed:
		return holdOrphaned, nil
	}

	if err := payment.MarkEscrowed(holdRef); err != nil {
		return 0, err
	}
	if err := tx.UpdatePayment(ctx, payment, valueobject.PaymentStatusInitiated); err != nil {
		return 0, err
	}
	batch.Add(event.PaymentChanged(payment, string(valueobject.PaymentStatusInitiated)))

	switch contract.Status {
	case valueobject.ContractStatusPendingPayment:
		contract.SetPaymentIntent(holdRef)
		if err := c.contracts.MarkInProgress(ctx, tx, project, contract, batch); err != nil {
			return 0, err
		}
	case valueobject.ContractStatusCancelled:
		return holdNeedsRefund, nil
	}
	return holdApplied, nil
}

// failPayment фиксирует окончательный отказ провайдера. Контракт остаётся pending_payment.
func (c *Coordinator) failPayment(ctx context.Context, paymentID uuid.UUID, reason string) error {
	var batch event.Batch
	err := c.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		_, _, payment, err := lockChain(ctx, tx, p.ContractID, p.ID)
		if err != nil {
			return err
		}
		if !payment.Is(valueobject.PaymentStatusInitiated) {
			return nil
		}
		if err := payment.MarkFailed(reason); err != nil {
			return err
		}
		if err := tx.UpdatePayment(ctx, payment, valueobject.PaymentStatusInitiated); err != nil {
			return err
		}
		batch.Add(event.PaymentChanged(payment, string(valueobject.PaymentStatusInitiated)))
		return nil
	})
	if err != nil {
		return shared.LedgerError(err, apperror.ErrPaymentNotFound)
	}
	c.recordBatch(&batch)
	shared.Publish(ctx, c.publisher, &batch)
	return nil
}

// refundAfterCancel запускает возврат; при ошибке повторит сверка.
func (c *Coordinator) refundAfterCancel(ctx context.Context, contractID uuid.UUID) {
	if _, err := c.RefundContract(ctx, contractID); err != nil {
		logger.Log.WithField("contract_id", contractID).WithError(err).Warn("возврат средств не выполнен, будет повторён сверкой")
	}
}

// refundOrphanHold возвращает удержание, которое не попало в журнал.
func (c *Coordinator) refundOrphanHold(ctx context.Context, payment *entity.Payment, holdRef string) {
	err := c.gatewayCall("create_refund", func() error {
		_, gwErr := c.gateway.CreateRefund(ctx, gateway.RefundRequest{
			HoldID:         holdRef,
			Amount:         payment.Amount,
			IdempotencyKey: payment.RefundKey(),
			Metadata:       paymentMetadata(payment),
		})
		return gwErr
	})
	log := c.logPayment(payment).WithField("hold_id", holdRef)
	if err != nil {
		log.WithError(err).Error("не удалось вернуть удержание по отклонённому платежу")
		return
	}
	log.Warn("удержание по отклонённому платежу возвращено")
}

func (c *Coordinator) recordBatch(batch *event.Batch) {
	for _, evt := range batch.Events() {
		switch evt.Name {
		case event.PaymentStatus:
			metrics.RecordTransition("payment", evt.To)
		case event.ContractStatus, event.ContractCreated:
			metrics.RecordTransition("contract", evt.To)
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
