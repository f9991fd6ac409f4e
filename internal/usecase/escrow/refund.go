package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/shared"
)

// Refund возвращает заказчику средства отменённого контракта.
func (c *Coordinator) Refund(ctx context.Context, actor valueobject.Actor, contractID uuid.UUID) (*entity.Payment, error) {
	contract, err := c.ledger.GetContract(ctx, contractID)
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrContractNotFound)
	}
	if !actor.Is(contract.EmployerID) && !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вернуть средства может только заказчик")
	}
	return c.RefundContract(ctx, contractID)
}

// RefundContract возвращает escrow без проверки прав. Вызывается при отмене контракта и сверкой.
func (c *Coordinator) RefundContract(ctx context.Context, contractID uuid.UUID) (*entity.Payment, error) {
	var payment *entity.Payment
	var done bool

	err := c.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, contract, _, err := lockChain(ctx, tx, contractID, uuid.Nil)
		if err != nil {
			return err
		}
		if contract.Status != valueobject.ContractStatusCancelled {
			return apperror.New(apperror.ErrCodeInvalidState, "вернуть средства можно только по отменённому контракту")
		}
		payments, err := tx.ListPaymentsByContract(ctx, contract.ID)
		if err != nil {
			return err
		}
		payment = findPayment(payments, valueobject.PaymentStatusEscrowed)
		if payment == nil {
			if refunded := findPayment(payments, valueobject.PaymentStatusRefunded); refunded != nil {
				payment = refunded
				done = true
				return nil
			}
			return apperror.ErrNoEscrowFound
		}
		return nil
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrContractNotFound)
	}
	if done {
		return payment, nil
	}

	var refundID string
	err = c.gatewayCall("create_refund", func() error {
		var gwErr error
		refundID, gwErr = c.gateway.CreateRefund(ctx, gateway.RefundRequest{
			HoldID:         *payment.TransactionRef,
			Amount:         payment.Amount,
			IdempotencyKey: payment.RefundKey(),
			Metadata:       paymentMetadata(payment),
		})
		return gwErr
	})
	if err != nil {
		return nil, err
	}

	refunded, err := c.confirmRefund(ctx, payment.ID, refundID)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{
		"contract_id": refunded.ContractID,
		"payment_id":  refunded.ID,
		"amount":      refunded.Amount,
		"refund_id":   refundID,
	}).Info("средства возвращены заказчику")
	return refunded, nil
}

func (c *Coordinator) confirmRefund(ctx context.Context, paymentID uuid.UUID, refundRef string) (*entity.Payment, error) {
	var payment *entity.Payment
	var batch event.Batch

	err := c.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		_, _, locked, err := lockChain(ctx, tx, p.ContractID, p.ID)
		if err != nil {
			return err
		}
		payment = locked
		return applyRefund(ctx, tx, payment, refundRef, &batch)
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrPaymentNotFound)
	}
	c.recordBatch(&batch)
	shared.Publish(ctx, c.publisher, &batch)
	return payment, nil
}

func applyRefund(ctx context.Context, tx repository.Tx, payment *entity.Payment, refundRef string, batch *event.Batch) error {
	if payment.Is(valueobject.PaymentStatusRefunded) {
		return nil
	}
	if !payment.Is(valueobject.PaymentStatusEscrowed) {
		return apperror.New(apperror.ErrCodeInvalidState, "платёж не находится в escrow")
	}
	if err := payment.MarkRefunded(refundRef); err != nil {
		return err
	}
	if err := tx.UpdatePayment(ctx, payment, valueobject.PaymentStatusEscrowed); err != nil {
		return err
	}
	batch.Add(event.PaymentChanged(payment, string(valueobject.PaymentStatusEscrowed)))
	return nil
}
