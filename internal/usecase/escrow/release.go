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

// Release выплачивает исполнителю средства из escrow за вычетом комиссии.
// Контракт должен быть завершён; администратор может выплатить и по контракту в работе.
// Повторный вызов после выплаты возвращает тот же платёж.
func (c *Coordinator) Release(ctx context.Context, actor valueobject.Actor, contractID uuid.UUID) (*entity.Payment, error) {
	var payment *entity.Payment
	var contract *entity.Contract
	var destination string
	var done bool

	err := c.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, locked, _, err := lockChain(ctx, tx, contractID, uuid.Nil)
		if err != nil {
			return err
		}
		contract = locked
		if !actor.Is(contract.EmployerID) && !actor.IsAdmin() {
			return apperror.New(apperror.ErrCodeForbidden, "выплату подтверждает только заказчик")
		}

		payments, err := tx.ListPaymentsByContract(ctx, contract.ID)
		if err != nil {
			return err
		}
		if released := findPayment(payments, valueobject.PaymentStatusReleased); released != nil {
			payment = released
			done = true
			return nil
		}

		switch contract.Status {
		case valueobject.ContractStatusCompleted:
		case valueobject.ContractStatusInProgress:
			if !actor.IsAdmin() {
				return apperror.New(apperror.ErrCodeInvalidState, "выплата возможна только после сдачи работы")
			}
		default:
			return apperror.New(apperror.ErrCodeInvalidState, "контракт нельзя оплатить в текущем статусе")
		}

		payment = findPayment(payments, valueobject.PaymentStatusEscrowed)
		if payment == nil {
			return apperror.ErrNoEscrowFound
		}

		account, err := payoutDestination(ctx, tx, contract.FreelancerID)
		if err != nil {
			return err
		}
		destination = account.DestinationID
		return nil
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrContractNotFound)
	}
	if done {
		return payment, nil
	}

	var transferID string
	err = c.gatewayCall("create_transfer", func() error {
		var gwErr error
		transferID, gwErr = c.gateway.CreateTransfer(ctx, gateway.TransferRequest{
			Amount:         payment.PayoutAmount(),
			Currency:       payment.Currency,
			DestinationID:  destination,
			GroupKey:       contract.GroupKey(),
			IdempotencyKey: payment.ReleaseKey(),
			Metadata:       paymentMetadata(payment),
		})
		return gwErr
	})
	if err != nil {
		return nil, err
	}

	released, err := c.confirmTransfer(ctx, payment.ID, transferID)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{
		"contract_id": released.ContractID,
		"payment_id":  released.ID,
		"net_amount":  released.PayoutAmount(),
		"commission":  released.Commission,
		"transfer_id": transferID,
		"actor_id":    actor.ID,
	}).Info("средства выплачены исполнителю")
	return released, nil
}

// confirmTransfer фиксирует перевод: платёж escrowed -> released, контракт закрывается.
func (c *Coordinator) confirmTransfer(ctx context.Context, paymentID uuid.UUID, transferRef string) (*entity.Payment, error) {
	var payment *entity.Payment
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
		return c.applyTransfer(ctx, tx, project, contract, payment, transferRef, &batch)
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrPaymentNotFound)
	}
	c.recordBatch(&batch)
	shared.Publish(ctx, c.publisher, &batch)
	return payment, nil
}

func (c *Coordinator) applyTransfer(ctx context.Context, tx repository.Tx, project *entity.Project, contract *entity.Contract, payment *entity.Payment, transferRef string, batch *event.Batch) error {
	if payment.Is(valueobject.PaymentStatusReleased) {
		return nil
	}
	if !payment.Is(valueobject.PaymentStatusEscrowed) {
		return apperror.New(apperror.ErrCodeInvalidState, "платёж не находится в escrow")
	}
	if err := payment.MarkReleased(transferRef); err != nil {
		return err
	}
	if err := tx.UpdatePayment(ctx, payment, valueobject.PaymentStatusEscrowed); err != nil {
		return err
	}
	batch.Add(event.PaymentChanged(payment, string(valueobject.PaymentStatusEscrowed)))

	switch contract.Status {
	case valueobject.ContractStatusInProgress, valueobject.ContractStatusCompleted:
		return c.contracts.Settle(ctx, tx, project, contract, batch)
	default:
		c.logPayment(payment).WithField("contract_status", contract.Status).
			Error("перевод выполнен по контракту, который нельзя закрыть")
		return nil
	}
}
