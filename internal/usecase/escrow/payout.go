package escrow

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/shared"
	"github.com/ignatzorin/freelance-escrow/internal/validation"
)

var errPayoutAccountNotFound = apperror.New(apperror.ErrCodeNotFound, "счёт для выплат не подключён")

// RegisterPayoutDestination создаёт счёт исполнителя у провайдера. Счёт создаётся один раз;
// готовность к выплатам приходит позже через Refresh или вебхук account.updated.
func (c *Coordinator) RegisterPayoutDestination(ctx context.Context, actor valueobject.Actor, email string) (*entity.PayoutAccount, error) {
	if actor.Role != valueobject.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "счёт для выплат подключает только исполнитель")
	}
	if err := validation.ValidateOptionalEmail(email); err != nil {
		return nil, err
	}
	existing, err := c.ledger.GetPayoutAccount(ctx, actor.ID)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, shared.LedgerError(err, nil)
	}

	var destinationID string
	err = c.gatewayCall("create_destination", func() error {
		var gwErr error
		destinationID, gwErr = c.gateway.CreatePayoutDestination(ctx, gateway.PayeeIdentity{
			UserID: actor.ID.String(),
			Email:  email,
		})
		return gwErr
	})
	if err != nil {
		return nil, err
	}

	var account *entity.PayoutAccount
	err = c.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.GetPayoutAccount(ctx, actor.ID)
		if err == nil {
			account = current
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		account = entity.NewPayoutAccount(actor.ID, c.gateway.Name(), destinationID)
		return tx.SavePayoutAccount(ctx, account)
	})
	if err != nil {
		return nil, shared.LedgerError(err, nil)
	}

	log := logger.Log.WithFields(logrus.Fields{
		"user_id":        actor.ID,
		"destination_id": account.DestinationID,
	})
	if account.DestinationID != destinationID {
		log.WithField("orphan_destination_id", destinationID).Warn("счёт уже был подключён параллельным запросом")
	} else {
		log.Info("счёт для выплат создан")
	}
	return account, nil
}

// RefreshPayoutDestination запрашивает у провайдера готовность счёта и сохраняет её.
func (c *Coordinator) RefreshPayoutDestination(ctx context.Context, actor valueobject.Actor) (*entity.PayoutAccount, error) {
	account, err := c.ledger.GetPayoutAccount(ctx, actor.ID)
	if err != nil {
		return nil, shared.LedgerError(err, errPayoutAccountNotFound)
	}

	var status gateway.DestinationStatus
	err = c.gatewayCall("destination_status", func() error {
		var gwErr error
		status, gwErr = c.gateway.GetPayoutDestinationStatus(ctx, account.DestinationID)
		return gwErr
	})
	if err != nil {
		return nil, err
	}
	return c.setPayoutReady(ctx, account.DestinationID, status.Ready)
}

// GetPayoutAccount возвращает счёт текущего пользователя.
func (c *Coordinator) GetPayoutAccount(ctx context.Context, actor valueobject.Actor) (*entity.PayoutAccount, error) {
	account, err := c.ledger.GetPayoutAccount(ctx, actor.ID)
	if err != nil {
		return nil, shared.LedgerError(err, errPayoutAccountNotFound)
	}
	return account, nil
}

func (c *Coordinator) setPayoutReady(ctx context.Context, destinationID string, ready bool) (*entity.PayoutAccount, error) {
	var account *entity.PayoutAccount
	var batch event.Batch

	err := c.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		var err error
		account, err = applyPayoutReady(ctx, tx, destinationID, ready, &batch)
		return err
	})
	if err != nil {
		return nil, shared.LedgerError(err, errPayoutAccountNotFound)
	}
	shared.Publish(ctx, c.publisher, &batch)
	return account, nil
}

func applyPayoutReady(ctx context.Context, tx repository.Tx, destinationID string, ready bool, batch *event.Batch) (*entity.PayoutAccount, error) {
	account, err := tx.GetPayoutAccountByDestination(ctx, destinationID)
	if err != nil {
		return nil, err
	}
	if !account.SetReady(ready) {
		return account, nil
	}
	if err := tx.SavePayoutAccount(ctx, account); err != nil {
		return nil, err
	}
	batch.Add(event.PayoutAccountChanged(account))
	logger.Log.WithFields(logrus.Fields{
		"user_id":        account.UserID,
		"destination_id": destinationID,
		"ready":          ready,
	}).Info("готовность счёта для выплат изменена")
	return account, nil
}
