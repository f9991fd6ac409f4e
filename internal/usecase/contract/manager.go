package contract

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/metrics"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/shared"
)

// Refunder возвращает заказчику средства отменённого контракта.
type Refunder interface {
	RefundContract(ctx context.Context, contractID uuid.UUID) (*entity.Payment, error)
}

// Manager ведёт жизненный цикл контракта. Методы с параметром tx вызываются
// только внутри транзакции другого компонента и ожидают, что проект и контракт уже заблокированы.
type Manager struct {
	ledger    repository.Ledger
	publisher event.Publisher
	refunder  Refunder
}

func NewManager(ledger repository.Ledger, publisher event.Publisher) *Manager {
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &Manager{ledger: ledger, publisher: publisher}
}

// SetRefunder подключает координатор escrow после его создания.
func (m *Manager) SetRefunder(r Refunder) {
	m.refunder = r
}

// CreateFromAcceptedApplication создаёт контракт в транзакции принятия отклика.
func (m *Manager) CreateFromAcceptedApplication(ctx context.Context, tx repository.Tx, project *entity.Project, application *entity.Application, batch *event.Batch) (*entity.Contract, error) {
	contract, err := entity.NewContractFromApplication(project, application)
	if err != nil {
		return nil, err
	}
	if err := tx.CreateContract(ctx, contract); err != nil {
		return nil, err
	}
	batch.Add(event.ContractChanged(contract, ""))
	return contract, nil
}

// MarkInProgress фиксирует оплату: контракт pending_payment -> in_progress, проект hired -> ongoing.
func (m *Manager) MarkInProgress(ctx context.Context, tx repository.Tx, project *entity.Project, contract *entity.Contract, batch *event.Batch) error {
	if contract.Status != valueobject.ContractStatusPendingPayment {
		return apperror.New(apperror.ErrCodeInvalidState, "контракт не ожидает оплаты")
	}
	from := contract.Status
	if err := contract.MarkInProgress(); err != nil {
		return err
	}
	if err := tx.UpdateContract(ctx, contract, from); err != nil {
		return err
	}
	batch.Add(event.ContractChanged(contract, string(from)))

	if project.Status == valueobject.ProjectStatusHired {
		if err := project.StartWork(); err != nil {
			return err
		}
		if err := tx.UpdateProjectStatus(ctx, project, valueobject.ProjectStatusHired); err != nil {
			return err
		}
	}
	return nil
}

// Settle закрывает контракт при выплате. Повторный вызов для завершённого контракта ничего не делает.
func (m *Manager) Settle(ctx context.Context, tx repository.Tx, project *entity.Project, contract *entity.Contract, batch *event.Batch) error {
	switch contract.Status {
	case valueobject.ContractStatusCompleted:
		return nil
	case valueobject.ContractStatusInProgress:
		return m.complete(ctx, tx, project, contract, batch)
	default:
		return apperror.New(apperror.ErrCodeInvalidState, "контракт нельзя закрыть в текущем статусе")
	}
}

func (m *Manager) complete(ctx context.Context, tx repository.Tx, project *entity.Project, contract *entity.Contract, batch *event.Batch) error {
	from := contract.Status
	if err := contract.Complete(); err != nil {
		return err
	}
	if err := tx.UpdateContract(ctx, contract, from); err != nil {
		return err
	}
	batch.Add(event.ContractChanged(contract, string(from)))

	if project.Status == valueobject.ProjectStatusOngoing {
		if err := project.Complete(); err != nil {
			return err
		}
		if err := tx.UpdateProjectStatus(ctx, project, valueobject.ProjectStatusOngoing); err != nil {
			return err
		}
	}
	return nil
}

// lock блокирует проект и контракт в принятом порядке.
func lock(ctx context.Context, tx repository.Tx, contractID uuid.UUID) (*entity.Project, *entity.Contract, error) {
	c, err := tx.GetContract(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	project, err := tx.LockProject(ctx, c.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	contract, err := tx.LockContract(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	return project, contract, nil
}

// MarkCompleted — исполнитель сдаёт работу.
func (m *Manager) MarkCompleted(ctx context.Context, actor valueobject.Actor, contractID uuid.UUID) (*entity.Contract, error) {
	var contract *entity.Contract
	var batch event.Batch

	err := m.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		project, c, err := lock(ctx, tx, contractID)
		if err != nil {
			return err
		}
		contract = c
		if !actor.Is(contract.FreelancerID) {
			return apperror.ErrForbidden
		}
		if contract.Status != valueobject.ContractStatusInProgress {
			return apperror.New(apperror.ErrCodeInvalidState, "завершить можно только оплаченный контракт в работе")
		}
		return m.complete(ctx, tx, project, contract, &batch)
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrContractNotFound)
	}

	metrics.RecordTransition("contract", string(contract.Status))
	logger.Log.WithFields(logrus.Fields{
		"contract_id":   contract.ID,
		"freelancer_id": actor.ID,
	}).Info("работа по контракту сдана")
	shared.Publish(ctx, m.publisher, &batch)
	return contract, nil
}

// Cancel отменяет контракт и закрывает проект. Если средства уже в escrow, после коммита запускается возврат;
// неудачный возврат подхватит фоновая сверка.
func (m *Manager) Cancel(ctx context.Context, actor valueobject.Actor, contractID uuid.UUID) (*entity.Contract, error) {
	var contract *entity.Contract
	var batch event.Batch
	var hasEscrow bool

	err := m.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		project, c, err := lock(ctx, tx, contractID)
		if err != nil {
			return err
		}
		contract = c
		if !actor.Is(contract.EmployerID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}

		from := contract.Status
		if err := contract.Cancel(); err != nil {
			return err
		}
		if err := tx.UpdateContract(ctx, contract, from); err != nil {
			return err
		}
		batch.Add(event.ContractChanged(contract, string(from)))

		if project.Status == valueobject.ProjectStatusHired || project.Status == valueobject.ProjectStatusOngoing {
			projectFrom := project.Status
			if err := project.Close(); err != nil {
				return err
			}
			if err := tx.UpdateProjectStatus(ctx, project, projectFrom); err != nil {
				return err
			}
		}

		payments, err := tx.ListPaymentsByContract(ctx, contract.ID)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if p.Is(valueobject.PaymentStatusEscrowed) {
				hasEscrow = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrContractNotFound)
	}

	metrics.RecordTransition("contract", string(contract.Status))
	log := logger.Log.WithFields(logrus.Fields{
		"contract_id": contract.ID,
		"actor_id":    actor.ID,
	})
	log.Info("контракт отменён")
	shared.Publish(ctx, m.publisher, &batch)

	if hasEscrow && m.refunder != nil {
		if _, err := m.refunder.RefundContract(ctx, contract.ID); err != nil {
			log.WithError(err).Warn("возврат средств не выполнен, будет повторён сверкой")
		}
	}
	return contract, nil
}

// Get доступен только участникам контракта и администратору.
func (m *Manager) Get(ctx context.Context, actor valueobject.Actor, contractID uuid.UUID) (*entity.Contract, error) {
	contract, err := m.ledger.GetContract(ctx, contractID)
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrContractNotFound)
	}
	if !contract.IsParticipant(actor.ID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	return contract, nil
}

func (m *Manager) ListMine(ctx context.Context, actor valueobject.Actor) ([]*entity.Contract, error) {
	contracts, err := m.ledger.ListContractsByUser(ctx, actor.ID)
	if err != nil {
		return nil, shared.LedgerError(err, nil)
	}
	return contracts, nil
}

// Payments возвращает историю платежей по контракту.
func (m *Manager) Payments(ctx context.Context, actor valueobject.Actor, contractID uuid.UUID) ([]*entity.Payment, error) {
	if _, err := m.Get(ctx, actor, contractID); err != nil {
		return nil, err
	}
	payments, err := m.ledger.ListPaymentsByContract(ctx, contractID)
	if err != nil {
		return nil, shared.LedgerError(err, nil)
	}
	return payments, nil
}
