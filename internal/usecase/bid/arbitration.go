package bid

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/metrics"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/contract"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/shared"
	"github.com/ignatzorin/freelance-escrow/internal/validation"
)

type SubmitInput struct {
	ProjectID        uuid.UUID
	BidAmount        int64
	ProposedTimeline string
	CoverLetter      string
}

// Arbitration обрабатывает отклики: подачу, принятие и отклонение.
type Arbitration struct {
	ledger    repository.Ledger
	contracts *contract.Manager
	publisher event.Publisher
}

func NewArbitration(ledger repository.Ledger, contracts *contract.Manager, publisher event.Publisher) *Arbitration {
	if publisher == nil {
		publisher = event.Nop{}
	}
	return &Arbitration{ledger: ledger, contracts: contracts, publisher: publisher}
}

func (uc *Arbitration) Submit(ctx context.Context, actor valueobject.Actor, input SubmitInput) (*entity.Application, error) {
	if actor.Role == valueobject.RoleEmployer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "откликаться на проекты может только исполнитель")
	}

	var application *entity.Application
	if err := validation.ValidateApplication(input.ProposedTimeline, input.CoverLetter); err != nil {
		return nil, err
	}

	err := uc.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		project, err := tx.LockProject(ctx, input.ProjectID)
		if err != nil {
			return err
		}
		if project.IsOwnedBy(actor.ID) {
			return apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на собственный проект")
		}
		if !project.IsOpen() {
			return apperror.New(apperror.ErrCodeInvalidState, "проект больше не принимает отклики")
		}

		application, err = entity.NewApplication(project.ID, actor.ID, input.BidAmount, input.ProposedTimeline, input.CoverLetter)
		if err != nil {
			return err
		}
		return tx.CreateApplication(ctx, application)
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		return nil, apperror.ErrApplicationExists
	}
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrProjectNotFound)
	}

	logger.Log.WithFields(logrus.Fields{
		"project_id":     application.ProjectID,
		"application_id": application.ID,
		"freelancer_id":  actor.ID,
	}).Info("отклик отправлен")
	return application, nil
}

// Accept принимает отклик. В одной транзакции: отклик принят, остальные отклонены,
// проект переходит в hired, создаётся контракт. Из двух одновременных принятий проходит первое.
func (uc *Arbitration) Accept(ctx context.Context, actor valueobject.Actor, applicationID uuid.UUID) (*entity.Contract, error) {
	var created *entity.Contract
	var batch event.Batch

	err := uc.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		app, err := tx.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		project, err := tx.LockProject(ctx, app.ProjectID)
		if err != nil {
			return shared.LedgerError(err, apperror.ErrProjectNotFound)
		}
		application, err := tx.LockApplication(ctx, applicationID)
		if err != nil {
			return err
		}

		if !project.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		if !application.IsApplied() {
			return apperror.New(apperror.ErrCodeInvalidState, "отклик уже рассмотрен")
		}
		if !project.IsOpen() {
			return apperror.New(apperror.ErrCodeInvalidState, "по проекту уже выбран исполнитель")
		}

		if err := application.Accept(); err != nil {
			return err
		}
		if err := tx.UpdateApplicationStatus(ctx, application, valueobject.ApplicationStatusApplied); err != nil {
			return err
		}
		batch.Add(event.ApplicationChanged(application, string(valueobject.ApplicationStatusApplied)))

		siblings, err := tx.ListApplicationsByProject(ctx, project.ID)
		if err != nil {
			return err
		}
		if _, err := tx.RejectOtherApplications(ctx, project.ID, application.ID); err != nil {
			return err
		}
		for _, s := range siblings {
			if s.ID == application.ID || !s.IsApplied() {
				continue
			}
			s.Status = valueobject.ApplicationStatusRejected
			batch.Add(event.ApplicationChanged(s, string(valueobject.ApplicationStatusApplied)))
		}

		if err := project.Hire(); err != nil {
			return err
		}
		if err := tx.UpdateProjectStatus(ctx, project, valueobject.ProjectStatusOpen); err != nil {
			return err
		}

		created, err = uc.contracts.CreateFromAcceptedApplication(ctx, tx, project, application, &batch)
		return err
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrApplicationNotFound)
	}

	metrics.RecordTransition("application", string(valueobject.ApplicationStatusAccepted))
	metrics.RecordTransition("project", string(valueobject.ProjectStatusHired))
	logger.Log.WithFields(logrus.Fields{
		"project_id":     created.ProjectID,
		"application_id": created.ApplicationID,
		"contract_id":    created.ID,
		"amount":         created.Money().String(),
	}).Info("отклик принят, контракт создан")
	shared.Publish(ctx, uc.publisher, &batch)
	return created, nil
}

func (uc *Arbitration) Reject(ctx context.Context, actor valueobject.Actor, applicationID uuid.UUID) (*entity.Application, error) {
	var application *entity.Application
	var batch event.Batch

	err := uc.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		batch.Reset()
		app, err := tx.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		project, err := tx.LockProject(ctx, app.ProjectID)
		if err != nil {
			return shared.LedgerError(err, apperror.ErrProjectNotFound)
		}
		application, err = tx.LockApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if !project.IsOwnedBy(actor.ID) {
			return apperror.ErrForbidden
		}
		if !application.IsApplied() {
			return apperror.New(apperror.ErrCodeInvalidState, "отклик уже рассмотрен")
		}
		if err := application.Reject(); err != nil {
			return err
		}
		if err := tx.UpdateApplicationStatus(ctx, application, valueobject.ApplicationStatusApplied); err != nil {
			return err
		}
		batch.Add(event.ApplicationChanged(application, string(valueobject.ApplicationStatusApplied)))
		return nil
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrApplicationNotFound)
	}

	metrics.RecordTransition("application", string(application.Status))
	shared.Publish(ctx, uc.publisher, &batch)
	return application, nil
}

// ListForProject — отклики по проекту, видны только заказчику.
func (uc *Arbitration) ListForProject(ctx context.Context, actor valueobject.Actor, projectID uuid.UUID) ([]*entity.Application, error) {
	project, err := uc.ledger.GetProject(ctx, projectID)
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrProjectNotFound)
	}
	if !project.IsOwnedBy(actor.ID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	applications, err := uc.ledger.ListApplicationsByProject(ctx, projectID)
	if err != nil {
		return nil, shared.LedgerError(err, nil)
	}
	return applications, nil
}

// ListMine возвращает отклики исполнителя по всем проектам, от новых к старым.
func (uc *Arbitration) ListMine(ctx context.Context, actor valueobject.Actor) ([]*entity.Application, error) {
	if actor.Role != valueobject.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "список своих откликов доступен исполнителю")
	}
	applications, err := uc.ledger.ListApplicationsByFreelancer(ctx, actor.ID)
	if err != nil {
		return nil, shared.LedgerError(err, nil)
	}
	return applications, nil
}
