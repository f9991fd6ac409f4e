package project

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/metrics"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/shared"
	"github.com/ignatzorin/freelance-escrow/internal/validation"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type CreateProjectInput struct {
	Title       string
	Description string
	BudgetMin   int64
	BudgetMax   int64
	Currency    string
}

// UpdateProjectInput — новые данные открытого проекта. Пустая валюта оставляет текущую.
type UpdateProjectInput = CreateProjectInput

// Page — страница проектов.
type Page struct {
	Projects []*entity.Project
	Total    int
	Limit    int
	Offset   int
}

// Catalog — публикация и просмотр проектов.
type Catalog struct {
	ledger          repository.Ledger
	defaultCurrency string
}

func NewCatalog(ledger repository.Ledger) *Catalog {
	return &Catalog{ledger: ledger, defaultCurrency: valueobject.DefaultCurrency}
}

// WithDefaultCurrency задаёт валюту проектов, опубликованных без явной валюты.
func (uc *Catalog) WithDefaultCurrency(currency string) *Catalog {
	if currency != "" {
		uc.defaultCurrency = currency
	}
	return uc
}

func (uc *Catalog) Create(ctx context.Context, actor valueobject.Actor, input CreateProjectInput) (*entity.Project, error) {
	if actor.Role == valueobject.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "публиковать проекты может только заказчик")
	}

	if err := validation.ValidateProject(input.Title, input.Description); err != nil {
		return nil, err
	}

	currency := input.Currency
	if currency == "" {
		currency = uc.defaultCurrency
	}
	project, err := entity.NewProject(actor.ID, input.Title, input.Description, input.BudgetMin, input.BudgetMax, currency)
	if err != nil {
		return nil, err
	}

	err = uc.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateProject(ctx, project)
	})
	if err != nil {
		return nil, shared.LedgerError(err, nil)
	}

	logger.Log.WithFields(logrus.Fields{
		"project_id":  project.ID,
		"employer_id": project.EmployerID,
	}).Info("проект опубликован")
	return project, nil
}

func (uc *Catalog) Get(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	project, err := uc.ledger.GetProject(ctx, id)
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrProjectNotFound)
	}
	return project, nil
}

func (uc *Catalog) ListOpen(ctx context.Context, limit, offset int) (Page, error) {
	limit, offset = normalizePage(limit, offset)
	projects, total, err := uc.ledger.ListOpenProjects(ctx, limit, offset)
	if err != nil {
		return Page{}, shared.LedgerError(err, nil)
	}
	return Page{Projects: projects, Total: total, Limit: limit, Offset: offset}, nil
}

// ListMine возвращает проекты заказчика во всех статусах, от новых к старым.
func (uc *Catalog) ListMine(ctx context.Context, actor valueobject.Actor, limit, offset int) (Page, error) {
	if actor.Role == valueobject.RoleFreelancer {
		return Page{}, apperror.New(apperror.ErrCodeForbidden, "список своих проектов доступен заказчику")
	}
	limit, offset = normalizePage(limit, offset)
	projects, total, err := uc.ledger.ListProjectsByEmployer(ctx, actor.ID, limit, offset)
	if err != nil {
		return Page{}, shared.LedgerError(err, nil)
	}
	return Page{Projects: projects, Total: total, Limit: limit, Offset: offset}, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Update редактирует проект владельца, пока тот открыт.
func (uc *Catalog) Update(ctx context.Context, actor valueobject.Actor, projectID uuid.UUID, input UpdateProjectInput) (*entity.Project, error) {
	if err := validation.ValidateProject(input.Title, input.Description); err != nil {
		return nil, err
	}

	var project *entity.Project
	err := uc.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		project, err = tx.LockProject(ctx, projectID)
		if err != nil {
			return err
		}
		if !project.IsOwnedBy(actor.ID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		if err := project.Edit(input.Title, input.Description, input.BudgetMin, input.BudgetMax, input.Currency); err != nil {
			return err
		}
		return tx.UpdateProjectDetails(ctx, project, valueobject.ProjectStatusOpen)
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrProjectNotFound)
	}

	logger.Log.WithFields(logrus.Fields{
		"project_id": project.ID,
		"actor_id":   actor.ID,
	}).Info("проект обновлён")
	return project, nil
}

// Close снимает открытый проект с публикации. Проекты с исполнителем закрываются отменой контракта.
func (uc *Catalog) Close(ctx context.Context, actor valueobject.Actor, projectID uuid.UUID) (*entity.Project, error) {
	var project *entity.Project
	err := uc.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		project, err = tx.LockProject(ctx, projectID)
		if err != nil {
			return err
		}
		if !project.IsOwnedBy(actor.ID) && !actor.IsAdmin() {
			return apperror.ErrForbidden
		}
		if !project.IsOpen() {
			return apperror.New(apperror.ErrCodeInvalidState, "закрыть можно только открытый проект")
		}
		if err := project.Close(); err != nil {
			return err
		}
		return tx.UpdateProjectStatus(ctx, project, valueobject.ProjectStatusOpen)
	})
	if err != nil {
		return nil, shared.LedgerError(err, apperror.ErrProjectNotFound)
	}

	metrics.RecordTransition("project", string(project.Status))
	return project, nil
}
