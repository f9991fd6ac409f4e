package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

type Project struct {
	ID          uuid.UUID
	EmployerID  uuid.UUID
	Title       string
	Description string
	Budget      valueobject.Budget
	Currency    string
	Status      valueobject.ProjectStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProject(employerID uuid.UUID, title, description string, budgetMin, budgetMax int64, currency string) (*Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название проекта обязательно")
	}
	if employerID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указан заказчик")
	}

	budget, err := valueobject.NewBudget(budgetMin, budgetMax, currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Project{
		ID:          uuid.New(),
		EmployerID:  employerID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Budget:      budget,
		Currency:    budget.Min.Currency,
		Status:      valueobject.ProjectStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Edit меняет описание и бюджет. Разрешено, пока проект открыт и не выбран исполнитель.
func (p *Project) Edit(title, description string, budgetMin, budgetMax int64, currency string) error {
	if !p.IsOpen() {
		return apperror.New(apperror.ErrCodeInvalidState, "редактировать можно только открытый проект")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return apperror.New(apperror.ErrCodeValidation, "название проекта обязательно")
	}
	if currency == "" {
		currency = p.Currency
	}
	budget, err := valueobject.NewBudget(budgetMin, budgetMax, currency)
	if err != nil {
		return err
	}

	p.Title = title
	p.Description = strings.TrimSpace(description)
	p.Budget = budget
	p.Currency = budget.Min.Currency
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (p *Project) transition(next valueobject.ProjectStatus, message string) error {
	if !p.Status.CanTransitionTo(next) {
		return apperror.New(apperror.ErrCodeInvalidState, message)
	}
	p.Status = next
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Hire фиксирует выбор исполнителя.
func (p *Project) Hire() error {
	return p.transition(valueobject.ProjectStatusHired, "проект уже не принимает отклики")
}

func (p *Project) StartWork() error {
	return p.transition(valueobject.ProjectStatusOngoing, "невозможно начать работу по проекту в текущем статусе")
}

func (p *Project) Complete() error {
	return p.transition(valueobject.ProjectStatusCompleted, "невозможно завершить проект в текущем статусе")
}

func (p *Project) Close() error {
	return p.transition(valueobject.ProjectStatusClosed, "невозможно закрыть проект в текущем статусе")
}

func (p *Project) IsOwnedBy(userID uuid.UUID) bool {
	return p.EmployerID == userID
}

func (p *Project) IsOpen() bool {
	return p.Status == valueobject.ProjectStatusOpen
}
