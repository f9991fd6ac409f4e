package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Contract связывает заказчика и исполнителя по принятому отклику.
// Сумма — снимок ставки на момент принятия, а не ссылка на отклик.
type Contract struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	EmployerID       uuid.UUID
	FreelancerID     uuid.UUID
	ApplicationID    uuid.UUID
	Amount           int64
	Currency         string
	Status           valueobject.ContractStatus
	PaymentIntentRef *string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewContractFromApplication(project *Project, application *Application) (*Contract, error) {
	if application.ProjectID != project.ID {
		return nil, apperror.New(apperror.ErrCodeValidation, "отклик не относится к проекту")
	}
	if !application.IsAccepted() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "контракт создаётся только по принятому отклику")
	}

	now := time.Now().UTC()
	return &Contract{
		ID:            uuid.New(),
		ProjectID:     project.ID,
		EmployerID:    project.EmployerID,
		FreelancerID:  application.FreelancerID,
		ApplicationID: application.ID,
		Amount:        application.BidAmount,
		Currency:      project.Currency,
		Status:        valueobject.ContractStatusPendingPayment,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (c *Contract) transition(next valueobject.ContractStatus, message string) error {
	if !c.Status.CanTransitionTo(next) {
		return apperror.New(apperror.ErrCodeInvalidState, message)
	}
	c.Status = next
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Contract) MarkInProgress() error {
	return c.transition(valueobject.ContractStatusInProgress, "контракт уже оплачен или закрыт")
}

func (c *Contract) Complete() error {
	return c.transition(valueobject.ContractStatusCompleted, "завершить можно только оплаченный контракт в работе")
}

func (c *Contract) Cancel() error {
	return c.transition(valueobject.ContractStatusCancelled, "контракт уже завершён или отменён")
}

func (c *Contract) SetPaymentIntent(ref string) {
	c.PaymentIntentRef = &ref
	c.UpdatedAt = time.Now().UTC()
}

func (c *Contract) Money() valueobject.Money {
	return valueobject.Money{Amount: c.Amount, Currency: c.Currency}
}

func (c *Contract) IsParticipant(userID uuid.UUID) bool {
	return c.EmployerID == userID || c.FreelancerID == userID
}

// GroupKey связывает удержание и последующий перевод у провайдера.
func (c *Contract) GroupKey() string {
	return "contract_" + c.ID.String()
}
