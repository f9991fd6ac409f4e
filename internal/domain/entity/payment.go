package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Payment — запись о движении средств по контракту. Никогда не удаляется.
type Payment struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	ContractID     uuid.UUID
	PayerID        uuid.UUID
	PayeeID        uuid.UUID
	Amount         int64
	Currency       string
	Provider       string
	TransactionRef *string
	TransferRef    *string
	RefundRef      *string
	Commission     int64
	NetAmount      *int64
	IdempotencyKey string
	FailureReason  *string
	Status         valueobject.PaymentStatus
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewPayment(contract *Contract, provider string, commission valueobject.Commission) *Payment {
	id := uuid.New()
	now := time.Now().UTC()
	return &Payment{
		ID:             id,
		ProjectID:      contract.ProjectID,
		ContractID:     contract.ID,
		PayerID:        contract.EmployerID,
		PayeeID:        contract.FreelancerID,
		Amount:         contract.Amount,
		Currency:       contract.Currency,
		Provider:       provider,
		Commission:     commission.Of(contract.Amount),
		IdempotencyKey: "hold_" + id.String(),
		Status:         valueobject.PaymentStatusInitiated,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (p *Payment) transition(next valueobject.PaymentStatus) error {
	if !p.Status.CanTransitionTo(next) {
		return apperror.New(apperror.ErrCodeInvalidState, "недопустимый переход платежа "+string(p.Status)+" -> "+string(next))
	}
	p.Status = next
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkEscrowed фиксирует подтверждённое провайдером удержание.
func (p *Payment) MarkEscrowed(holdRef string) error {
	if holdRef == "" {
		return apperror.New(apperror.ErrCodeValidation, "нет ссылки на удержание провайдера")
	}
	if err := p.transition(valueobject.PaymentStatusEscrowed); err != nil {
		return err
	}
	p.TransactionRef = &holdRef
	return nil
}

func (p *Payment) MarkFailed(reason string) error {
	if err := p.transition(valueobject.PaymentStatusFailed); err != nil {
		return err
	}
	p.FailureReason = &reason
	return nil
}

func (p *Payment) MarkReleased(transferRef string) error {
	if err := p.transition(valueobject.PaymentStatusReleased); err != nil {
		return err
	}
	net := p.PayoutAmount()
	p.NetAmount = &net
	p.TransferRef = &transferRef
	return nil
}

func (p *Payment) MarkRefunded(refundRef string) error {
	if err := p.transition(valueobject.PaymentStatusRefunded); err != nil {
		return err
	}
	p.RefundRef = &refundRef
	return nil
}

// PayoutAmount — сумма к переводу исполнителю за вычетом комиссии.
func (p *Payment) PayoutAmount() int64 {
	return p.Amount - p.Commission
}

// ReleaseKey — ключ идемпотентности перевода исполнителю.
func (p *Payment) ReleaseKey() string {
	return "release_" + p.ID.String()
}

func (p *Payment) RefundKey() string {
	return "refund_" + p.ID.String()
}

func (p *Payment) Is(status valueobject.PaymentStatus) bool {
	return p.Status == status
}
