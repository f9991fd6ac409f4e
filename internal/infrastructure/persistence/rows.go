package persistence

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

const (
	projectColumns     = `id, employer_id, title, description, budget_min, budget_max, currency, status, created_at, updated_at`
	applicationColumns = `id, project_id, freelancer_id, bid_amount, proposed_timeline, cover_letter, status, created_at, updated_at`
	contractColumns    = `id, project_id, employer_id, freelancer_id, application_id, amount, currency, status, payment_intent_ref, version, created_at, updated_at`
	paymentColumns     = `id, project_id, contract_id, payer_id, payee_id, amount, currency, provider, transaction_ref, transfer_ref, refund_ref,
		commission, net_amount, idempotency_key, failure_reason, status, version, created_at, updated_at`
	payoutAccountColumns = `user_id, provider, destination_id, ready, created_at, updated_at`
)

type projectRow struct {
	ID          uuid.UUID `db:"id"`
	EmployerID  uuid.UUID `db:"employer_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	BudgetMin   int64     `db:"budget_min"`
	BudgetMax   int64     `db:"budget_max"`
	Currency    string    `db:"currency"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *projectRow) toEntity() *entity.Project {
	return &entity.Project{
		ID:          r.ID,
		EmployerID:  r.EmployerID,
		Title:       r.Title,
		Description: r.Description,
		Budget: valueobject.Budget{
			Min: valueobject.Money{Amount: r.BudgetMin, Currency: r.Currency},
			Max: valueobject.Money{Amount: r.BudgetMax, Currency: r.Currency},
		},
		Currency:  r.Currency,
		Status:    valueobject.ProjectStatus(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type applicationRow struct {
	ID               uuid.UUID `db:"id"`
	ProjectID        uuid.UUID `db:"project_id"`
	FreelancerID     uuid.UUID `db:"freelancer_id"`
	BidAmount        int64     `db:"bid_amount"`
	ProposedTimeline string    `db:"proposed_timeline"`
	CoverLetter      string    `db:"cover_letter"`
	Status           string    `db:"status"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r *applicationRow) toEntity() *entity.Application {
	return &entity.Application{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		FreelancerID:     r.FreelancerID,
		BidAmount:        r.BidAmount,
		ProposedTimeline: r.ProposedTimeline,
		CoverLetter:      r.CoverLetter,
		Status:           valueobject.ApplicationStatus(r.Status),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type contractRow struct {
	ID               uuid.UUID `db:"id"`
	ProjectID        uuid.UUID `db:"project_id"`
	EmployerID       uuid.UUID `db:"employer_id"`
	FreelancerID     uuid.UUID `db:"freelancer_id"`
	ApplicationID    uuid.UUID `db:"application_id"`
	Amount           int64     `db:"amount"`
	Currency         string    `db:"currency"`
	Status           string    `db:"status"`
	PaymentIntentRef *string   `db:"payment_intent_ref"`
	Version          int64     `db:"version"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r *contractRow) toEntity() *entity.Contract {
	return &entity.Contract{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		EmployerID:       r.EmployerID,
		FreelancerID:     r.FreelancerID,
		ApplicationID:    r.ApplicationID,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Status:           valueobject.ContractStatus(r.Status),
		PaymentIntentRef: r.PaymentIntentRef,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type paymentRow struct {
	ID             uuid.UUID `db:"id"`
	ProjectID      uuid.UUID `db:"project_id"`
	ContractID     uuid.UUID `db:"contract_id"`
	PayerID        uuid.UUID `db:"payer_id"`
	PayeeID        uuid.UUID `db:"payee_id"`
	Amount         int64     `db:"amount"`
	Currency       string    `db:"currency"`
	Provider       string    `db:"provider"`
	TransactionRef *string   `db:"transaction_ref"`
	TransferRef    *string   `db:"transfer_ref"`
	RefundRef      *string   `db:"refund_ref"`
	Commission     int64     `db:"commission"`
	NetAmount      *int64    `db:"net_amount"`
	IdempotencyKey string    `db:"idempotency_key"`
	FailureReason  *string   `db:"failure_reason"`
	Status         string    `db:"status"`
	Version        int64     `db:"version"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *paymentRow) toEntity() *entity.Payment {
	return &entity.Payment{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		ContractID:     r.ContractID,
		PayerID:        r.PayerID,
		PayeeID:        r.PayeeID,
		Amount:         r.Amount,
		Currency:       r.Currency,
		Provider:       r.Provider,
		TransactionRef: r.TransactionRef,
		TransferRef:    r.TransferRef,
		RefundRef:      r.RefundRef,
		Commission:     r.Commission,
		NetAmount:      r.NetAmount,
		IdempotencyKey: r.IdempotencyKey,
		FailureReason:  r.FailureReason,
		Status:         valueobject.PaymentStatus(r.Status),
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type payoutAccountRow struct {
	UserID        uuid.UUID `db:"user_id"`
	Provider      string    `db:"provider"`
	DestinationID string    `db:"destination_id"`
	Ready         bool      `db:"ready"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *payoutAccountRow) toEntity() *entity.PayoutAccount {
	return &entity.PayoutAccount{
		UserID:        r.UserID,
		Provider:      r.Provider,
		DestinationID: r.DestinationID,
		Ready:         r.Ready,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
