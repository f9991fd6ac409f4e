package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

type ContractResponse struct {
	ID               uuid.UUID `json:"id"`
	ProjectID        uuid.UUID `json:"project_id"`
	EmployerID       uuid.UUID `json:"employer_id"`
	FreelancerID     uuid.UUID `json:"freelancer_id"`
	ApplicationID    uuid.UUID `json:"application_id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	PaymentIntentRef *string   `json:"payment_intent_ref,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func ToContractResponse(c *entity.Contract) ContractResponse {
	return ContractResponse{
		ID:               c.ID,
		ProjectID:        c.ProjectID,
		EmployerID:       c.EmployerID,
		FreelancerID:     c.FreelancerID,
		ApplicationID:    c.ApplicationID,
		Amount:           c.Amount,
		Currency:         c.Currency,
		Status:           string(c.Status),
		PaymentIntentRef: c.PaymentIntentRef,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func ToContractResponses(contracts []*entity.Contract) []ContractResponse {
	out := make([]ContractResponse, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, ToContractResponse(c))
	}
	return out
}

// PaymentResponse не раскрывает ключ идемпотентности.
type PaymentResponse struct {
	ID             uuid.UUID `json:"id"`
	ContractID     uuid.UUID `json:"contract_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	PayerID        uuid.UUID `json:"payer_id"`
	PayeeID        uuid.UUID `json:"payee_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Commission     int64     `json:"commission"`
	NetAmount      *int64    `json:"net_amount,omitempty"`
	Provider       string    `json:"provider"`
	Status         string    `json:"status"`
	TransactionRef *string   `json:"transaction_ref,omitempty"`
	TransferRef    *string   `json:"transfer_ref,omitempty"`
	RefundRef      *string   `json:"refund_ref,omitempty"`
	FailureReason  *string   `json:"failure_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func ToPaymentResponse(p *entity.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		ContractID:     p.ContractID,
		ProjectID:      p.ProjectID,
		PayerID:        p.PayerID,
		PayeeID:        p.PayeeID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Commission:     p.Commission,
		NetAmount:      p.NetAmount,
		Provider:       p.Provider,
		Status:         string(p.Status),
		TransactionRef: p.TransactionRef,
		TransferRef:    p.TransferRef,
		RefundRef:      p.RefundRef,
		FailureReason:  p.FailureReason,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func ToPaymentResponses(payments []*entity.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, ToPaymentResponse(p))
	}
	return out
}

// FundResponse содержит client secret для подтверждения оплаты на клиенте.
type FundResponse struct {
	Payment      PaymentResponse `json:"payment"`
	ClientSecret string          `json:"client_secret,omitempty"`
}

type RegisterPayoutRequest struct {
	Email string `json:"email" binding:"omitempty,email"`
}

type PayoutAccountResponse struct {
	UserID        uuid.UUID `json:"user_id"`
	Provider      string    `json:"provider"`
	DestinationID string    `json:"destination_id"`
	Ready         bool      `json:"ready"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func ToPayoutAccountResponse(a *entity.PayoutAccount) PayoutAccountResponse {
	return PayoutAccountResponse{
		UserID:        a.UserID,
		Provider:      a.Provider,
		DestinationID: a.DestinationID,
		Ready:         a.Ready,
		UpdatedAt:     a.UpdatedAt,
	}
}

type WebhookResponse struct {
	Received bool   `json:"received"`
	Result   string `json:"result"`
}
