package gateway

import (
	"context"
	"errors"
	"time"
)

// Ошибки адаптеров платёжного провайдера.
var (
	// ErrUnavailable — таймаут или временная недоступность, результат вызова неизвестен.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrDeclined — провайдер однозначно отказал.
	ErrDeclined         = errors.New("payment gateway declined request")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Типы входящих событий провайдера.
const (
	EventAccountUpdated      = "account.updated"
	EventEscrowHoldSucceeded = "escrow_hold.succeeded"
	EventEscrowHoldFailed    = "escrow_hold.failed"
	EventTransferPaid        = "transfer.paid"
	EventRefundSucceeded     = "refund.succeeded"
)

// Ключи метаданных, которые передаются провайдеру и возвращаются в событиях.
const (
	MetaPaymentID  = "payment_id"
	MetaContractID = "contract_id"
)

type PayeeIdentity struct {
	UserID string
	Email  string
}

type DestinationStatus struct {
	Ready bool
}

type HoldRequest struct {
	Amount         int64
	Currency       string
	GroupKey       string
	IdempotencyKey string
	Metadata       map[string]string
}

type Hold struct {
	ID           string
	ClientSecret string
}

type TransferRequest struct {
	Amount         int64
	Currency       string
	DestinationID  string
	GroupKey       string
	IdempotencyKey string
	Metadata       map[string]string
}

type RefundRequest struct {
	HoldID         string
	Amount         int64
	IdempotencyKey string
	Metadata       map[string]string
}

// Event — проверенное событие провайдера. HoldID заполняется для событий удержания и возврата.
type Event struct {
	ID        string
	Type      string
	ObjectID  string
	HoldID    string
	Ready     bool
	Reason    string
	Metadata  map[string]string
	CreatedAt time.Time
}

// Gateway абстрагирует внешнего платёжного провайдера.
type Gateway interface {
	Name() string
	CreatePayoutDestination(ctx context.Context, payee PayeeIdentity) (string, error)
	GetPayoutDestinationStatus(ctx context.Context, destinationID string) (DestinationStatus, error)
	CreateEscrowHold(ctx context.Context, req HoldRequest) (Hold, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (string, error)
	CreateRefund(ctx context.Context, req RefundRequest) (string, error)
	VerifyAndParseWebhook(payload []byte, signatureHeader string) (Event, error)
}
