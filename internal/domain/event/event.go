package event

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Имена событий смены статуса, на которые подписываются чат и уведомления.
const (
	ContractCreated   = "contract.created"
	ContractStatus    = "contract.status_changed"
	PaymentStatus     = "payment.status_changed"
	ApplicationStatus = "application.status_changed"
	PayoutAccountSync = "payout_account.updated"
)

// StatusChanged описывает смену статуса сущности. Получатели только читают.
type StatusChanged struct {
	Name       string    `json:"event"`
	EntityID   uuid.UUID `json:"entity_id"`
	ContractID uuid.UUID `json:"contract_id"`
	ProjectID  uuid.UUID `json:"project_id"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	// Recipients — участники, которых касается событие.
	Recipients []uuid.UUID `json:"-"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher доставляет события подписчикам. Ошибки доставки не откатывают операцию.
type Publisher interface {
	Publish(ctx context.Context, evt StatusChanged) error
}

// Multi рассылает событие всем издателям и возвращает первую ошибку.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt StatusChanged) error {
	var firstErr error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Nop ничего не публикует.
type Nop struct{}

func (Nop) Publish(context.Context, StatusChanged) error { return nil }

// Batch копит события внутри транзакции; публикуются только после коммита.
type Batch struct {
	events []StatusChanged
}

func (b *Batch) Add(evt StatusChanged) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	b.events = append(b.events, evt)
}

func (b *Batch) Events() []StatusChanged {
	return b.events
}

func (b *Batch) Reset() {
	b.events = b.events[:0]
}
