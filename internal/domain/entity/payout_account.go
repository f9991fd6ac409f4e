package entity

import (
	"time"

	"github.com/google/uuid"
)

// PayoutAccount — счёт исполнителя у платёжного провайдера для получения выплат.
type PayoutAccount struct {
	UserID        uuid.UUID
	Provider      string
	DestinationID string
	Ready         bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPayoutAccount(userID uuid.UUID, provider, destinationID string) *PayoutAccount {
	now := time.Now().UTC()
	return &PayoutAccount{
		UserID:        userID,
		Provider:      provider,
		DestinationID: destinationID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetReady возвращает true, если состояние изменилось.
func (a *PayoutAccount) SetReady(ready bool) bool {
	if a.Ready == ready {
		return false
	}
	a.Ready = ready
	a.UpdatedAt = time.Now().UTC()
	return true
}
