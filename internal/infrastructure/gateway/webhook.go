package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	domaingw "github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
)

// envelope — конверт события провайдера.
type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object eventObject `json:"object"`
	} `json:"data"`
}

type eventObject struct {
	ID               string            `json:"id"`
	PaymentIntent    string            `json:"payment_intent,omitempty"`
	ChargesEnabled   bool              `json:"charges_enabled,omitempty"`
	PayoutsEnabled   bool              `json:"payouts_enabled,omitempty"`
	DetailsSubmitted bool              `json:"details_submitted,omitempty"`
	LastPaymentError *paymentError     `json:"last_payment_error,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type paymentError struct {
	Message string `json:"message"`
}

// Сопоставление типов событий провайдера с доменными. Доменные имена принимаются как есть.
var eventTypes = map[string]string{
	"account.updated":               domaingw.EventAccountUpdated,
	"payment_intent.succeeded":      domaingw.EventEscrowHoldSucceeded,
	"payment_intent.payment_failed": domaingw.EventEscrowHoldFailed,
	"transfer.created":              domaingw.EventTransferPaid,
	"transfer.paid":                 domaingw.EventTransferPaid,
	"charge.refunded":               domaingw.EventRefundSucceeded,
	"refund.succeeded":              domaingw.EventRefundSucceeded,
	"escrow_hold.succeeded":         domaingw.EventEscrowHoldSucceeded,
	"escrow_hold.failed":            domaingw.EventEscrowHoldFailed,
}

// parseEvent разбирает уже проверенную полезную нагрузку.
func parseEvent(payload []byte) (domaingw.Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domaingw.Event{}, fmt.Errorf("decode webhook: %w", err)
	}
	if env.ID == "" || env.Type == "" {
		return domaingw.Event{}, fmt.Errorf("decode webhook: missing id or type")
	}

	obj := env.Data.Object
	evt := domaingw.Event{
		ID:        env.ID,
		Type:      env.Type,
		ObjectID:  obj.ID,
		Metadata:  obj.Metadata,
		CreatedAt: time.Unix(env.Created, 0).UTC(),
	}
	if mapped, ok := eventTypes[env.Type]; ok {
		evt.Type = mapped
	}

	switch evt.Type {
	case domaingw.EventAccountUpdated:
		evt.Ready = obj.DetailsSubmitted && obj.PayoutsEnabled
	case domaingw.EventEscrowHoldSucceeded:
		evt.HoldID = obj.ID
	case domaingw.EventEscrowHoldFailed:
		evt.HoldID = obj.ID
		if obj.LastPaymentError != nil {
			evt.Reason = obj.LastPaymentError.Message
		}
	case domaingw.EventRefundSucceeded:
		evt.HoldID = obj.PaymentIntent
	}
	if evt.Metadata == nil {
		evt.Metadata = map[string]string{}
	}
	return evt, nil
}

// buildEvent собирает конверт события; используется песочницей.
func buildEvent(id, typ string, obj eventObject, created time.Time) ([]byte, error) {
	env := envelope{ID: id, Type: typ, Created: created.Unix()}
	env.Data.Object = obj
	return json.Marshal(env)
}
