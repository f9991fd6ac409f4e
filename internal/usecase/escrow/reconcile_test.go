package escrow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	gwadapter "github.com/ignatzorin/freelance-escrow/internal/infrastructure/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// pendingHold оставляет платёж initiated: удержание у провайдера создано, ответ потерян.
func (f *fixture) pendingHold(t *testing.T) (*entity.Contract, *entity.Payment, gateway.Hold) {
	t.Helper()
	ctx := context.Background()
	c := f.newContract(t, 10000)
	f.readyPayee(t)
	f.sandbox.InjectFault(gwadapter.OpCreateHold, gwadapter.Fault{Err: gateway.ErrUnavailable, AfterEffect: true})

	_, err := f.coordinator.Fund(ctx, f.employer, c.ID)
	require.True(t, apperror.IsRetryable(err))

	payments, err := f.ledger.ListPaymentsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	p := payments[0]

	hold, err := f.sandbox.CreateEscrowHold(ctx, gateway.HoldRequest{
		Amount:         p.Amount,
		Currency:       p.Currency,
		IdempotencyKey: p.IdempotencyKey,
	})
	require.NoError(t, err)
	return c, p, hold
}

func (f *fixture) webhook(t *testing.T, evt gwadapter.SandboxEvent) ReconcileResult {
	t.Helper()
	payload, header, err := f.sandbox.SignedEvent(evt)
	require.NoError(t, err)
	res, err := f.coordinator.HandleWebhook(context.Background(), payload, header)
	require.NoError(t, err)
	return res
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	payload, _, err := f.sandbox.SignedEvent(gwadapter.SandboxEvent{Type: gateway.EventAccountUpdated, ObjectID: "acct_1"})
	require.NoError(t, err)

	_, err = f.coordinator.HandleWebhook(context.Background(), payload, "t=1,v1=abcd")
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidSignature))
}

func TestReconcile_AccountUpdated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account, err := f.coordinator.RegisterPayoutDestination(ctx, f.freelancer, "dev@example.com")
	require.NoError(t, err)
	assert.False(t, account.Ready)

	res := f.webhook(t, gwadapter.SandboxEvent{Type: gateway.EventAccountUpdated, ObjectID: account.DestinationID, Ready: true})
	assert.Equal(t, ReconcileApplied, res)

	account, err = f.coordinator.GetPayoutAccount(ctx, f.freelancer)
	require.NoError(t, err)
	assert.True(t, account.Ready)
}

func TestReconcile_HoldSucceededIsAppliedOnce(t *testing.T) {
	f := newFixture(t)
	c, p, hold := f.pendingHold(t)

	evt := gwadapter.SandboxEvent{
		ID:       "evt_hold_1",
		Type:     gateway.EventEscrowHoldSucceeded,
		ObjectID: hold.ID,
		Metadata: map[string]string{gateway.MetaPaymentID: p.ID.String()},
	}
	assert.Equal(t, ReconcileApplied, f.webhook(t, evt))

	got := f.payment(t, p.ID)
	assert.Equal(t, valueobject.PaymentStatusEscrowed, got.Status)
	assert.Equal(t, hold.ID, *got.TransactionRef)
	assert.Equal(t, valueobject.ContractStatusInProgress, f.contract(t, c.ID).Status)

	// быстрый путь через дедупликатор
	assert.Equal(t, ReconcileDuplicate, f.webhook(t, evt))

	// без дедупликатора повтор отсекает журнал обработанных событий
	f.dedup.Forget()
	assert.Equal(t, ReconcileDuplicate, f.webhook(t, evt))
	assert.Equal(t, int64(2), f.payment(t, p.ID).Version)
}

func TestReconcile_HoldSucceededAfterFundIsNoop(t *testing.T) {
	f := newFixture(t)
	c, p := f.funded(t, 10000)

	res := f.webhook(t, gwadapter.SandboxEvent{
		Type:     gateway.EventEscrowHoldSucceeded,
		ObjectID: *p.TransactionRef,
	})
	assert.Equal(t, ReconcileApplied, res)
	assert.Equal(t, p.Version, f.payment(t, p.ID).Version)
	assert.Equal(t, valueobject.ContractStatusInProgress, f.contract(t, c.ID).Status)
}

func TestReconcile_HoldFailed(t *testing.T) {
	f := newFixture(t)
	c, p, hold := f.pendingHold(t)

	res := f.webhook(t, gwadapter.SandboxEvent{
		Type:     gateway.EventEscrowHoldFailed,
		ObjectID: hold.ID,
		Reason:   "card_declined",
		Metadata: map[string]string{gateway.MetaPaymentID: p.ID.String()},
	})
	assert.Equal(t, ReconcileApplied, res)

	got := f.payment(t, p.ID)
	assert.Equal(t, valueobject.PaymentStatusFailed, got.Status)
	assert.Equal(t, "card_declined", *got.FailureReason)
	assert.Equal(t, valueobject.ContractStatusPendingPayment, f.contract(t, c.ID).Status)
}

func TestReconcile_HoldSucceededOnCancelledContractRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, p, hold := f.pendingHold(t)

	_, err := f.contracts.Cancel(ctx, f.employer, c.ID)
	require.NoError(t, err)

	f.webhook(t, gwadapter.SandboxEvent{
		Type:     gateway.EventEscrowHoldSucceeded,
		ObjectID: hold.ID,
		Metadata: map[string]string{gateway.MetaPaymentID: p.ID.String()},
	})

	assert.Equal(t, valueobject.PaymentStatusRefunded, f.payment(t, p.ID).Status)
	assert.Equal(t, valueobject.ContractStatusCancelled, f.contract(t, c.ID).Status)
	assert.Equal(t, 1, f.sandbox.Calls(gwadapter.OpCreateRefund))
}

func TestReconcile_TransferAndRefundEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, p := f.funded(t, 10000)
	_, err := f.contracts.MarkCompleted(ctx, f.freelancer, c.ID)
	require.NoError(t, err)

	released, err := f.coordinator.Release(ctx, f.employer, c.ID)
	require.NoError(t, err)

	res := f.webhook(t, gwadapter.SandboxEvent{
		Type:     gateway.EventTransferPaid,
		ObjectID: *released.TransferRef,
		Metadata: map[string]string{gateway.MetaPaymentID: p.ID.String()},
	})
	assert.Equal(t, ReconcileApplied, res)
	assert.Equal(t, released.Version, f.payment(t, p.ID).Version)

	// возврат по уже выплаченному платежу не применяется, но событие записано
	res = f.webhook(t, gwadapter.SandboxEvent{
		Type:     gateway.EventRefundSucceeded,
		ObjectID: "re_1",
		HoldID:   *p.TransactionRef,
	})
	assert.Equal(t, ReconcileIgnored, res)
	assert.Equal(t, valueobject.PaymentStatusReleased, f.payment(t, p.ID).Status)
}

func TestReconcile_UnknownEventsIgnored(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, ReconcileIgnored, f.webhook(t, gwadapter.SandboxEvent{Type: "customer.created", ObjectID: "cus_1"}))
	assert.Equal(t, ReconcileIgnored, f.webhook(t, gwadapter.SandboxEvent{
		Type:     gateway.EventTransferPaid,
		ObjectID: "tr_unknown",
	}))
}
