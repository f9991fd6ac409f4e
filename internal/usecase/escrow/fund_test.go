package escrow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	gwadapter "github.com/ignatzorin/freelance-escrow/internal/infrastructure/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

func TestFund_MovesContractToInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, 10000)
	f.readyPayee(t)

	res, err := f.coordinator.Fund(ctx, f.employer, c.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.ClientSecret)

	p := f.payment(t, res.Payment.ID)
	assert.Equal(t, valueobject.PaymentStatusEscrowed, p.Status)
	assert.Equal(t, int64(10000), p.Amount)
	assert.Equal(t, int64(500), p.Commission)
	require.NotNil(t, p.TransactionRef)

	got := f.contract(t, c.ID)
	assert.Equal(t, valueobject.ContractStatusInProgress, got.Status)
	require.NotNil(t, got.PaymentIntentRef)
	assert.Equal(t, *p.TransactionRef, *got.PaymentIntentRef)

	proj, err := f.ledger.GetProject(ctx, c.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusOngoing, proj.Status)
}

func TestFund_OnlyEmployer(t *testing.T) {
	f := newFixture(t)
	c := f.newContract(t, 10000)
	f.readyPayee(t)

	_, err := f.coordinator.Fund(context.Background(), f.freelancer, c.ID)
	assert.True(t, apperror.IsForbidden(err))
	assert.Equal(t, 0, f.sandbox.Calls(gwadapter.OpCreateHold))
}

func TestFund_PayeeNotReady(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, 10000)

	_, err := f.coordinator.Fund(ctx, f.employer, c.ID)
	assert.True(t, apperror.Is(err, apperror.ErrCodePayeeNotReady))

	_, err = f.coordinator.RegisterPayoutDestination(ctx, f.freelancer, "")
	require.NoError(t, err)
	_, err = f.coordinator.Fund(ctx, f.employer, c.ID)
	assert.True(t, apperror.Is(err, apperror.ErrCodePayeeNotReady))

	payments, err := f.ledger.ListPaymentsByContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestFund_DeclinedHoldLeavesContractPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, 10000)
	f.readyPayee(t)
	f.sandbox.InjectFault(gwadapter.OpCreateHold, gwadapter.Fault{Err: gateway.ErrDeclined})

	_, err := f.coordinator.Fund(ctx, f.employer, c.ID)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrCodePaymentDeclined))

	assert.Equal(t, valueobject.ContractStatusPendingPayment, f.contract(t, c.ID).Status)
	payments, err := f.ledger.ListPaymentsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, valueobject.PaymentStatusFailed, payments[0].Status)
	assert.NotNil(t, payments[0].FailureReason)

	// после отказа можно оплатить заново новым платежом
	res, err := f.coordinator.Fund(ctx, f.employer, c.ID)
	require.NoError(t, err)
	assert.NotEqual(t, payments[0].ID, res.Payment.ID)
	assert.Equal(t, valueobject.ContractStatusInProgress, f.contract(t, c.ID).Status)
}

func TestFund_TimeoutKeepsInitiatedAndRetryReusesPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, 10000)
	f.readyPayee(t)
	f.sandbox.InjectFault(gwadapter.OpCreateHold, gwadapter.Fault{Err: gateway.ErrUnavailable, AfterEffect: true})

	_, err := f.coordinator.Fund(ctx, f.employer, c.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsRetryable(err))

	payments, err := f.ledger.ListPaymentsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, valueobject.PaymentStatusInitiated, payments[0].Status)
	assert.Equal(t, valueobject.ContractStatusPendingPayment, f.contract(t, c.ID).Status)

	res, err := f.coordinator.Fund(ctx, f.employer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, payments[0].ID, res.Payment.ID)
	assert.Equal(t, valueobject.PaymentStatusEscrowed, res.Payment.Status)
	assert.Equal(t, 2, f.sandbox.Calls(gwadapter.OpCreateHold))
}

func TestFund_SecondCallRejected(t *testing.T) {
	f := newFixture(t)
	c, _ := f.funded(t, 10000)

	_, err := f.coordinator.Fund(context.Background(), f.employer, c.ID)
	assert.True(t, apperror.IsInvalidState(err))
	assert.Equal(t, 1, f.sandbox.Calls(gwadapter.OpCreateHold))
}
