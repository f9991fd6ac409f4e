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

func TestCancel_RefundsEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, funded := f.funded(t, 10000)

	cancelled, err := f.contracts.Cancel(ctx, f.employer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ContractStatusCancelled, cancelled.Status)

	p := f.payment(t, funded.ID)
	assert.Equal(t, valueobject.PaymentStatusRefunded, p.Status)
	assert.NotNil(t, p.RefundRef)

	proj, err := f.ledger.GetProject(ctx, c.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusClosed, proj.Status)
}

func TestCancel_FailedRefundRetriedBySweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, funded := f.funded(t, 10000)
	f.sandbox.InjectFault(gwadapter.OpCreateRefund, gwadapter.Fault{Err: gateway.ErrUnavailable})

	_, err := f.contracts.Cancel(ctx, f.employer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.PaymentStatusEscrowed, f.payment(t, funded.ID).Status)

	report, err := f.coordinator.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Refunded)
	assert.Equal(t, valueobject.PaymentStatusRefunded, f.payment(t, funded.ID).Status)
}

func TestRefund_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.funded(t, 10000)

	_, err := f.coordinator.Refund(ctx, f.employer, c.ID)
	assert.True(t, apperror.IsInvalidState(err))

	_, err = f.coordinator.Refund(ctx, f.freelancer, c.ID)
	assert.True(t, apperror.IsForbidden(err))

	f.sandbox.InjectFault(gwadapter.OpCreateRefund, gwadapter.Fault{Err: gateway.ErrUnavailable})
	_, err = f.contracts.Cancel(ctx, f.employer, c.ID)
	require.NoError(t, err)

	p, err := f.coordinator.Refund(ctx, f.employer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.PaymentStatusRefunded, p.Status)

	again, err := f.coordinator.Refund(ctx, f.admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
}

func TestCancel_WithoutEscrowHasNothingToRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, 10000)

	_, err := f.contracts.Cancel(ctx, f.employer, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.sandbox.Calls(gwadapter.OpCreateRefund))

	_, err = f.coordinator.RefundContract(ctx, c.ID)
	assert.True(t, apperror.Is(err, apperror.ErrCodeNoEscrowFound))

	_, err = f.coordinator.Fund(ctx, f.employer, c.ID)
	assert.True(t, apperror.IsInvalidState(err))
}
