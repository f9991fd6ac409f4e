package escrow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	gwadapter "github.com/ignatzorin/freelance-escrow/internal/infrastructure/gateway"
)

func (f *fixture) later(d time.Duration) {
	f.coordinator.now = func() time.Time { return time.Now().Add(d) }
}

func TestSweep_ReplaysStaleHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, 10000)
	f.readyPayee(t)
	f.sandbox.InjectFault(gwadapter.OpCreateHold, gwadapter.Fault{Err: gateway.ErrUnavailable})

	_, err := f.coordinator.Fund(ctx, f.employer, c.ID)
	require.Error(t, err)

	report, err := f.coordinator.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Replayed, "свежий платёж не трогаем")

	f.later(time.Hour)
	report, err = f.coordinator.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Replayed)
	assert.Equal(t, valueobject.ContractStatusInProgress, f.contract(t, c.ID).Status)

	payments, err := f.ledger.ListPaymentsByContract(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, valueobject.PaymentStatusEscrowed, payments[0].Status)
}

func TestSweep_FailsStalePaymentOfCancelledContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.newContract(t, 10000)
	f.readyPayee(t)
	f.sandbox.InjectFault(gwadapter.OpCreateHold, gwadapter.Fault{Err: gateway.ErrUnavailable})

	_, err := f.coordinator.Fund(ctx, f.employer, c.ID)
	require.Error(t, err)
	_, err = f.contracts.Cancel(ctx, f.employer, c.ID)
	require.NoError(t, err)

	f.later(time.Hour)
	report, err := f.coordinator.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	payments, err := f.ledger.ListPaymentsByContract(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.PaymentStatusFailed, payments[0].Status)
	assert.Equal(t, 1, f.sandbox.Calls(gwadapter.OpCreateHold))
}

func TestSweep_ReportsHalfAppliedAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := entity.NewProject(uuid.New(), "Бот", "", 100, 1000, "USD")
	require.NoError(t, err)
	p.Status = valueobject.ProjectStatusHired
	require.NoError(t, f.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateProject(ctx, p)
	}))

	report, err := f.coordinator.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Anomalies)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.coordinator.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("сверка не остановилась")
	}
}
