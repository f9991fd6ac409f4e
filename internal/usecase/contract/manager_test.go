package contract_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	gwadapter "github.com/ignatzorin/freelance-escrow/internal/infrastructure/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/bid"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/contract"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/escrow"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/project"
)

type env struct {
	ledger      *memory.Ledger
	manager     *contract.Manager
	coordinator *escrow.Coordinator
	employer    valueobject.Actor
	freelancer  valueobject.Actor
	contract    *entity.Contract
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger.Silence()
	ctx := context.Background()

	ledger := memory.NewLedger()
	sandbox := gwadapter.NewSandbox("whsec").WithAutoReady()
	manager := contract.NewManager(ledger, nil)
	coordinator := escrow.NewCoordinator(ledger, sandbox, manager, nil, nil, escrow.Config{
		Commission: valueobject.Commission{BasisPoints: 1000},
	})
	e := &env{
		ledger:      ledger,
		manager:     manager,
		coordinator: coordinator,
		employer:    valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer},
		freelancer:  valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleFreelancer},
	}

	p, err := project.NewCatalog(ledger).Create(ctx, e.employer, project.CreateProjectInput{
		Title: "Интеграция CRM", BudgetMin: 100, BudgetMax: 100000,
	})
	require.NoError(t, err)
	arbitration := bid.NewArbitration(ledger, manager, nil)
	app, err := arbitration.Submit(ctx, e.freelancer, bid.SubmitInput{ProjectID: p.ID, BidAmount: 20000})
	require.NoError(t, err)
	e.contract, err = arbitration.Accept(ctx, e.employer, app.ID)
	require.NoError(t, err)

	account, err := coordinator.RegisterPayoutDestination(ctx, e.freelancer, "")
	require.NoError(t, err)
	require.NotEmpty(t, account.DestinationID)
	_, err = coordinator.RefreshPayoutDestination(ctx, e.freelancer)
	require.NoError(t, err)
	return e
}

func (e *env) fund(t *testing.T) {
	t.Helper()
	_, err := e.coordinator.Fund(context.Background(), e.employer, e.contract.ID)
	require.NoError(t, err)
}

func TestMarkCompleted_RequiresFundedContract(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.manager.MarkCompleted(ctx, e.freelancer, e.contract.ID)
	assert.True(t, apperror.IsInvalidState(err))

	_, err = e.manager.MarkCompleted(ctx, e.employer, e.contract.ID)
	assert.True(t, apperror.IsForbidden(err))

	got, err := e.ledger.GetContract(ctx, e.contract.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ContractStatusPendingPayment, got.Status)
}

func TestMarkCompleted_AfterFunding(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t)

	c, err := e.manager.MarkCompleted(ctx, e.freelancer, e.contract.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ContractStatusCompleted, c.Status)

	_, err = e.manager.MarkCompleted(ctx, e.freelancer, e.contract.ID)
	assert.True(t, apperror.IsInvalidState(err))

	proj, err := e.ledger.GetProject(ctx, c.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusCompleted, proj.Status)
}

func TestCancel_Rules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.manager.Cancel(ctx, e.freelancer, e.contract.ID)
	assert.True(t, apperror.IsForbidden(err))

	c, err := e.manager.Cancel(ctx, e.employer, e.contract.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ContractStatusCancelled, c.Status)

	_, err = e.manager.Cancel(ctx, e.employer, e.contract.ID)
	assert.True(t, apperror.IsInvalidState(err))

	_, err = e.manager.Cancel(ctx, e.employer, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestCancel_CompletedContractStays(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t)
	_, err := e.manager.MarkCompleted(ctx, e.freelancer, e.contract.ID)
	require.NoError(t, err)

	admin := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin}
	_, err = e.manager.Cancel(ctx, admin, e.contract.ID)
	assert.True(t, apperror.IsInvalidState(err))

	got, err := e.ledger.GetContract(ctx, e.contract.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ContractStatusCompleted, got.Status)
}

func TestGetAndPayments_Visibility(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t)

	c, err := e.manager.Get(ctx, e.freelancer, e.contract.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), c.Amount)

	stranger := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleFreelancer}
	_, err = e.manager.Get(ctx, stranger, e.contract.ID)
	assert.True(t, apperror.IsForbidden(err))

	payments, err := e.manager.Payments(ctx, e.employer, e.contract.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(2000), payments[0].Commission)

	mine, err := e.manager.ListMine(ctx, e.freelancer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
