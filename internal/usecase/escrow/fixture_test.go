package escrow

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	gwadapter "github.com/ignatzorin/freelance-escrow/internal/infrastructure/gateway"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/bid"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/contract"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/project"
)

const testSecret = "whsec_test"

type fixture struct {
	ledger      *memory.Ledger
	sandbox     *gwadapter.Sandbox
	contracts   *contract.Manager
	arbitration *bid.Arbitration
	catalog     *project.Catalog
	coordinator *Coordinator
	dedup       *fakeDeduper

	employer   valueobject.Actor
	freelancer valueobject.Actor
	admin      valueobject.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger.Silence()

	ledger := memory.NewLedger()
	sandbox := gwadapter.NewSandbox(testSecret)
	contracts := contract.NewManager(ledger, nil)
	dedup := newFakeDeduper()
	return &fixture{
		ledger:      ledger,
		sandbox:     sandbox,
		contracts:   contracts,
		arbitration: bid.NewArbitration(ledger, contracts, nil),
		catalog:     project.NewCatalog(ledger),
		coordinator: NewCoordinator(ledger, sandbox, contracts, nil, dedup, Config{
			Commission: valueobject.Commission{BasisPoints: 500},
		}),
		dedup:      dedup,
		employer:   valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer},
		freelancer: valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleFreelancer},
		admin:      valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin},
	}
}

// newContract проводит проект через публикацию, отклик и принятие.
func (f *fixture) newContract(t *testing.T, bidAmount int64) *entity.Contract {
	t.Helper()
	ctx := context.Background()

	p, err := f.catalog.Create(ctx, f.employer, project.CreateProjectInput{
		Title:     "Лендинг",
		BudgetMin: 1000,
		BudgetMax: 50000,
		Currency:  "USD",
	})
	require.NoError(t, err)

	app, err := f.arbitration.Submit(ctx, f.freelancer, bid.SubmitInput{
		ProjectID:        p.ID,
		BidAmount:        bidAmount,
		ProposedTimeline: "2 недели",
	})
	require.NoError(t, err)

	c, err := f.arbitration.Accept(ctx, f.employer, app.ID)
	require.NoError(t, err)
	return c
}

// readyPayee подключает исполнителю готовый к выплатам счёт.
func (f *fixture) readyPayee(t *testing.T) *entity.PayoutAccount {
	t.Helper()
	ctx := context.Background()

	account, err := f.coordinator.RegisterPayoutDestination(ctx, f.freelancer, "dev@example.com")
	require.NoError(t, err)
	f.sandbox.SetDestinationReady(account.DestinationID, true)
	account, err = f.coordinator.RefreshPayoutDestination(ctx, f.freelancer)
	require.NoError(t, err)
	require.True(t, account.Ready)
	return account
}

// funded возвращает контракт в работе с оплаченным escrow.
func (f *fixture) funded(t *testing.T, bidAmount int64) (*entity.Contract, *entity.Payment) {
	t.Helper()
	c := f.newContract(t, bidAmount)
	f.readyPayee(t)
	res, err := f.coordinator.Fund(context.Background(), f.employer, c.ID)
	require.NoError(t, err)
	return c, res.Payment
}

func (f *fixture) contract(t *testing.T, id uuid.UUID) *entity.Contract {
	t.Helper()
	c, err := f.ledger.GetContract(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (f *fixture) payment(t *testing.T, id uuid.UUID) *entity.Payment {
	t.Helper()
	p, err := f.ledger.GetPayment(context.Background(), id)
	require.NoError(t, err)
	return p
}

type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (d *fakeDeduper) Seen(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id]
}

func (d *fakeDeduper) Remember(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[id] = true
}

func (d *fakeDeduper) Forget() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]bool)
}
