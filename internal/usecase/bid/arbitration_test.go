package bid

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/event"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-escrow/internal/usecase/contract"
)

type recorder struct {
	mu     sync.Mutex
	events []event.StatusChanged
}

func (r *recorder) Publish(_ context.Context, evt event.StatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

type setup struct {
	ledger   *memory.Ledger
	uc       *Arbitration
	events   *recorder
	employer valueobject.Actor
	project  *entity.Project
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	logger.Silence()

	ledger := memory.NewLedger()
	events := &recorder{}
	employer := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}

	p, err := entity.NewProject(employer.ID, "Мобильное приложение", "", 1000, 50000, "USD")
	require.NoError(t, err)
	require.NoError(t, ledger.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateProject(ctx, p)
	}))

	manager := contract.NewManager(ledger, events)
	return &setup{
		ledger:   ledger,
		uc:       NewArbitration(ledger, manager, events),
		events:   events,
		employer: employer,
		project:  p,
	}
}

func freelancer() valueobject.Actor {
	return valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleFreelancer}
}

func (s *setup) submit(t *testing.T, amount int64) *entity.Application {
	t.Helper()
	app, err := s.uc.Submit(context.Background(), freelancer(), SubmitInput{ProjectID: s.project.ID, BidAmount: amount})
	require.NoError(t, err)
	return app
}

func TestSubmit_Rules(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()

	_, err := s.uc.Submit(ctx, s.employer, SubmitInput{ProjectID: s.project.ID, BidAmount: 1000})
	assert.True(t, apperror.IsForbidden(err))

	owner := valueobject.Actor{ID: s.employer.ID, Role: valueobject.RoleFreelancer}
	_, err = s.uc.Submit(ctx, owner, SubmitInput{ProjectID: s.project.ID, BidAmount: 1000})
	assert.True(t, apperror.IsForbidden(err))

	_, err = s.uc.Submit(ctx, freelancer(), SubmitInput{ProjectID: uuid.New(), BidAmount: 1000})
	assert.True(t, apperror.IsNotFound(err))

	_, err = s.uc.Submit(ctx, freelancer(), SubmitInput{ProjectID: s.project.ID, BidAmount: 0})
	assert.True(t, apperror.IsValidation(err))

	actor := freelancer()
	_, err = s.uc.Submit(ctx, actor, SubmitInput{ProjectID: s.project.ID, BidAmount: 1000})
	require.NoError(t, err)
	_, err = s.uc.Submit(ctx, actor, SubmitInput{ProjectID: s.project.ID, BidAmount: 1200})
	assert.True(t, apperror.Is(err, apperror.ErrCodeAlreadyExists))
}

func TestAccept_CreatesContractAndRejectsSiblings(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	chosen := s.submit(t, 12000)
	other := s.submit(t, 9000)

	c, err := s.uc.Accept(ctx, s.employer, chosen.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), c.Amount)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, chosen.FreelancerID, c.FreelancerID)
	assert.Equal(t, valueobject.ContractStatusPendingPayment, c.Status)

	got, err := s.ledger.GetApplication(ctx, chosen.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ApplicationStatusAccepted, got.Status)

	got, err = s.ledger.GetApplication(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ApplicationStatusRejected, got.Status)

	proj, err := s.ledger.GetProject(ctx, s.project.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ProjectStatusHired, proj.Status)

	byApp, err := s.ledger.GetContractByApplication(ctx, chosen.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byApp.ID)

	assert.ElementsMatch(t, []string{
		event.ApplicationStatus,
		event.ApplicationStatus,
		event.ContractCreated,
	}, s.events.names())

	// новые отклики и повторное принятие запрещены
	_, err = s.uc.Submit(ctx, freelancer(), SubmitInput{ProjectID: s.project.ID, BidAmount: 1000})
	assert.True(t, apperror.IsInvalidState(err))
	_, err = s.uc.Accept(ctx, s.employer, other.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestAccept_OnlyProjectOwner(t *testing.T) {
	s := newSetup(t)
	app := s.submit(t, 5000)

	stranger := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleEmployer}
	_, err := s.uc.Accept(context.Background(), stranger, app.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = s.uc.Accept(context.Background(), s.employer, uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestAccept_ConcurrentOnlyOneWins(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()

	const bidders = 10
	apps := make([]*entity.Application, bidders)
	for i := range apps {
		apps[i] = s.submit(t, int64(1000+i))
	}

	var wg sync.WaitGroup
	errs := make([]error, bidders)
	start := make(chan struct{})
	for i := range apps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.uc.Accept(ctx, s.employer, apps[i].ID)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperror.IsInvalidState(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	stored, err := s.ledger.ListApplicationsByProject(ctx, s.project.ID)
	require.NoError(t, err)
	accepted := 0
	for _, a := range stored {
		switch a.Status {
		case valueobject.ApplicationStatusAccepted:
			accepted++
			c, err := s.ledger.GetContractByApplication(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, a.BidAmount, c.Amount)
		default:
			assert.Equal(t, valueobject.ApplicationStatusRejected, a.Status)
		}
	}
	assert.Equal(t, 1, accepted)
}

// Читатель никогда не видит принятый отклик без отклонённых соседей и нанятого проекта.
func TestAccept_IsAtomicForReaders(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	chosen := s.submit(t, 3000)
	for i := 0; i < 5; i++ {
		s.submit(t, int64(2000+i))
	}

	stop := make(chan struct{})
	violations := make(chan string, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			err := s.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				proj, err := tx.GetProject(ctx, s.project.ID)
				if err != nil {
					return err
				}
				apps, err := tx.ListApplicationsByProject(ctx, s.project.ID)
				if err != nil {
					return err
				}
				anyAccepted := false
				for _, a := range apps {
					if a.IsAccepted() {
						anyAccepted = true
					}
				}
				if !anyAccepted {
					return nil
				}
				if proj.Status != valueobject.ProjectStatusHired {
					return reportViolation(violations, "проект не в статусе hired")
				}
				for _, a := range apps {
					if !a.IsAccepted() && a.Status != valueobject.ApplicationStatusRejected {
						return reportViolation(violations, "сосед не отклонён")
					}
				}
				return nil
			})
			if err != nil {
				return
			}
		}
	}()

	_, err := s.uc.Accept(ctx, s.employer, chosen.ID)
	require.NoError(t, err)
	close(stop)
	wg.Wait()

	select {
	case v := <-violations:
		t.Fatal(v)
	default:
	}
}

func reportViolation(ch chan<- string, msg string) error {
	select {
	case ch <- msg:
	default:
	}
	return nil
}

func TestReject(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	app := s.submit(t, 4000)

	rejected, err := s.uc.Reject(ctx, s.employer, app.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.ApplicationStatusRejected, rejected.Status)

	_, err = s.uc.Reject(ctx, s.employer, app.ID)
	assert.True(t, apperror.IsInvalidState(err))
	_, err = s.uc.Accept(ctx, s.employer, app.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestListForProject(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	s.submit(t, 1000)
	s.submit(t, 2000)

	apps, err := s.uc.ListForProject(ctx, s.employer, s.project.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 2)

	_, err = s.uc.ListForProject(ctx, freelancer(), s.project.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestListMine(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()
	actor := freelancer()

	other, err := entity.NewProject(s.employer.ID, "Чат-бот", "", 0, 9000, "USD")
	require.NoError(t, err)
	require.NoError(t, s.ledger.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateProject(ctx, other)
	}))

	first, err := s.uc.Submit(ctx, actor, SubmitInput{ProjectID: s.project.ID, BidAmount: 1000})
	require.NoError(t, err)
	_, err = s.uc.Submit(ctx, actor, SubmitInput{ProjectID: other.ID, BidAmount: 3000})
	require.NoError(t, err)
	s.submit(t, 1500)

	_, err = s.uc.Reject(ctx, s.employer, first.ID)
	require.NoError(t, err)

	apps, err := s.uc.ListMine(ctx, actor)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	for _, a := range apps {
		assert.Equal(t, actor.ID, a.FreelancerID)
	}

	_, err = s.uc.ListMine(ctx, s.employer)
	assert.True(t, apperror.IsForbidden(err))
}
