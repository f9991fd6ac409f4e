package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

// state — снимок всех таблиц. Транзакция работает с копией и подменяет её при коммите.
type state struct {
	projects     map[uuid.UUID]entity.Project
	applications map[uuid.UUID]entity.Application
	contracts    map[uuid.UUID]entity.Contract
	payments     map[uuid.UUID]entity.Payment
	accounts     map[uuid.UUID]entity.PayoutAccount
	events       map[string]time.Time
}

func newState() *state {
	return &state{
		projects:     make(map[uuid.UUID]entity.Project),
		applications: make(map[uuid.UUID]entity.Application),
		contracts:    make(map[uuid.UUID]entity.Contract),
		payments:     make(map[uuid.UUID]entity.Payment),
		accounts:     make(map[uuid.UUID]entity.PayoutAccount),
		events:       make(map[string]time.Time),
	}
}

func (s *state) clone() *state {
	c := &state{
		projects:     make(map[uuid.UUID]entity.Project, len(s.projects)),
		applications: make(map[uuid.UUID]entity.Application, len(s.applications)),
		contracts:    make(map[uuid.UUID]entity.Contract, len(s.contracts)),
		payments:     make(map[uuid.UUID]entity.Payment, len(s.payments)),
		accounts:     make(map[uuid.UUID]entity.PayoutAccount, len(s.accounts)),
		events:       make(map[string]time.Time, len(s.events)),
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.applications {
		c.applications[k] = v
	}
	for k, v := range s.contracts {
		c.contracts[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

// Ledger — хранилище в памяти для dev-режима и тестов.
// Пишущие транзакции сериализуются одной блокировкой, чтения видят только зафиксированное состояние.
type Ledger struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	cur     *state
}

func NewLedger() *Ledger {
	return &Ledger{cur: newState()}
}

func (l *Ledger) snapshot() *state {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

func (l *Ledger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := l.snapshot().clone()
	if err := fn(ctx, &memTx{reader{st: work}}); err != nil {
		return err
	}

	l.mu.Lock()
	l.cur = work
	l.mu.Unlock()
	return nil
}

// Зафиксированное состояние никогда не изменяется на месте, поэтому чтение снимка без блокировки безопасно.

func (l *Ledger) GetProject(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	return reader{st: l.snapshot()}.GetProject(ctx, id)
}

func (l *Ledger) ListOpenProjects(ctx context.Context, limit, offset int) ([]*entity.Project, int, error) {
	return reader{st: l.snapshot()}.ListOpenProjects(ctx, limit, offset)
}

func (l *Ledger) ListProjectsByEmployer(ctx context.Context, employerID uuid.UUID, limit, offset int) ([]*entity.Project, int, error) {
	return reader{st: l.snapshot()}.ListProjectsByEmployer(ctx, employerID, limit, offset)
}

func (l *Ledger) GetApplication(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	return reader{st: l.snapshot()}.GetApplication(ctx, id)
}

func (l *Ledger) ListApplicationsByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Application, error) {
	return reader{st: l.snapshot()}.ListApplicationsByProject(ctx, projectID)
}

func (l *Ledger) ListApplicationsByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*entity.Application, error) {
	return reader{st: l.snapshot()}.ListApplicationsByFreelancer(ctx, freelancerID)
}

func (l *Ledger) GetContract(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	return reader{st: l.snapshot()}.GetContract(ctx, id)
}

func (l *Ledger) GetContractByApplication(ctx context.Context, applicationID uuid.UUID) (*entity.Contract, error) {
	return reader{st: l.snapshot()}.GetContractByApplication(ctx, applicationID)
}

func (l *Ledger) ListContractsByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Contract, error) {
	return reader{st: l.snapshot()}.ListContractsByUser(ctx, userID)
}

func (l *Ledger) GetPayment(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return reader{st: l.snapshot()}.GetPayment(ctx, id)
}

func (l *Ledger) ListPaymentsByContract(ctx context.Context, contractID uuid.UUID) ([]*entity.Payment, error) {
	return reader{st: l.snapshot()}.ListPaymentsByContract(ctx, contractID)
}

func (l *Ledger) GetPaymentByTransactionRef(ctx context.Context, ref string) (*entity.Payment, error) {
	return reader{st: l.snapshot()}.GetPaymentByTransactionRef(ctx, ref)
}

func (l *Ledger) GetPayoutAccount(ctx context.Context, userID uuid.UUID) (*entity.PayoutAccount, error) {
	return reader{st: l.snapshot()}.GetPayoutAccount(ctx, userID)
}

func (l *Ledger) GetPayoutAccountByDestination(ctx context.Context, destinationID string) (*entity.PayoutAccount, error) {
	return reader{st: l.snapshot()}.GetPayoutAccountByDestination(ctx, destinationID)
}

func (l *Ledger) ListStaleInitiatedPayments(_ context.Context, before time.Time, limit int) ([]*entity.Payment, error) {
	st := l.snapshot()
	var out []*entity.Payment
	for _, p := range st.payments {
		if p.Status == valueobject.PaymentStatusInitiated && p.CreatedAt.Before(before) {
			cp := p
			out = append(out, &cp)
		}
	}
	sortPayments(out)
	return truncate(out, limit), nil
}

func (l *Ledger) ListEscrowedPaymentsOfCancelledContracts(_ context.Context, limit int) ([]*entity.Payment, error) {
	st := l.snapshot()
	var out []*entity.Payment
	for _, p := range st.payments {
		if p.Status != valueobject.PaymentStatusEscrowed {
			continue
		}
		if c, ok := st.contracts[p.ContractID]; ok && c.Status == valueobject.ContractStatusCancelled {
			cp := p
			out = append(out, &cp)
		}
	}
	sortPayments(out)
	return truncate(out, limit), nil
}

func (l *Ledger) FindAcceptAnomalies(_ context.Context, limit int) ([]repository.AcceptAnomaly, error) {
	st := l.snapshot()

	accepted := make(map[uuid.UUID]entity.Application)
	for _, a := range st.applications {
		if a.Status == valueobject.ApplicationStatusAccepted {
			accepted[a.ProjectID] = a
		}
	}
	withContract := make(map[uuid.UUID]bool)
	for _, c := range st.contracts {
		withContract[c.ApplicationID] = true
	}

	var out []repository.AcceptAnomaly
	for _, p := range st.projects {
		app, ok := accepted[p.ID]
		switch {
		case p.Status == valueobject.ProjectStatusHired && !ok:
			out = append(out, repository.AcceptAnomaly{ProjectID: p.ID, Kind: repository.AnomalyHiredWithoutAccepted})
		case ok && p.Status == valueobject.ProjectStatusOpen:
			out = append(out, repository.AcceptAnomaly{ProjectID: p.ID, Kind: repository.AnomalyAcceptedWithoutHired})
		case ok && !withContract[app.ID]:
			out = append(out, repository.AcceptAnomaly{ProjectID: p.ID, Kind: repository.AnomalyAcceptedWithoutContract})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID.String() < out[j].ProjectID.String() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortPayments(list []*entity.Payment) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
}

func truncate[T any](list []T, limit int) []T {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}
