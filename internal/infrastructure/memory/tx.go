package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

type reader struct {
	st *state
}

func (r reader) GetProject(_ context.Context, id uuid.UUID) (*entity.Project, error) {
	p, ok := r.st.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r reader) ListOpenProjects(_ context.Context, limit, offset int) ([]*entity.Project, int, error) {
	return r.pageProjects(func(p entity.Project) bool {
		return p.Status == valueobject.ProjectStatusOpen
	}, limit, offset)
}

func (r reader) ListProjectsByEmployer(_ context.Context, employerID uuid.UUID, limit, offset int) ([]*entity.Project, int, error) {
	return r.pageProjects(func(p entity.Project) bool {
		return p.EmployerID == employerID
	}, limit, offset)
}

// pageProjects отбирает проекты, сортирует от новых к старым и режет страницу.
func (r reader) pageProjects(match func(entity.Project) bool, limit, offset int) ([]*entity.Project, int, error) {
	var out []*entity.Project
	for _, p := range r.st.projects {
		if match(p) {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if offset >= total {
		return []*entity.Project{}, total, nil
	}
	return truncate(out[offset:], limit), total, nil
}

func (r reader) GetApplication(_ context.Context, id uuid.UUID) (*entity.Application, error) {
	a, ok := r.st.applications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r reader) ListApplicationsByProject(_ context.Context, projectID uuid.UUID) ([]*entity.Application, error) {
	out := []*entity.Application{}
	for _, a := range r.st.applications {
		if a.ProjectID == projectID {
			cp := a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r reader) ListApplicationsByFreelancer(_ context.Context, freelancerID uuid.UUID) ([]*entity.Application, error) {
	out := []*entity.Application{}
	for _, a := range r.st.applications {
		if a.FreelancerID == freelancerID {
			cp := a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r reader) GetContract(_ context.Context, id uuid.UUID) (*entity.Contract, error) {
	c, ok := r.st.contracts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r reader) GetContractByApplication(_ context.Context, applicationID uuid.UUID) (*entity.Contract, error) {
	for _, c := range r.st.contracts {
		if c.ApplicationID == applicationID {
			cp := c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r reader) ListContractsByUser(_ context.Context, userID uuid.UUID) ([]*entity.Contract, error) {
	out := []*entity.Contract{}
	for _, c := range r.st.contracts {
		if c.EmployerID == userID || c.FreelancerID == userID {
			cp := c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r reader) GetPayment(_ context.Context, id uuid.UUID) (*entity.Payment, error) {
	p, ok := r.st.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r reader) ListPaymentsByContract(_ context.Context, contractID uuid.UUID) ([]*entity.Payment, error) {
	out := []*entity.Payment{}
	for _, p := range r.st.payments {
		if p.ContractID == contractID {
			cp := p
			out = append(out, &cp)
		}
	}
	sortPayments(out)
	return out, nil
}

func (r reader) GetPaymentByTransactionRef(_ context.Context, ref string) (*entity.Payment, error) {
	for _, p := range r.st.payments {
		if p.TransactionRef != nil && *p.TransactionRef == ref {
			cp := p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r reader) GetPayoutAccount(_ context.Context, userID uuid.UUID) (*entity.PayoutAccount, error) {
	a, ok := r.st.accounts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r reader) GetPayoutAccountByDestination(_ context.Context, destinationID string) (*entity.PayoutAccount, error) {
	for _, a := range r.st.accounts {
		if a.DestinationID == destinationID {
			cp := a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// memTx пишет в рабочую копию. Сериализация транзакций даёт те же гарантии, что FOR UPDATE.
type memTx struct {
	reader
}

func (t *memTx) LockProject(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	return t.GetProject(ctx, id)
}

func (t *memTx) LockApplication(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	return t.GetApplication(ctx, id)
}

func (t *memTx) LockContract(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	return t.GetContract(ctx, id)
}

func (t *memTx) LockPayment(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return t.GetPayment(ctx, id)
}

func (t *memTx) CreateProject(_ context.Context, project *entity.Project) error {
	if _, ok := t.st.projects[project.ID]; ok {
		return repository.ErrAlreadyExists
	}
	t.st.projects[project.ID] = *project
	return nil
}

func (t *memTx) CreateApplication(_ context.Context, application *entity.Application) error {
	for _, a := range t.st.applications {
		if a.ID == application.ID ||
			(a.ProjectID == application.ProjectID && a.FreelancerID == application.FreelancerID) {
			return repository.ErrAlreadyExists
		}
	}
	t.st.applications[application.ID] = *application
	return nil
}

func (t *memTx) CreateContract(_ context.Context, contract *entity.Contract) error {
	for _, c := range t.st.contracts {
		if c.ID == contract.ID || c.ApplicationID == contract.ApplicationID {
			return repository.ErrAlreadyExists
		}
	}
	t.st.contracts[contract.ID] = *contract
	return nil
}

func (t *memTx) CreatePayment(_ context.Context, payment *entity.Payment) error {
	if _, ok := t.st.payments[payment.ID]; ok {
		return repository.ErrAlreadyExists
	}
	t.st.payments[payment.ID] = *payment
	return nil
}

func (t *memTx) UpdateProjectStatus(_ context.Context, project *entity.Project, from valueobject.ProjectStatus) error {
	cur, ok := t.st.projects[project.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != from {
		return repository.ErrConflict
	}
	cur.Status = project.Status
	cur.UpdatedAt = project.UpdatedAt
	t.st.projects[project.ID] = cur
	return nil
}

func (t *memTx) UpdateProjectDetails(_ context.Context, project *entity.Project, from valueobject.ProjectStatus) error {
	cur, ok := t.st.projects[project.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != from {
		return repository.ErrConflict
	}
	cur.Title = project.Title
	cur.Description = project.Description
	cur.Budget = project.Budget
	cur.Currency = project.Currency
	cur.UpdatedAt = project.UpdatedAt
	t.st.projects[project.ID] = cur
	return nil
}

func (t *memTx) UpdateApplicationStatus(_ context.Context, application *entity.Application, from valueobject.ApplicationStatus) error {
	cur, ok := t.st.applications[application.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != from {
		return repository.ErrConflict
	}
	if application.Status == valueobject.ApplicationStatusAccepted {
		for id, a := range t.st.applications {
			if id != application.ID && a.ProjectID == application.ProjectID && a.Status == valueobject.ApplicationStatusAccepted {
				return repository.ErrAlreadyExists
			}
		}
	}
	cur.Status = application.Status
	cur.UpdatedAt = application.UpdatedAt
	t.st.applications[application.ID] = cur
	return nil
}

func (t *memTx) RejectOtherApplications(_ context.Context, projectID, acceptedID uuid.UUID) (int64, error) {
	var n int64
	now := time.Now().UTC()
	for id, a := range t.st.applications {
		if a.ProjectID != projectID || id == acceptedID || a.Status != valueobject.ApplicationStatusApplied {
			continue
		}
		a.Status = valueobject.ApplicationStatusRejected
		a.UpdatedAt = now
		t.st.applications[id] = a
		n++
	}
	return n, nil
}

// UpdateContract сверяет статус и версию, затем увеличивает версию.
func (t *memTx) UpdateContract(_ context.Context, contract *entity.Contract, from valueobject.ContractStatus) error {
	cur, ok := t.st.contracts[contract.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != from || cur.Version != contract.Version {
		return repository.ErrConflict
	}
	contract.Version++
	t.st.contracts[contract.ID] = *contract
	return nil
}

func (t *memTx) UpdatePayment(_ context.Context, payment *entity.Payment, from valueobject.PaymentStatus) error {
	cur, ok := t.st.payments[payment.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status != from || cur.Version != payment.Version {
		return repository.ErrConflict
	}
	if payment.Status == valueobject.PaymentStatusEscrowed {
		for id, p := range t.st.payments {
			if id != payment.ID && p.ContractID == payment.ContractID && p.Status == valueobject.PaymentStatusEscrowed {
				return repository.ErrAlreadyExists
			}
		}
	}
	payment.Version++
	t.st.payments[payment.ID] = *payment
	return nil
}

func (t *memTx) SavePayoutAccount(_ context.Context, account *entity.PayoutAccount) error {
	for uid, a := range t.st.accounts {
		if uid != account.UserID && a.DestinationID == account.DestinationID {
			return repository.ErrAlreadyExists
		}
	}
	t.st.accounts[account.UserID] = *account
	return nil
}

func (t *memTx) MarkEventProcessed(_ context.Context, eventID, _ string) (bool, error) {
	if _, ok := t.st.events[eventID]; ok {
		return false, nil
	}
	t.st.events[eventID] = time.Now().UTC()
	return true, nil
}
