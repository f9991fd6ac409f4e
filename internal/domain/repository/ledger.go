package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

// Reader — чтение зафиксированного состояния.
type Reader interface {
	GetProject(ctx context.Context, id uuid.UUID) (*entity.Project, error)
	// ListOpenProjects возвращает страницу открытых проектов и их общее число.
	ListOpenProjects(ctx context.Context, limit, offset int) ([]*entity.Project, int, error)
	ListProjectsByEmployer(ctx context.Context, employerID uuid.UUID, limit, offset int) ([]*entity.Project, int, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*entity.Application, error)
	ListApplicationsByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Application, error)
	ListApplicationsByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*entity.Application, error)
	GetContract(ctx context.Context, id uuid.UUID) (*entity.Contract, error)
	GetContractByApplication(ctx context.Context, applicationID uuid.UUID) (*entity.Contract, error)
	ListContractsByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Contract, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	// ListPaymentsByContract возвращает платежи в порядке создания.
	ListPaymentsByContract(ctx context.Context, contractID uuid.UUID) ([]*entity.Payment, error)
	GetPaymentByTransactionRef(ctx context.Context, ref string) (*entity.Payment, error)
	GetPayoutAccount(ctx context.Context, userID uuid.UUID) (*entity.PayoutAccount, error)
	GetPayoutAccountByDestination(ctx context.Context, destinationID string) (*entity.PayoutAccount, error)
}

// Tx — единица работы. Блокировки берутся в порядке
// Project -> Application -> Contract -> Payment.
type Tx interface {
	Reader

	LockProject(ctx context.Context, id uuid.UUID) (*entity.Project, error)
	LockApplication(ctx context.Context, id uuid.UUID) (*entity.Application, error)
	LockContract(ctx context.Context, id uuid.UUID) (*entity.Contract, error)
	LockPayment(ctx context.Context, id uuid.UUID) (*entity.Payment, error)

	CreateProject(ctx context.Context, project *entity.Project) error
	// CreateApplication возвращает ErrAlreadyExists для повторного отклика той же пары проект/исполнитель.
	CreateApplication(ctx context.Context, application *entity.Application) error
	CreateContract(ctx context.Context, contract *entity.Contract) error
	CreatePayment(ctx context.Context, payment *entity.Payment) error

	// Update* — условная запись: применяется, только если статус в хранилище равен from,
	// иначе ErrConflict.
	UpdateProjectStatus(ctx context.Context, project *entity.Project, from valueobject.ProjectStatus) error
	UpdateProjectDetails(ctx context.Context, project *entity.Project, from valueobject.ProjectStatus) error
	UpdateApplicationStatus(ctx context.Context, application *entity.Application, from valueobject.ApplicationStatus) error
	RejectOtherApplications(ctx context.Context, projectID, acceptedID uuid.UUID) (int64, error)
	UpdateContract(ctx context.Context, contract *entity.Contract, from valueobject.ContractStatus) error
	UpdatePayment(ctx context.Context, payment *entity.Payment, from valueobject.PaymentStatus) error

	SavePayoutAccount(ctx context.Context, account *entity.PayoutAccount) error
	// MarkEventProcessed возвращает false, если событие уже было применено.
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// AcceptAnomaly — следы частично применённого принятия отклика.
type AcceptAnomaly struct {
	ProjectID uuid.UUID
	Kind      string
}

const (
	AnomalyHiredWithoutAccepted    = "hired_without_accepted_application"
	AnomalyAcceptedWithoutHired    = "accepted_application_on_unhired_project"
	AnomalyAcceptedWithoutContract = "accepted_application_without_contract"
)

// Sweeps — выборки для фоновой сверки.
type Sweeps interface {
	ListStaleInitiatedPayments(ctx context.Context, before time.Time, limit int) ([]*entity.Payment, error)
	ListEscrowedPaymentsOfCancelledContracts(ctx context.Context, limit int) ([]*entity.Payment, error)
	FindAcceptAnomalies(ctx context.Context, limit int) ([]AcceptAnomaly, error)
}

// Ledger — хранилище проектов, откликов, контрактов и платежей.
type Ledger interface {
	Reader
	Sweeps
	// WithinTx выполняет fn атомарно: либо видны все изменения, либо ни одного.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
