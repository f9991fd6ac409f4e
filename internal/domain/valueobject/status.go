package valueobject

import "github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"

type ProjectStatus string

const (
	ProjectStatusOpen      ProjectStatus = "open"
	ProjectStatusHired     ProjectStatus = "hired"
	ProjectStatusOngoing   ProjectStatus = "ongoing"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusClosed    ProjectStatus = "closed"
)

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusOpen:      {ProjectStatusHired, ProjectStatusClosed},
	ProjectStatusHired:     {ProjectStatusOngoing, ProjectStatusClosed},
	ProjectStatusOngoing:   {ProjectStatusCompleted, ProjectStatusClosed},
	ProjectStatusCompleted: {},
	ProjectStatusClosed:    {},
}

func (s ProjectStatus) IsValid() bool {
	_, ok := projectTransitions[s]
	return ok
}

func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	return contains(projectTransitions[s], next)
}

func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectStatusCompleted || s == ProjectStatusClosed
}

func NewProjectStatus(status string) (ProjectStatus, error) {
	s := ProjectStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус проекта")
	}
	return s, nil
}

type ApplicationStatus string

const (
	ApplicationStatusApplied  ApplicationStatus = "applied"
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusApplied:  {ApplicationStatusAccepted, ApplicationStatusRejected},
	ApplicationStatusAccepted: {},
	ApplicationStatusRejected: {},
}

func (s ApplicationStatus) IsValid() bool {
	_, ok := applicationTransitions[s]
	return ok
}

func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return contains(applicationTransitions[s], next)
}

func NewApplicationStatus(status string) (ApplicationStatus, error) {
	s := ApplicationStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус отклика")
	}
	return s, nil
}

type ContractStatus string

const (
	ContractStatusPendingPayment ContractStatus = "pending_payment"
	ContractStatusInProgress     ContractStatus = "in_progress"
	ContractStatusCompleted      ContractStatus = "completed"
	ContractStatusCancelled      ContractStatus = "cancelled"
)

// Статус контракта только продвигается вперёд, обратных переходов нет.
var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractStatusPendingPayment: {ContractStatusInProgress, ContractStatusCancelled},
	ContractStatusInProgress:     {ContractStatusCompleted, ContractStatusCancelled},
	ContractStatusCompleted:      {},
	ContractStatusCancelled:      {},
}

func (s ContractStatus) IsValid() bool {
	_, ok := contractTransitions[s]
	return ok
}

func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	return contains(contractTransitions[s], next)
}

func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusCompleted || s == ContractStatusCancelled
}

func NewContractStatus(status string) (ContractStatus, error) {
	s := ContractStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус контракта")
	}
	return s, nil
}

type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusEscrowed  PaymentStatus = "escrowed"
	PaymentStatusReleased  PaymentStatus = "released"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// released достижим только из escrowed.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusInitiated: {PaymentStatusEscrowed, PaymentStatusFailed},
	PaymentStatusEscrowed:  {PaymentStatusReleased, PaymentStatusRefunded},
	PaymentStatusReleased:  {},
	PaymentStatusRefunded:  {},
	PaymentStatusFailed:    {},
}

func (s PaymentStatus) IsValid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return contains(paymentTransitions[s], next)
}

func (s PaymentStatus) IsTerminal() bool {
	return len(paymentTransitions[s]) == 0
}

func NewPaymentStatus(status string) (PaymentStatus, error) {
	s := PaymentStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус платежа")
	}
	return s, nil
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
