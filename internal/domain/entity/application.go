package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/pkg/apperror"
)

// Application — отклик (ставка) исполнителя на проект.
type Application struct {
	ID               uuid.UUID
	ProjectID        uuid.UUID
	FreelancerID     uuid.UUID
	BidAmount        int64
	ProposedTimeline string
	CoverLetter      string
	Status           valueobject.ApplicationStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewApplication(projectID, freelancerID uuid.UUID, bidAmount int64, proposedTimeline, coverLetter string) (*Application, error) {
	if bidAmount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "ставка должна быть положительной")
	}
	if bidAmount > valueobject.MaxAmount {
		return nil, apperror.New(apperror.ErrCodeValidation, "ставка превышает допустимый максимум")
	}
	if freelancerID == uuid.Nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указан исполнитель")
	}

	now := time.Now().UTC()
	return &Application{
		ID:               uuid.New(),
		ProjectID:        projectID,
		FreelancerID:     freelancerID,
		BidAmount:        bidAmount,
		ProposedTimeline: strings.TrimSpace(proposedTimeline),
		CoverLetter:      strings.TrimSpace(coverLetter),
		Status:           valueobject.ApplicationStatusApplied,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (a *Application) Accept() error {
	if !a.Status.CanTransitionTo(valueobject.ApplicationStatusAccepted) {
		return apperror.New(apperror.ErrCodeInvalidState, "можно принять только ожидающий отклик")
	}
	a.Status = valueobject.ApplicationStatusAccepted
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *Application) Reject() error {
	if !a.Status.CanTransitionTo(valueobject.ApplicationStatusRejected) {
		return apperror.New(apperror.ErrCodeInvalidState, "можно отклонить только ожидающий отклик")
	}
	a.Status = valueobject.ApplicationStatusRejected
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *Application) IsOwnedBy(userID uuid.UUID) bool {
	return a.FreelancerID == userID
}

func (a *Application) IsApplied() bool {
	return a.Status == valueobject.ApplicationStatusApplied
}

func (a *Application) IsAccepted() bool {
	return a.Status == valueobject.ApplicationStatusAccepted
}
