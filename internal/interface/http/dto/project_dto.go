package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

// Суммы ограничены valueobject.MaxAmount.
type CreateProjectRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	BudgetMin   int64  `json:"budget_min" binding:"gte=0,lte=100000000000"`
	BudgetMax   int64  `json:"budget_max" binding:"required,gt=0,lte=100000000000"`
	Currency    string `json:"currency"`
}

type UpdateProjectRequest = CreateProjectRequest

type ProjectResponse struct {
	ID          uuid.UUID `json:"id"`
	EmployerID  uuid.UUID `json:"employer_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	BudgetMin   int64     `json:"budget_min"`
	BudgetMax   int64     `json:"budget_max"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToProjectResponse(p *entity.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		EmployerID:  p.EmployerID,
		Title:       p.Title,
		Description: p.Description,
		BudgetMin:   p.Budget.Min.Amount,
		BudgetMax:   p.Budget.Max.Amount,
		Currency:    p.Currency,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func ToProjectResponses(projects []*entity.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, ToProjectResponse(p))
	}
	return out
}

type SubmitApplicationRequest struct {
	BidAmount        int64  `json:"bid_amount" binding:"required,gt=0,lte=100000000000"`
	ProposedTimeline string `json:"proposed_timeline"`
	CoverLetter      string `json:"cover_letter"`
}

type ApplicationResponse struct {
	ID               uuid.UUID `json:"id"`
	ProjectID        uuid.UUID `json:"project_id"`
	FreelancerID     uuid.UUID `json:"freelancer_id"`
	BidAmount        int64     `json:"bid_amount"`
	ProposedTimeline string    `json:"proposed_timeline,omitempty"`
	CoverLetter      string    `json:"cover_letter,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func ToApplicationResponse(a *entity.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:               a.ID,
		ProjectID:        a.ProjectID,
		FreelancerID:     a.FreelancerID,
		BidAmount:        a.BidAmount,
		ProposedTimeline: a.ProposedTimeline,
		CoverLetter:      a.CoverLetter,
		Status:           string(a.Status),
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func ToApplicationResponses(apps []*entity.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, ToApplicationResponse(a))
	}
	return out
}
