package event

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
)

func ContractChanged(c *entity.Contract, from string) StatusChanged {
	name := ContractStatus
	if from == "" {
		name = ContractCreated
	}
	return StatusChanged{
		Name:       name,
		EntityID:   c.ID,
		ContractID: c.ID,
		ProjectID:  c.ProjectID,
		From:       from,
		To:         string(c.Status),
		Recipients: []uuid.UUID{c.EmployerID, c.FreelancerID},
	}
}

func PaymentChanged(p *entity.Payment, from string) StatusChanged {
	return StatusChanged{
		Name:       PaymentStatus,
		EntityID:   p.ID,
		ContractID: p.ContractID,
		ProjectID:  p.ProjectID,
		From:       from,
		To:         string(p.Status),
		Recipients: []uuid.UUID{p.PayerID, p.PayeeID},
	}
}

func ApplicationChanged(a *entity.Application, from string) StatusChanged {
	return StatusChanged{
		Name:       ApplicationStatus,
		EntityID:   a.ID,
		ProjectID:  a.ProjectID,
		From:       from,
		To:         string(a.Status),
		Recipients: []uuid.UUID{a.FreelancerID},
	}
}

func PayoutAccountChanged(a *entity.PayoutAccount) StatusChanged {
	to := "not_ready"
	if a.Ready {
		to = "ready"
	}
	return StatusChanged{
		Name:       PayoutAccountSync,
		EntityID:   a.UserID,
		To:         to,
		Recipients: []uuid.UUID{a.UserID},
	}
}
