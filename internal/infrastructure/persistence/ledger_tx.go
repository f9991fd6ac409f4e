package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
)

// pgTx — единица работы внутри одной транзакции PostgreSQL.
// Строки блокируются в порядке projects -> applications -> contracts -> payments.
type pgTx struct {
	pgReader
	tx *sqlx.Tx
}

func (t *pgTx) LockProject(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	return getOne[projectRow, entity.Project](ctx, t.tx, "lock project",
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) LockApplication(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	return getOne[applicationRow, entity.Application](ctx, t.tx, "lock application",
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) LockContract(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	return getOne[contractRow, entity.Contract](ctx, t.tx, "lock contract",
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) LockPayment(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return getOne[paymentRow, entity.Payment](ctx, t.tx, "lock payment",
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) CreateProject(ctx context.Context, p *entity.Project) error {
	query := `INSERT INTO projects (` + projectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := t.tx.ExecContext(ctx, query,
		p.ID, p.EmployerID, p.Title, p.Description, p.Budget.Min.Amount, p.Budget.Max.Amount,
		p.Currency, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapWriteError("create project", err)
	}
	return nil
}

func (t *pgTx) CreateApplication(ctx context.Context, a *entity.Application) error {
	query := `INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := t.tx.ExecContext(ctx, query,
		a.ID, a.ProjectID, a.FreelancerID, a.BidAmount, a.ProposedTimeline, a.CoverLetter,
		a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteError("create application", err)
	}
	return nil
}

func (t *pgTx) CreateContract(ctx context.Context, c *entity.Contract) error {
	query := `INSERT INTO contracts (` + contractColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := t.tx.ExecContext(ctx, query,
		c.ID, c.ProjectID, c.EmployerID, c.FreelancerID, c.ApplicationID, c.Amount, c.Currency,
		c.Status, c.PaymentIntentRef, c.Version, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return mapWriteError("create contract", err)
	}
	return nil
}

func (t *pgTx) CreatePayment(ctx context.Context, p *entity.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := t.tx.ExecContext(ctx, query,
		p.ID, p.ProjectID, p.ContractID, p.PayerID, p.PayeeID, p.Amount, p.Currency, p.Provider,
		p.TransactionRef, p.TransferRef, p.RefundRef, p.Commission, p.NetAmount, p.IdempotencyKey,
		p.FailureReason, p.Status, p.Version, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapWriteError("create payment", err)
	}
	return nil
}

func (t *pgTx) UpdateProjectStatus(ctx context.Context, p *entity.Project, from valueobject.ProjectStatus) error {
	return execCAS(ctx, t.tx, "update project",
		`UPDATE projects SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		p.ID, p.Status, p.UpdatedAt, from)
}

func (t *pgTx) UpdateProjectDetails(ctx context.Context, p *entity.Project, from valueobject.ProjectStatus) error {
	return execCAS(ctx, t.tx, "update project details",
		`UPDATE projects SET title = $2, description = $3, budget_min = $4, budget_max = $5, currency = $6, updated_at = $7
		WHERE id = $1 AND status = $8`,
		p.ID, p.Title, p.Description, p.Budget.Min.Amount, p.Budget.Max.Amount, p.Currency, p.UpdatedAt, from)
}

func (t *pgTx) UpdateApplicationStatus(ctx context.Context, a *entity.Application, from valueobject.ApplicationStatus) error {
	return execCAS(ctx, t.tx, "update application",
		`UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		a.ID, a.Status, a.UpdatedAt, from)
}

func (t *pgTx) RejectOtherApplications(ctx context.Context, projectID, acceptedID uuid.UUID) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE applications SET status = 'rejected', updated_at = $3
		WHERE project_id = $1 AND id <> $2 AND status = 'applied'`,
		projectID, acceptedID, time.Now().UTC())
	if err != nil {
		return 0, mapWriteError("reject applications", err)
	}
	return res.RowsAffected()
}

func (t *pgTx) UpdateContract(ctx context.Context, c *entity.Contract, from valueobject.ContractStatus) error {
	err := execCAS(ctx, t.tx, "update contract",
		`UPDATE contracts SET status = $2, payment_intent_ref = $3, updated_at = $4, version = version + 1
		WHERE id = $1 AND status = $5 AND version = $6`,
		c.ID, c.Status, c.PaymentIntentRef, c.UpdatedAt, from, c.Version)
	if err != nil {
		return err
	}
	c.Version++
	return nil
}

func (t *pgTx) UpdatePayment(ctx context.Context, p *entity.Payment, from valueobject.PaymentStatus) error {
	err := execCAS(ctx, t.tx, "update payment",
		`UPDATE payments SET status = $2, transaction_ref = $3, transfer_ref = $4, refund_ref = $5,
			net_amount = $6, failure_reason = $7, updated_at = $8, version = version + 1
		WHERE id = $1 AND status = $9 AND version = $10`,
		p.ID, p.Status, p.TransactionRef, p.TransferRef, p.RefundRef,
		p.NetAmount, p.FailureReason, p.UpdatedAt, from, p.Version)
	if err != nil {
		return err
	}
	p.Version++
	return nil
}

func (t *pgTx) SavePayoutAccount(ctx context.Context, a *entity.PayoutAccount) error {
	query := `INSERT INTO payout_accounts (` + payoutAccountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET provider = EXCLUDED.provider, destination_id = EXCLUDED.destination_id,
			ready = EXCLUDED.ready, updated_at = EXCLUDED.updated_at`
	_, err := t.tx.ExecContext(ctx, query, a.UserID, a.Provider, a.DestinationID, a.Ready, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapWriteError("save payout account", err)
	}
	return nil
}

func (t *pgTx) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("ledger: mark event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ledger: mark event: %w", err)
	}
	return n == 1, nil
}

// prefixed добавляет алиас таблицы к списку колонок.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
