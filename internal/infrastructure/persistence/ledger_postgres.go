package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
)

// LedgerPostgres — реализация repository.Ledger поверх PostgreSQL.
type LedgerPostgres struct {
	db *sqlx.DB
	pgReader
}

func NewLedgerPostgres(db *sqlx.DB) *LedgerPostgres {
	return &LedgerPostgres{db: db, pgReader: pgReader{q: db}}
}

// WithinTx открывает транзакцию READ COMMITTED; сериализацию обеспечивают FOR UPDATE и условные UPDATE.
func (l *LedgerPostgres) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return withTransaction(ctx, l.db, func(tx *sqlx.Tx) error {
		return fn(ctx, &pgTx{pgReader: pgReader{q: tx}, tx: tx})
	})
}

func (l *LedgerPostgres) ListStaleInitiatedPayments(ctx context.Context, before time.Time, limit int) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = 'initiated' AND created_at < $1
		ORDER BY created_at LIMIT $2`
	return selectAll[paymentRow, entity.Payment](ctx, l.db, "stale payments", query, before, limit)
}

func (l *LedgerPostgres) ListEscrowedPaymentsOfCancelledContracts(ctx context.Context, limit int) ([]*entity.Payment, error) {
	query := `SELECT ` + prefixed("p", paymentColumns) + ` FROM payments p
		JOIN contracts c ON c.id = p.contract_id
		WHERE p.status = 'escrowed' AND c.status = 'cancelled'
		ORDER BY p.created_at LIMIT $1`
	return selectAll[paymentRow, entity.Payment](ctx, l.db, "escrowed of cancelled", query, limit)
}

func (l *LedgerPostgres) FindAcceptAnomalies(ctx context.Context, limit int) ([]repository.AcceptAnomaly, error) {
	query := `
		SELECT project_id, kind FROM (
			SELECT p.id AS project_id, $1::text AS kind FROM projects p
			WHERE p.status = 'hired' AND NOT EXISTS (
				SELECT 1 FROM applications a WHERE a.project_id = p.id AND a.status = 'accepted')
			UNION ALL
			SELECT a.project_id, $2::text FROM applications a
			JOIN projects p ON p.id = a.project_id
			WHERE a.status = 'accepted' AND p.status = 'open'
			UNION ALL
			SELECT a.project_id, $3::text FROM applications a
			JOIN projects p ON p.id = a.project_id
			LEFT JOIN contracts c ON c.application_id = a.id
			WHERE a.status = 'accepted' AND p.status <> 'open' AND c.id IS NULL
		) anomalies
		ORDER BY project_id LIMIT $4`

	var rows []struct {
		ProjectID uuid.UUID `db:"project_id"`
		Kind      string    `db:"kind"`
	}
	if err := l.db.SelectContext(ctx, &rows, query,
		repository.AnomalyHiredWithoutAccepted,
		repository.AnomalyAcceptedWithoutHired,
		repository.AnomalyAcceptedWithoutContract,
		limit,
	); err != nil {
		return nil, mapWriteError("accept anomalies", err)
	}

	out := make([]repository.AcceptAnomaly, len(rows))
	for i, r := range rows {
		out[i] = repository.AcceptAnomaly{ProjectID: r.ProjectID, Kind: r.Kind}
	}
	return out, nil
}

// pgReader работает и поверх пула, и поверх открытой транзакции.
type pgReader struct {
	q sqlx.ExtContext
}

func (r pgReader) GetProject(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	return getOne[projectRow, entity.Project](ctx, r.q, "get project",
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

func (r pgReader) ListOpenProjects(ctx context.Context, limit, offset int) ([]*entity.Project, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, `SELECT COUNT(*) FROM projects WHERE status = 'open'`); err != nil {
		return nil, 0, fmt.Errorf("ledger: count open projects: %w", err)
	}
	projects, err := selectAll[projectRow, entity.Project](ctx, r.q, "list open projects",
		`SELECT `+projectColumns+` FROM projects WHERE status = 'open'
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return projects, total, err
}

func (r pgReader) ListProjectsByEmployer(ctx context.Context, employerID uuid.UUID, limit, offset int) ([]*entity.Project, int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.q, &total, `SELECT COUNT(*) FROM projects WHERE employer_id = $1`, employerID); err != nil {
		return nil, 0, fmt.Errorf("ledger: count employer projects: %w", err)
	}
	projects, err := selectAll[projectRow, entity.Project](ctx, r.q, "list employer projects",
		`SELECT `+projectColumns+` FROM projects WHERE employer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, employerID, limit, offset)
	return projects, total, err
}

func (r pgReader) GetApplication(ctx context.Context, id uuid.UUID) (*entity.Application, error) {
	return getOne[applicationRow, entity.Application](ctx, r.q, "get application",
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
}

func (r pgReader) ListApplicationsByProject(ctx context.Context, projectID uuid.UUID) ([]*entity.Application, error) {
	return selectAll[applicationRow, entity.Application](ctx, r.q, "list applications",
		`SELECT `+applicationColumns+` FROM applications WHERE project_id = $1 ORDER BY created_at`, projectID)
}

func (r pgReader) ListApplicationsByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*entity.Application, error) {
	return selectAll[applicationRow, entity.Application](ctx, r.q, "list freelancer applications",
		`SELECT `+applicationColumns+` FROM applications WHERE freelancer_id = $1 ORDER BY created_at DESC`, freelancerID)
}

func (r pgReader) GetContract(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	return getOne[contractRow, entity.Contract](ctx, r.q, "get contract",
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
}

func (r pgReader) GetContractByApplication(ctx context.Context, applicationID uuid.UUID) (*entity.Contract, error) {
	return getOne[contractRow, entity.Contract](ctx, r.q, "get contract by application",
		`SELECT `+contractColumns+` FROM contracts WHERE application_id = $1`, applicationID)
}

func (r pgReader) ListContractsByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Contract, error) {
	return selectAll[contractRow, entity.Contract](ctx, r.q, "list contracts",
		`SELECT `+contractColumns+` FROM contracts
		WHERE employer_id = $1 OR freelancer_id = $1 ORDER BY created_at DESC`, userID)
}

func (r pgReader) GetPayment(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	return getOne[paymentRow, entity.Payment](ctx, r.q, "get payment",
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r pgReader) ListPaymentsByContract(ctx context.Context, contractID uuid.UUID) ([]*entity.Payment, error) {
	return selectAll[paymentRow, entity.Payment](ctx, r.q, "list payments",
		`SELECT `+paymentColumns+` FROM payments WHERE contract_id = $1 ORDER BY created_at, id`, contractID)
}

func (r pgReader) GetPaymentByTransactionRef(ctx context.Context, ref string) (*entity.Payment, error) {
	return getOne[paymentRow, entity.Payment](ctx, r.q, "get payment by ref",
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_ref = $1`, ref)
}

func (r pgReader) GetPayoutAccount(ctx context.Context, userID uuid.UUID) (*entity.PayoutAccount, error) {
	return getOne[payoutAccountRow, entity.PayoutAccount](ctx, r.q, "get payout account",
		`SELECT `+payoutAccountColumns+` FROM payout_accounts WHERE user_id = $1`, userID)
}

func (r pgReader) GetPayoutAccountByDestination(ctx context.Context, destinationID string) (*entity.PayoutAccount, error) {
	return getOne[payoutAccountRow, entity.PayoutAccount](ctx, r.q, "get payout account by destination",
		`SELECT `+payoutAccountColumns+` FROM payout_accounts WHERE destination_id = $1`, destinationID)
}
