package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/freelance-escrow/internal/domain/repository"
)

// Код PostgreSQL для нарушения уникальности.
const uniqueViolation = "23505"

// row — строка таблицы, которую можно превратить в доменную сущность.
type row[E any] interface {
	toEntity() *E
}

// getOne выполняет запрос на одну строку и маппит sql.ErrNoRows в ErrNotFound.
func getOne[R any, E any, PR interface {
	*R
	row[E]
}](ctx context.Context, q sqlx.QueryerContext, op, query string, args ...any) (*E, error) {
	var r R
	if err := sqlx.GetContext(ctx, q, &r, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ledger: %s: %w", op, err)
	}
	return PR(&r).toEntity(), nil
}

func selectAll[R any, E any, PR interface {
	*R
	row[E]
}](ctx context.Context, q sqlx.QueryerContext, op, query string, args ...any) ([]*E, error) {
	var rows []R
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("ledger: %s: %w", op, err)
	}
	result := make([]*E, len(rows))
	for i := range rows {
		result[i] = PR(&rows[i]).toEntity()
	}
	return result, nil
}

// execCAS выполняет условный UPDATE. Ноль затронутых строк означает, что запись изменили раньше нас.
func execCAS(ctx context.Context, ex sqlx.ExecerContext, op, query string, args ...any) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: %s: %w", op, err)
	}
	if n == 0 {
		return repository.ErrConflict
	}
	return nil
}

func mapWriteError(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("ledger: %s: %w", op, repository.ErrAlreadyExists)
	}
	return fmt.Errorf("ledger: %s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// withTransaction выполняет функцию внутри транзакции с откатом при ошибке или панике.
func withTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
