// Package postgres implements the aggregate and document stores on
// PostgreSQL: aggregates as JSONB rows through database/sql, documents as
// JSONB rows through a pgx pool.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/facet-db/facet/internal/store"
)

// Constraint violation errors surfaced to callers
var (
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
	ErrCheckViolation      = errors.New("check constraint violation")
	ErrNotNullViolation    = errors.New("not null constraint violation")
)

// convertError maps driver errors to the store's error types. Both drivers
// are covered: lib/pq carries the aggregate store, pgx the document store.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return convertCode(string(pqErr.Code), pqErr.Detail, pqErr.Column, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return convertCode(pgErr.Code, pgErr.Detail, pgErr.ColumnName, err)
	}

	return err
}

func convertCode(code, detail, column string, err error) error {
	switch code {
	case "23505": // unique_violation
		return fmt.Errorf("%w: %s", ErrUniqueViolation, detail)
	case "23503": // foreign_key_violation
		return fmt.Errorf("%w: %s", ErrForeignKeyViolation, detail)
	case "23514": // check_violation
		return fmt.Errorf("%w: %s", ErrCheckViolation, detail)
	case "23502": // not_null_violation
		return fmt.Errorf("%w: column %s", ErrNotNullViolation, column)
	}
	return err
}
