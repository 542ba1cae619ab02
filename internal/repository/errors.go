package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/hwlab/labtrack-api/pkg/errors"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// classify wraps a database error, translating Postgres constraint
// violations into the shared constraint error so handlers can answer
// with 422 instead of a bare 500.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation, pqUniqueViolation:
			return appErrors.Wrap(err, appErrors.ErrConstraintViolation.Code, appErrors.ErrConstraintViolation.Status, appErrors.ErrConstraintViolation.Message)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// expectOne converts a zero-row update or delete into sql.ErrNoRows so
// callers can surface a not-found consistently.
func expectOne(res interface{ RowsAffected() (int64, error) }, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
