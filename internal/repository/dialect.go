package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/iliyamo/box-office/internal/model"
)

// Driver names accepted by NewSQLStore.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
	mysqlCheckConstraint = 3819
)

// isConstraintViolation reports whether err is a unique, foreign-key or
// check constraint rejection from either supported driver.
func isConstraintViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry, mysqlNoReferencedRow, mysqlCheckConstraint:
			return true
		}
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 23: integrity constraint violation.
		return pqErr.Code.Class() == "23"
	}
	return false
}

// classify wraps a driver error with the model error kind callers branch
// on.  Constraint rejections become ErrPersistenceConflict; cancellation is
// passed through; anything else is treated as the store being unavailable.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case isConstraintViolation(err):
		return fmt.Errorf("%s: %w: %w", op, model.ErrPersistenceConflict, err)
	case errors.Is(err, sql.ErrTxDone):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
	}
}
