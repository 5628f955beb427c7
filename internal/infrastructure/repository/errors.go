package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Common repository errors
var (
	ErrNotFound     = errors.New("entity not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
	ErrForeignKey   = errors.New("foreign key violation")
)

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// sqlState extracts the SQLSTATE from pgx or lib/pq errors.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsForeignKeyViolation checks if the error is a foreign key constraint violation
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == sqlStateForeignKeyViolation {
		return true
	}
	return strings.Contains(err.Error(), "violates foreign key constraint")
}

// IsDuplicateKeyViolation checks if the error is a unique constraint violation
func IsDuplicateKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == sqlStateUniqueViolation {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "violates unique constraint")
}

// IsWriteConflict reports errors caused by a concurrent writer: unique
// violations, serialization failures and deadlocks.
func IsWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	switch sqlState(err) {
	case sqlStateUniqueViolation, sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return false
}

// IsNotFound checks if the error indicates a record was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// WrapRepositoryError maps driver errors to repository errors and adds the
// operation name.
func WrapRepositoryError(err error, operation string) error {
	if err == nil {
		return nil
	}

	switch {
	case IsNotFound(err):
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	case IsDuplicateKeyViolation(err):
		return fmt.Errorf("%s: %w: %v", operation, ErrDuplicateKey, err)
	case IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %v", operation, ErrForeignKey, err)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
