package db

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	if code, ok := pgCode(err); ok {
		return code == pgUniqueViolation
	}

	msg := err.Error()
	// MySQL 1062, SQLite 2067
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "Error 1062") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsLockContentionErr reports lock waits, deadlocks and serialization
// failures. These are transient and the whole transaction can be retried.
func IsLockContentionErr(err error) bool {
	if err == nil {
		return false
	}

	if code, ok := pgCode(err); ok {
		switch code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}

	msg := err.Error()
	// MySQL 1205/1213, SQLite SQLITE_BUSY/SQLITE_LOCKED
	return strings.Contains(msg, "Error 1205") ||
		strings.Contains(msg, "Error 1213") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// IsForeignKeyErr reports a write rejected by a foreign key constraint.
func IsForeignKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	if code, ok := pgCode(err); ok {
		return code == pgForeignKeyViolation
	}

	msg := err.Error()
	// MySQL 1451/1452, SQLite 787
	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "Error 1451") ||
		strings.Contains(msg, "Error 1452")
}

func pgCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	return "", false
}
