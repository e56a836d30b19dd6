package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/foodmart/foodmart-backend/pkg/errors"
	"gorm.io/gorm"
)

const (
	sqlStateUniqueViolation      = "23505"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// IsUniqueViolation reports whether err is a unique-constraint breach. When constraintName
// is provided the violated constraint must match it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return constraintName == "" || strings.Contains(err.Error(), constraintName)
	}
	if pkgerrors.SQLState(err) == sqlStateUniqueViolation {
		return constraintName == "" || pkgerrors.Constraint(err) == constraintName
	}
	msg := err.Error()
	// sqlite reports "UNIQUE constraint failed: table.column".
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return constraintName == "" || strings.Contains(msg, constraintName)
	}
	return false
}

// IsLockContention reports whether err comes from a lock wait timeout, a serialization
// failure or a deadlock.
func IsLockContention(err error) bool {
	switch pkgerrors.SQLState(err) {
	case sqlStateLockNotAvailable, sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return true
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// Classify maps persistence failures onto the shared error taxonomy.
func Classify(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case pkgerrors.As(err) != nil:
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
	case IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, message)
	case IsLockContention(err):
		return pkgerrors.Wrap(pkgerrors.CodeConcurrency, err, message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
	}
}
