// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"strings"

	"vitamora/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique-constraint violation from either driver.
func IsDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Classify maps a storage error onto the application error taxonomy.
// Errors that already carry an AppError code pass through untouched.
func Classify(err error, resource string, id any) error {
	switch {
	case err == nil:
		return nil
	case models.ErrorCode(err) != "":
		return err
	case IsNotFound(err):
		return models.NewNotFoundError(resource, id)
	case IsDuplicate(err):
		return &models.AppError{Code: models.CodeConflict, Message: resource + " already exists", Err: err}
	default:
		return models.NewRemoteError("Storage request failed", err)
	}
}
