package repository

import (
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/reelforge/reelforge/internal/models"
)

// unavailable wraps a storage error so callers can match
// models.ErrRepositoryUnavailable while keeping the cause in the message.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, models.ErrRepositoryUnavailable, err)
}

// isForeignKeyErr reports whether err is a foreign key constraint violation.
func isForeignKeyErr(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// isUniqueErr reports whether err is a unique constraint violation.
func isUniqueErr(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
