package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"courtside/internal/apperr"
)

// Postgres SQLSTATE codes that callers care about.
const (
	codeInsufficientPrivilege = "42501"
	codeUniqueViolation       = "23505"
)

// Wrap classifies a driver error for callers. Privilege failures become
// apperr.ErrPermissionDenied and unique violations apperr.ErrConflict.
// Everything else is apperr.ErrDataAccess.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeInsufficientPrivilege:
			return fmt.Errorf("%s: %w: %s", op, apperr.ErrPermissionDenied, pgErr.Message)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, apperr.ErrConflict, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, apperr.ErrDataAccess, err)
}
