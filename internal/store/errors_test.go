package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"courtside/internal/apperr"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("noop", nil))

	denied := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "42501", Message: "permission denied for table profiles"})
	err := Wrap("insert profile", denied)
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)
	assert.NotErrorIs(t, err, apperr.ErrDataAccess)
	assert.Contains(t, err.Error(), "insert profile")

	dup := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	assert.ErrorIs(t, Wrap("insert account", dup), apperr.ErrConflict)

	err = Wrap("list students", errors.New("connection refused"))
	assert.ErrorIs(t, err, apperr.ErrDataAccess)
	assert.Contains(t, err.Error(), "connection refused")
}
