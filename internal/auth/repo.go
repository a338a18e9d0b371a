package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"courtside/internal/store"
)

// Repository persists identity data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertAccount writes a new account. Emails are stored lower-cased.
func (r *Repository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Email = strings.ToLower(a.Email)
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, a.ID, a.Email, a.PasswordHash)
	if err := row.Scan(&a.CreatedAt); err != nil {
		return Account{}, store.Wrap("insert account", err)
	}
	return a, nil
}

// AccountByEmail finds an account by email, case-insensitively.
func (r *Repository) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	return r.account(ctx, `SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1`, strings.ToLower(email))
}

// AccountByID finds an account by id.
func (r *Repository) AccountByID(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.account(ctx, `SELECT id, email, password_hash, created_at FROM accounts WHERE id = $1`, id)
}

func (r *Repository) account(ctx context.Context, query string, arg any) (*Account, error) {
	var a Account
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("get account", err)
	}
	return &a, nil
}

// UpdatePassword replaces the stored hash.
func (r *Repository) UpdatePassword(ctx context.Context, accountID, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, accountID, hash)
	return store.Wrap("update password", err)
}

// InsertProfile writes the profile for an account.
func (r *Repository) InsertProfile(ctx context.Context, p Profile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (account_id, display_name, role)
		VALUES ($1, $2, $3)
	`, p.AccountID, p.DisplayName, string(p.Role))
	return store.Wrap("insert profile", err)
}

// GetProfile loads the profile of an account.
func (r *Repository) GetProfile(ctx context.Context, accountID string) (*Profile, error) {
	var p Profile
	var role string
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, display_name, role, created_at FROM profiles WHERE account_id = $1
	`, accountID).Scan(&p.AccountID, &p.DisplayName, &role, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, store.Wrap("get profile", err)
	}
	p.Role = Role(role)
	return &p, nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, accountID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (account_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, accountID, token, expiresAt)
	return store.Wrap("save refresh token", err)
}

// RefreshTokenActive reports whether token is known, unrevoked and unexpired.
func (r *Repository) RefreshTokenActive(ctx context.Context, token string) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx, `
		SELECT NOT revoked AND expires_at > NOW() FROM refresh_tokens WHERE token = $1
	`, token).Scan(&active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, store.Wrap("check refresh token", err)
	}
	return active, nil
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return store.Wrap("revoke refresh token", err)
}
