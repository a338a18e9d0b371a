package auth

import (
	"context"
	"time"
)

// Account is a login identity.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile carries the display name and role of an account.
type Profile struct {
	AccountID   string    `json:"account_id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is the public view of an authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Session is returned by register, login and refresh.
type Session struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// Store persists accounts, profiles and refresh tokens.
//
// Lookups return nil, nil when nothing matches. InsertAccount fails with
// apperr.ErrConflict when the email is taken.
type Store interface {
	InsertAccount(ctx context.Context, a Account) (Account, error)
	AccountByEmail(ctx context.Context, email string) (*Account, error)
	AccountByID(ctx context.Context, id string) (*Account, error)
	UpdatePassword(ctx context.Context, accountID, hash string) error
	InsertProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, accountID string) (*Profile, error)
	SaveRefreshToken(ctx context.Context, accountID, token string, expiresAt time.Time) error
	RefreshTokenActive(ctx context.Context, token string) (bool, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}
