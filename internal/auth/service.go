package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"courtside/internal/apperr"
	"courtside/internal/mailer"
)

// Options configures token issuance and sign-up rules.
type Options struct {
	Issuer           string
	SigningKey       string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ResetTTL         time.Duration
	AllowAdminSignup bool
	// ResetURL is the page that accepts ?token= for password resets.
	ResetURL string
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

// Service handles accounts and sessions.
type Service struct {
	store    Store
	mail     mailer.Sender
	opts     Options
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates an identity service.
func NewService(store Store, mail mailer.Sender, opts Options, logger *zap.Logger) *Service {
	return &Service{store: store, mail: mail, opts: opts, validate: validator.New(), logger: logger}
}

// Register creates an account with a profile and signs it in. A profile
// write refused with apperr.ErrPermissionDenied is tolerated and the
// requested role is used for the session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = RoleStudent
	}
	if err := s.validate.Struct(in); err != nil {
		return Session{}, validationError(err)
	}
	if !in.Role.Valid() {
		verr := &apperr.ValidationError{}
		verr.Add("role", "must be admin or student")
		return Session{}, verr
	}
	if in.Role == RoleAdmin && !s.opts.AllowAdminSignup {
		return Session{}, fmt.Errorf("admin sign-up disabled: %w", apperr.ErrPermissionDenied)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}
	acct, err := s.store.InsertAccount(ctx, Account{Email: in.Email, PasswordHash: string(hash)})
	if err != nil {
		return Session{}, err
	}

	profile := Profile{AccountID: acct.ID, DisplayName: in.Name, Role: in.Role, CreatedAt: acct.CreatedAt}
	if err := s.store.InsertProfile(ctx, profile); err != nil {
		if !errors.Is(err, apperr.ErrPermissionDenied) {
			return Session{}, err
		}
		s.logger.Warn("profile write denied, continuing with requested role",
			zap.String("account_id", acct.ID), zap.Error(err))
	}
	s.logger.Info("account registered", zap.String("account_id", acct.ID), zap.String("role", string(in.Role)))
	return s.session(ctx, acct, profile)
}

// Login checks credentials and issues tokens. Accounts without a profile get
// a student profile; if that cannot be written the student role is used for
// this session only.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	acct, err := s.store.AccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return Session{}, err
	}
	if acct == nil || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return Session{}, fmt.Errorf("invalid email or password: %w", apperr.ErrUnauthorized)
	}
	profile, err := s.profile(ctx, *acct)
	if err != nil {
		return Session{}, err
	}
	return s.session(ctx, *acct, profile)
}

// Refresh rotates a refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := Parse(refreshToken, s.opts.SigningKey, s.opts.Issuer, PurposeRefresh)
	if err != nil {
		return Session{}, fmt.Errorf("%v: %w", err, apperr.ErrUnauthorized)
	}
	active, err := s.store.RefreshTokenActive(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}
	if !active {
		return Session{}, fmt.Errorf("refresh token revoked: %w", apperr.ErrUnauthorized)
	}
	acct, err := s.store.AccountByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}
	if acct == nil {
		return Session{}, fmt.Errorf("account gone: %w", apperr.ErrUnauthorized)
	}
	if err := s.store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return Session{}, err
	}
	profile, err := s.profile(ctx, *acct)
	if err != nil {
		return Session{}, err
	}
	return s.session(ctx, *acct, profile)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.store.RevokeRefreshToken(ctx, refreshToken)
}

// Me returns the user behind verified claims.
func (s *Service) Me(ctx context.Context, claims Claims) (User, error) {
	acct, err := s.store.AccountByID(ctx, claims.Subject)
	if err != nil {
		return User{}, err
	}
	if acct == nil {
		return User{}, apperr.ErrNotFound
	}
	u := User{ID: acct.ID, Email: acct.Email, Role: claims.Role}
	p, err := s.store.GetProfile(ctx, acct.ID)
	if err != nil && !errors.Is(err, apperr.ErrPermissionDenied) {
		return User{}, err
	}
	if p != nil {
		u.Name = p.DisplayName
		u.Role = p.Role
	}
	return u, nil
}

// RequestPasswordReset mails a reset link. Unknown emails succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	acct, err := s.store.AccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if acct == nil {
		s.logger.Info("password reset for unknown email")
		return nil
	}
	token, err := IssueReset(acct.ID, s.opts.Issuer, s.opts.SigningKey, s.opts.ResetTTL)
	if err != nil {
		return err
	}
	link := s.opts.ResetURL + "?token=" + url.QueryEscape(token)
	return s.mail.Send(ctx, mailer.Message{
		To:      acct.Email,
		Subject: "Reset your password",
		Text:    "Use the link below to choose a new password. It expires in " + s.opts.ResetTTL.String() + ".\n\n" + link,
		HTML:    `<p>Use the link below to choose a new password.</p><p><a href="` + html.EscapeString(link) + `">Reset password</a></p>`,
	})
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	claims, err := Parse(token, s.opts.SigningKey, s.opts.Issuer, PurposeReset)
	if err != nil {
		return fmt.Errorf("%v: %w", err, apperr.ErrUnauthorized)
	}
	if len(password) < 6 {
		verr := &apperr.ValidationError{}
		verr.Add("password", "must be at least 6 characters")
		return verr
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, claims.Subject, string(hash)); err != nil {
		return err
	}
	s.logger.Info("password reset", zap.String("account_id", claims.Subject))
	return nil
}

func (s *Service) profile(ctx context.Context, acct Account) (Profile, error) {
	fallback := Profile{AccountID: acct.ID, Role: RoleStudent, CreatedAt: acct.CreatedAt}
	p, err := s.store.GetProfile(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrPermissionDenied) {
			s.logger.Warn("profile read denied, using student role", zap.String("account_id", acct.ID))
			return fallback, nil
		}
		return Profile{}, err
	}
	if p != nil {
		return *p, nil
	}
	if err := s.store.InsertProfile(ctx, fallback); err != nil {
		if !errors.Is(err, apperr.ErrPermissionDenied) {
			return Profile{}, err
		}
		s.logger.Warn("default profile write denied, using in-memory profile", zap.String("account_id", acct.ID))
	}
	return fallback, nil
}

func (s *Service) session(ctx context.Context, acct Account, p Profile) (Session, error) {
	tokens, err := Issue(acct.ID, p.Role, s.opts.Issuer, s.opts.SigningKey, s.opts.AccessTTL, s.opts.RefreshTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.store.SaveRefreshToken(ctx, acct.ID, tokens.RefreshToken, tokens.RefreshExp); err != nil {
		return Session{}, err
	}
	return Session{
		User:   User{ID: acct.ID, Email: acct.Email, Name: p.DisplayName, Role: p.Role},
		Tokens: tokens,
	}, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &apperr.ValidationError{}
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			verr.Add(field, "is required")
		case "email":
			verr.Add(field, "must be a valid email address")
		case "min":
			verr.Add(field, "must be at least "+fe.Param()+" characters")
		default:
			verr.Add(field, "is invalid")
		}
	}
	return verr
}
