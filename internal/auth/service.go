// Package auth handles password login, bearer-token verification and logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/samiti/portal/internal/apperr"
	"github.com/samiti/portal/internal/middleware"
	"github.com/samiti/portal/internal/user"
)

// Users is the account lookup the service needs. *user.Service implements it.
type Users interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// LoginResult holds the outcome of a successful login.
type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *user.User `json:"user"`
}

// Service contains the business logic for authentication.
type Service struct {
	users     Users
	tokens    *TokenManager
	blacklist Blacklist
	log       *slog.Logger
}

// NewService creates a new auth Service.
func NewService(users Users, tokens *TokenManager, blacklist Blacklist, log *slog.Logger) *Service {
	return &Service{users: users, tokens: tokens, blacklist: blacklist, log: log}
}

// Login verifies email and password and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, user.ErrNotFound) {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("login lookup: %w", err)
	}

	match, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !match {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	if !u.IsActive {
		return nil, apperr.Unauthenticated("account is disabled")
	}

	token, claims, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "login", "user_id", u.ID, "role", u.Role)

	return &LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u}, nil
}

// Authenticate resolves a bearer token to a known, active principal.
// It implements middleware.Authenticator.
func (s *Service) Authenticate(ctx context.Context, raw string) (*middleware.Principal, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, apperr.Unauthenticated("invalid or expired token")
	}

	revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperr.IO("revocation lookup", err)
	}
	if revoked {
		return nil, apperr.Unauthenticated("token has been revoked")
	}

	u, err := s.users.GetByID(ctx, claims.Subject)
	if errors.Is(err, user.ErrNotFound) {
		return nil, apperr.Unauthenticated("unknown principal")
	}
	if err != nil {
		return nil, fmt.Errorf("principal lookup: %w", err)
	}
	if !u.IsActive {
		return nil, apperr.Unauthenticated("account is disabled")
	}

	// Role comes from the account, so demotions apply to live tokens.
	return &middleware.Principal{
		UserID:    u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout revokes the principal's current token until it expires.
func (s *Service) Logout(ctx context.Context, p *middleware.Principal) error {
	if err := s.blacklist.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return apperr.IO("revoke token", err)
	}
	s.log.InfoContext(ctx, "logout", "user_id", p.UserID)
	return nil
}

// EnsureAdmin creates an admin account for email unless one already exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) error {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	u, err := s.users.Create(ctx, user.NewUser{
		Email:        email,
		Name:         name,
		Role:         middleware.RoleAdmin,
		PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	s.log.InfoContext(ctx, "bootstrap admin created", "user_id", u.ID, "email", u.Email)
	return nil
}
