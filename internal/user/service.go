package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	Create(ctx context.Context, nu NewUser) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Service contains business logic for account management.
type Service struct {
	repo Store
}

// NewService creates a new user Service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create registers a new account. Email is normalised before storage.
func (s *Service) Create(ctx context.Context, nu NewUser) (*User, error) {
	nu.Email = NormalizeEmail(nu.Email)
	u, err := s.repo.Create(ctx, nu)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns a user by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
