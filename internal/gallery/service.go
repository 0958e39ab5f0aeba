package gallery

import (
	"context"
	"errors"
	"strings"

	"github.com/samiti/portal/internal/apperr"
)

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	List(ctx context.Context, activeOnly bool) ([]Image, error)
	Create(ctx context.Context, ni NewImage) (*Image, error)
	Update(ctx context.Context, id string, p Patch) (*Image, error)
	Delete(ctx context.Context, id string) error
}

// Service contains gallery business rules.
type Service struct {
	repo Store
}

// NewService creates a new gallery Service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// ListPublic returns the active entries shown on the public site.
func (s *Service) ListPublic(ctx context.Context) ([]Image, error) {
	return s.repo.List(ctx, true)
}

// ListAll returns every entry, including disabled ones.
func (s *Service) ListAll(ctx context.Context) ([]Image, error) {
	return s.repo.List(ctx, false)
}

// Create validates and stores a new entry.
func (s *Service) Create(ctx context.Context, ni NewImage) (*Image, error) {
	ni.ImageURL = strings.TrimSpace(ni.ImageURL)
	ni.Title = strings.TrimSpace(ni.Title)
	ni.Category = strings.TrimSpace(ni.Category)
	ni.Date = strings.TrimSpace(ni.Date)

	if ni.ImageURL == "" || ni.Title == "" || ni.Category == "" {
		return nil, apperr.Validation("imageUrl, title and category are required")
	}
	return s.repo.Create(ctx, ni)
}

// Update applies p to entry id. Required fields cannot be blanked.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*Image, error) {
	for _, f := range []struct {
		name string
		val  *string
	}{{"imageUrl", p.ImageURL}, {"title", p.Title}, {"category", p.Category}} {
		if f.val == nil {
			continue
		}
		*f.val = strings.TrimSpace(*f.val)
		if *f.val == "" {
			return nil, apperr.Validation(f.name + " cannot be empty")
		}
	}

	img, err := s.repo.Update(ctx, id, p)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("gallery image not found")
	}
	return img, err
}

// Delete removes entry id.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("gallery image not found")
	}
	return err
}
