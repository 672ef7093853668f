package service

import (
	"context"
	"strings"

	"github.com/spec-kit/service-portal/internal/domain"
	"github.com/spec-kit/service-portal/internal/repository"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

// OutletService manages the sites an account holder can file against.
type OutletService struct {
	outlets repository.OutletRepository
}

// NewOutletService constructs the service.
func NewOutletService(outlets repository.OutletRepository) *OutletService {
	return &OutletService{outlets: outlets}
}

// Create registers a new outlet for the caller.
func (s *OutletService) Create(ctx context.Context, actor *domain.User, name, address string, loc domain.Location) (*domain.Outlet, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("invalid outlet", map[string]any{"name": "required"})
	}
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return nil, apperrors.NewValidationError("invalid outlet", map[string]any{"location": "out of range"})
	}
	outlet := &domain.Outlet{
		UserID:   actor.ID,
		Name:     name,
		Address:  strings.TrimSpace(address),
		Location: loc,
	}
	if err := s.outlets.Create(ctx, outlet); err != nil {
		return nil, err
	}
	return outlet, nil
}

// List returns the caller's outlets.
func (s *OutletService) List(ctx context.Context, actor *domain.User) ([]domain.Outlet, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	outlets, err := s.outlets.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if outlets == nil {
		outlets = []domain.Outlet{}
	}
	return outlets, nil
}
