package hospital

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/service/location"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

type Service struct {
	repo      repository.HospitalRepository
	inventory repository.InventoryRepository
	resolver  *location.Resolver
}

func NewService(repo repository.HospitalRepository, inventory repository.InventoryRepository, resolver *location.Resolver) *Service {
	return &Service{
		repo:      repo,
		inventory: inventory,
		resolver:  resolver,
	}
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*model.Hospital, error) {
	hospital, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital profile: %w", err)
	}
	return hospital, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req model.HospitalProfileRequest) (*model.ProfileResult[*model.Hospital], error) {
	lat, lng, warnings, err := s.resolver.Resolve(ctx, req.Address, req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}

	hospital := &model.Hospital{
		UserID:         userID,
		Name:           req.Name,
		Address:        req.Address,
		Phone:          req.Phone,
		Email:          req.Email,
		Latitude:       lat,
		Longitude:      lng,
		OperatingHours: req.OperatingHours,
	}
	if err := s.repo.UpsertProfile(ctx, hospital); err != nil {
		return nil, fmt.Errorf("failed to save hospital profile: %w", err)
	}

	return &model.ProfileResult[*model.Hospital]{Profile: hospital, Warnings: warnings}, nil
}

func (s *Service) UpdateUrgencyLevel(ctx context.Context, userID uuid.UUID, level int) error {
	if level < model.MinUrgencyLevel || level > model.MaxUrgencyLevel {
		return apperrors.ErrInvalidUrgencyLevel
	}
	if err := s.repo.UpdateUrgencyLevel(ctx, userID, level); err != nil {
		return fmt.Errorf("failed to update urgency level: %w", err)
	}
	return nil
}

func (s *Service) GetInventory(ctx context.Context, userID uuid.UUID) (model.Inventory, error) {
	hospital, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}

	items, err := s.inventory.List(ctx, hospital.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return model.NewInventory(items), nil
}

// UpdateInventory validates every entry before writing any of them.
func (s *Service) UpdateInventory(ctx context.Context, userID uuid.UUID, units map[string]int) (model.Inventory, error) {
	if len(units) == 0 {
		return nil, apperrors.NewValidation("inventory update is empty", nil)
	}

	parsed := make(map[model.BloodType]int, len(units))
	for key, n := range units {
		bt, err := model.ParseBloodType(key)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, apperrors.NewValidation(fmt.Sprintf("units for %s cannot be negative", bt), nil)
		}
		parsed[bt] = n
	}

	hospital, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	if err := s.inventory.Upsert(ctx, hospital.ID, parsed); err != nil {
		return nil, fmt.Errorf("failed to update inventory: %w", err)
	}
	return s.GetInventory(ctx, userID)
}

// Map lists every hospital with a known location.
func (s *Service) Map(ctx context.Context) ([]model.HospitalMapEntry, error) {
	hospitals, err := s.repo.ListWithCoordinates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}

	entries := make([]model.HospitalMapEntry, 0, len(hospitals))
	for _, h := range hospitals {
		p, ok := h.Location()
		if !ok {
			continue
		}
		entries = append(entries, model.HospitalMapEntry{
			ID:                h.ID,
			Name:              h.Name,
			Address:           h.DisplayAddress(),
			Phone:             h.Phone,
			Latitude:          p.Latitude,
			Longitude:         p.Longitude,
			BloodUrgencyLevel: h.BloodUrgencyLevel,
			OperatingHours:    h.OperatingHours,
		})
	}
	return entries, nil
}
