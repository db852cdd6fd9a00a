package donor

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
	repo     repository.DonorRepository
	resolver *location.Resolver
}

func NewService(repo repository.DonorRepository, resolver *location.Resolver) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
	}
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*model.Donor, error) {
	donor, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get donor profile: %w", err)
	}
	return donor, nil
}

// UpdateProfile saves the editable profile. Eligibility is left as stored.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req model.DonorProfileRequest) (*model.ProfileResult[*model.Donor], error) {
	var bloodType model.BloodType
	if req.BloodType != "" {
		bt, err := model.ParseBloodType(string(req.BloodType))
		if err != nil {
			return nil, err
		}
		bloodType = bt
	}

	lat, lng, warnings, err := s.resolver.Resolve(ctx, req.Address, req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}

	donor := &model.Donor{
		UserID:      userID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Sex:         req.Sex,
		Address:     req.Address,
		Latitude:    lat,
		Longitude:   lng,
		BloodType:   bloodType,
		WeightLbs:   req.WeightLbs,
		HeightIn:    req.HeightIn,

		LastDonationDate: req.LastDonationDate,

		EmergencyContactName:         req.EmergencyContactName,
		EmergencyContactPhone:        req.EmergencyContactPhone,
		EmergencyContactRelationship: req.EmergencyContactRelationship,

		HasChronicIllness:     req.HasChronicIllness,
		ChronicIllnessDetails: req.ChronicIllnessDetails,
		RecentTravel:          req.RecentTravel,
		TravelDetails:         req.TravelDetails,
		RecentTattoo:          req.RecentTattoo,
		TattooDetails:         req.TattooDetails,
		TakesMedication:       req.TakesMedication,
		MedicationDetails:     req.MedicationDetails,
	}

	if err := s.repo.UpsertProfile(ctx, donor); err != nil {
		return nil, fmt.Errorf("failed to save donor profile: %w", err)
	}

	return &model.ProfileResult[*model.Donor]{Profile: donor, Warnings: warnings}, nil
}

// UpdateEligibility fails with ErrEligibilityLocked once the donor is
// ineligible, whatever the requested status.
func (s *Service) UpdateEligibility(ctx context.Context, userID uuid.UUID, req model.EligibilityUpdateRequest) (*model.EligibilityUpdateResult, error) {
	if !req.Status.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("invalid eligibility status %q", req.Status), nil)
	}

	previous, err := s.repo.UpdateEligibility(ctx, userID, req.Status, req.Reasons)
	if err != nil {
		return nil, fmt.Errorf("failed to update eligibility: %w", err)
	}

	return &model.EligibilityUpdateResult{
		PreviousStatus: previous,
		Status:         req.Status,
		Reasons:        req.Reasons,
	}, nil
}

// CheckEligibility scores the questionnaire and stores the outcome through
// the same path as UpdateEligibility.
func (s *Service) CheckEligibility(ctx context.Context, userID uuid.UUID, req model.EligibilityCheckRequest) (*model.EligibilityCheckResult, error) {
	result, err := Evaluate(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.UpdateEligibility(ctx, userID, model.EligibilityUpdateRequest{
		Status:  result.Status,
		Reasons: result.Reasons,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) EligibilityHistory(ctx context.Context, userID uuid.UUID) ([]*model.EligibilityAuditEntry, error) {
	entries, err := s.repo.ListEligibilityHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligibility history: %w", err)
	}
	return entries, nil
}
