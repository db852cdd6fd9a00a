package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/httputil"
)

type Service struct {
	repo      repository.PatientRepository
	hospitals repository.HospitalRepository
	inventory repository.InventoryRepository
}

func NewService(repo repository.PatientRepository, hospitals repository.HospitalRepository, inventory repository.InventoryRepository) *Service {
	return &Service{
		repo:      repo,
		hospitals: hospitals,
		inventory: inventory,
	}
}

// CalculateUrgency suggests a level from how far stock falls short of what
// the patient needs: 1 when covered, 5 when nothing is on hand.
func CalculateUrgency(unitsNeeded, unitsAvailable int) int {
	if unitsNeeded <= 0 || unitsAvailable >= unitsNeeded {
		return model.MinUrgencyLevel
	}
	if unitsAvailable < 0 {
		unitsAvailable = 0
	}
	shortfall := unitsNeeded - unitsAvailable
	span := model.MaxUrgencyLevel - model.MinUrgencyLevel
	level := model.MinUrgencyLevel + (shortfall*span+unitsNeeded-1)/unitsNeeded
	if level > model.MaxUrgencyLevel {
		level = model.MaxUrgencyLevel
	}
	return level
}

func (s *Service) hospitalID(ctx context.Context, hospitalUserID uuid.UUID) (uuid.UUID, error) {
	h, err := s.hospitals.GetByUserID(ctx, hospitalUserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	return h.ID, nil
}

func (s *Service) unitsAvailable(ctx context.Context, hospitalID uuid.UUID, bt model.BloodType) (int, error) {
	items, err := s.inventory.List(ctx, hospitalID)
	if err != nil {
		return 0, fmt.Errorf("failed to get inventory: %w", err)
	}
	for _, item := range items {
		if item.BloodType == bt {
			return item.UnitsAvailable, nil
		}
	}
	return 0, nil
}

func (s *Service) Create(ctx context.Context, hospitalUserID uuid.UUID, req model.CreatePatientRequest) (*model.Patient, error) {
	bloodType, err := model.ParseBloodType(string(req.BloodType))
	if err != nil {
		return nil, err
	}
	if req.UnitsNeeded < 1 {
		return nil, apperrors.NewValidation("units_needed must be at least 1", nil)
	}
	if req.UrgencyLevel != 0 && (req.UrgencyLevel < model.MinUrgencyLevel || req.UrgencyLevel > model.MaxUrgencyLevel) {
		return nil, apperrors.ErrInvalidUrgencyLevel
	}

	hospitalID, err := s.hospitalID(ctx, hospitalUserID)
	if err != nil {
		return nil, err
	}

	level := req.UrgencyLevel
	if level == 0 {
		available, err := s.unitsAvailable(ctx, hospitalID, bloodType)
		if err != nil {
			return nil, err
		}
		level = CalculateUrgency(req.UnitsNeeded, available)
	}

	patient := &model.Patient{
		HospitalID:   hospitalID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		BloodType:    bloodType,
		UnitsNeeded:  req.UnitsNeeded,
		UrgencyLevel: level,
		Status:       model.PatientStatusPending,
		Diagnosis:    req.Diagnosis,
		Notes:        req.Notes,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Get(ctx context.Context, hospitalUserID, id uuid.UUID) (*model.Patient, error) {
	hospitalID, err := s.hospitalID(ctx, hospitalUserID)
	if err != nil {
		return nil, err
	}
	patient, err := s.repo.Get(ctx, id, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Update(ctx context.Context, hospitalUserID, id uuid.UUID, req model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.Get(ctx, hospitalUserID, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		patient.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		patient.LastName = *req.LastName
	}
	if req.BloodType != nil {
		bt, err := model.ParseBloodType(string(*req.BloodType))
		if err != nil {
			return nil, err
		}
		patient.BloodType = bt
	}
	if req.UnitsNeeded != nil {
		if *req.UnitsNeeded < 1 {
			return nil, apperrors.NewValidation("units_needed must be at least 1", nil)
		}
		patient.UnitsNeeded = *req.UnitsNeeded
	}
	if req.UrgencyLevel != nil {
		if *req.UrgencyLevel < model.MinUrgencyLevel || *req.UrgencyLevel > model.MaxUrgencyLevel {
			return nil, apperrors.ErrInvalidUrgencyLevel
		}
		patient.UrgencyLevel = *req.UrgencyLevel
	}
	if req.Status != nil {
		switch *req.Status {
		case model.PatientStatusPending, model.PatientStatusFulfilled, model.PatientStatusCancelled:
			patient.Status = *req.Status
		default:
			return nil, apperrors.NewValidation("status must be pending, fulfilled or cancelled", nil)
		}
	}
	if req.Diagnosis != nil {
		patient.Diagnosis = *req.Diagnosis
	}
	if req.Notes != nil {
		patient.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return patient, nil
}

func (s *Service) Delete(ctx context.Context, hospitalUserID, id uuid.UUID) error {
	hospitalID, err := s.hospitalID(ctx, hospitalUserID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, hospitalID); err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return nil
}

// List returns one page of patients, most urgent first.
func (s *Service) List(ctx context.Context, hospitalUserID uuid.UUID, status string, params httputil.Params) (httputil.Page, error) {
	hospitalID, err := s.hospitalID(ctx, hospitalUserID)
	if err != nil {
		return httputil.Page{}, err
	}

	patients, total, err := s.repo.List(ctx, hospitalID, model.PatientFilters{
		Status: model.PatientStatus(status),
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return httputil.Page{}, fmt.Errorf("failed to list patients: %w", err)
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	return httputil.NewPage(patients, params, total), nil
}

func (s *Service) Stats(ctx context.Context, hospitalUserID uuid.UUID) (*model.PatientStats, error) {
	hospitalID, err := s.hospitalID(ctx, hospitalUserID)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.Stats(ctx, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient stats: %w", err)
	}
	return stats, nil
}
