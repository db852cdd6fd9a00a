package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

type patientRepository struct{ *Store }

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	patient.ID = uuid.New()
	patient.CreatedAt = r.now()
	patient.UpdatedAt = patient.CreatedAt
	c := *patient
	r.patients[c.ID] = &c
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id, hospitalID uuid.UUID) (*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok || p.HospitalID != hospitalID {
		return nil, apperrors.ErrNotFoundOrDenied
	}
	c := *p
	return &c, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[patient.ID]
	if !ok || p.HospitalID != patient.HospitalID {
		return apperrors.ErrNotFoundOrDenied
	}
	patient.CreatedAt = p.CreatedAt
	patient.UpdatedAt = r.now()
	c := *patient
	r.patients[c.ID] = &c
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, id, hospitalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok || p.HospitalID != hospitalID {
		return apperrors.ErrNotFoundOrDenied
	}
	delete(r.patients, id)
	return nil
}

func (r *patientRepository) List(ctx context.Context, hospitalID uuid.UUID, filters model.PatientFilters) ([]*model.Patient, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*model.Patient
	for _, p := range r.patients {
		if p.HospitalID != hospitalID || (filters.Status != "" && p.Status != filters.Status) {
			continue
		}
		c := *p
		all = append(all, &c)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].UrgencyLevel != all[j].UrgencyLevel {
			return all[i].UrgencyLevel > all[j].UrgencyLevel
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := filters.Offset
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if filters.Limit > 0 && start+filters.Limit < end {
		end = start + filters.Limit
	}
	return all[start:end], total, nil
}

func (r *patientRepository) Stats(ctx context.Context, hospitalID uuid.UUID) (*model.PatientStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &model.PatientStats{}
	for _, p := range r.patients {
		if p.HospitalID != hospitalID {
			continue
		}
		stats.Total++
		switch p.Status {
		case model.PatientStatusPending:
			stats.Pending++
			stats.PendingUnitsNeeded += p.UnitsNeeded
		case model.PatientStatusFulfilled:
			stats.Fulfilled++
		case model.PatientStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}
