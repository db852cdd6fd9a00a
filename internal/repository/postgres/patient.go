package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
)

const patientColumns = `
	id, hospital_id, first_name, last_name, blood_type, units_needed,
	urgency_level, status, diagnosis, notes, created_at, updated_at`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`
	patient.ID = uuid.New()
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.HospitalID,
		patient.FirstName,
		patient.LastName,
		patient.BloodType,
		patient.UnitsNeeded,
		patient.UrgencyLevel,
		patient.Status,
		patient.Diagnosis,
		patient.Notes,
		patient.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id, hospitalID uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND hospital_id = $2`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id, hospitalID); err != nil {
		return nil, ownedOrMissing(err, "get patient")
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET first_name = $3, last_name = $4, blood_type = $5, units_needed = $6,
			urgency_level = $7, status = $8, diagnosis = $9, notes = $10, updated_at = $11
		WHERE id = $1 AND hospital_id = $2
	`
	patient.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.HospitalID,
		patient.FirstName,
		patient.LastName,
		patient.BloodType,
		patient.UnitsNeeded,
		patient.UrgencyLevel,
		patient.Status,
		patient.Diagnosis,
		patient.Notes,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return checkAffected(result)
}

func (r *patientRepository) Delete(ctx context.Context, id, hospitalID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM patients WHERE id = $1 AND hospital_id = $2`, id, hospitalID)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return checkAffected(result)
}

func (r *patientRepository) List(ctx context.Context, hospitalID uuid.UUID, filters model.PatientFilters) ([]*model.Patient, int64, error) {
	where := ` WHERE hospital_id = $1`
	args := []interface{}{hospitalID}
	if filters.Status != "" {
		where += ` AND status = $2`
		args = append(args, filters.Status)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM patients`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	query := `SELECT ` + patientColumns + ` FROM patients` + where +
		fmt.Sprintf(` ORDER BY urgency_level DESC, created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filters.Limit, filters.Offset)

	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepository) Stats(ctx context.Context, hospitalID uuid.UUID) (*model.PatientStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'fulfilled') AS fulfilled,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled,
			COALESCE(SUM(units_needed) FILTER (WHERE status = 'pending'), 0) AS pending_units_needed
		FROM patients
		WHERE hospital_id = $1
	`

	var stats model.PatientStats
	if err := r.db.GetContext(ctx, &stats, query, hospitalID); err != nil {
		return nil, fmt.Errorf("failed to get patient stats: %w", err)
	}
	return &stats, nil
}
