package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

const urgencyColumns = `
	ur.id, ur.hospital_id, ur.blood_type, ur.urgency_level, ur.message,
	ur.radius_miles, ur.is_active, ur.fulfilled_at, ur.deactivated_at,
	ur.created_at, ur.updated_at`

type urgencyRequestRepository struct {
	BaseRepository
}

func NewUrgencyRequestRepository(base BaseRepository) repository.UrgencyRequestRepository {
	return &urgencyRequestRepository{base}
}

func (r *urgencyRequestRepository) Create(ctx context.Context, req *model.UrgencyRequest) error {
	query := `
		INSERT INTO urgency_requests (
			id, hospital_id, blood_type, urgency_level, message,
			radius_miles, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7)
	`

	req.ID = uuid.New()
	req.IsActive = true
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.HospitalID,
		req.BloodType,
		req.UrgencyLevel,
		req.Message,
		req.RadiusMiles,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create urgency request: %w", err)
	}
	return nil
}

func (r *urgencyRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.UrgencyRequest, error) {
	query := `SELECT ` + urgencyColumns + ` FROM urgency_requests ur WHERE ur.id = $1`

	var req model.UrgencyRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("urgency request", err)
		}
		return nil, fmt.Errorf("failed to get urgency request: %w", err)
	}
	return &req, nil
}

func (r *urgencyRequestRepository) GetOwned(ctx context.Context, id, hospitalUserID uuid.UUID) (*model.UrgencyRequest, error) {
	query := `
		SELECT ` + urgencyColumns + `
		FROM urgency_requests ur
		JOIN hospitals h ON h.id = ur.hospital_id
		WHERE ur.id = $1 AND h.user_id = $2
	`

	var req model.UrgencyRequest
	if err := r.db.GetContext(ctx, &req, query, id, hospitalUserID); err != nil {
		return nil, ownedOrMissing(err, "get urgency request")
	}
	return &req, nil
}

func (r *urgencyRequestRepository) LatestActive(ctx context.Context, hospitalID uuid.UUID, bloodType model.BloodType) (*model.UrgencyRequest, error) {
	query := `
		SELECT ` + urgencyColumns + `
		FROM urgency_requests ur
		WHERE ur.hospital_id = $1 AND ur.blood_type = $2 AND ur.is_active
		ORDER BY ur.created_at DESC
		LIMIT 1
	`

	var req model.UrgencyRequest
	if err := r.db.GetContext(ctx, &req, query, hospitalID, bloodType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest urgency request: %w", err)
	}
	return &req, nil
}

func (r *urgencyRequestRepository) ListByHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalUrgencyRequest, error) {
	query := `
		SELECT ` + urgencyColumns + `,
			COUNT(resp.id) FILTER (WHERE resp.response_type = 'accepted') AS accepted_count,
			COUNT(resp.id) FILTER (WHERE resp.response_type = 'rejected') AS rejected_count,
			COUNT(resp.id) FILTER (WHERE resp.response_type = 'cancelled') AS cancelled_count
		FROM urgency_requests ur
		JOIN hospitals h ON h.id = ur.hospital_id
		LEFT JOIN urgency_responses resp ON resp.urgency_request_id = ur.id
		WHERE h.user_id = $1
		GROUP BY ur.id
		ORDER BY ur.created_at DESC
	`

	var requests []*model.HospitalUrgencyRequest
	if err := r.db.SelectContext(ctx, &requests, query, hospitalUserID); err != nil {
		return nil, fmt.Errorf("failed to list urgency requests: %w", err)
	}
	return requests, nil
}

func (r *urgencyRequestRepository) ListVisible(ctx context.Context, filter model.VisibleRequestFilter) ([]*model.VisibleRequestRow, error) {
	query := `
		SELECT ` + urgencyColumns + `,
			h.name AS hospital_name,
			h.street AS "hospital.street", h.city AS "hospital.city",
			h.state AS "hospital.state", h.zip_code AS "hospital.zip_code",
			h.phone AS hospital_phone,
			h.latitude AS hospital_latitude, h.longitude AS hospital_longitude,
			resp.response_type, resp.rejection_reason,
			a.id AS appointment_id, a.appointment_date, a.status AS appointment_status
		FROM urgency_requests ur
		JOIN hospitals h ON h.id = ur.hospital_id
		LEFT JOIN urgency_responses resp ON resp.urgency_request_id = ur.id AND resp.donor_id = $3
		LEFT JOIN appointments a ON a.id = resp.scheduled_appointment_id
		WHERE ur.blood_type = $1
		AND ur.is_active
		AND ur.created_at >= $2
		AND h.latitude IS NOT NULL AND h.longitude IS NOT NULL
	`

	var rows []*model.VisibleRequestRow
	if err := r.db.SelectContext(ctx, &rows, query, filter.BloodType, filter.Since, filter.DonorID); err != nil {
		return nil, fmt.Errorf("failed to list visible urgency requests: %w", err)
	}
	return rows, nil
}

func (r *urgencyRequestRepository) Close(ctx context.Context, id, hospitalUserID uuid.UUID, fulfilled bool) (*model.UrgencyRequest, error) {
	query := `
		UPDATE urgency_requests ur
		SET is_active = FALSE,
			fulfilled_at = CASE WHEN $3::boolean THEN NOW() ELSE ur.fulfilled_at END,
			deactivated_at = CASE WHEN $3::boolean THEN ur.deactivated_at ELSE NOW() END,
			updated_at = NOW()
		FROM hospitals h
		WHERE ur.id = $1 AND ur.hospital_id = h.id AND h.user_id = $2 AND ur.is_active
		RETURNING ` + urgencyColumns

	var req model.UrgencyRequest
	err := r.db.GetContext(ctx, &req, query, id, hospitalUserID, fulfilled)
	if err == nil {
		return &req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to close urgency request: %w", err)
	}

	if _, err := r.GetOwned(ctx, id, hospitalUserID); err != nil {
		return nil, err
	}
	return nil, apperrors.ErrRequestNoLongerActive
}
