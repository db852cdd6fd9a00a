package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

type urgencyResponseRepository struct {
	BaseRepository
}

func NewUrgencyResponseRepository(base BaseRepository) repository.UrgencyResponseRepository {
	return &urgencyResponseRepository{base}
}

func (r *urgencyResponseRepository) Get(ctx context.Context, requestID, donorID uuid.UUID) (*model.UrgencyResponse, error) {
	query := `
		SELECT id, urgency_request_id, donor_id, response_type,
			rejection_reason, scheduled_appointment_id, responded_at
		FROM urgency_responses
		WHERE urgency_request_id = $1 AND donor_id = $2
	`

	var resp model.UrgencyResponse
	if err := r.db.GetContext(ctx, &resp, query, requestID, donorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("urgency response", err)
		}
		return nil, fmt.Errorf("failed to get urgency response: %w", err)
	}
	return &resp, nil
}

// lockActiveRequest holds a share lock on the request for the rest of the
// transaction so it cannot be closed underneath a response.
func lockActiveRequest(ctx context.Context, tx *sqlx.Tx, requestID uuid.UUID) error {
	var active bool
	err := tx.GetContext(ctx, &active,
		`SELECT is_active FROM urgency_requests WHERE id = $1 FOR SHARE`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFound("urgency request", err)
	}
	if err != nil {
		return fmt.Errorf("failed to lock urgency request: %w", err)
	}
	if !active {
		return apperrors.ErrRequestNoLongerActive
	}
	return nil
}

func (r *urgencyResponseRepository) Accept(ctx context.Context, appt *model.Appointment, resp *model.UrgencyResponse) error {
	upsert := `
		INSERT INTO urgency_responses (
			id, urgency_request_id, donor_id, response_type,
			rejection_reason, scheduled_appointment_id, responded_at
		) VALUES ($1, $2, $3, 'accepted', NULL, $4, $5)
		ON CONFLICT (urgency_request_id, donor_id) DO UPDATE SET
			response_type = 'accepted',
			rejection_reason = NULL,
			scheduled_appointment_id = EXCLUDED.scheduled_appointment_id,
			responded_at = EXCLUDED.responded_at
		WHERE urgency_responses.response_type = 'cancelled'
		RETURNING id
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockActiveRequest(ctx, tx, resp.UrgencyRequestID); err != nil {
			return err
		}

		var existing model.ResponseType
		err := tx.GetContext(ctx, &existing,
			`SELECT response_type FROM urgency_responses WHERE urgency_request_id = $1 AND donor_id = $2 FOR UPDATE`,
			resp.UrgencyRequestID, resp.DonorID,
		)
		switch {
		case err == nil && existing != model.ResponseCancelled:
			return apperrors.ErrDuplicateResponse
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check existing response: %w", err)
		}

		if err := insertAppointment(ctx, tx, appt); err != nil {
			return err
		}

		resp.ResponseType = model.ResponseAccepted
		resp.RejectionReason = nil
		resp.ScheduledAppointmentID = &appt.ID
		resp.RespondedAt = time.Now()

		err = tx.GetContext(ctx, &resp.ID, upsert,
			uuid.New(),
			resp.UrgencyRequestID,
			resp.DonorID,
			appt.ID,
			resp.RespondedAt,
		)
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return apperrors.ErrDuplicateResponse
		}
		if err != nil {
			return fmt.Errorf("failed to record acceptance: %w", err)
		}
		return nil
	})
}

func (r *urgencyResponseRepository) Reject(ctx context.Context, resp *model.UrgencyResponse) error {
	upsert := `
		INSERT INTO urgency_responses (
			id, urgency_request_id, donor_id, response_type,
			rejection_reason, scheduled_appointment_id, responded_at
		) VALUES ($1, $2, $3, 'rejected', $4, NULL, $5)
		ON CONFLICT (urgency_request_id, donor_id) DO UPDATE SET
			response_type = 'rejected',
			rejection_reason = EXCLUDED.rejection_reason,
			scheduled_appointment_id = NULL,
			responded_at = EXCLUDED.responded_at
		WHERE urgency_responses.response_type <> 'accepted'
		RETURNING id
	`

	resp.ResponseType = model.ResponseRejected
	resp.ScheduledAppointmentID = nil
	resp.RespondedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockActiveRequest(ctx, tx, resp.UrgencyRequestID); err != nil {
			return err
		}

		err := tx.GetContext(ctx, &resp.ID, upsert,
			uuid.New(),
			resp.UrgencyRequestID,
			resp.DonorID,
			resp.RejectionReason,
			resp.RespondedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.ErrAlreadyResponded
		}
		if err != nil {
			return fmt.Errorf("failed to record rejection: %w", err)
		}
		return nil
	})
}

func (r *urgencyResponseRepository) ListForHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalUrgencyResponse, error) {
	query := `
		SELECT resp.id, resp.urgency_request_id,
			ur.blood_type AS request_blood_type,
			ur.urgency_level AS request_urgency_level,
			resp.response_type, resp.rejection_reason, resp.responded_at,
			d.id AS donor_id,
			d.first_name AS donor_first_name,
			d.last_name AS donor_last_name,
			d.blood_type AS donor_blood_type,
			d.phone AS donor_phone,
			a.id AS appointment_id, a.appointment_date, a.status AS appointment_status
		FROM urgency_responses resp
		JOIN urgency_requests ur ON ur.id = resp.urgency_request_id
		JOIN hospitals h ON h.id = ur.hospital_id
		JOIN donors d ON d.id = resp.donor_id
		LEFT JOIN appointments a ON a.id = resp.scheduled_appointment_id
		WHERE h.user_id = $1 AND ur.is_active
		ORDER BY resp.responded_at DESC
	`

	var responses []*model.HospitalUrgencyResponse
	if err := r.db.SelectContext(ctx, &responses, query, hospitalUserID); err != nil {
		return nil, fmt.Errorf("failed to list urgency responses: %w", err)
	}
	return responses, nil
}
