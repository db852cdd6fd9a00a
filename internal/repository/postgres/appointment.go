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

const appointmentColumns = `
	a.id, a.donor_id, a.hospital_id, a.urgency_request_id, a.appointment_date,
	a.blood_type, a.status, a.donor_arrived, a.donation_completed,
	a.hospital_notes, a.notes, a.cancelled_at, a.cancelled_by,
	a.cancellation_reason, a.created_at, a.updated_at`

// ownership joins keyed by the acting role
var (
	appointmentOwner = map[model.Role]string{
		model.RoleDonor:    `JOIN donors o ON o.id = a.donor_id`,
		model.RoleHospital: `JOIN hospitals o ON o.id = a.hospital_id`,
	}
	appointmentOwnerFrom = map[model.Role]string{
		model.RoleDonor:    `FROM donors o WHERE a.donor_id = o.id`,
		model.RoleHospital: `FROM hospitals o WHERE a.hospital_id = o.id`,
	}
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func insertAppointment(ctx context.Context, exec sqlx.ExecerContext, appt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, donor_id, hospital_id, urgency_request_id, appointment_date,
			blood_type, status, donor_arrived, donation_completed,
			hospital_notes, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, FALSE, '', $8, $9, $9)
	`

	appt.ID = uuid.New()
	appt.Status = model.AppointmentStatusScheduled
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt

	_, err := exec.ExecContext(ctx, query,
		appt.ID,
		appt.DonorID,
		appt.HospitalID,
		appt.UrgencyRequestID,
		appt.AppointmentDate,
		appt.BloodType,
		appt.Status,
		appt.Notes,
		appt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	return insertAppointment(ctx, r.db, appt)
}

func (r *appointmentRepository) ListByDonor(ctx context.Context, donorUserID uuid.UUID) ([]*model.DonorAppointment, error) {
	query := `
		SELECT ` + appointmentColumns + `,
			h.name AS hospital_name,
			h.street AS "hospital.street", h.city AS "hospital.city",
			h.state AS "hospital.state", h.zip_code AS "hospital.zip_code",
			h.phone AS hospital_phone
		FROM appointments a
		JOIN donors d ON d.id = a.donor_id
		JOIN hospitals h ON h.id = a.hospital_id
		WHERE d.user_id = $1
		ORDER BY a.appointment_date DESC
	`

	var appts []*model.DonorAppointment
	if err := r.db.SelectContext(ctx, &appts, query, donorUserID); err != nil {
		return nil, fmt.Errorf("failed to list donor appointments: %w", err)
	}
	for _, a := range appts {
		a.HospitalAddress = a.HospitalAddressFields.Display()
	}
	return appts, nil
}

func (r *appointmentRepository) ListByHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalAppointment, error) {
	query := `
		SELECT ` + appointmentColumns + `,
			d.first_name AS donor_first_name,
			d.last_name AS donor_last_name,
			d.blood_type AS donor_blood_type,
			d.phone AS donor_phone,
			u.email AS donor_email
		FROM appointments a
		JOIN hospitals h ON h.id = a.hospital_id
		JOIN donors d ON d.id = a.donor_id
		JOIN users u ON u.id = d.user_id
		WHERE h.user_id = $1
		ORDER BY
			CASE a.status WHEN 'scheduled' THEN 0 WHEN 'completed' THEN 1 ELSE 2 END,
			a.appointment_date ASC
	`

	var appts []*model.HospitalAppointment
	if err := r.db.SelectContext(ctx, &appts, query, hospitalUserID); err != nil {
		return nil, fmt.Errorf("failed to list hospital appointments: %w", err)
	}
	return appts, nil
}

// ownedStatus reads the status of an appointment visible to the actor.
// It tells a state conflict apart from a missing or foreign appointment
// after a guarded write matched no rows.
func ownedStatus(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, actor model.Actor) (model.AppointmentStatus, error) {
	join, ok := appointmentOwner[actor.Role]
	if !ok {
		return "", apperrors.ErrNotFoundOrDenied
	}
	query := `SELECT a.status FROM appointments a ` + join + ` WHERE a.id = $1 AND o.user_id = $2`

	var status model.AppointmentStatus
	if err := sqlx.GetContext(ctx, q, &status, query, id, actor.UserID); err != nil {
		return "", ownedOrMissing(err, "get appointment")
	}
	return status, nil
}

func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, actor model.Actor, reason string) (*model.Appointment, error) {
	from, ok := appointmentOwnerFrom[actor.Role]
	if !ok {
		return nil, apperrors.ErrNotFoundOrDenied
	}

	query := `
		UPDATE appointments a
		SET status = 'cancelled',
			cancelled_at = NOW(),
			cancelled_by = $3,
			cancellation_reason = $4,
			updated_at = NOW()
		` + from + `
		AND a.id = $1 AND o.user_id = $2 AND a.status = 'scheduled'
		RETURNING ` + appointmentColumns

	var reasonArg *string
	if reason != "" {
		reasonArg = &reason
	}

	var appt model.Appointment
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &appt, query, id, actor.UserID, actor.Role, reasonArg)
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := ownedStatus(ctx, tx, id, actor); err != nil {
				return err
			}
			return apperrors.ErrAppointmentNotScheduled
		}
		if err != nil {
			return fmt.Errorf("failed to cancel appointment: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE urgency_responses
			SET response_type = 'cancelled', responded_at = NOW()
			WHERE scheduled_appointment_id = $1 AND response_type = 'accepted'
		`, id)
		if err != nil {
			return fmt.Errorf("failed to cancel linked response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id, donorUserID uuid.UUID, date time.Time) (*model.DonorAppointment, error) {
	query := `
		WITH moved AS (
			UPDATE appointments a
			SET appointment_date = $3, updated_at = NOW()
			FROM donors d
			WHERE a.id = $1 AND a.donor_id = d.id AND d.user_id = $2 AND a.status = 'scheduled'
			RETURNING a.*
		)
		SELECT ` + appointmentColumns + `,
			h.name AS hospital_name,
			h.street AS "hospital.street", h.city AS "hospital.city",
			h.state AS "hospital.state", h.zip_code AS "hospital.zip_code",
			h.phone AS hospital_phone
		FROM moved a
		JOIN hospitals h ON h.id = a.hospital_id
	`

	var appt model.DonorAppointment
	err := r.db.GetContext(ctx, &appt, query, id, donorUserID, date)
	if errors.Is(err, sql.ErrNoRows) {
		actor := model.Actor{UserID: donorUserID, Role: model.RoleDonor}
		if _, err := ownedStatus(ctx, r.db, id, actor); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrAppointmentNotScheduled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule appointment: %w", err)
	}
	appt.HospitalAddress = appt.HospitalAddressFields.Display()
	return &appt, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id, hospitalUserID uuid.UUID, upd model.AppointmentStatusUpdate) (*model.Appointment, error) {
	lock := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		JOIN hospitals h ON h.id = a.hospital_id
		WHERE a.id = $1 AND h.user_id = $2
		FOR UPDATE OF a
	`
	update := `
		UPDATE appointments
		SET donor_arrived = $2, donation_completed = $3, hospital_notes = $4,
			status = $5, updated_at = $6
		WHERE id = $1
	`

	var appt model.Appointment
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &appt, lock, id, hospitalUserID); err != nil {
			return ownedOrMissing(err, "get appointment")
		}
		if appt.Status != model.AppointmentStatusScheduled {
			return apperrors.ErrAppointmentNotScheduled
		}

		upd.Apply(&appt)
		appt.UpdatedAt = time.Now()

		_, err := tx.ExecContext(ctx, update,
			appt.ID,
			appt.DonorArrived,
			appt.DonationCompleted,
			appt.HospitalNotes,
			appt.Status,
			appt.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update appointment status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id, hospitalUserID uuid.UUID) error {
	query := `
		DELETE FROM appointments a
		USING hospitals h
		WHERE a.id = $1 AND a.hospital_id = h.id AND h.user_id = $2
		AND a.status IN ('completed', 'cancelled')
	`

	result, err := r.db.ExecContext(ctx, query, id, hospitalUserID)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if err := checkAffected(result); err == nil {
		return nil
	}

	actor := model.Actor{UserID: hospitalUserID, Role: model.RoleHospital}
	if _, err := ownedStatus(ctx, r.db, id, actor); err != nil {
		return err
	}
	return apperrors.NewStateConflict("scheduled appointments must be cancelled before deletion")
}

func (r *appointmentRepository) Notice(ctx context.Context, id uuid.UUID) (*model.AppointmentNotice, error) {
	query := `
		SELECT a.id, a.status, a.appointment_date, a.cancelled_by, a.cancellation_reason,
			h.name, d.id, u.email, d.first_name, d.phone
		FROM appointments a
		JOIN hospitals h ON h.id = a.hospital_id
		JOIN donors d ON d.id = a.donor_id
		JOIN users u ON u.id = d.user_id
		WHERE a.id = $1
	`

	var (
		n      model.AppointmentNotice
		reason *string
	)
	err := r.db.QueryRowxContext(ctx, query, id).Scan(
		&n.AppointmentID,
		&n.Status,
		&n.AppointmentDate,
		&n.CancelledBy,
		&reason,
		&n.HospitalName,
		&n.Recipient.DonorID,
		&n.Recipient.Email,
		&n.Recipient.FirstName,
		&n.Recipient.Phone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load appointment notice: %w", err)
	}
	if reason != nil {
		n.Reason = *reason
	}
	return &n, nil
}
