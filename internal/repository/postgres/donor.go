package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/geo"
)

const donorColumns = `
	id, user_id, first_name, last_name, phone, date_of_birth, sex,
	street, city, state, zip_code, latitude, longitude, blood_type,
	weight_lbs, height_in, last_donation_date, emergency_contact_name,
	emergency_contact_phone, emergency_contact_relationship,
	has_chronic_illness, chronic_illness_details, recent_travel,
	travel_details, recent_tattoo, tattoo_details, takes_medication,
	medication_details, eligibility_status, created_at, updated_at`

type donorRepository struct {
	BaseRepository
}

func NewDonorRepository(base BaseRepository) repository.DonorRepository {
	return &donorRepository{base}
}

func (r *donorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE user_id = $1`

	var donor model.Donor
	if err := r.db.GetContext(ctx, &donor, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("donor profile", err)
		}
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	return &donor, nil
}

func (r *donorRepository) UpsertProfile(ctx context.Context, donor *model.Donor) error {
	query := `
		INSERT INTO donors (` + donorColumns + `)
		VALUES (
			:id, :user_id, :first_name, :last_name, :phone, :date_of_birth, :sex,
			:street, :city, :state, :zip_code, :latitude, :longitude,
			:blood_type, :weight_lbs, :height_in, :last_donation_date,
			:emergency_contact_name, :emergency_contact_phone,
			:emergency_contact_relationship, :has_chronic_illness,
			:chronic_illness_details, :recent_travel, :travel_details,
			:recent_tattoo, :tattoo_details, :takes_medication,
			:medication_details, 'pending', :updated_at, :updated_at
		)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			date_of_birth = EXCLUDED.date_of_birth,
			sex = EXCLUDED.sex,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			blood_type = EXCLUDED.blood_type,
			weight_lbs = EXCLUDED.weight_lbs,
			height_in = EXCLUDED.height_in,
			last_donation_date = EXCLUDED.last_donation_date,
			emergency_contact_name = EXCLUDED.emergency_contact_name,
			emergency_contact_phone = EXCLUDED.emergency_contact_phone,
			emergency_contact_relationship = EXCLUDED.emergency_contact_relationship,
			has_chronic_illness = EXCLUDED.has_chronic_illness,
			chronic_illness_details = EXCLUDED.chronic_illness_details,
			recent_travel = EXCLUDED.recent_travel,
			travel_details = EXCLUDED.travel_details,
			recent_tattoo = EXCLUDED.recent_tattoo,
			tattoo_details = EXCLUDED.tattoo_details,
			takes_medication = EXCLUDED.takes_medication,
			medication_details = EXCLUDED.medication_details,
			updated_at = EXCLUDED.updated_at
		RETURNING id, eligibility_status, created_at
	`

	if donor.ID == uuid.Nil {
		donor.ID = uuid.New()
	}
	donor.UpdatedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := sqlx.NamedQueryContext(ctx, tx, query, donor)
		if err != nil {
			return fmt.Errorf("failed to upsert donor profile: %w", err)
		}
		if rows.Next() {
			err = rows.Scan(&donor.ID, &donor.EligibilityStatus, &donor.CreatedAt)
		} else {
			err = rows.Err()
		}
		rows.Close()
		if err != nil {
			return fmt.Errorf("failed to read donor profile: %w", err)
		}

		return markProfileCompleted(ctx, tx, donor.UserID)
	})
}

func markProfileCompleted(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE users SET profile_completed = TRUE, updated_at = NOW() WHERE id = $1 AND NOT profile_completed`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark profile completed: %w", err)
	}
	return nil
}

func (r *donorRepository) UpdateEligibility(ctx context.Context, userID uuid.UUID, status model.EligibilityStatus, reasons []string) (model.EligibilityStatus, error) {
	update := `
		UPDATE donors d
		SET eligibility_status = $2, updated_at = NOW()
		FROM (
			SELECT id, eligibility_status AS prev
			FROM donors
			WHERE user_id = $1
			FOR UPDATE
		) old
		WHERE d.id = old.id AND old.prev <> 'ineligible'
		RETURNING d.id, old.prev
	`
	audit := `
		INSERT INTO eligibility_audit_log (id, donor_id, previous_status, new_status, reasons, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	var previous model.EligibilityStatus
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var donorID uuid.UUID
		err := tx.QueryRowxContext(ctx, update, userID, status).Scan(&donorID, &previous)
		if errors.Is(err, sql.ErrNoRows) {
			var current model.EligibilityStatus
			err = tx.GetContext(ctx, &current, `SELECT eligibility_status FROM donors WHERE user_id = $1`, userID)
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFound("donor profile", err)
			}
			if err != nil {
				return fmt.Errorf("failed to read eligibility: %w", err)
			}
			return apperrors.ErrEligibilityLocked
		}
		if err != nil {
			return fmt.Errorf("failed to update eligibility: %w", err)
		}

		if _, err := tx.ExecContext(ctx, audit, uuid.New(), donorID, previous, status, model.StringList(reasons)); err != nil {
			return fmt.Errorf("failed to write eligibility audit: %w", err)
		}
		return nil
	})
	return previous, err
}

func (r *donorRepository) ListEligibilityHistory(ctx context.Context, userID uuid.UUID) ([]*model.EligibilityAuditEntry, error) {
	query := `
		SELECT l.id, l.donor_id, l.previous_status, l.new_status, l.reasons, l.created_at
		FROM eligibility_audit_log l
		JOIN donors d ON d.id = l.donor_id
		WHERE d.user_id = $1
		ORDER BY l.created_at DESC
	`

	var entries []*model.EligibilityAuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list eligibility history: %w", err)
	}
	return entries, nil
}

func (r *donorRepository) FindCandidates(ctx context.Context, filter model.CandidateFilter) ([]*model.DonorCandidate, error) {
	statuses := make([]string, len(filter.Statuses))
	for i, s := range filter.Statuses {
		statuses[i] = string(s)
	}
	args := []interface{}{
		filter.BloodType,
		pq.Array(statuses),
		filter.Bounds.MinLat, filter.Bounds.MaxLat,
		filter.Bounds.MinLng, filter.Bounds.MaxLng,
	}

	projection := `
		NULL::text AS response_type, NULL::text AS rejection_reason,
		NULL::uuid AS appointment_id, NULL::timestamptz AS appointment_date,
		NULL::text AS appointment_status`
	join := ""
	if filter.ResponseRequestID != nil {
		projection = `
		ur.response_type, ur.rejection_reason,
		a.id AS appointment_id, a.appointment_date, a.status AS appointment_status`
		join = `
		LEFT JOIN urgency_responses ur ON ur.donor_id = d.id AND ur.urgency_request_id = $7
		LEFT JOIN appointments a ON a.id = ur.scheduled_appointment_id`
		args = append(args, *filter.ResponseRequestID)
	}

	query := `
		SELECT d.id AS donor_id, d.user_id, u.email, d.first_name, d.last_name,
			d.phone, d.blood_type, d.eligibility_status, d.latitude, d.longitude,` + projection + `
		FROM donors d
		JOIN users u ON u.id = d.user_id` + join + `
		WHERE d.blood_type = $1
		AND d.eligibility_status = ANY($2)
		AND d.latitude IS NOT NULL AND d.longitude IS NOT NULL
		AND d.latitude BETWEEN $3 AND $4
		AND d.longitude BETWEEN $5 AND $6
	`

	var candidates []*model.DonorCandidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find donor candidates: %w", err)
	}
	return candidates, nil
}

func (r *donorRepository) ListMissingCoordinates(ctx context.Context, limit int) ([]*model.Donor, error) {
	query := `
		SELECT ` + donorColumns + `
		FROM donors
		WHERE (latitude IS NULL OR longitude IS NULL)
		AND street <> '' AND city <> '' AND state <> ''
		ORDER BY updated_at ASC
		LIMIT $1
	`

	var donors []*model.Donor
	if err := r.db.SelectContext(ctx, &donors, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list donors missing coordinates: %w", err)
	}
	return donors, nil
}

func (r *donorRepository) SetCoordinates(ctx context.Context, id uuid.UUID, p geo.Point) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE donors SET latitude = $2, longitude = $3, updated_at = NOW() WHERE id = $1`,
		id, p.Latitude, p.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to set donor coordinates: %w", err)
	}
	return checkAffected(result)
}
