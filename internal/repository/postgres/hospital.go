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
	"github.com/lifeline/donation-api/pkg/geo"
)

const hospitalColumns = `
	id, user_id, name, street, city, state, zip_code, phone, email,
	latitude, longitude, blood_urgency_level, operating_hours,
	created_at, updated_at`

type hospitalRepository struct {
	BaseRepository
}

func NewHospitalRepository(base BaseRepository) repository.HospitalRepository {
	return &hospitalRepository{base}
}

func (r *hospitalRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Hospital, error) {
	return r.get(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE id = $1`, id)
}

func (r *hospitalRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Hospital, error) {
	return r.get(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE user_id = $1`, userID)
}

func (r *hospitalRepository) get(ctx context.Context, query string, arg uuid.UUID) (*model.Hospital, error) {
	var hospital model.Hospital
	if err := r.db.GetContext(ctx, &hospital, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("hospital", err)
		}
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	return &hospital, nil
}

func (r *hospitalRepository) UpsertProfile(ctx context.Context, hospital *model.Hospital) error {
	query := `
		INSERT INTO hospitals (` + hospitalColumns + `)
		VALUES (
			:id, :user_id, :name, :street, :city, :state, :zip_code, :phone, :email,
			:latitude, :longitude, 1, :operating_hours, :updated_at, :updated_at
		)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			street = EXCLUDED.street,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip_code = EXCLUDED.zip_code,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			operating_hours = EXCLUDED.operating_hours,
			updated_at = EXCLUDED.updated_at
		RETURNING id, blood_urgency_level, created_at
	`

	if hospital.ID == uuid.Nil {
		hospital.ID = uuid.New()
	}
	hospital.UpdatedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := sqlx.NamedQueryContext(ctx, tx, query, hospital)
		if err != nil {
			return fmt.Errorf("failed to upsert hospital profile: %w", err)
		}
		if rows.Next() {
			err = rows.Scan(&hospital.ID, &hospital.BloodUrgencyLevel, &hospital.CreatedAt)
		} else {
			err = rows.Err()
		}
		rows.Close()
		if err != nil {
			return fmt.Errorf("failed to read hospital profile: %w", err)
		}

		return markProfileCompleted(ctx, tx, hospital.UserID)
	})
}

func (r *hospitalRepository) UpdateUrgencyLevel(ctx context.Context, userID uuid.UUID, level int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE hospitals SET blood_urgency_level = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, level,
	)
	if err != nil {
		return fmt.Errorf("failed to update urgency level: %w", err)
	}
	return checkAffected(result)
}

func (r *hospitalRepository) ListWithCoordinates(ctx context.Context) ([]*model.Hospital, error) {
	query := `
		SELECT ` + hospitalColumns + `
		FROM hospitals
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY name ASC
	`

	var hospitals []*model.Hospital
	if err := r.db.SelectContext(ctx, &hospitals, query); err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}
	return hospitals, nil
}

func (r *hospitalRepository) ListMissingCoordinates(ctx context.Context, limit int) ([]*model.Hospital, error) {
	query := `
		SELECT ` + hospitalColumns + `
		FROM hospitals
		WHERE (latitude IS NULL OR longitude IS NULL)
		AND street <> '' AND city <> '' AND state <> ''
		ORDER BY updated_at ASC
		LIMIT $1
	`

	var hospitals []*model.Hospital
	if err := r.db.SelectContext(ctx, &hospitals, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list hospitals missing coordinates: %w", err)
	}
	return hospitals, nil
}

func (r *hospitalRepository) SetCoordinates(ctx context.Context, id uuid.UUID, p geo.Point) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE hospitals SET latitude = $2, longitude = $3, updated_at = NOW() WHERE id = $1`,
		id, p.Latitude, p.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to set hospital coordinates: %w", err)
	}
	return checkAffected(result)
}
