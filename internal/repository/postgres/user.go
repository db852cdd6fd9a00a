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

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) CreateWithProfile(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, role, profile_completed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, FALSE, $5, $5)
	`

	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	user.ProfileCompleted = false

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			user.ID,
			user.Email,
			user.PasswordHash,
			user.Role,
			user.CreatedAt,
		)
		if isUniqueViolation(err) {
			return apperrors.ErrEmailTaken
		}
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		var profile string
		switch user.Role {
		case model.RoleDonor:
			profile = `INSERT INTO donors (id, user_id, eligibility_status, created_at, updated_at)
				VALUES ($1, $2, 'pending', $3, $3)`
		case model.RoleHospital:
			profile = `INSERT INTO hospitals (id, user_id, blood_urgency_level, created_at, updated_at)
				VALUES ($1, $2, 1, $3, $3)`
		default:
			return apperrors.NewValidation(fmt.Sprintf("unknown role %q", user.Role), nil)
		}
		if _, err := tx.ExecContext(ctx, profile, uuid.New(), user.ID, user.CreatedAt); err != nil {
			return fmt.Errorf("failed to create %s profile: %w", user.Role, err)
		}
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT * FROM users WHERE lower(email) = lower($1)`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", err)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}
