package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
)

type inventoryRepository struct {
	BaseRepository
}

func NewInventoryRepository(base BaseRepository) repository.InventoryRepository {
	return &inventoryRepository{base}
}

func (r *inventoryRepository) List(ctx context.Context, hospitalID uuid.UUID) ([]*model.InventoryItem, error) {
	query := `
		SELECT hospital_id, blood_type, units_available, updated_at
		FROM blood_inventory
		WHERE hospital_id = $1
	`

	var items []*model.InventoryItem
	if err := r.db.SelectContext(ctx, &items, query, hospitalID); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return items, nil
}

func (r *inventoryRepository) Upsert(ctx context.Context, hospitalID uuid.UUID, units map[model.BloodType]int) error {
	query := `
		INSERT INTO blood_inventory (hospital_id, blood_type, units_available, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (hospital_id, blood_type) DO UPDATE SET
			units_available = EXCLUDED.units_available,
			updated_at = EXCLUDED.updated_at
	`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for bt, n := range units {
			if _, err := tx.ExecContext(ctx, query, hospitalID, bt, n); err != nil {
				return fmt.Errorf("failed to upsert inventory for %s: %w", bt, err)
			}
		}
		return nil
	})
}
