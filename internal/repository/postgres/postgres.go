package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/lifeline/donation-api/internal/repository"
)

// NewStore wires every repository onto one connection pool.
func NewStore(db *sqlx.DB) *repository.Store {
	base := NewBaseRepository(db)
	return &repository.Store{
		Users:        NewUserRepository(base),
		Donors:       NewDonorRepository(base),
		Hospitals:    NewHospitalRepository(base),
		Inventory:    NewInventoryRepository(base),
		Urgency:      NewUrgencyRequestRepository(base),
		Responses:    NewUrgencyResponseRepository(base),
		Appointments: NewAppointmentRepository(base),
		Patients:     NewPatientRepository(base),
		Outbox:       NewOutboxRepository(base),
		Health:       &base,
	}
}
