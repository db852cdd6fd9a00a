// Package memory is a process-local implementation of the repository
// interfaces used by the dev server and the test suites.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
)

type responseKey struct {
	requestID uuid.UUID
	donorID   uuid.UUID
}

// Store holds every table behind one lock. Multi-row writes take the write
// lock for their whole duration, which gives them the same all-or-nothing
// behaviour as the postgres transactions.
type Store struct {
	mu sync.RWMutex

	users        map[uuid.UUID]*model.User
	donors       map[uuid.UUID]*model.Donor
	hospitals    map[uuid.UUID]*model.Hospital
	inventory    map[uuid.UUID]map[model.BloodType]*model.InventoryItem
	requests     map[uuid.UUID]*model.UrgencyRequest
	responses    map[responseKey]*model.UrgencyResponse
	appointments map[uuid.UUID]*model.Appointment
	audit        []*model.EligibilityAuditEntry
	patients     map[uuid.UUID]*model.Patient
	outbox       map[uuid.UUID]*model.OutboxEvent

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:        make(map[uuid.UUID]*model.User),
		donors:       make(map[uuid.UUID]*model.Donor),
		hospitals:    make(map[uuid.UUID]*model.Hospital),
		inventory:    make(map[uuid.UUID]map[model.BloodType]*model.InventoryItem),
		requests:     make(map[uuid.UUID]*model.UrgencyRequest),
		responses:    make(map[responseKey]*model.UrgencyResponse),
		appointments: make(map[uuid.UUID]*model.Appointment),
		patients:     make(map[uuid.UUID]*model.Patient),
		outbox:       make(map[uuid.UUID]*model.OutboxEvent),
		now:          time.Now,
	}
}

// SetClock replaces the time source; tests use it to age records.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Store {
	return &repository.Store{
		Users:        &userRepository{s},
		Donors:       &donorRepository{s},
		Hospitals:    &hospitalRepository{s},
		Inventory:    &inventoryRepository{s},
		Urgency:      &urgencyRequestRepository{s},
		Responses:    &urgencyResponseRepository{s},
		Appointments: &appointmentRepository{s},
		Patients:     &patientRepository{s},
		Outbox:       &outboxRepository{s},
		Health:       s,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) donorByUser(userID uuid.UUID) *model.Donor {
	for _, d := range s.donors {
		if d.UserID == userID {
			return d
		}
	}
	return nil
}

func (s *Store) hospitalByUser(userID uuid.UUID) *model.Hospital {
	for _, h := range s.hospitals {
		if h.UserID == userID {
			return h
		}
	}
	return nil
}

func (s *Store) userByEmail(email string) *model.User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

// responseView joins a response with its appointment.
func (s *Store) responseView(resp *model.UrgencyResponse) *model.DonorResponseView {
	if resp == nil {
		return nil
	}
	view := &model.DonorResponseView{
		ResponseType:    resp.ResponseType,
		RejectionReason: resp.RejectionReason,
	}
	if resp.ScheduledAppointmentID != nil {
		if a, ok := s.appointments[*resp.ScheduledAppointmentID]; ok {
			id, date, status := a.ID, a.AppointmentDate, a.Status
			view.AppointmentID = &id
			view.AppointmentDate = &date
			view.AppointmentStatus = &status
		}
	}
	return view
}
