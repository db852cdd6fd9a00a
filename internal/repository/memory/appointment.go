package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

type appointmentRepository struct{ *Store }

func (s *Store) insertAppointment(appt *model.Appointment) error {
	if _, ok := s.donors[appt.DonorID]; !ok {
		return apperrors.NewNotFound("donor", nil)
	}
	if _, ok := s.hospitals[appt.HospitalID]; !ok {
		return apperrors.NewNotFound("hospital", nil)
	}

	appt.ID = uuid.New()
	appt.Status = model.AppointmentStatusScheduled
	appt.DonorArrived = false
	appt.DonationCompleted = false
	appt.CreatedAt = s.now()
	appt.UpdatedAt = appt.CreatedAt

	c := *appt
	s.appointments[c.ID] = &c
	return nil
}

// ownedAppointment applies the same ownership rule as the postgres joins.
func (s *Store) ownedAppointment(id uuid.UUID, actor model.Actor) *model.Appointment {
	a, ok := s.appointments[id]
	if !ok {
		return nil
	}
	switch actor.Role {
	case model.RoleDonor:
		if d, ok := s.donors[a.DonorID]; ok && d.UserID == actor.UserID {
			return a
		}
	case model.RoleHospital:
		if h, ok := s.hospitals[a.HospitalID]; ok && h.UserID == actor.UserID {
			return a
		}
	}
	return nil
}

func (s *Store) donorAppointment(a *model.Appointment) *model.DonorAppointment {
	out := &model.DonorAppointment{Appointment: *a}
	if h, ok := s.hospitals[a.HospitalID]; ok {
		out.HospitalName = h.Name
		out.HospitalAddressFields = h.Address
		out.HospitalAddress = h.Address.Display()
		out.HospitalPhone = h.Phone
	}
	return out
}

func (r *appointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertAppointment(appt)
}

func (r *appointmentRepository) ListByDonor(ctx context.Context, donorUserID uuid.UUID) ([]*model.DonorAppointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := r.donorByUser(donorUserID)
	if d == nil {
		return nil, nil
	}
	var out []*model.DonorAppointment
	for _, a := range r.appointments {
		if a.DonorID == d.ID {
			out = append(out, r.donorAppointment(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AppointmentDate.After(out[j].AppointmentDate) })
	return out, nil
}

func (r *appointmentRepository) ListByHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalAppointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.hospitalByUser(hospitalUserID)
	if h == nil {
		return nil, nil
	}
	var out []*model.HospitalAppointment
	for _, a := range r.appointments {
		if a.HospitalID != h.ID {
			continue
		}
		item := &model.HospitalAppointment{Appointment: *a}
		if d, ok := r.donors[a.DonorID]; ok {
			item.DonorFirstName = d.FirstName
			item.DonorLastName = d.LastName
			item.DonorBloodType = d.BloodType
			item.DonorPhone = d.Phone
			if u, ok := r.users[d.UserID]; ok {
				item.DonorEmail = u.Email
			}
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := model.HospitalAppointmentOrder(out[i].Status), model.HospitalAppointmentOrder(out[j].Status)
		if oi != oj {
			return oi < oj
		}
		return out[i].AppointmentDate.Before(out[j].AppointmentDate)
	})
	return out, nil
}

func (r *appointmentRepository) Cancel(ctx context.Context, id uuid.UUID, actor model.Actor, reason string) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.ownedAppointment(id, actor)
	if a == nil {
		return nil, apperrors.ErrNotFoundOrDenied
	}
	if a.Status != model.AppointmentStatusScheduled {
		return nil, apperrors.ErrAppointmentNotScheduled
	}

	now := r.now()
	role := actor.Role
	a.Status = model.AppointmentStatusCancelled
	a.CancelledAt = &now
	a.CancelledBy = &role
	a.CancellationReason = nil
	if reason != "" {
		a.CancellationReason = &reason
	}
	a.UpdatedAt = now

	for _, resp := range r.responses {
		if resp.ScheduledAppointmentID != nil && *resp.ScheduledAppointmentID == id &&
			resp.ResponseType == model.ResponseAccepted {
			resp.ResponseType = model.ResponseCancelled
			resp.RespondedAt = now
		}
	}

	c := *a
	return &c, nil
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id, donorUserID uuid.UUID, date time.Time) (*model.DonorAppointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.ownedAppointment(id, model.Actor{UserID: donorUserID, Role: model.RoleDonor})
	if a == nil {
		return nil, apperrors.ErrNotFoundOrDenied
	}
	if a.Status != model.AppointmentStatusScheduled {
		return nil, apperrors.ErrAppointmentNotScheduled
	}
	a.AppointmentDate = date
	a.UpdatedAt = r.now()
	return r.donorAppointment(a), nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id, hospitalUserID uuid.UUID, upd model.AppointmentStatusUpdate) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.ownedAppointment(id, model.Actor{UserID: hospitalUserID, Role: model.RoleHospital})
	if a == nil {
		return nil, apperrors.ErrNotFoundOrDenied
	}
	if a.Status != model.AppointmentStatusScheduled {
		return nil, apperrors.ErrAppointmentNotScheduled
	}
	upd.Apply(a)
	a.UpdatedAt = r.now()

	c := *a
	return &c, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id, hospitalUserID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.ownedAppointment(id, model.Actor{UserID: hospitalUserID, Role: model.RoleHospital})
	if a == nil {
		return apperrors.ErrNotFoundOrDenied
	}
	if a.Status == model.AppointmentStatusScheduled {
		return apperrors.NewStateConflict("scheduled appointments must be cancelled before deletion")
	}

	delete(r.appointments, id)
	for _, resp := range r.responses {
		if resp.ScheduledAppointmentID != nil && *resp.ScheduledAppointmentID == id {
			resp.ScheduledAppointmentID = nil
		}
	}
	return nil
}

func (r *appointmentRepository) Notice(ctx context.Context, id uuid.UUID) (*model.AppointmentNotice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, apperrors.NewNotFound("appointment", nil)
	}
	n := &model.AppointmentNotice{
		AppointmentID:   a.ID,
		Status:          a.Status,
		AppointmentDate: a.AppointmentDate,
		CancelledBy:     a.CancelledBy,
	}
	if a.CancellationReason != nil {
		n.Reason = *a.CancellationReason
	}
	if h, ok := r.hospitals[a.HospitalID]; ok {
		n.HospitalName = h.Name
	}
	if d, ok := r.donors[a.DonorID]; ok {
		n.Recipient = model.DonorContact{DonorID: d.ID, FirstName: d.FirstName, Phone: d.Phone}
		if u, ok := r.users[d.UserID]; ok {
			n.Recipient.Email = u.Email
		}
	}
	return n, nil
}
