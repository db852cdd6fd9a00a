package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

type urgencyRequestRepository struct{ *Store }

func (r *urgencyRequestRepository) Create(ctx context.Context, req *model.UrgencyRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.hospitals[req.HospitalID]; !ok {
		return apperrors.NewNotFound("hospital", nil)
	}
	req.ID = uuid.New()
	req.IsActive = true
	req.CreatedAt = r.now()
	req.UpdatedAt = req.CreatedAt

	c := *req
	r.requests[c.ID] = &c
	return nil
}

func (r *urgencyRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.UrgencyRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, apperrors.NewNotFound("urgency request", nil)
	}
	c := *req
	return &c, nil
}

// ownedRequest returns the request only when it belongs to the hospital user.
func (s *Store) ownedRequest(id, hospitalUserID uuid.UUID) *model.UrgencyRequest {
	req, ok := s.requests[id]
	if !ok {
		return nil
	}
	h, ok := s.hospitals[req.HospitalID]
	if !ok || h.UserID != hospitalUserID {
		return nil
	}
	return req
}

func (r *urgencyRequestRepository) GetOwned(ctx context.Context, id, hospitalUserID uuid.UUID) (*model.UrgencyRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req := r.ownedRequest(id, hospitalUserID)
	if req == nil {
		return nil, apperrors.ErrNotFoundOrDenied
	}
	c := *req
	return &c, nil
}

func (r *urgencyRequestRepository) LatestActive(ctx context.Context, hospitalID uuid.UUID, bloodType model.BloodType) (*model.UrgencyRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *model.UrgencyRequest
	for _, req := range r.requests {
		if req.HospitalID != hospitalID || req.BloodType != bloodType || !req.IsActive {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

func (r *urgencyRequestRepository) ListByHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalUrgencyRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.hospitalByUser(hospitalUserID)
	if h == nil {
		return nil, nil
	}

	var out []*model.HospitalUrgencyRequest
	for _, req := range r.requests {
		if req.HospitalID != h.ID {
			continue
		}
		item := &model.HospitalUrgencyRequest{UrgencyRequest: *req}
		for key, resp := range r.responses {
			if key.requestID != req.ID {
				continue
			}
			switch resp.ResponseType {
			case model.ResponseAccepted:
				item.AcceptedCount++
			case model.ResponseRejected:
				item.RejectedCount++
			case model.ResponseCancelled:
				item.CancelledCount++
			}
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *urgencyRequestRepository) ListVisible(ctx context.Context, filter model.VisibleRequestFilter) ([]*model.VisibleRequestRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []*model.VisibleRequestRow
	for _, req := range r.requests {
		if req.BloodType != filter.BloodType || !req.IsActive || req.CreatedAt.Before(filter.Since) {
			continue
		}
		h, ok := r.hospitals[req.HospitalID]
		if !ok {
			continue
		}
		p, ok := h.Location()
		if !ok {
			continue
		}

		row := &model.VisibleRequestRow{
			UrgencyRequest:    *req,
			HospitalName:      h.Name,
			HospitalAddress:   h.Address,
			HospitalPhone:     h.Phone,
			HospitalLatitude:  p.Latitude,
			HospitalLongitude: p.Longitude,
		}
		if view := r.responseView(r.responses[responseKey{req.ID, filter.DonorID}]); view != nil {
			rt := view.ResponseType
			row.ResponseType = &rt
			row.RejectionReason = view.RejectionReason
			row.AppointmentID = view.AppointmentID
			row.AppointmentDate = view.AppointmentDate
			row.AppointmentStatus = view.AppointmentStatus
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *urgencyRequestRepository) Close(ctx context.Context, id, hospitalUserID uuid.UUID, fulfilled bool) (*model.UrgencyRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req := r.ownedRequest(id, hospitalUserID)
	if req == nil {
		return nil, apperrors.ErrNotFoundOrDenied
	}
	if !req.IsActive {
		return nil, apperrors.ErrRequestNoLongerActive
	}

	now := r.now()
	req.IsActive = false
	if fulfilled {
		req.FulfilledAt = &now
	} else {
		req.DeactivatedAt = &now
	}
	req.UpdatedAt = now

	c := *req
	return &c, nil
}

type urgencyResponseRepository struct{ *Store }

func (r *urgencyResponseRepository) Get(ctx context.Context, requestID, donorID uuid.UUID) (*model.UrgencyResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resp, ok := r.responses[responseKey{requestID, donorID}]
	if !ok {
		return nil, apperrors.NewNotFound("urgency response", nil)
	}
	c := *resp
	return &c, nil
}

func (s *Store) activeRequest(id uuid.UUID) error {
	req, ok := s.requests[id]
	if !ok {
		return apperrors.NewNotFound("urgency request", nil)
	}
	if !req.IsActive {
		return apperrors.ErrRequestNoLongerActive
	}
	return nil
}

// Accept validates everything before writing so a failure leaves both
// tables untouched.
func (r *urgencyResponseRepository) Accept(ctx context.Context, appt *model.Appointment, resp *model.UrgencyResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.activeRequest(resp.UrgencyRequestID); err != nil {
		return err
	}
	key := responseKey{resp.UrgencyRequestID, resp.DonorID}
	existing, ok := r.responses[key]
	if ok && existing.ResponseType != model.ResponseCancelled {
		return apperrors.ErrDuplicateResponse
	}
	if err := r.insertAppointment(appt); err != nil {
		return err
	}

	resp.ID = uuid.New()
	if ok {
		resp.ID = existing.ID
	}
	resp.ResponseType = model.ResponseAccepted
	resp.RejectionReason = nil
	apptID := appt.ID
	resp.ScheduledAppointmentID = &apptID
	resp.RespondedAt = r.now()

	c := *resp
	r.responses[key] = &c
	return nil
}

func (r *urgencyResponseRepository) Reject(ctx context.Context, resp *model.UrgencyResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.activeRequest(resp.UrgencyRequestID); err != nil {
		return err
	}
	key := responseKey{resp.UrgencyRequestID, resp.DonorID}
	existing, ok := r.responses[key]
	if ok && existing.ResponseType == model.ResponseAccepted {
		return apperrors.ErrAlreadyResponded
	}

	resp.ID = uuid.New()
	if ok {
		resp.ID = existing.ID
	}
	resp.ResponseType = model.ResponseRejected
	resp.ScheduledAppointmentID = nil
	resp.RespondedAt = r.now()

	c := *resp
	r.responses[key] = &c
	return nil
}

func (r *urgencyResponseRepository) ListForHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalUrgencyResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.hospitalByUser(hospitalUserID)
	if h == nil {
		return nil, nil
	}

	var out []*model.HospitalUrgencyResponse
	for key, resp := range r.responses {
		req, ok := r.requests[key.requestID]
		if !ok || req.HospitalID != h.ID || !req.IsActive {
			continue
		}
		d, ok := r.donors[key.donorID]
		if !ok {
			continue
		}
		item := &model.HospitalUrgencyResponse{
			ID:                  resp.ID,
			UrgencyRequestID:    req.ID,
			RequestBloodType:    req.BloodType,
			RequestUrgencyLevel: req.UrgencyLevel,
			ResponseType:        resp.ResponseType,
			RejectionReason:     resp.RejectionReason,
			RespondedAt:         resp.RespondedAt,
			DonorID:             d.ID,
			DonorFirstName:      d.FirstName,
			DonorLastName:       d.LastName,
			DonorBloodType:      d.BloodType,
			DonorPhone:          d.Phone,
		}
		if view := r.responseView(resp); view != nil {
			item.AppointmentID = view.AppointmentID
			item.AppointmentDate = view.AppointmentDate
			item.AppointmentStatus = view.AppointmentStatus
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RespondedAt.After(out[j].RespondedAt) })
	return out, nil
}
