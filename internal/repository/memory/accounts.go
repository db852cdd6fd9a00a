package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/geo"
)

type userRepository struct{ *Store }

func (r *userRepository) CreateWithProfile(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.userByEmail(user.Email) != nil {
		return apperrors.ErrEmailTaken
	}
	if !user.Role.Valid() {
		return apperrors.NewValidation(fmt.Sprintf("unknown role %q", user.Role), nil)
	}

	now := r.now()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.ProfileCompleted = false
	u := *user
	r.users[u.ID] = &u

	switch user.Role {
	case model.RoleDonor:
		id := uuid.New()
		r.donors[id] = &model.Donor{
			ID:                id,
			UserID:            user.ID,
			EligibilityStatus: model.EligibilityPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	case model.RoleHospital:
		id := uuid.New()
		r.hospitals[id] = &model.Hospital{
			ID:                id,
			UserID:            user.ID,
			BloodUrgencyLevel: model.MinUrgencyLevel,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", nil)
	}
	c := *u
	return &c, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u := r.userByEmail(email)
	if u == nil {
		return nil, apperrors.NewNotFound("user", nil)
	}
	c := *u
	return &c, nil
}

func (s *Store) markProfileCompleted(userID uuid.UUID) {
	if u, ok := s.users[userID]; ok && !u.ProfileCompleted {
		u.ProfileCompleted = true
		u.UpdatedAt = s.now()
	}
}

type donorRepository struct{ *Store }

func (r *donorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := r.donorByUser(userID)
	if d == nil {
		return nil, apperrors.NewNotFound("donor profile", nil)
	}
	c := *d
	return &c, nil
}

func (r *donorRepository) UpsertProfile(ctx context.Context, donor *model.Donor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing := r.donorByUser(donor.UserID); existing != nil {
		donor.ID = existing.ID
		donor.EligibilityStatus = existing.EligibilityStatus
		donor.CreatedAt = existing.CreatedAt
	} else {
		if donor.ID == uuid.Nil {
			donor.ID = uuid.New()
		}
		donor.EligibilityStatus = model.EligibilityPending
		donor.CreatedAt = now
	}
	donor.UpdatedAt = now

	c := *donor
	r.donors[c.ID] = &c
	r.markProfileCompleted(donor.UserID)
	return nil
}

func (r *donorRepository) UpdateEligibility(ctx context.Context, userID uuid.UUID, status model.EligibilityStatus, reasons []string) (model.EligibilityStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.donorByUser(userID)
	if d == nil {
		return "", apperrors.NewNotFound("donor profile", nil)
	}
	previous := d.EligibilityStatus
	if previous == model.EligibilityIneligible {
		return previous, apperrors.ErrEligibilityLocked
	}

	now := r.now()
	d.EligibilityStatus = status
	d.UpdatedAt = now
	r.audit = append(r.audit, &model.EligibilityAuditEntry{
		ID:             uuid.New(),
		DonorID:        d.ID,
		PreviousStatus: previous,
		NewStatus:      status,
		Reasons:        append(model.StringList{}, reasons...),
		CreatedAt:      now,
	})
	return previous, nil
}

func (r *donorRepository) ListEligibilityHistory(ctx context.Context, userID uuid.UUID) ([]*model.EligibilityAuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := r.donorByUser(userID)
	if d == nil {
		return nil, nil
	}
	var entries []*model.EligibilityAuditEntry
	for i := len(r.audit) - 1; i >= 0; i-- {
		if r.audit[i].DonorID == d.ID {
			c := *r.audit[i]
			entries = append(entries, &c)
		}
	}
	return entries, nil
}

func (r *donorRepository) FindCandidates(ctx context.Context, filter model.CandidateFilter) ([]*model.DonorCandidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := make(map[model.EligibilityStatus]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		allowed[s] = true
	}

	var candidates []*model.DonorCandidate
	for _, d := range r.donors {
		if d.BloodType != filter.BloodType || !allowed[d.EligibilityStatus] {
			continue
		}
		p, ok := d.Location()
		if !ok || !filter.Bounds.Contains(p) {
			continue
		}

		c := &model.DonorCandidate{
			DonorID:           d.ID,
			UserID:            d.UserID,
			FirstName:         d.FirstName,
			LastName:          d.LastName,
			Phone:             d.Phone,
			BloodType:         d.BloodType,
			EligibilityStatus: d.EligibilityStatus,
			Latitude:          p.Latitude,
			Longitude:         p.Longitude,
		}
		if u, ok := r.users[d.UserID]; ok {
			c.Email = u.Email
		}
		if filter.ResponseRequestID != nil {
			resp := r.responses[responseKey{*filter.ResponseRequestID, d.ID}]
			if view := r.responseView(resp); view != nil {
				rt := view.ResponseType
				c.ResponseType = &rt
				c.RejectionReason = view.RejectionReason
				c.AppointmentID = view.AppointmentID
				c.AppointmentDate = view.AppointmentDate
				c.AppointmentStatus = view.AppointmentStatus
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (r *donorRepository) ListMissingCoordinates(ctx context.Context, limit int) ([]*model.Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var donors []*model.Donor
	for _, d := range r.donors {
		if _, ok := d.Location(); ok || !d.Address.Geocodable() {
			continue
		}
		c := *d
		donors = append(donors, &c)
	}
	sort.Slice(donors, func(i, j int) bool { return donors[i].UpdatedAt.Before(donors[j].UpdatedAt) })
	if limit > 0 && len(donors) > limit {
		donors = donors[:limit]
	}
	return donors, nil
}

func (r *donorRepository) SetCoordinates(ctx context.Context, id uuid.UUID, p geo.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.donors[id]
	if !ok {
		return apperrors.ErrNotFoundOrDenied
	}
	lat, lng := p.Latitude, p.Longitude
	d.Latitude, d.Longitude = &lat, &lng
	d.UpdatedAt = r.now()
	return nil
}

type hospitalRepository struct{ *Store }

func (r *hospitalRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hospitals[id]
	if !ok {
		return nil, apperrors.NewNotFound("hospital", nil)
	}
	c := *h
	return &c, nil
}

func (r *hospitalRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h := r.hospitalByUser(userID)
	if h == nil {
		return nil, apperrors.NewNotFound("hospital", nil)
	}
	c := *h
	return &c, nil
}

func (r *hospitalRepository) UpsertProfile(ctx context.Context, hospital *model.Hospital) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing := r.hospitalByUser(hospital.UserID); existing != nil {
		hospital.ID = existing.ID
		hospital.BloodUrgencyLevel = existing.BloodUrgencyLevel
		hospital.CreatedAt = existing.CreatedAt
	} else {
		if hospital.ID == uuid.Nil {
			hospital.ID = uuid.New()
		}
		hospital.BloodUrgencyLevel = model.MinUrgencyLevel
		hospital.CreatedAt = now
	}
	hospital.UpdatedAt = now

	c := *hospital
	r.hospitals[c.ID] = &c
	r.markProfileCompleted(hospital.UserID)
	return nil
}

func (r *hospitalRepository) UpdateUrgencyLevel(ctx context.Context, userID uuid.UUID, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.hospitalByUser(userID)
	if h == nil {
		return apperrors.ErrNotFoundOrDenied
	}
	h.BloodUrgencyLevel = level
	h.UpdatedAt = r.now()
	return nil
}

func (r *hospitalRepository) ListWithCoordinates(ctx context.Context) ([]*model.Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hospitals []*model.Hospital
	for _, h := range r.hospitals {
		if _, ok := h.Location(); !ok {
			continue
		}
		c := *h
		hospitals = append(hospitals, &c)
	}
	sort.Slice(hospitals, func(i, j int) bool { return hospitals[i].Name < hospitals[j].Name })
	return hospitals, nil
}

func (r *hospitalRepository) ListMissingCoordinates(ctx context.Context, limit int) ([]*model.Hospital, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hospitals []*model.Hospital
	for _, h := range r.hospitals {
		if _, ok := h.Location(); ok || !h.Address.Geocodable() {
			continue
		}
		c := *h
		hospitals = append(hospitals, &c)
	}
	sort.Slice(hospitals, func(i, j int) bool { return hospitals[i].UpdatedAt.Before(hospitals[j].UpdatedAt) })
	if limit > 0 && len(hospitals) > limit {
		hospitals = hospitals[:limit]
	}
	return hospitals, nil
}

func (r *hospitalRepository) SetCoordinates(ctx context.Context, id uuid.UUID, p geo.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hospitals[id]
	if !ok {
		return apperrors.ErrNotFoundOrDenied
	}
	lat, lng := p.Latitude, p.Longitude
	h.Latitude, h.Longitude = &lat, &lng
	h.UpdatedAt = r.now()
	return nil
}

type inventoryRepository struct{ *Store }

func (r *inventoryRepository) List(ctx context.Context, hospitalID uuid.UUID) ([]*model.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*model.InventoryItem
	for _, item := range r.inventory[hospitalID] {
		c := *item
		items = append(items, &c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].BloodType < items[j].BloodType })
	return items, nil
}

func (r *inventoryRepository) Upsert(ctx context.Context, hospitalID uuid.UUID, units map[model.BloodType]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, ok := r.inventory[hospitalID]
	if !ok {
		rows = make(map[model.BloodType]*model.InventoryItem)
		r.inventory[hospitalID] = rows
	}
	now := r.now()
	for bt, n := range units {
		rows[bt] = &model.InventoryItem{
			HospitalID:     hospitalID,
			BloodType:      bt,
			UnitsAvailable: n,
			UpdatedAt:      now,
		}
	}
	return nil
}
