// Package urgency implements the hospital broadcast: creating urgency
// requests, finding donors in range, and listing requests for donors.
package urgency

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/service/notification"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
	"github.com/lifeline/donation-api/pkg/geo"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/metrics"
)

// WarningNotifyFailed is returned with a created request whose broadcast failed.
const WarningNotifyFailed = "request created, 0 donors notified"

// Config tunes donor matching. Zero values fall back to defaults.
type Config struct {
	DefaultRadiusMiles float64
	VisibilityWindow   time.Duration
}

// Service creates and manages hospital urgency requests.
type Service struct {
	hospitals repository.HospitalRepository
	donors    repository.DonorRepository
	requests  repository.UrgencyRequestRepository
	responses repository.UrgencyResponseRepository
	notifier  notification.Service
	config    Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService builds an urgency service. Unset Config fields get defaults.
func NewService(
	repos *repository.Store,
	notifier notification.Service,
	config Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if config.DefaultRadiusMiles <= 0 {
		config.DefaultRadiusMiles = model.DefaultRadiusMiles
	}
	if config.VisibilityWindow <= 0 {
		config.VisibilityWindow = model.DefaultVisibilityWindow
	}
	return &Service{
		hospitals: repos.Hospitals,
		donors:    repos.Donors,
		requests:  repos.Urgency,
		responses: repos.Responses,
		notifier:  notifier,
		config:    config,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

// Create persists an active request and enqueues alerts for eligible donors
// in range. Notification problems only add a warning.
func (s *Service) Create(ctx context.Context, hospitalUserID uuid.UUID, req model.CreateUrgencyRequest) (*model.CreateUrgencyResult, error) {
	bloodType, err := model.ParseBloodType(req.BloodType)
	if err != nil {
		return nil, err
	}
	if req.UrgencyLevel < model.MinUrgencyLevel || req.UrgencyLevel > model.MaxUrgencyLevel {
		return nil, apperrors.ErrInvalidUrgencyLevel
	}
	radius := s.config.DefaultRadiusMiles
	if req.RadiusMiles != nil {
		if *req.RadiusMiles <= 0 {
			return nil, apperrors.NewValidation("radius_miles must be positive", nil)
		}
		radius = *req.RadiusMiles
	}

	hospital, err := s.hospitals.GetByUserID(ctx, hospitalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	center, ok := hospital.Location()
	if !ok {
		return nil, apperrors.ErrHospitalLocationMissing
	}

	request := &model.UrgencyRequest{
		HospitalID:   hospital.ID,
		BloodType:    bloodType,
		UrgencyLevel: req.UrgencyLevel,
		Message:      req.Message,
		RadiusMiles:  radius,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create urgency request: %w", err)
	}
	s.metrics.UrgencyRequestsCreated.WithLabelValues(string(bloodType)).Inc()

	result := &model.CreateUrgencyResult{Request: request}
	notified, err := s.broadcast(ctx, hospital, center, request)
	if err != nil {
		s.logger.Warn("Urgency notification failed",
			"urgency_request_id", request.ID.String(),
			"error", err.Error())
		result.Warnings = append(result.Warnings, WarningNotifyFailed)
		return result, nil
	}
	result.NotifiedDonors = notified
	return result, nil
}

func (s *Service) broadcast(ctx context.Context, hospital *model.Hospital, center geo.Point, request *model.UrgencyRequest) (int, error) {
	donors, err := s.nearby(ctx, center, request.BloodType, request.RadiusMiles,
		[]model.EligibilityStatus{model.EligibilityEligible}, nil)
	if err != nil {
		return 0, err
	}

	alert := &model.UrgencyBroadcast{
		UrgencyRequestID: request.ID,
		HospitalName:     hospital.Name,
		HospitalAddress:  hospital.DisplayAddress(),
		BloodType:        request.BloodType,
		UrgencyLevel:     request.UrgencyLevel,
		Message:          request.Message,
		Recipients:       make([]model.DonorContact, 0, len(donors)),
	}
	for _, d := range donors {
		alert.Recipients = append(alert.Recipients, model.DonorContact{
			DonorID:   d.DonorID,
			Email:     d.Email,
			FirstName: d.FirstName,
			Phone:     d.Phone,
		})
	}

	if err := s.notifier.BroadcastUrgency(ctx, alert); err != nil {
		return 0, err
	}
	return len(alert.Recipients), nil
}

// NearbyDonors is the hospital map query. Pending donors never appear.
func (s *Service) NearbyDonors(ctx context.Context, hospitalUserID uuid.UUID, q model.NearbyDonorsQuery) (*model.NearbyDonorsResult, error) {
	bloodType, err := model.ParseBloodType(q.BloodType)
	if err != nil {
		return nil, err
	}
	radius := s.config.DefaultRadiusMiles
	if q.RadiusMiles != nil {
		if *q.RadiusMiles <= 0 {
			return nil, apperrors.NewValidation("radius must be positive", nil)
		}
		radius = *q.RadiusMiles
	}

	hospital, err := s.hospitals.GetByUserID(ctx, hospitalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital: %w", err)
	}
	center, ok := hospital.Location()
	if !ok {
		return nil, apperrors.ErrHospitalLocationMissing
	}

	var requestID *uuid.UUID
	if q.IncludeResponses {
		requestID = q.RequestID
		if requestID == nil {
			latest, err := s.requests.LatestActive(ctx, hospital.ID, bloodType)
			if err != nil {
				return nil, fmt.Errorf("failed to get active request: %w", err)
			}
			if latest != nil {
				requestID = &latest.ID
			}
		}
	}

	donors, err := s.nearby(ctx, center, bloodType, radius,
		[]model.EligibilityStatus{model.EligibilityEligible, model.EligibilityIneligible}, requestID)
	if err != nil {
		return nil, err
	}

	result := &model.NearbyDonorsResult{
		BloodType:        bloodType,
		RadiusMiles:      radius,
		UrgencyRequestID: requestID,
		Eligible:         []model.NearbyDonor{},
		Ineligible:       []model.NearbyDonor{},
	}
	for _, d := range donors {
		if d.EligibilityStatus == model.EligibilityEligible {
			result.Eligible = append(result.Eligible, d)
		} else {
			result.Ineligible = append(result.Ineligible, d)
		}
	}
	return result, nil
}

// RequestDonors runs the nearby query for one of the hospital's own
// requests, with each donor's response to it.
func (s *Service) RequestDonors(ctx context.Context, hospitalUserID, requestID uuid.UUID) (*model.NearbyDonorsResult, error) {
	request, err := s.requests.GetOwned(ctx, requestID, hospitalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get urgency request: %w", err)
	}

	radius := request.RadiusMiles
	return s.NearbyDonors(ctx, hospitalUserID, model.NearbyDonorsQuery{
		BloodType:        string(request.BloodType),
		RadiusMiles:      &radius,
		IncludeResponses: true,
		RequestID:        &request.ID,
	})
}

// nearby fetches candidates inside the bounding box and keeps those within
// the exact radius, closest first.
func (s *Service) nearby(
	ctx context.Context,
	center geo.Point,
	bloodType model.BloodType,
	radius float64,
	statuses []model.EligibilityStatus,
	requestID *uuid.UUID,
) ([]model.NearbyDonor, error) {
	candidates, err := s.donors.FindCandidates(ctx, model.CandidateFilter{
		BloodType:         bloodType,
		Bounds:            geo.BoundsAround(center, radius),
		Statuses:          statuses,
		ResponseRequestID: requestID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find donors: %w", err)
	}

	donors := make([]model.NearbyDonor, 0, len(candidates))
	distances := make(map[uuid.UUID]float64, len(candidates))
	for _, c := range candidates {
		p := geo.Point{Latitude: c.Latitude, Longitude: c.Longitude}
		if p.Validate() != nil {
			continue
		}
		d := geo.DistanceMiles(center, p)
		if d > radius {
			continue
		}
		distances[c.DonorID] = d

		nd := model.NearbyDonor{
			DonorID:           c.DonorID,
			FirstName:         c.FirstName,
			LastName:          c.LastName,
			Email:             c.Email,
			Phone:             c.Phone,
			BloodType:         c.BloodType,
			EligibilityStatus: c.EligibilityStatus,
			Latitude:          c.Latitude,
			Longitude:         c.Longitude,
			DistanceMiles:     geo.Round(d),
		}
		if c.ResponseType != nil {
			nd.Response = &model.DonorResponseView{
				ResponseType:      *c.ResponseType,
				RejectionReason:   c.RejectionReason,
				AppointmentID:     c.AppointmentID,
				AppointmentDate:   c.AppointmentDate,
				AppointmentStatus: c.AppointmentStatus,
			}
		}
		donors = append(donors, nd)
	}

	sort.SliceStable(donors, func(i, j int) bool {
		di, dj := distances[donors[i].DonorID], distances[donors[j].DonorID]
		if di != dj {
			return di < dj
		}
		return donors[i].DonorID.String() < donors[j].DonorID.String()
	})
	return donors, nil
}

// ListForDonor returns active requests from the visibility window that
// match the donor's blood type and reach the donor's location. Requests the
// donor rejected are left out.
func (s *Service) ListForDonor(ctx context.Context, donorUserID uuid.UUID) ([]*model.DonorUrgencyRequest, error) {
	donor, err := s.donors.GetByUserID(ctx, donorUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get donor profile: %w", err)
	}
	home, ok := donor.Location()
	if !ok || donor.BloodType == "" {
		return []*model.DonorUrgencyRequest{}, nil
	}

	rows, err := s.requests.ListVisible(ctx, model.VisibleRequestFilter{
		BloodType: donor.BloodType,
		Since:     s.now().Add(-s.config.VisibilityWindow),
		DonorID:   donor.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list urgency requests: %w", err)
	}

	out := make([]*model.DonorUrgencyRequest, 0, len(rows))
	for _, row := range rows {
		if row.ResponseType != nil && *row.ResponseType == model.ResponseRejected {
			continue
		}
		hospitalAt := geo.Point{Latitude: row.HospitalLatitude, Longitude: row.HospitalLongitude}
		d := geo.DistanceMiles(home, hospitalAt)
		if d > row.RadiusMiles {
			continue
		}

		item := &model.DonorUrgencyRequest{
			UrgencyRequest:    row.UrgencyRequest,
			HospitalName:      row.HospitalName,
			HospitalAddress:   row.HospitalAddress.Display(),
			HospitalPhone:     row.HospitalPhone,
			HospitalLatitude:  row.HospitalLatitude,
			HospitalLongitude: row.HospitalLongitude,
			DistanceMiles:     geo.Round(d),
		}
		if row.ResponseType != nil {
			item.UserResponse = &model.DonorResponseView{
				ResponseType:      *row.ResponseType,
				RejectionReason:   row.RejectionReason,
				AppointmentID:     row.AppointmentID,
				AppointmentDate:   row.AppointmentDate,
				AppointmentStatus: row.AppointmentStatus,
			}
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UrgencyLevel != out[j].UrgencyLevel {
			return out[i].UrgencyLevel > out[j].UrgencyLevel
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountForDonor counts visible requests the donor can still answer.
func (s *Service) CountForDonor(ctx context.Context, donorUserID uuid.UUID) (int, error) {
	requests, err := s.ListForDonor(ctx, donorUserID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range requests {
		if r.UserResponse == nil || r.UserResponse.ResponseType == model.ResponseCancelled {
			n++
		}
	}
	return n, nil
}

func (s *Service) ListForHospital(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalUrgencyRequest, error) {
	requests, err := s.requests.ListByHospital(ctx, hospitalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list urgency requests: %w", err)
	}
	if requests == nil {
		requests = []*model.HospitalUrgencyRequest{}
	}
	return requests, nil
}

func (s *Service) ListResponses(ctx context.Context, hospitalUserID uuid.UUID) ([]*model.HospitalUrgencyResponse, error) {
	responses, err := s.responses.ListForHospital(ctx, hospitalUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list urgency responses: %w", err)
	}
	if responses == nil {
		responses = []*model.HospitalUrgencyResponse{}
	}
	return responses, nil
}

// Deactivate closes the request without touching any appointment.
func (s *Service) Deactivate(ctx context.Context, hospitalUserID, requestID uuid.UUID) (*model.UrgencyRequest, error) {
	return s.close(ctx, hospitalUserID, requestID, false)
}

// Fulfill closes the request and stamps fulfilled_at.
func (s *Service) Fulfill(ctx context.Context, hospitalUserID, requestID uuid.UUID) (*model.UrgencyRequest, error) {
	return s.close(ctx, hospitalUserID, requestID, true)
}

func (s *Service) close(ctx context.Context, hospitalUserID, requestID uuid.UUID, fulfilled bool) (*model.UrgencyRequest, error) {
	request, err := s.requests.Close(ctx, requestID, hospitalUserID, fulfilled)
	if err != nil {
		return nil, fmt.Errorf("failed to close urgency request: %w", err)
	}
	return request, nil
}
