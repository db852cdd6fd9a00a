package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appointmenth "github.com/lifeline/donation-api/internal/handler/appointment"
	authh "github.com/lifeline/donation-api/internal/handler/auth"
	donorh "github.com/lifeline/donation-api/internal/handler/donor"
	healthh "github.com/lifeline/donation-api/internal/handler/health"
	hospitalh "github.com/lifeline/donation-api/internal/handler/hospital"
	patienth "github.com/lifeline/donation-api/internal/handler/patient"
	prometheush "github.com/lifeline/donation-api/internal/handler/prometheus"
	urgencyh "github.com/lifeline/donation-api/internal/handler/urgency"
	"github.com/lifeline/donation-api/internal/middleware"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/service/appointment"
	authService "github.com/lifeline/donation-api/internal/service/auth"
	"github.com/lifeline/donation-api/internal/service/donor"
	"github.com/lifeline/donation-api/internal/service/hospital"
	"github.com/lifeline/donation-api/internal/service/location"
	"github.com/lifeline/donation-api/internal/service/notification"
	"github.com/lifeline/donation-api/internal/service/patient"
	"github.com/lifeline/donation-api/internal/service/response"
	"github.com/lifeline/donation-api/internal/service/urgency"
	"github.com/lifeline/donation-api/pkg/auth"
	"github.com/lifeline/donation-api/pkg/geocode"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/metrics"
	"github.com/lifeline/donation-api/pkg/security"
)

// Dependencies is everything the API needs from the outside world.
type Dependencies struct {
	Repos    *repository.Store
	Tokens   *auth.TokenManager
	Hasher   security.PasswordHasher
	Geocoder geocode.Geocoder
	Logger   *logger.Logger
	Registry *prometheus.Registry

	MetricsNamespace   string
	DefaultRadiusMiles float64
	VisibilityWindow   time.Duration
}

// New builds every service and handler on top of deps.Repos.
func New(deps Dependencies, config RouterConfig) (*Router, error) {
	m := metrics.NewMetrics(deps.MetricsNamespace, deps.Registry)
	repos := deps.Repos

	resolver := location.NewResolver(deps.Geocoder, deps.Logger)
	notifier := notification.NewService(repos.Outbox, repos.Appointments, m)

	authSvc := authService.NewService(repos.Users, deps.Hasher, deps.Tokens)
	donorSvc := donor.NewService(repos.Donors, resolver)
	hospitalSvc := hospital.NewService(repos.Hospitals, repos.Inventory, resolver)
	urgencySvc := urgency.NewService(repos, notifier, urgency.Config{
		DefaultRadiusMiles: deps.DefaultRadiusMiles,
		VisibilityWindow:   deps.VisibilityWindow,
	}, deps.Logger, m)
	responseSvc := response.NewService(repos, notifier, deps.Logger)
	appointmentSvc := appointment.NewService(repos, notifier, deps.Logger)
	patientSvc := patient.NewService(repos.Patients, repos.Hospitals, repos.Inventory)

	handlers := Handlers{
		Auth:        authh.NewHandler(authSvc),
		Donor:       donorh.NewHandler(donorSvc),
		Hospital:    hospitalh.NewHandler(hospitalSvc),
		Urgency:     urgencyh.NewHandler(urgencySvc, responseSvc),
		Appointment: appointmenth.NewHandler(appointmentSvc),
		Patient:     patienth.NewHandler(patientSvc),
		Health:      healthh.NewHandler(map[string]healthh.Pinger{"database": repos.Health}),
		Metrics:     prometheush.New(deps.MetricsNamespace, deps.Registry),
	}

	r, err := NewRouter(middleware.NewAuthMiddleware(deps.Tokens), handlers, deps.Logger, config)
	if err != nil {
		return nil, err
	}
	r.Setup()
	return r, nil
}
