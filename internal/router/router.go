package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/lifeline/donation-api/internal/handler"
	"github.com/lifeline/donation-api/internal/handler/appointment"
	"github.com/lifeline/donation-api/internal/handler/auth"
	"github.com/lifeline/donation-api/internal/handler/donor"
	"github.com/lifeline/donation-api/internal/handler/health"
	"github.com/lifeline/donation-api/internal/handler/hospital"
	"github.com/lifeline/donation-api/internal/handler/patient"
	"github.com/lifeline/donation-api/internal/handler/prometheus"
	"github.com/lifeline/donation-api/internal/handler/urgency"
	"github.com/lifeline/donation-api/internal/middleware"
	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/validator"
)

type Handlers struct {
	Auth        *auth.Handler
	Donor       *donor.Handler
	Hospital    *hospital.Handler
	Urgency     *urgency.Handler
	Appointment *appointment.Handler
	Patient     *patient.Handler
	Health      *health.Handler
	Metrics     *prometheus.Handler
}

type RouterConfig struct {
	Mode             string
	RequestTimeout   time.Duration
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	RateClientTTL    time.Duration
	CORSConfig       middleware.CORSConfig
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, log *logger.Logger, config RouterConfig) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if err := validator.Register(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
		handlers.Metrics.Middleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:      config.RateLimit,
			Burst:     config.RateBurst,
			ClientTTL: config.RateClientTTL,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, handler.NewErrorResponse("route not found"))
	})

	return r, nil
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.handlers.Metrics.Handler())

	api := r.engine.Group("/api/v1")
	r.handlers.Health.RegisterRoutes(api)
	r.handlers.Auth.RegisterRoutes(api)

	authed := api.Group("", r.auth.Authenticate())
	r.handlers.Auth.RegisterMeRoutes(authed)
	r.handlers.Hospital.RegisterMapRoutes(authed)

	donors := api.Group("/donor", r.auth.Authenticate(), r.auth.RequireRole(model.RoleDonor))
	r.handlers.Donor.RegisterRoutes(donors)
	r.handlers.Urgency.RegisterDonorRoutes(donors)
	r.handlers.Appointment.RegisterDonorRoutes(donors)

	hospitals := api.Group("/hospital", r.auth.Authenticate(), r.auth.RequireRole(model.RoleHospital))
	r.handlers.Hospital.RegisterRoutes(hospitals)
	r.handlers.Urgency.RegisterHospitalRoutes(hospitals)
	r.handlers.Appointment.RegisterHospitalRoutes(hospitals)
	r.handlers.Patient.RegisterRoutes(hospitals)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
