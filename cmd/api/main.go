package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lifeline/donation-api/config"
	"github.com/lifeline/donation-api/internal/email"
	"github.com/lifeline/donation-api/internal/middleware"
	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/internal/repository/memory"
	"github.com/lifeline/donation-api/internal/repository/postgres"
	"github.com/lifeline/donation-api/internal/router"
	"github.com/lifeline/donation-api/internal/worker"
	"github.com/lifeline/donation-api/pkg/auth"
	"github.com/lifeline/donation-api/pkg/geocode"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/messaging"
	"github.com/lifeline/donation-api/pkg/metrics"
	"github.com/lifeline/donation-api/pkg/security"
	pkgworker "github.com/lifeline/donation-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load configuration")
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err, "failed to open store", "driver", cfg.Database.Driver)
	}
	defer closeStore()

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err, "failed to create geocoder logger")
	}
	defer zl.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	geocoder := geocode.NewClient(geocode.Config{
		BaseURL:    cfg.Geocoder.BaseURL,
		APIKey:     cfg.Geocoder.APIKey,
		UserAgent:  cfg.Geocoder.UserAgent,
		Timeout:    cfg.Geocoder.Timeout,
		RetryCount: cfg.Geocoder.RetryCount,
		CacheTTL:   cfg.Geocoder.CacheTTL,
	}, zl)

	r, err := router.New(router.Dependencies{
		Repos:              repos,
		Tokens:             auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.ExpiryHours)*time.Hour),
		Hasher:             security.NewBcryptHasher(0),
		Geocoder:           geocoder,
		Logger:             log,
		Registry:           registry,
		MetricsNamespace:   cfg.Monitoring.MetricsPrefix,
		DefaultRadiusMiles: cfg.Broadcast.DefaultRadiusMiles,
		VisibilityWindow:   cfg.VisibilityWindow(),
	}, router.RouterConfig{
		Mode:             cfg.Server.Mode,
		RequestTimeout:   cfg.Server.RequestTimeout,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		RateClientTTL:    cfg.RateLimit.ClientTTL,
		CORSConfig: middleware.CORSConfig{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     cfg.CORS.AllowedMethods,
			AllowHeaders:     cfg.CORS.AllowedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           int(cfg.CORS.MaxAge.Seconds()),
		},
	})
	if err != nil {
		log.Fatal(err, "failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting server", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Without a shared database the worker binary cannot see this process's
	// outbox, so deliver in process.
	if cfg.Database.Driver == "memory" {
		if err := startInProcessDelivery(gctx, g, cfg, repos, log, registry); err != nil {
			log.Fatal(err, "failed to start in-process delivery")
		}
	}

	if err := g.Wait(); err != nil {
		log.Fatal(err, "server exited with error")
	}
	log.Info("Server exited properly")
}

func openStore(ctx context.Context, cfg *config.Config) (*repository.Store, func(), error) {
	if cfg.Database.Driver == "memory" {
		return memory.New().Repositories(), func() {}, nil
	}
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewStore(db), func() { db.Close() }, nil
}

func startInProcessDelivery(ctx context.Context, g *errgroup.Group, cfg *config.Config, repos *repository.Store, log *logger.Logger, reg prometheus.Registerer) error {
	m := metrics.NewMetrics(cfg.Monitoring.MetricsPrefix+"_worker", reg)
	broker := messaging.NewMemoryBroker()

	processor, err := pkgworker.NewOutboxProcessor(repos.Outbox, broker, pkgworker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxRetries:    cfg.Outbox.MaxRetries,
	}, log.With("component", "outbox"), m)
	if err != nil {
		return err
	}

	if cfg.SMTP.Host != "" {
		relay := worker.NewEmailRelay(broker, email.NewSMTPService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}), log, m)
		msgs, err := broker.Subscribe(ctx, worker.RelayChannels...)
		if err != nil {
			return err
		}
		g.Go(func() error {
			relay.Consume(ctx, msgs)
			return nil
		})
	}

	g.Go(func() error {
		defer broker.Close()
		return processor.Start(ctx)
	})
	return nil
}
