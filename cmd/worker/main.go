package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lifeline/donation-api/config"
	"github.com/lifeline/donation-api/internal/email"
	"github.com/lifeline/donation-api/internal/handler/health"
	"github.com/lifeline/donation-api/internal/repository/postgres"
	"github.com/lifeline/donation-api/internal/worker"
	"github.com/lifeline/donation-api/pkg/geocode"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/messaging/redis"
	"github.com/lifeline/donation-api/pkg/metrics"
	pkgworker "github.com/lifeline/donation-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "Failed to load config")
	}
	if cfg.Database.Driver != "postgres" {
		logger.NewLogger(nil).Fatal(fmt.Errorf("driver %q", cfg.Database.Driver), "Worker requires the postgres driver")
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
	}).With("service", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	repos := postgres.NewStore(db)

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log.Zerolog())
	if err != nil {
		log.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Monitoring.MetricsPrefix+"_worker", registry)

	processor, err := pkgworker.NewOutboxProcessor(repos.Outbox, broker, pkgworker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxRetries:    cfg.Outbox.MaxRetries,
	}, log.With("component", "outbox"), m)
	if err != nil {
		log.Fatal(err, "Failed to create outbox processor")
	}

	relay := worker.NewEmailRelay(broker, email.NewSMTPService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}), log, m)

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err, "Failed to create geocoder logger")
	}
	defer zl.Sync()
	geocoder := geocode.NewClient(geocode.Config{
		BaseURL:    cfg.Geocoder.BaseURL,
		APIKey:     cfg.Geocoder.APIKey,
		UserAgent:  cfg.Geocoder.UserAgent,
		Timeout:    cfg.Geocoder.Timeout,
		RetryCount: cfg.Geocoder.RetryCount,
		CacheTTL:   cfg.Geocoder.CacheTTL,
	}, zl).WithObserver(func(status string, elapsed time.Duration) {
		m.GeocodeRequests.WithLabelValues(status).Inc()
		m.GeocodeLatency.Observe(elapsed.Seconds())
	})

	backfill := worker.NewGeocodeBackfill(repos, geocoder, cfg.Jobs.GeocodeBatch, log)
	cleanup := worker.NewOutboxCleanup(repos.Outbox, cfg.Outbox.Retention, log, m)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Jobs.GeocodeBackfill, func() {
		if _, err := backfill.Run(ctx); err != nil {
			log.Error(err, "Geocode backfill failed")
		}
	}); err != nil {
		log.Fatal(err, "Invalid geocode backfill schedule", "schedule", cfg.Jobs.GeocodeBackfill)
	}
	if _, err := scheduler.AddFunc(cfg.Jobs.OutboxCleanup, func() {
		if _, err := cleanup.Run(ctx); err != nil {
			log.Error(err, "Outbox cleanup failed")
		}
	}); err != nil {
		log.Fatal(err, "Invalid outbox cleanup schedule", "schedule", cfg.Jobs.OutboxCleanup)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	health.NewHandler(map[string]health.Pinger{
		"database": repos.Health,
		"redis":    broker,
	}).RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	healthSrv := &http.Server{Addr: cfg.Jobs.HealthAddr, Handler: engine}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return processor.Start(gctx) })
	g.Go(func() error { return relay.Start(gctx) })
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	g.Go(func() error {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health check server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return healthSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err, "Worker exited with error")
	}
	log.Info("Worker stopped")
}
