package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/lifeline/donation-api/internal/repository"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/metrics"
)

// OutboxCleanup removes processed outbox events older than the retention.
type OutboxCleanup struct {
	repo      repository.OutboxRepository
	retention time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxCleanup(repo repository.OutboxRepository, retention time.Duration, log *logger.Logger, m *metrics.Metrics) *OutboxCleanup {
	return &OutboxCleanup{
		repo:      repo,
		retention: retention,
		logger:    log.With("component", "outbox_cleanup"),
		metrics:   m,
		now:       time.Now,
	}
}

func (w *OutboxCleanup) Run(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	w.metrics.OutboxEventsPurged.Add(float64(rows))
	w.logger.Info("Cleaned up outbox events", "rows", rows, "cutoff", cutoff)
	return rows, nil
}
