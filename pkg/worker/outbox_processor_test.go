package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lifeline/donation-api/internal/model"
	"github.com/lifeline/donation-api/internal/repository/memory"
	"github.com/lifeline/donation-api/pkg/logger"
	"github.com/lifeline/donation-api/pkg/messaging"
	"github.com/lifeline/donation-api/pkg/metrics"
)

type fakeBroker struct {
	mu        sync.Mutex
	failures  int
	published []messaging.Message
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, messaging.Message{Channel: channel, Payload: payload})
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, patterns ...string) (<-chan messaging.Message, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroker) Close() error { return nil }

func setup(t *testing.T, broker messaging.Broker, cfg OutboxProcessorConfig) (*OutboxProcessor, *memory.Store) {
	t.Helper()
	store := memory.New()
	p, err := NewOutboxProcessor(
		store.Repositories().Outbox,
		broker,
		cfg,
		logger.Nop(),
		metrics.NewMetrics("test", prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	return p, store
}

func enqueue(t *testing.T, store *memory.Store, eventType string) {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"type": eventType})
	require.NoError(t, store.Repositories().Outbox.Create(context.Background(), &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	}))
}

func TestProcessBatchPublishesByEventType(t *testing.T) {
	broker := &fakeBroker{}
	p, store := setup(t, broker, OutboxProcessorConfig{
		BatchSize: 10, PollInterval: time.Second, RetryAttempts: 1, MaxRetries: 3,
	})
	enqueue(t, store, model.EventUrgencyBroadcast)
	enqueue(t, store, model.EventAppointmentCancelled)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	channels := []string{broker.published[0].Channel, broker.published[1].Channel}
	assert.ElementsMatch(t, []string{model.EventUrgencyBroadcast, model.EventAppointmentCancelled}, channels)
	for _, e := range store.Events() {
		assert.Equal(t, model.OutboxStatusProcessed, e.Status)
	}

	n, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessBatchSchedulesRetryThenDeadLetters(t *testing.T) {
	broker := &fakeBroker{failures: 100}
	p, store := setup(t, broker, OutboxProcessorConfig{
		BatchSize: 10, PollInterval: time.Second, RetryAttempts: 2, RetryDelay: time.Millisecond, MaxRetries: 2,
	})
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	p.now = func() time.Time { return now }
	enqueue(t, store, model.EventUrgencyBroadcast)

	_, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	ev := store.Events()[0]
	assert.Equal(t, model.OutboxStatusRetry, ev.Status)
	require.NotNil(t, ev.RetryAt)
	assert.Equal(t, now.Add(time.Second), *ev.RetryAt)

	// Not due yet.
	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, model.OutboxStatusRetry, store.Events()[0].Status)

	now = now.Add(time.Minute)
	_, err = p.ProcessBatch(context.Background())
	require.NoError(t, err)
	ev = store.Events()[0]
	assert.Equal(t, model.OutboxStatusFailed, ev.Status)
	assert.Equal(t, 2, ev.RetryCount)
}

func TestProcessBatchRecoversWithinAttempts(t *testing.T) {
	broker := &fakeBroker{failures: 1}
	p, store := setup(t, broker, OutboxProcessorConfig{
		BatchSize: 10, PollInterval: time.Second, RetryAttempts: 3, RetryDelay: time.Millisecond, MaxRetries: 1,
	})
	enqueue(t, store, model.EventAppointmentScheduled)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.OutboxStatusProcessed, store.Events()[0].Status)
}

func TestStartStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, _ := setup(t, &fakeBroker{}, OutboxProcessorConfig{
		BatchSize: 1, PollInterval: 5 * time.Millisecond, RetryAttempts: 1, MaxRetries: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestNewOutboxProcessorRejectsBadConfig(t *testing.T) {
	_, err := NewOutboxProcessor(nil, nil, OutboxProcessorConfig{}, logger.Nop(), nil)
	assert.Error(t, err)
}
