package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lifeline/donation-api/internal/model"
	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

type outboxRepository struct{ *Store }

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = r.now()
	event.UpdatedAt = event.CreatedAt
	c := *event
	r.outbox[c.ID] = &c
	return nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var due []*model.OutboxEvent
	for _, e := range r.outbox {
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		due = append(due, e)
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*model.OutboxEvent, 0, len(due))
	for _, e := range due {
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = now
		c := *e
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.outbox[id]
	if !ok {
		return apperrors.ErrNotFoundOrDenied
	}
	now := r.now()
	e.Status = model.OutboxStatusProcessed
	e.ErrorMessage = nil
	e.ProcessedAt = &now
	e.UpdatedAt = now
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.outbox[id]
	if !ok {
		return apperrors.ErrNotFoundOrDenied
	}
	e.Status = model.OutboxStatusFailed
	if retryAt != nil {
		e.Status = model.OutboxStatusRetry
	}
	e.ErrorMessage = &errMsg
	e.RetryAt = retryAt
	e.RetryCount++
	e.UpdatedAt = r.now()
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, e := range r.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.outbox, id)
			n++
		}
	}
	return n, nil
}

// Events returns a snapshot of every outbox event, oldest first.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		c := *e
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
