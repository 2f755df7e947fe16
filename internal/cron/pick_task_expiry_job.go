package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/freshroute/freshroute-backend/pkg/db/models"
	"github.com/freshroute/freshroute-backend/pkg/logger"
)

const (
	defaultPendingTTL    = 48 * time.Hour
	expiryBatchSize      = 200
	expiredPendingReason = "expired: no picker claimed the task"
)

// PickTaskExpiryJobParams configure the stale pick task sweeper.
type PickTaskExpiryJobParams struct {
	Logger     *logger.Logger
	Tasks      stalePendingReader
	Canceler   taskCanceler
	PendingTTL time.Duration
}

type stalePendingReader interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PickTask, error)
}

type taskCanceler interface {
	Cancel(ctx context.Context, taskID uuid.UUID, reason, actor string) (*models.PickTask, error)
}

// NewPickTaskExpiryJob builds the cron job that cancels pending tasks nobody
// claimed within the TTL. Canceling through the service releases the shelf
// reservations taken at planning time.
func NewPickTaskExpiryJob(params PickTaskExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tasks == nil {
		return nil, fmt.Errorf("pick task reader required")
	}
	if params.Canceler == nil {
		return nil, fmt.Errorf("task canceler required")
	}
	ttl := params.PendingTTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &pickTaskExpiryJob{
		logg:     params.Logger,
		tasks:    params.Tasks,
		canceler: params.Canceler,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

type pickTaskExpiryJob struct {
	logg     *logger.Logger
	tasks    stalePendingReader
	canceler taskCanceler
	ttl      time.Duration
	now      func() time.Time
}

func (j *pickTaskExpiryJob) Name() string { return "pick-task-expiry" }

func (j *pickTaskExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.tasks.ListStalePending(ctx, cutoff, expiryBatchSize)
	if err != nil {
		return fmt.Errorf("query stale pending tasks: %w", err)
	}

	var errs []error
	canceled := 0
	for _, task := range stale {
		if _, err := j.canceler.Cancel(ctx, task.ID, expiredPendingReason, "cron"); err != nil {
			errs = append(errs, fmt.Errorf("cancel task %s: %w", task.ID, err))
			continue
		}
		canceled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"found":    len(stale),
		"canceled": canceled,
	})
	j.logg.Info(logCtx, "pick task expiry loop complete")
	return multierr.Combine(errs...)
}
