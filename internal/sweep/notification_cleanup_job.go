package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/logger"
)

const defaultRetentionDays = 30

type retentionRepo interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// NotificationCleanupJobParams configure the retention job.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository retentionRepo
	Retention  int
	BatchSize  int
	Now        func() time.Time
}

// NewNotificationCleanupJob builds the job that prunes notifications older
// than the retention window.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		batchSize: params.BatchSize,
		now:       now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	repo      retentionRepo
	retention int
	batchSize int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
