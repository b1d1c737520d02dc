package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/logger"
)

type expiryRepo interface {
	DeleteExpired(ctx context.Context, now time.Time, batchSize int) (int64, error)
}

// NotificationExpiryJobParams configure the expiry sweep.
type NotificationExpiryJobParams struct {
	Logger     *logger.Logger
	Repository expiryRepo
	BatchSize  int
	Now        func() time.Time
}

// NewNotificationExpiryJob builds the job that removes notifications whose
// explicit expiry has passed.
func NewNotificationExpiryJob(params NotificationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &notificationExpiryJob{
		logg:      params.Logger,
		repo:      params.Repository,
		batchSize: params.BatchSize,
		now:       now,
	}, nil
}

type notificationExpiryJob struct {
	logg      *logger.Logger
	repo      expiryRepo
	batchSize int
	now       func() time.Time
}

func (j *notificationExpiryJob) Name() string { return "notification-expiry" }

func (j *notificationExpiryJob) Run(ctx context.Context) error {
	deleted, err := j.repo.DeleteExpired(ctx, j.now(), j.batchSize)
	if err != nil {
		return fmt.Errorf("notification expiry: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", deleted), "notification expiry sweep complete")
	return nil
}
