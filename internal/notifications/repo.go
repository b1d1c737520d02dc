package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/pagination"
)

// Repository exposes persistence helpers for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	ExistsRecent(ctx context.Context, userID uuid.UUID, category enums.AlertCategory, title string, since time.Time) (bool, error)
	CountRecent(ctx context.Context, userID uuid.UUID, category enums.AlertCategory, since time.Time) (int64, error)
	FindRecent(ctx context.Context, userID uuid.UUID, category enums.AlertCategory, since time.Time) ([]models.Notification, error)
	MarkConsolidated(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error)
	Archive(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error)
	Delete(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	Stats(ctx context.Context, userID uuid.UUID) (*Stats, error)
	RecordPushOutcome(ctx context.Context, notificationID uuid.UUID, outcome PushOutcome) error
	DeleteExpired(ctx context.Context, now time.Time, batchSize int) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listNotificationsParams struct {
	UserID     uuid.UUID
	Category   *enums.AlertCategory
	UnreadOnly bool
	Limit      int
	Cursor     *pagination.Cursor
}

type markResult struct {
	Found   bool
	Updated bool
}

// PushOutcome records the result of one dispatch attempt.
type PushOutcome struct {
	Sent      bool
	Delivered bool
	Error     *string
	At        time.Time
}

// Stats aggregates a user's notifications by category, severity and status.
type Stats struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	ByCategory map[string]int64 `json:"byCategory"`
	BySeverity map[string]int64 `json:"bySeverity"`
	ByStatus   map[string]int64 `json:"byStatus"`
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repositoryImpl) ExistsRecent(ctx context.Context, userID uuid.UUID, category enums.AlertCategory, title string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND category = ? AND title = ? AND created_at >= ?", userID, category, title, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountRecent counts a user's notifications of one category inside the
// window. Consolidated summaries are terminal and never counted again.
func (r *repositoryImpl) CountRecent(ctx context.Context, userID uuid.UUID, category enums.AlertCategory, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND category = ? AND consolidated = ? AND created_at >= ?", userID, category, false, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repositoryImpl) FindRecent(ctx context.Context, userID uuid.UUID, category enums.AlertCategory, since time.Time) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND category = ? AND consolidated = ? AND created_at >= ?", userID, category, false, since).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) MarkConsolidated(ctx context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"consolidated": true,
			"status":       enums.NotificationStatusRead,
			"read_at":      now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Updates(map[string]any{
			"status":  enums.NotificationStatusRead,
			"read_at": now,
		})
	if result.Error != nil {
		return markResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return markResult{Found: true, Updated: true}, nil
	}
	return r.exists(ctx, userID, notificationID)
}

func (r *repositoryImpl) Archive(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND archived_at IS NULL", notificationID, userID).
		Updates(map[string]any{
			"status":      enums.NotificationStatusArchived,
			"archived_at": now,
		})
	if result.Error != nil {
		return markResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return markResult{Found: true, Updated: true}, nil
	}
	return r.exists(ctx, userID, notificationID)
}

func (r *repositoryImpl) exists(ctx context.Context, userID, notificationID uuid.UUID) (markResult, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Count(&count).Error
	if err != nil {
		return markResult{}, err
	}
	return markResult{Found: count > 0}, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", params.UserID)
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

func (r *repositoryImpl) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	stats := &Stats{
		ByCategory: map[string]int64{},
		BySeverity: map[string]int64{},
		ByStatus:   map[string]int64{},
	}

	type bucket struct {
		Key   string
		Count int64
	}
	group := func(column string, into map[string]int64) error {
		var buckets []bucket
		err := r.db.WithContext(ctx).
			Model(&models.Notification{}).
			Select(column+" AS key, count(*) AS count").
			Where("user_id = ?", userID).
			Group(column).
			Scan(&buckets).Error
		if err != nil {
			return err
		}
		for _, b := range buckets {
			into[b.Key] = b.Count
		}
		return nil
	}

	if err := group("category", stats.ByCategory); err != nil {
		return nil, err
	}
	if err := group("severity", stats.BySeverity); err != nil {
		return nil, err
	}
	if err := group("status", stats.ByStatus); err != nil {
		return nil, err
	}
	for _, count := range stats.ByStatus {
		stats.Total += count
	}
	stats.Unread = stats.ByStatus[string(enums.NotificationStatusUnread)]
	return stats, nil
}

func (r *repositoryImpl) RecordPushOutcome(ctx context.Context, notificationID uuid.UUID, outcome PushOutcome) error {
	updates := map[string]any{
		"sent_to_push":    outcome.Sent,
		"push_delivered":  outcome.Delivered,
		"last_push_error": outcome.Error,
	}
	if !outcome.At.IsZero() {
		updates["push_sent_at"] = outcome.At
	}
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Updates(updates).Error
}

// DeleteExpired removes rows whose expiry has passed, in bounded batches.
func (r *repositoryImpl) DeleteExpired(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	return r.deleteBatched(ctx, batchSize, func(query *gorm.DB) *gorm.DB {
		return query.Where("expires_at IS NOT NULL AND expires_at <= ?", now)
	})
}

// DeleteOlderThan removes rows created before the cutoff, in bounded batches.
func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	return r.deleteBatched(ctx, batchSize, func(query *gorm.DB) *gorm.DB {
		return query.Where("created_at < ?", cutoff)
	})
}

func (r *repositoryImpl) deleteBatched(ctx context.Context, batchSize int, filter func(*gorm.DB) *gorm.DB) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var ids []uuid.UUID
		err := filter(r.db.WithContext(ctx).Model(&models.Notification{})).
			Limit(batchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Notification{})
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
		if len(ids) < batchSize {
			return total, nil
		}
	}
}
