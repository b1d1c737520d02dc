package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	notifications := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  lot_id TEXT,
  category TEXT NOT NULL,
  severity TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  dedup_key TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'unread',
  consolidated INTEGER NOT NULL DEFAULT 0,
  consolidated_count INTEGER NOT NULL DEFAULT 0,
  data TEXT,
  send_push INTEGER NOT NULL DEFAULT 0,
  sent_to_push INTEGER NOT NULL DEFAULT 0,
  push_delivered INTEGER NOT NULL DEFAULT 0,
  last_push_error TEXT,
  push_sent_at DATETIME,
  expires_at DATETIME,
  read_at DATETIME,
  archived_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(notifications).Error)
	return db
}

func createNotification(t *testing.T, repo Repository, userID uuid.UUID, title string, createdAt time.Time) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Category:  enums.AlertCategoryProduction,
		Severity:  enums.AlertSeverityHigh,
		Title:     title,
		Message:   "details",
		DedupKey:  "production|" + title,
		Status:    enums.NotificationStatusUnread,
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.Create(context.Background(), notification))
	return notification
}

func TestExistsRecentWindow(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	user := uuid.New()
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	createNotification(t, repo, user, "Weighing due", now.Add(-30*time.Minute))

	inside, err := repo.ExistsRecent(context.Background(), user, enums.AlertCategoryProduction, "Weighing due", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, inside)

	outside, err := repo.ExistsRecent(context.Background(), user, enums.AlertCategoryProduction, "Weighing due", now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.False(t, outside)

	otherTitle, err := repo.ExistsRecent(context.Background(), user, enums.AlertCategoryProduction, "Critical mortality", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, otherTitle)
}

func TestCountRecentExcludesConsolidated(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	user := uuid.New()
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	first := createNotification(t, repo, user, "Weighing due", now.Add(-2*time.Hour))
	createNotification(t, repo, user, "Critical mortality", now.Add(-time.Hour))

	count, err := repo.CountRecent(context.Background(), user, enums.AlertCategoryProduction, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	updated, err := repo.MarkConsolidated(context.Background(), []uuid.UUID{first.ID}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	count, err = repo.CountRecent(context.Background(), user, enums.AlertCategoryProduction, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkReadAndArchive(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	user := uuid.New()
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	row := createNotification(t, repo, user, "Weighing due", now)

	result, err := repo.MarkRead(context.Background(), user, row.ID, now)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.True(t, result.Updated)

	// Second read is found but not updated.
	result, err = repo.MarkRead(context.Background(), user, row.ID, now)
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.False(t, result.Updated)

	result, err = repo.Archive(context.Background(), user, row.ID, now)
	require.NoError(t, err)
	assert.True(t, result.Updated)

	missing, err := repo.MarkRead(context.Background(), user, uuid.New(), now)
	require.NoError(t, err)
	assert.False(t, missing.Found)
}

func TestRecordPushOutcome(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	user := uuid.New()
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	row := createNotification(t, repo, user, "Weighing due", now)

	message := "expo unavailable"
	err := repo.RecordPushOutcome(context.Background(), row.ID, PushOutcome{
		Sent:  false,
		Error: &message,
		At:    now,
	})
	require.NoError(t, err)

	list, _, err := repo.List(context.Background(), listNotificationsParams{UserID: user, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].SentToPush)
	require.NotNil(t, list[0].LastPushError)
	assert.Equal(t, message, *list[0].LastPushError)
}

func TestRetentionAndExpiryDeletes(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	user := uuid.New()
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	createNotification(t, repo, user, "old", now.AddDate(0, 0, -31))
	fresh := createNotification(t, repo, user, "fresh", now.AddDate(0, 0, -29))

	removed, err := repo.DeleteOlderThan(context.Background(), now.AddDate(0, 0, -30), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	expiry := now.Add(-time.Minute)
	expired := &models.Notification{
		ID:        uuid.New(),
		UserID:    user,
		Category:  enums.AlertCategoryProduction,
		Severity:  enums.AlertSeverityHigh,
		Title:     "expired",
		Message:   "details",
		DedupKey:  "production|expired",
		Status:    enums.NotificationStatusUnread,
		ExpiresAt: &expiry,
		CreatedAt: now.Add(-time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), expired))

	removed, err = repo.DeleteExpired(context.Background(), now, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	list, _, err := repo.List(context.Background(), listNotificationsParams{UserID: user, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, fresh.ID, list[0].ID)
}

func TestDeleteBatchedRespectsBatchSize(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	user := uuid.New()
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		createNotification(t, repo, user, "old", now.AddDate(0, 0, -40-i))
	}

	removed, err := repo.DeleteOlderThan(context.Background(), now.AddDate(0, 0, -30), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
}

func TestListPaginates(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	user := uuid.New()
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		createNotification(t, repo, user, "Weighing due", now.Add(time.Duration(i)*time.Minute))
	}

	page, cursor, err := repo.List(context.Background(), listNotificationsParams{UserID: user, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, cursor)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, _, err := repo.List(context.Background(), listNotificationsParams{UserID: user, Limit: 10, Cursor: cursor})
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestStatsGroups(t *testing.T) {
	repo := NewRepository(setupNotificationsTestDB(t))
	user := uuid.New()
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	createNotification(t, repo, user, "a", now)
	read := createNotification(t, repo, user, "b", now)
	_, err := repo.MarkRead(context.Background(), user, read.ID, now)
	require.NoError(t, err)

	stats, err := repo.Stats(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Unread)
	assert.Equal(t, int64(2), stats.ByCategory[string(enums.AlertCategoryProduction)])
	assert.Equal(t, int64(1), stats.ByStatus[string(enums.NotificationStatusRead)])
}
