package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lomonchiapp/gallinapp-user-sub001/internal/alerts"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/config"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
	pkgerrors "github.com/lomonchiapp/gallinapp-user-sub001/pkg/errors"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/logger"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/pagination"
	"github.com/rs/zerolog"
)

type fakeRepository struct {
	rows []*models.Notification

	existsErr error
	countErr  error
	outcomes  map[uuid.UUID]PushOutcome
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{outcomes: map[uuid.UUID]PushOutcome{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(_ context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	clone := *notification
	f.rows = append(f.rows, &clone)
	return nil
}

func (f *fakeRepository) ExistsRecent(_ context.Context, userID uuid.UUID, category enums.AlertCategory, title string, since time.Time) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, row := range f.rows {
		if row.UserID == userID && row.Category == category && row.Title == title && !row.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) CountRecent(_ context.Context, userID uuid.UUID, category enums.AlertCategory, since time.Time) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	var count int64
	for _, row := range f.rows {
		if row.UserID == userID && row.Category == category && !row.Consolidated && !row.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) FindRecent(_ context.Context, userID uuid.UUID, category enums.AlertCategory, since time.Time) ([]models.Notification, error) {
	var out []models.Notification
	for _, row := range f.rows {
		if row.UserID == userID && row.Category == category && !row.Consolidated && !row.CreatedAt.Before(since) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeRepository) MarkConsolidated(_ context.Context, ids []uuid.UUID, now time.Time) (int64, error) {
	var updated int64
	for _, id := range ids {
		for _, row := range f.rows {
			if row.ID == id {
				row.Consolidated = true
				row.Status = enums.NotificationStatusRead
				at := now
				row.ReadAt = &at
				updated++
			}
		}
	}
	return updated, nil
}

func (f *fakeRepository) MarkRead(_ context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error) {
	for _, row := range f.rows {
		if row.ID == notificationID && row.UserID == userID {
			if row.ReadAt != nil {
				return markResult{Found: true}, nil
			}
			at := now
			row.ReadAt = &at
			row.Status = enums.NotificationStatusRead
			return markResult{Found: true, Updated: true}, nil
		}
	}
	return markResult{}, nil
}

func (f *fakeRepository) Archive(_ context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error) {
	for _, row := range f.rows {
		if row.ID == notificationID && row.UserID == userID {
			at := now
			row.ArchivedAt = &at
			row.Status = enums.NotificationStatusArchived
			return markResult{Found: true, Updated: true}, nil
		}
	}
	return markResult{}, nil
}

func (f *fakeRepository) Delete(_ context.Context, userID, notificationID uuid.UUID) (bool, error) {
	for i, row := range f.rows {
		if row.ID == notificationID && row.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) List(_ context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	var out []models.Notification
	for _, row := range f.rows {
		if row.UserID == params.UserID {
			out = append(out, *row)
		}
	}
	return out, nil, nil
}

func (f *fakeRepository) Stats(_ context.Context, userID uuid.UUID) (*Stats, error) {
	stats := &Stats{ByCategory: map[string]int64{}, BySeverity: map[string]int64{}, ByStatus: map[string]int64{}}
	for _, row := range f.rows {
		if row.UserID != userID {
			continue
		}
		stats.Total++
		stats.ByCategory[string(row.Category)]++
		stats.BySeverity[string(row.Severity)]++
		stats.ByStatus[string(row.Status)]++
	}
	stats.Unread = stats.ByStatus[string(enums.NotificationStatusUnread)]
	return stats, nil
}

func (f *fakeRepository) RecordPushOutcome(_ context.Context, notificationID uuid.UUID, outcome PushOutcome) error {
	f.outcomes[notificationID] = outcome
	return nil
}

func (f *fakeRepository) DeleteExpired(_ context.Context, now time.Time, _ int) (int64, error) {
	var removed int64
	kept := f.rows[:0]
	for _, row := range f.rows {
		if row.ExpiresAt != nil && !row.ExpiresAt.After(now) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return removed, nil
}

func (f *fakeRepository) DeleteOlderThan(_ context.Context, cutoff time.Time, _ int) (int64, error) {
	var removed int64
	kept := f.rows[:0]
	for _, row := range f.rows {
		if row.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return removed, nil
}

func (f *fakeRepository) persisted() []*models.Notification { return f.rows }

type fakeTokens struct {
	token string
	err   error
}

func (f *fakeTokens) Resolve(context.Context, uuid.UUID) (string, error) { return f.token, f.err }

type fakeSender struct {
	sent []models.Notification
	err  error
}

func (f *fakeSender) Send(_ context.Context, _ string, notification models.Notification) error {
	f.sent = append(f.sent, notification)
	return f.err
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		DedupWindow:            time.Hour,
		ConsolidationWindow:    24 * time.Hour,
		ConsolidationThreshold: 3,
		CriticalWindow:         15 * time.Minute,
		HighWindow:             30 * time.Minute,
		MediumWindow:           60 * time.Minute,
		LowWindow:              120 * time.Minute,
		CriticalQuota:          3,
		HighQuota:              2,
		MediumQuota:            1,
		LowQuota:               1,
		RetentionDays:          30,
		CleanupBatchSize:       500,
	}
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

type pipelineFixture struct {
	repo   *fakeRepository
	tokens *fakeTokens
	sender *fakeSender
	svc    Service
	clock  *time.Time
}

func newPipelineFixture(t *testing.T, cfg config.PipelineConfig) *pipelineFixture {
	t.Helper()

	start := time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)
	clock := &start
	repo := newFakeRepository()
	tokens := &fakeTokens{token: "ExponentPushToken[abc]"}
	sender := &fakeSender{}

	svc, err := NewService(repo, tokens, sender, cfg, nil, quietLogger(), func() time.Time { return *clock })
	require.NoError(t, err)

	return &pipelineFixture{repo: repo, tokens: tokens, sender: sender, svc: svc, clock: clock}
}

func (p *pipelineFixture) advance(d time.Duration) {
	*p.clock = p.clock.Add(d)
}

func candidateFor(userID uuid.UUID, title string, severity enums.AlertSeverity) alerts.Candidate {
	lotID := uuid.New()
	return alerts.Candidate{
		Category: enums.AlertCategoryProduction,
		Severity: severity,
		Title:    title,
		Message:  "details for " + title,
		DedupKey: "production|" + title,
		UserID:   userID,
		LotID:    &lotID,
		SendPush: true,
	}
}

func TestDeliverDeduplicatesWithinWindow(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())
	user := uuid.New()

	first, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Weighing due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first)

	fx.advance(10 * time.Minute)
	second, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Weighing due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, second)
	assert.Len(t, fx.repo.persisted(), 1)
}

func TestDeliverDedupFailureProceeds(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())
	fx.repo.existsErr = errors.New("store down")
	user := uuid.New()

	id, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Weighing due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Len(t, fx.repo.persisted(), 1)
}

func TestDeliverConsolidatesThirdAlert(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())
	user := uuid.New()

	first, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Weighing due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	fx.advance(40 * time.Minute)
	second, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Elevated mortality", enums.AlertSeverityHigh))
	require.NoError(t, err)
	fx.advance(40 * time.Minute)

	summaryID, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Egg collection due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, summaryID)

	require.Len(t, fx.repo.persisted(), 3)
	var summary *models.Notification
	for _, row := range fx.repo.persisted() {
		switch row.ID {
		case first, second:
			assert.True(t, row.Consolidated)
			assert.Equal(t, enums.NotificationStatusRead, row.Status)
			assert.NotNil(t, row.ReadAt)
		case summaryID:
			summary = row
		}
	}
	require.NotNil(t, summary)
	assert.True(t, summary.Consolidated)
	assert.Equal(t, 3, summary.ConsolidatedCount)
	assert.Equal(t, "3 production alerts", summary.Title)
}

func TestDeliverConsolidatedSummaryIsTerminal(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())
	user := uuid.New()

	_, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Weighing due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	fx.advance(40 * time.Minute)
	_, err = fx.svc.Deliver(context.Background(), candidateFor(user, "Elevated mortality", enums.AlertSeverityHigh))
	require.NoError(t, err)
	fx.advance(40 * time.Minute)
	_, err = fx.svc.Deliver(context.Background(), candidateFor(user, "Egg collection due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	fx.advance(40 * time.Minute)

	// The summary row does not count toward the next consolidation.
	next, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Lay rate below target", enums.AlertSeverityHigh))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, next)

	for _, row := range fx.repo.persisted() {
		if row.ID == next {
			assert.False(t, row.Consolidated)
		}
	}
}

func TestDeliverRateLimitsBySeverity(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.ConsolidationThreshold = 100
	fx := newPipelineFixture(t, cfg)
	user := uuid.New()

	titles := []string{"Critical mortality", "Weighing urgently overdue", "Egg collection urgently overdue", "Laying has not started"}
	created := 0
	for _, title := range titles {
		id, err := fx.svc.Deliver(context.Background(), candidateFor(user, title, enums.AlertSeverityCritical))
		require.NoError(t, err)
		if id != uuid.Nil {
			created++
		}
		fx.advance(2 * time.Minute)
	}

	assert.Equal(t, 3, created)
	assert.Len(t, fx.repo.persisted(), 3)
}

func TestDeliverNoTargetUserIsNoOp(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())

	candidate := candidateFor(uuid.Nil, "Weighing due", enums.AlertSeverityHigh)
	id, err := fx.svc.Deliver(context.Background(), candidate)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)
	assert.Empty(t, fx.repo.persisted())
}

func TestDeliverInvalidCandidate(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())

	candidate := candidateFor(uuid.New(), "Weighing due", enums.AlertSeverityHigh)
	candidate.Category = "bogus"
	_, err := fx.svc.Deliver(context.Background(), candidate)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDispatchSkipsWithoutDeviceToken(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())
	fx.tokens.token = ""
	user := uuid.New()

	id, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Weighing due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Empty(t, fx.sender.sent)
	_, recorded := fx.repo.outcomes[id]
	assert.False(t, recorded)
}

func TestDispatchRecordsPushFailure(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())
	fx.sender.err = errors.New("expo unavailable")
	user := uuid.New()

	id, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Weighing due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	outcome, recorded := fx.repo.outcomes[id]
	require.True(t, recorded)
	assert.False(t, outcome.Sent)
	require.NotNil(t, outcome.Error)
	assert.Contains(t, *outcome.Error, "expo unavailable")
}

func TestDispatchRecordsSuccess(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())
	user := uuid.New()

	id, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Weighing due", enums.AlertSeverityHigh))
	require.NoError(t, err)
	require.Len(t, fx.sender.sent, 1)

	outcome, recorded := fx.repo.outcomes[id]
	require.True(t, recorded)
	assert.True(t, outcome.Sent)
	assert.True(t, outcome.Delivered)
	assert.Nil(t, outcome.Error)
}

func TestMarkReadNotFound(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())

	err := fx.svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestStats(t *testing.T) {
	fx := newPipelineFixture(t, testPipelineConfig())
	user := uuid.New()

	_, err := fx.svc.Deliver(context.Background(), candidateFor(user, "Weighing due", enums.AlertSeverityHigh))
	require.NoError(t, err)

	stats, err := fx.svc.Stats(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Unread)
	assert.Equal(t, int64(1), stats.ByCategory[string(enums.AlertCategoryProduction)])
}
