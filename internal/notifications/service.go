package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lomonchiapp/gallinapp-user-sub001/internal/alerts"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/config"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
	pkgerrors "github.com/lomonchiapp/gallinapp-user-sub001/pkg/errors"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/logger"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/metrics"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/pagination"
)

// TokenResolver looks up a user's push token. An empty token means the user
// has no registered device and dispatch is skipped.
type TokenResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (string, error)
}

// PushSender hands a persisted notification to the push transport.
type PushSender interface {
	Send(ctx context.Context, token string, notification models.Notification) error
}

// Service is the notification delivery pipeline plus the user-facing
// read/archive/delete surface.
type Service interface {
	Deliver(ctx context.Context, candidate alerts.Candidate) (uuid.UUID, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	Archive(ctx context.Context, userID, notificationID uuid.UUID) error
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error
	Stats(ctx context.Context, userID uuid.UUID) (*Stats, error)
}

type service struct {
	repo     Repository
	tokens   TokenResolver
	sender   PushSender
	cfg      config.PipelineConfig
	pipeline *metrics.PipelineMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Category   *enums.AlertCategory
	UnreadOnly bool
	Limit      int
	Cursor     string
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires the notification pipeline. Token resolver and sender may
// be nil, which disables push dispatch entirely.
func NewService(repo Repository, tokens TokenResolver, sender PushSender, cfg config.PipelineConfig, pipeline *metrics.PipelineMetrics, logg *logger.Logger, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     repo,
		tokens:   tokens,
		sender:   sender,
		cfg:      cfg,
		pipeline: pipeline,
		logg:     logg,
		now:      now,
	}, nil
}

// Deliver runs a candidate through dedup, consolidation and rate limiting,
// then persists and dispatches it. A dropped candidate returns (uuid.Nil,
// nil): suppression is an outcome, not an error.
func (s *service) Deliver(ctx context.Context, candidate alerts.Candidate) (uuid.UUID, error) {
	// Background sweeps can run with no target user; the pipeline is a no-op.
	if candidate.UserID == uuid.Nil {
		s.logg.Debug(ctx, "candidate has no target user, skipping delivery")
		return uuid.Nil, nil
	}
	if !candidate.Category.IsValid() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid alert category %q", candidate.Category))
	}
	if !candidate.Severity.IsValid() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid alert severity %q", candidate.Severity))
	}
	if candidate.Title == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "candidate title required")
	}

	now := s.now()
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":  candidate.UserID.String(),
		"category": string(candidate.Category),
		"severity": string(candidate.Severity),
		"title":    candidate.Title,
	})

	// Duplicate check. A store failure degrades to "not a duplicate": a
	// near-duplicate beats a silently missed alert.
	duplicate, err := s.repo.ExistsRecent(ctx, candidate.UserID, candidate.Category, candidate.Title, now.Add(-s.cfg.DedupWindow))
	if err != nil {
		s.logg.Error(logCtx, "duplicate check failed, proceeding", err)
	} else if duplicate {
		s.logg.Info(logCtx, "duplicate candidate dropped")
		s.pipeline.IncDropped("duplicate")
		return uuid.Nil, nil
	}

	// Consolidation. A store failure degrades to direct persistence.
	recent, err := s.repo.CountRecent(ctx, candidate.UserID, candidate.Category, now.Add(-s.cfg.ConsolidationWindow))
	if err != nil {
		s.logg.Error(logCtx, "consolidation check failed, proceeding", err)
	} else if s.cfg.ConsolidationThreshold > 0 && recent+1 >= int64(s.cfg.ConsolidationThreshold) {
		return s.consolidate(ctx, logCtx, candidate, now)
	}

	// Severity-scoped rate limit.
	windowed, err := s.repo.CountRecent(ctx, candidate.UserID, candidate.Category, now.Add(-s.cfg.RateWindow(candidate.Severity)))
	if err != nil {
		s.logg.Error(logCtx, "rate limit check failed, proceeding", err)
	} else if windowed >= int64(s.cfg.RateQuota(candidate.Severity)) {
		s.logg.Info(logCtx, "rate limit reached, candidate dropped")
		s.pipeline.IncDropped("rate_limited")
		return uuid.Nil, nil
	}

	notification, err := s.persist(ctx, candidate, now)
	if err != nil {
		return uuid.Nil, err
	}
	s.pipeline.IncDelivered()

	s.dispatch(ctx, logCtx, *notification)
	return notification.ID, nil
}

// consolidate folds the recent notifications of the same (user, category)
// into a single summary row. The summary is terminal: it skips dedup and
// rate limiting and is never consolidated again.
func (s *service) consolidate(ctx context.Context, logCtx context.Context, candidate alerts.Candidate, now time.Time) (uuid.UUID, error) {
	since := now.Add(-s.cfg.ConsolidationWindow)
	originals, err := s.repo.FindRecent(ctx, candidate.UserID, candidate.Category, since)
	if err != nil {
		s.logg.Error(logCtx, "consolidation lookup failed, persisting directly", err)
		notification, perr := s.persist(ctx, candidate, now)
		if perr != nil {
			return uuid.Nil, perr
		}
		s.pipeline.IncDelivered()
		s.dispatch(ctx, logCtx, *notification)
		return notification.ID, nil
	}

	ids := make([]uuid.UUID, 0, len(originals))
	for _, original := range originals {
		ids = append(ids, original.ID)
	}
	if _, err := s.repo.MarkConsolidated(ctx, ids, now); err != nil {
		s.logg.Error(logCtx, "failed to mark originals consolidated", err)
	}

	total := len(originals) + 1
	summary := candidate
	summary.Title = fmt.Sprintf("%d %s alerts", total, candidate.Category)
	summary.Message = fmt.Sprintf("You have %d %s alerts in the last %d hours. Latest: %s", total, candidate.Category, int(s.cfg.ConsolidationWindow.Hours()), candidate.Message)
	summary.DedupKey = fmt.Sprintf("%s|consolidated|%s", candidate.Category, candidate.UserID)

	notification := s.toModel(summary, now)
	notification.Consolidated = true
	notification.ConsolidatedCount = total
	if err := s.repo.Create(ctx, notification); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create consolidated notification")
	}

	s.logg.Info(s.logg.WithField(logCtx, "consolidated_count", total), "consolidated notification created")
	s.pipeline.IncConsolidated()
	s.dispatch(ctx, logCtx, *notification)
	return notification.ID, nil
}

func (s *service) persist(ctx context.Context, candidate alerts.Candidate, now time.Time) (*models.Notification, error) {
	notification := s.toModel(candidate, now)
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return notification, nil
}

func (s *service) toModel(candidate alerts.Candidate, now time.Time) *models.Notification {
	var data []byte
	if len(candidate.Payload) > 0 {
		if encoded, err := json.Marshal(candidate.Payload); err == nil {
			data = encoded
		}
	}
	return &models.Notification{
		ID:        uuid.New(),
		UserID:    candidate.UserID,
		LotID:     candidate.LotID,
		Category:  candidate.Category,
		Severity:  candidate.Severity,
		Title:     candidate.Title,
		Message:   candidate.Message,
		DedupKey:  candidate.DedupKey,
		Status:    enums.NotificationStatusUnread,
		Data:      data,
		SendPush:  candidate.SendPush,
		ExpiresAt: candidate.ExpiresAt,
		CreatedAt: now,
	}
}

// dispatch resolves the user's device token and hands the notification to
// the push sender. Every failure here is recorded or logged, never returned:
// push delivery is best effort and must not fail the pipeline.
func (s *service) dispatch(ctx context.Context, logCtx context.Context, notification models.Notification) {
	if !notification.SendPush || s.sender == nil || s.tokens == nil {
		return
	}

	token, err := s.tokens.Resolve(ctx, notification.UserID)
	if err != nil {
		s.logg.Error(logCtx, "device token lookup failed, skipping push", err)
		return
	}
	if token == "" {
		s.logg.Info(logCtx, "user has no registered device, skipping push")
		return
	}

	outcome := PushOutcome{At: s.now()}
	if err := s.sender.Send(ctx, token, notification); err != nil {
		s.logg.Error(logCtx, "push dispatch failed", err)
		s.pipeline.IncPushFailure()
		message := err.Error()
		outcome.Error = &message
	} else {
		outcome.Sent = true
		outcome.Delivered = true
	}

	if err := s.repo.RecordPushOutcome(ctx, notification.ID, outcome); err != nil {
		s.logg.Error(logCtx, "failed to record push outcome", err)
	}
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Category:   params.Category,
		UnreadOnly: params.UnreadOnly,
		Limit:      params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireIDs(userID, notificationID); err != nil {
		return err
	}
	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) Archive(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireIDs(userID, notificationID); err != nil {
		return err
	}
	result, err := s.repo.Archive(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive notification")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireIDs(userID, notificationID); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, userID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notification")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification stats")
	}
	return stats, nil
}

func requireIDs(userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	return nil
}
