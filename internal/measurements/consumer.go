package measurements

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/lomonchiapp/gallinapp-user-sub001/internal/alerts"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/benchmark"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/welfare"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/idempotency"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/logger"
)

const measurementConsumer = "measurement-alerts"

// Event types emitted by the measurement recording service.
const (
	EventWeightRecorded    = "measurement.weight_recorded"
	EventEggsCollected     = "measurement.eggs_collected"
	EventMortalityRecorded = "measurement.mortality_recorded"
)

type lotSource interface {
	ByID(ctx context.Context, id uuid.UUID) (*models.Lot, error)
}

type deliverer interface {
	Deliver(ctx context.Context, candidate alerts.Candidate) (uuid.UUID, error)
}

// Consumer reacts to freshly recorded measurements by re-evaluating the
// affected lot, so users get alerts right after data entry instead of
// waiting for the next sweep.
type Consumer struct {
	lots         lotSource
	evaluator    welfare.Evaluator
	comparator   benchmark.Comparator
	pipeline     deliverer
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
	now          func() time.Time
}

// ConsumerParams configure the measurement consumer.
type ConsumerParams struct {
	Lots         lotSource
	Evaluator    welfare.Evaluator
	Comparator   benchmark.Comparator
	Pipeline     deliverer
	Subscription *pubsub.Subscriber
	Idempotency  *idempotency.Manager
	Logger       *logger.Logger
	Now          func() time.Time
}

// NewConsumer builds a measurement event consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Lots == nil {
		return nil, fmt.Errorf("lot source required")
	}
	if params.Evaluator == nil {
		return nil, fmt.Errorf("welfare evaluator required")
	}
	if params.Comparator == nil {
		return nil, fmt.Errorf("benchmark comparator required")
	}
	if params.Pipeline == nil {
		return nil, fmt.Errorf("notification pipeline required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("measurement subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Consumer{
		lots:         params.Lots,
		evaluator:    params.Evaluator,
		comparator:   params.Comparator,
		pipeline:     params.Pipeline,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		logg:         params.Logger,
		now:          now,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

type payloadEnvelope struct {
	EventID string          `json:"eventId"`
	Data    json.RawMessage `json:"data"`
}

type measurementPayload struct {
	LotID      uuid.UUID `json:"lotId"`
	WeightLb   *float64  `json:"weightLb,omitempty"`
	LayRatePct *float64  `json:"layRatePct,omitempty"`
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !strings.HasPrefix(eventType, "measurement.") {
		c.logg.Info(logCtx, "skipping non-measurement event")
		return processResult{ack: true}
	}

	var envelope payloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, measurementConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload measurementPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, measurementConsumer, eventID)
		return processResult{nack: true}
	}
	if payload.LotID == uuid.Nil {
		c.logg.Warn(logCtx, "payload has no lot id, skipping")
		return processResult{ack: true}
	}
	logCtx = c.logg.WithLotID(logCtx, payload.LotID.String())

	if err := c.evaluateLot(ctx, logCtx, eventType, payload); err != nil {
		c.logg.Error(logCtx, "measurement evaluation failed", err)
		_ = c.idempotency.Delete(ctx, measurementConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) evaluateLot(ctx context.Context, logCtx context.Context, eventType string, payload measurementPayload) error {
	lot, err := c.lots.ByID(ctx, payload.LotID)
	if err != nil {
		return fmt.Errorf("load lot: %w", err)
	}
	if lot == nil {
		c.logg.Warn(logCtx, "lot not found, skipping evaluation")
		return nil
	}

	for _, verdict := range c.evaluator.Evaluate(ctx, *lot) {
		candidate := alerts.FromVerdict(*lot, lot.OwnerID, verdict)
		if _, err := c.pipeline.Deliver(ctx, candidate); err != nil {
			return fmt.Errorf("deliver welfare alert: %w", err)
		}
	}

	if candidate := c.compareMeasurement(ctx, logCtx, eventType, *lot, payload); candidate != nil {
		if _, err := c.pipeline.Deliver(ctx, *candidate); err != nil {
			return fmt.Errorf("deliver benchmark alert: %w", err)
		}
	}
	return nil
}

// compareMeasurement benchmarks the value the event carries. Comparator
// absence or failure never fails the event; the welfare verdicts above have
// already been delivered.
func (c *Consumer) compareMeasurement(ctx context.Context, logCtx context.Context, eventType string, lot models.Lot, payload measurementPayload) *alerts.Candidate {
	ageDays := lot.AgeDays(c.now())
	if ageDays < 0 {
		return nil
	}

	var (
		metric enums.MetricKind
		actual float64
	)
	switch eventType {
	case EventWeightRecorded:
		if payload.WeightLb == nil {
			return nil
		}
		metric, actual = enums.MetricKindWeight, *payload.WeightLb
	case EventEggsCollected:
		if payload.LayRatePct == nil {
			return nil
		}
		metric, actual = enums.MetricKindProduction, *payload.LayRatePct
	case EventMortalityRecorded:
		rate := lot.MortalityPct()
		if rate < 0 {
			return nil
		}
		metric, actual = enums.MetricKindMortality, rate
	default:
		return nil
	}

	result, err := c.comparator.Compare(ctx, lot, metric, actual, ageDays)
	if err != nil {
		c.logg.Error(logCtx, "benchmark comparison failed", err)
		return nil
	}
	if result == nil {
		return nil
	}
	return alerts.FromComparison(lot, lot.OwnerID, *result)
}
