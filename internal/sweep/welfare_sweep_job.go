package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/lomonchiapp/gallinapp-user-sub001/internal/alerts"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/benchmark"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/welfare"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/logger"
)

const defaultSweepConcurrency = 4

type lotSource interface {
	Active(ctx context.Context) ([]models.Lot, error)
}

type deliverer interface {
	Deliver(ctx context.Context, candidate alerts.Candidate) (uuid.UUID, error)
}

// WelfareSweepJobParams configure the welfare sweep.
type WelfareSweepJobParams struct {
	Logger      *logger.Logger
	Lots        lotSource
	Evaluator   welfare.Evaluator
	Comparator  benchmark.Comparator
	Pipeline    deliverer
	Concurrency int
	Now         func() time.Time
}

// NewWelfareSweepJob builds the job that evaluates every active lot and
// feeds the resulting candidates into the notification pipeline.
func NewWelfareSweepJob(params WelfareSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
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
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &welfareSweepJob{
		logg:        params.Logger,
		lots:        params.Lots,
		evaluator:   params.Evaluator,
		comparator:  params.Comparator,
		pipeline:    params.Pipeline,
		concurrency: concurrency,
		now:         now,
	}, nil
}

type welfareSweepJob struct {
	logg        *logger.Logger
	lots        lotSource
	evaluator   welfare.Evaluator
	comparator  benchmark.Comparator
	pipeline    deliverer
	concurrency int
	now         func() time.Time
}

func (j *welfareSweepJob) Name() string { return "welfare-sweep" }

// Run evaluates lots concurrently. Each lot is the unit of cancellation: the
// sweep stops launching new lots once the context is done, but a lot already
// in flight finishes all three concerns.
func (j *welfareSweepJob) Run(ctx context.Context) error {
	lots, err := j.lots.Active(ctx)
	if err != nil {
		return fmt.Errorf("load active lots: %w", err)
	}

	var (
		mu       sync.Mutex
		combined error
	)
	group := &errgroup.Group{}
	group.SetLimit(j.concurrency)

	for _, lot := range lots {
		if ctx.Err() != nil {
			break
		}
		lot := lot
		group.Go(func() error {
			if err := j.sweepLot(ctx, lot); err != nil {
				mu.Lock()
				combined = multierr.Append(combined, fmt.Errorf("lot %s: %w", lot.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		combined = multierr.Append(combined, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		combined = multierr.Append(combined, ctxErr)
	}
	return combined
}

func (j *welfareSweepJob) sweepLot(ctx context.Context, lot models.Lot) error {
	logCtx := j.logg.WithLotID(ctx, lot.ID.String())
	var errs error

	for _, verdict := range j.evaluator.Evaluate(ctx, lot) {
		candidate := alerts.FromVerdict(lot, lot.OwnerID, verdict)
		if _, err := j.pipeline.Deliver(ctx, candidate); err != nil {
			j.logg.Error(logCtx, "failed to deliver welfare alert", err)
			errs = multierr.Append(errs, err)
		}
	}

	for _, candidate := range j.compareBenchmarks(ctx, logCtx, lot) {
		if _, err := j.pipeline.Deliver(ctx, candidate); err != nil {
			j.logg.Error(logCtx, "failed to deliver benchmark alert", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// compareBenchmarks runs the measurable metrics through the comparator.
// Comparator failures are logged and skipped: a missing benchmark can never
// fail the sweep.
func (j *welfareSweepJob) compareBenchmarks(ctx context.Context, logCtx context.Context, lot models.Lot) []alerts.Candidate {
	ageDays := lot.AgeDays(j.now())
	if ageDays < 0 {
		return nil
	}

	var candidates []alerts.Candidate
	if lot.LastWeightLb != nil {
		result, err := j.comparator.Compare(ctx, lot, enums.MetricKindWeight, *lot.LastWeightLb, ageDays)
		if err != nil {
			j.logg.Error(logCtx, "weight benchmark comparison failed", err)
		} else if result != nil {
			if candidate := alerts.FromComparison(lot, lot.OwnerID, *result); candidate != nil {
				candidates = append(candidates, *candidate)
			}
		}
	}

	if rate := lot.MortalityPct(); rate >= 0 {
		result, err := j.comparator.Compare(ctx, lot, enums.MetricKindMortality, rate, ageDays)
		if err != nil {
			j.logg.Error(logCtx, "mortality benchmark comparison failed", err)
		} else if result != nil {
			if candidate := alerts.FromComparison(lot, lot.OwnerID, *result); candidate != nil {
				candidates = append(candidates, *candidate)
			}
		}
	}
	return candidates
}
