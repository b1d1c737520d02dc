package welfare

import (
	"context"
	"fmt"
	"time"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/config"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/logger"
)

// Concern identifies which welfare rule set produced a verdict.
type Concern string

const (
	ConcernWeighing   Concern = "weighing"
	ConcernCollection Concern = "collection"
	ConcernMortality  Concern = "mortality"
)

// Reason codes carried into the alert correlation key.
const (
	ReasonNeverWeighed         = "never_weighed"
	ReasonWeighingGapEmergency = "weighing_gap_emergency"
	ReasonWeighingGapAdvisory  = "weighing_gap_advisory"
	ReasonOnsetApproaching     = "onset_approaching"
	ReasonOnsetOverdue         = "onset_overdue"
	ReasonCollectionStopped    = "collection_stopped"
	ReasonNeverCollected       = "never_collected"
	ReasonCollectionEmergency  = "collection_gap_emergency"
	ReasonCollectionAdvisory   = "collection_gap_advisory"
	ReasonMortalityEmergency   = "mortality_emergency"
	ReasonMortalityAdvisory    = "mortality_advisory"
)

// Verdict is one welfare finding for a lot. Ephemeral; the assembler turns
// it into a candidate alert.
type Verdict struct {
	Concern  Concern
	Severity enums.AlertSeverity
	Reason   string
	Message  string
}

// Evaluator runs the per-lot welfare rule sets: weighing staleness,
// phase-gated egg collection, and cumulative mortality.
type Evaluator interface {
	Evaluate(ctx context.Context, lot models.Lot) []Verdict
}

type evaluator struct {
	cfg  config.WelfareConfig
	logg *logger.Logger
	now  func() time.Time
}

// NewEvaluator wires the welfare evaluator. The clock is injectable for tests.
func NewEvaluator(cfg config.WelfareConfig, logg *logger.Logger, now func() time.Time) Evaluator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &evaluator{cfg: cfg, logg: logg, now: now}
}

// Evaluate returns every verdict that fires for the lot. Malformed lots are
// skipped with a warning instead of failing the sweep.
func (e *evaluator) Evaluate(ctx context.Context, lot models.Lot) []Verdict {
	now := e.now()
	ageDays := lot.AgeDays(now)
	if ageDays < 0 {
		if e.logg != nil {
			e.logg.Warn(e.logg.WithLotID(ctx, lot.ID.String()), "lot has missing or future birth date, skipping welfare evaluation")
		}
		return nil
	}

	verdicts := make([]Verdict, 0, 3)
	if v := e.evaluateWeighing(lot, ageDays, now); v != nil {
		verdicts = append(verdicts, *v)
	}
	if lot.Kind == enums.BirdKindLayer {
		if v := e.evaluateCollection(lot, ageDays, now); v != nil {
			verdicts = append(verdicts, *v)
		}
	}
	if v := e.evaluateMortality(ctx, lot); v != nil {
		verdicts = append(verdicts, *v)
	}
	return verdicts
}

// evaluateWeighing applies the staleness thresholds for the lot's bird kind.
// First match wins: never-weighed, emergency gap, advisory gap.
func (e *evaluator) evaluateWeighing(lot models.Lot, ageDays int, now time.Time) *Verdict {
	thresholds := e.cfg.WeighingFor(lot.Kind)

	if lot.LastWeighedAt == nil {
		if ageDays >= thresholds.NeverWeighedAge {
			return &Verdict{
				Concern:  ConcernWeighing,
				Severity: enums.AlertSeverityCritical,
				Reason:   ReasonNeverWeighed,
				Message:  fmt.Sprintf("%s has never been weighed and is already %d days old", lot.Name, ageDays),
			}
		}
		return nil
	}

	gap := daysSince(*lot.LastWeighedAt, now)
	switch {
	case gap >= thresholds.EmergencyDays:
		return &Verdict{
			Concern:  ConcernWeighing,
			Severity: enums.AlertSeverityCritical,
			Reason:   ReasonWeighingGapEmergency,
			Message:  fmt.Sprintf("%s has not been weighed for %d days", lot.Name, gap),
		}
	case gap >= thresholds.AdvisoryDays:
		return &Verdict{
			Concern:  ConcernWeighing,
			Severity: enums.AlertSeverityHigh,
			Reason:   ReasonWeighingGapAdvisory,
			Message:  fmt.Sprintf("%s is due for weighing, last weighed %d days ago", lot.Name, gap),
		}
	}
	return nil
}

// evaluateCollection is phase-gated: each growth phase has its own pure
// handler and exactly one phase applies at any age.
func (e *evaluator) evaluateCollection(lot models.Lot, ageDays int, now time.Time) *Verdict {
	switch e.phaseFor(ageDays) {
	case enums.GrowthPhaseDevelopment:
		return nil
	case enums.GrowthPhasePreLay:
		return e.preLayVerdict(lot, ageDays)
	case enums.GrowthPhaseLayOnset:
		return e.layOnsetVerdict(lot, ageDays, now)
	default:
		return e.fullLayVerdict(lot, now)
	}
}

func (e *evaluator) phaseFor(ageDays int) enums.GrowthPhase {
	switch {
	case ageDays < e.cfg.MinAlertAgeDays:
		return enums.GrowthPhaseDevelopment
	case ageDays < e.cfg.LayOnsetAgeDays:
		return enums.GrowthPhasePreLay
	case ageDays < e.cfg.FullLayAgeDays:
		return enums.GrowthPhaseLayOnset
	default:
		return enums.GrowthPhaseFullLay
	}
}

// preLayVerdict emits the one-shot onset notice: purely informational,
// never a failure.
func (e *evaluator) preLayVerdict(lot models.Lot, ageDays int) *Verdict {
	if lot.LastCollectionAt != nil {
		return nil
	}
	daysToOnset := e.cfg.LayOnsetAgeDays - ageDays
	if daysToOnset > e.cfg.OnsetNoticeDays {
		return nil
	}
	return &Verdict{
		Concern:  ConcernCollection,
		Severity: enums.AlertSeverityMedium,
		Reason:   ReasonOnsetApproaching,
		Message:  fmt.Sprintf("%s should start laying within %d days, prepare nests and collection routine", lot.Name, daysToOnset),
	}
}

func (e *evaluator) layOnsetVerdict(lot models.Lot, ageDays int, now time.Time) *Verdict {
	if lot.LastCollectionAt == nil {
		daysSinceOnset := ageDays - e.cfg.LayOnsetAgeDays
		if daysSinceOnset >= e.cfg.OnsetGraceDays {
			return &Verdict{
				Concern:  ConcernCollection,
				Severity: enums.AlertSeverityCritical,
				Reason:   ReasonOnsetOverdue,
				Message:  fmt.Sprintf("%s should have started laying %d days ago and no collection has been recorded", lot.Name, daysSinceOnset),
			}
		}
		return nil
	}

	gap := daysSince(*lot.LastCollectionAt, now)
	if gap >= e.cfg.CollectionEmergencyDays {
		return &Verdict{
			Concern:  ConcernCollection,
			Severity: enums.AlertSeverityCritical,
			Reason:   ReasonCollectionStopped,
			Message:  fmt.Sprintf("%s started laying but collection stopped %d days ago", lot.Name, gap),
		}
	}
	return nil
}

func (e *evaluator) fullLayVerdict(lot models.Lot, now time.Time) *Verdict {
	if lot.LastCollectionAt == nil {
		return &Verdict{
			Concern:  ConcernCollection,
			Severity: enums.AlertSeverityCritical,
			Reason:   ReasonNeverCollected,
			Message:  fmt.Sprintf("%s is past full-lay age and has never produced a recorded collection", lot.Name),
		}
	}

	gap := daysSince(*lot.LastCollectionAt, now)
	switch {
	case gap >= e.cfg.CollectionEmergencyDays:
		return &Verdict{
			Concern:  ConcernCollection,
			Severity: enums.AlertSeverityCritical,
			Reason:   ReasonCollectionEmergency,
			Message:  fmt.Sprintf("%s has had no egg collection for %d days", lot.Name, gap),
		}
	case gap >= e.cfg.CollectionAdvisoryDays:
		return &Verdict{
			Concern:  ConcernCollection,
			Severity: enums.AlertSeverityHigh,
			Reason:   ReasonCollectionAdvisory,
			Message:  fmt.Sprintf("%s egg collection is overdue, last collected %d days ago", lot.Name, gap),
		}
	}
	return nil
}

func (e *evaluator) evaluateMortality(ctx context.Context, lot models.Lot) *Verdict {
	rate := lot.MortalityPct()
	if rate < 0 {
		if e.logg != nil {
			e.logg.Warn(e.logg.WithLotID(ctx, lot.ID.String()), "lot has unusable initial count, skipping mortality evaluation")
		}
		return nil
	}

	switch {
	case rate >= e.cfg.MortalityEmergencyPct:
		return &Verdict{
			Concern:  ConcernMortality,
			Severity: enums.AlertSeverityCritical,
			Reason:   ReasonMortalityEmergency,
			Message:  fmt.Sprintf("%s mortality reached %.1f%% (%d of %d birds)", lot.Name, rate, lot.Deaths(), lot.InitialCount),
		}
	case rate >= e.cfg.MortalityAdvisoryPct:
		return &Verdict{
			Concern:  ConcernMortality,
			Severity: enums.AlertSeverityHigh,
			Reason:   ReasonMortalityAdvisory,
			Message:  fmt.Sprintf("%s mortality is elevated at %.1f%% (%d of %d birds)", lot.Name, rate, lot.Deaths(), lot.InitialCount),
		}
	}
	return nil
}

func daysSince(moment, now time.Time) int {
	if moment.After(now) {
		return 0
	}
	return int(now.Sub(moment).Hours() / 24)
}
