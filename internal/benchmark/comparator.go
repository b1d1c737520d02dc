package benchmark

import (
	"context"
	"fmt"
	"sort"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/config"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
	pkgerrors "github.com/lomonchiapp/gallinapp-user-sub001/pkg/errors"
)

// gramsPerPound converts curve weights (grams) to lot weights (pounds).
const gramsPerPound = 453.592

// Result is the outcome of comparing a lot measurement against its breed
// curve. It is never persisted; the assembler consumes it immediately.
type Result struct {
	Metric            enums.MetricKind
	Actual            float64
	Expected          float64
	PercentOfExpected float64
	Tier              enums.PerformanceTier
	Message           string
	NeedsAttention    bool
}

// Comparator resolves the breed curve for a lot and classifies measured
// values into performance tiers.
type Comparator interface {
	Compare(ctx context.Context, lot models.Lot, metric enums.MetricKind, actual float64, ageDays int) (*Result, error)
}

type comparator struct {
	repo  Repository
	tiers config.TierConfig
}

// NewComparator wires the benchmark comparator.
func NewComparator(repo Repository, tiers config.TierConfig) (Comparator, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "benchmark repository required")
	}
	return &comparator{repo: repo, tiers: tiers}, nil
}

// Compare returns (nil, nil) when no verdict can be produced: the breed has
// no curve, or the curve has no usable point for the lot's age. Callers must
// treat absence as "no data", never as a critical finding.
func (c *comparator) Compare(ctx context.Context, lot models.Lot, metric enums.MetricKind, actual float64, ageDays int) (*Result, error) {
	curve, err := c.repo.FindCurve(ctx, lot.Kind, lot.Breed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup reference curve")
	}

	switch metric {
	case enums.MetricKindWeight:
		return c.compareWeight(curve, actual, ageDays), nil
	case enums.MetricKindProduction:
		return c.compareProduction(curve, actual, ageDays), nil
	case enums.MetricKindMortality:
		return c.compareMortality(curve, actual), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported metric %q", metric))
	}
}

func (c *comparator) compareWeight(curve *models.ReferenceCurve, actualLb float64, ageDays int) *Result {
	if curve == nil || ageDays < 0 {
		return nil
	}
	expectedGrams, ok := expectedWeightAt(curve.WeightPoints(), ageDays)
	if !ok {
		return nil
	}

	expectedLb := expectedGrams / gramsPerPound
	pct := percentOf(actualLb, expectedLb)
	tier := c.tierFor(pct)
	return &Result{
		Metric:            enums.MetricKindWeight,
		Actual:            actualLb,
		Expected:          expectedLb,
		PercentOfExpected: pct,
		Tier:              tier,
		Message:           fmt.Sprintf("Weight %.2f lb vs expected %.2f lb (%.0f%% of target)", actualLb, expectedLb, pct),
		NeedsAttention:    tier.NeedsAttention(),
	}
}

func (c *comparator) compareProduction(curve *models.ReferenceCurve, actualPct float64, ageDays int) *Result {
	if curve == nil || ageDays < 0 {
		return nil
	}

	// Lay-rate curves are sparse and non-linear near onset, so lookup is by
	// whole-week bucket with no interpolation across weeks.
	week := ageDays / 7
	var expected float64
	found := false
	for _, point := range curve.ProductionPoints() {
		if point.AgeWeeks == week {
			expected = point.ExpectedValue
			found = true
			break
		}
	}
	if !found || expected <= 0 {
		return nil
	}

	pct := percentOf(actualPct, expected)
	tier := c.tierFor(pct)
	return &Result{
		Metric:            enums.MetricKindProduction,
		Actual:            actualPct,
		Expected:          expected,
		PercentOfExpected: pct,
		Tier:              tier,
		Message:           fmt.Sprintf("Lay rate %.1f%% vs expected %.1f%% for week %d (%.0f%% of target)", actualPct, expected, week, pct),
		NeedsAttention:    tier.NeedsAttention(),
	}
}

func (c *comparator) compareMortality(curve *models.ReferenceCurve, actualPct float64) *Result {
	expected := c.tiers.DefaultMortalityPct
	if curve != nil && curve.ExpectedMortalityPct > 0 {
		expected = curve.ExpectedMortalityPct
	}
	if expected <= 0 {
		return nil
	}

	// Inverted ratio: lower mortality is better, so 10% actual against a 5%
	// expectation scores 50% of target, not 200%.
	pct := 100.0
	if actualPct > 0 {
		pct = expected / actualPct * 100
	}
	tier := c.tierFor(pct)
	return &Result{
		Metric:            enums.MetricKindMortality,
		Actual:            actualPct,
		Expected:          expected,
		PercentOfExpected: pct,
		Tier:              tier,
		Message:           fmt.Sprintf("Mortality %.1f%% vs expected %.1f%% (%.0f%% of target)", actualPct, expected, pct),
		NeedsAttention:    tier.NeedsAttention(),
	}
}

func (c *comparator) tierFor(pct float64) enums.PerformanceTier {
	switch {
	case pct >= c.tiers.ExcellentPct:
		return enums.PerformanceTierExcellent
	case pct >= c.tiers.GoodPct:
		return enums.PerformanceTierGood
	case pct >= c.tiers.AcceptablePct:
		return enums.PerformanceTierAcceptable
	case pct >= c.tiers.BelowPct:
		return enums.PerformanceTierBelow
	default:
		return enums.PerformanceTierCritical
	}
}

func percentOf(actual, expected float64) float64 {
	if expected == 0 {
		return 0
	}
	return actual / expected * 100
}

// expectedWeightAt resolves the expected grams at the given age: exact point
// if present, linear interpolation between the bracketing points otherwise,
// clamped to the nearest boundary outside the curve's domain.
func expectedWeightAt(points []models.CurvePoint, ageDays int) (float64, bool) {
	if len(points) == 0 {
		return 0, false
	}
	sort.Slice(points, func(i, j int) bool { return points[i].AgeDays < points[j].AgeDays })

	if ageDays <= points[0].AgeDays {
		return points[0].ExpectedValue, true
	}
	last := points[len(points)-1]
	if ageDays >= last.AgeDays {
		return last.ExpectedValue, true
	}

	for i := 1; i < len(points); i++ {
		upper := points[i]
		if ageDays == upper.AgeDays {
			return upper.ExpectedValue, true
		}
		if ageDays < upper.AgeDays {
			lower := points[i-1]
			span := float64(upper.AgeDays - lower.AgeDays)
			fraction := float64(ageDays-lower.AgeDays) / span
			return lower.ExpectedValue + fraction*(upper.ExpectedValue-lower.ExpectedValue), true
		}
	}
	return last.ExpectedValue, true
}
