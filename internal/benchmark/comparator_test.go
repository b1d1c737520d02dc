package benchmark

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/config"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
)

type fakeCurveRepo struct {
	curve *models.ReferenceCurve
	err   error
}

func (f *fakeCurveRepo) FindCurve(_ context.Context, _ enums.BirdKind, _ string) (*models.ReferenceCurve, error) {
	return f.curve, f.err
}

func defaultTiers() config.TierConfig {
	return config.TierConfig{
		ExcellentPct:        110,
		GoodPct:             100,
		AcceptablePct:       85,
		BelowPct:            70,
		DefaultMortalityPct: 5,
	}
}

func weightCurve(points ...models.CurvePoint) *models.ReferenceCurve {
	return &models.ReferenceCurve{
		Kind:   enums.BirdKindBroiler,
		Breed:  "COBB 500",
		Points: points,
	}
}

func weightPoint(ageDays int, grams float64) models.CurvePoint {
	return models.CurvePoint{Metric: enums.MetricKindWeight, AgeDays: ageDays, ExpectedValue: grams}
}

func newTestComparator(t *testing.T, repo Repository) Comparator {
	t.Helper()
	cmp, err := NewComparator(repo, defaultTiers())
	require.NoError(t, err)
	return cmp
}

func TestCompareWeightInterpolates(t *testing.T) {
	curve := weightCurve(weightPoint(7, 185), weightPoint(14, 475), weightPoint(21, 925))
	cmp := newTestComparator(t, &fakeCurveRepo{curve: curve})

	lot := models.Lot{Kind: enums.BirdKindBroiler, Breed: "COBB 500"}
	result, err := cmp.Compare(context.Background(), lot, enums.MetricKindWeight, 0.68, 10)
	require.NoError(t, err)
	require.NotNil(t, result)

	// 185 + (10-7)/(14-7) * (475-185) = 309.29 g
	expectedLb := (185 + 3.0/7.0*290) / 453.592
	assert.InDelta(t, expectedLb, result.Expected, 0.001)
}

func TestCompareWeightClampsOutsideDomain(t *testing.T) {
	curve := weightCurve(weightPoint(7, 185), weightPoint(21, 925))
	cmp := newTestComparator(t, &fakeCurveRepo{curve: curve})
	lot := models.Lot{Kind: enums.BirdKindBroiler, Breed: "COBB 500"}

	past, err := cmp.Compare(context.Background(), lot, enums.MetricKindWeight, 2.5, 40)
	require.NoError(t, err)
	require.NotNil(t, past)
	assert.InDelta(t, 925/453.592, past.Expected, 0.001)

	early, err := cmp.Compare(context.Background(), lot, enums.MetricKindWeight, 0.3, 2)
	require.NoError(t, err)
	require.NotNil(t, early)
	assert.InDelta(t, 185/453.592, early.Expected, 0.001)
}

func TestCompareWeightEndToEndCobb500(t *testing.T) {
	curve := weightCurve(weightPoint(7, 185), weightPoint(14, 475), weightPoint(21, 925))
	cmp := newTestComparator(t, &fakeCurveRepo{curve: curve})
	lot := models.Lot{Kind: enums.BirdKindBroiler, Breed: "COBB 500"}

	result, err := cmp.Compare(context.Background(), lot, enums.MetricKindWeight, 2.0, 21)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.InDelta(t, 2.039, result.Expected, 0.001)
	assert.InDelta(t, 98.08, result.PercentOfExpected, 0.1)
	assert.Equal(t, enums.PerformanceTierAcceptable, result.Tier)
	assert.False(t, result.NeedsAttention)
}

func TestCompareWeightNoCurve(t *testing.T) {
	cmp := newTestComparator(t, &fakeCurveRepo{})
	lot := models.Lot{Kind: enums.BirdKindBroiler, Breed: "mystery"}

	result, err := cmp.Compare(context.Background(), lot, enums.MetricKindWeight, 1.0, 10)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCompareProductionUsesWeekBucket(t *testing.T) {
	curve := &models.ReferenceCurve{
		Kind:  enums.BirdKindLayer,
		Breed: "ISA Brown",
		Points: []models.CurvePoint{
			{Metric: enums.MetricKindProduction, AgeWeeks: 24, ExpectedValue: 90},
		},
	}
	cmp := newTestComparator(t, &fakeCurveRepo{curve: curve})
	lot := models.Lot{Kind: enums.BirdKindLayer, Breed: "ISA Brown"}

	result, err := cmp.Compare(context.Background(), lot, enums.MetricKindProduction, 81, 24*7+3)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 90.0, result.PercentOfExpected, 0.01)
	assert.Equal(t, enums.PerformanceTierAcceptable, result.Tier)

	// Week 30 has no point; no interpolation across weeks.
	absent, err := cmp.Compare(context.Background(), lot, enums.MetricKindProduction, 81, 30*7)
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestCompareMortalityInverts(t *testing.T) {
	curve := &models.ReferenceCurve{ExpectedMortalityPct: 5}
	cmp := newTestComparator(t, &fakeCurveRepo{curve: curve})
	lot := models.Lot{Kind: enums.BirdKindBroiler, Breed: "COBB 500"}

	result, err := cmp.Compare(context.Background(), lot, enums.MetricKindMortality, 10, 30)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 50.0, result.PercentOfExpected, 0.01)
	assert.Equal(t, enums.PerformanceTierCritical, result.Tier)
	assert.True(t, result.NeedsAttention)
}

func TestCompareMortalityDefaultsWithoutCurve(t *testing.T) {
	cmp := newTestComparator(t, &fakeCurveRepo{})
	lot := models.Lot{Kind: enums.BirdKindBroiler, Breed: "unknown"}

	result, err := cmp.Compare(context.Background(), lot, enums.MetricKindMortality, 2.5, 30)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 5.0, result.Expected, 0.01)
	assert.InDelta(t, 200.0, result.PercentOfExpected, 0.01)
	assert.Equal(t, enums.PerformanceTierExcellent, result.Tier)
}

func TestCompareMortalityZeroActual(t *testing.T) {
	cmp := newTestComparator(t, &fakeCurveRepo{})
	lot := models.Lot{Kind: enums.BirdKindLayer, Breed: "ISA Brown"}

	result, err := cmp.Compare(context.Background(), lot, enums.MetricKindMortality, 0, 200)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 100.0, result.PercentOfExpected, 0.01)
	assert.False(t, result.NeedsAttention)
}
