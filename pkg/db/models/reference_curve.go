package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
)

// ReferenceCurve holds per-breed expected values by age plus scalar targets.
// Rows are immutable per version; the alerting core only reads them.
type ReferenceCurve struct {
	ID                     uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Kind                   enums.BirdKind `gorm:"type:bird_kind;not null"`
	Breed                  string         `gorm:"type:text;not null"`
	Version                int            `gorm:"not null;default:1"`
	ExpectedMortalityPct   float64        `gorm:"type:numeric"`
	FeedConversionRatio    float64        `gorm:"type:numeric"`
	TargetMarketAgeDays    int            `gorm:""`
	TargetFinalWeightGrams float64        `gorm:"type:numeric"`
	Points                 []CurvePoint   `gorm:"foreignKey:CurveID"`
	CreatedAt              time.Time      `gorm:"type:timestamptz;default:now()"`
}

// CurvePoint is one reference value on a curve. Weight points are keyed by
// age in days (grams); lay-rate points by whole weeks (percent).
type CurvePoint struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CurveID       uuid.UUID        `gorm:"type:uuid;not null"`
	Metric        enums.MetricKind `gorm:"type:metric_kind;not null"`
	AgeDays       int              `gorm:"not null;default:0"`
	AgeWeeks      int              `gorm:"not null;default:0"`
	ExpectedValue float64          `gorm:"type:numeric;not null"`
	MinValue      *float64         `gorm:"type:numeric"`
	MaxValue      *float64         `gorm:"type:numeric"`
}

// WeightPoints returns the weight points; sort order is the caller's concern.
func (c ReferenceCurve) WeightPoints() []CurvePoint {
	return c.pointsFor(enums.MetricKindWeight)
}

// ProductionPoints returns the lay-rate points.
func (c ReferenceCurve) ProductionPoints() []CurvePoint {
	return c.pointsFor(enums.MetricKindProduction)
}

func (c ReferenceCurve) pointsFor(metric enums.MetricKind) []CurvePoint {
	points := make([]CurvePoint, 0, len(c.Points))
	for _, point := range c.Points {
		if point.Metric == metric {
			points = append(points, point)
		}
	}
	return points
}
