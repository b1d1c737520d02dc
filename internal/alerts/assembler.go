package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lomonchiapp/gallinapp-user-sub001/internal/benchmark"
	"github.com/lomonchiapp/gallinapp-user-sub001/internal/welfare"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/db/models"
	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
)

// Candidate is an alert proposed by the evaluation layer, before the
// delivery pipeline applies dedup, consolidation and rate limiting.
type Candidate struct {
	Category  enums.AlertCategory
	Severity  enums.AlertSeverity
	Title     string
	Message   string
	DedupKey  string
	UserID    uuid.UUID
	LotID     *uuid.UUID
	SendPush  bool
	ExpiresAt *time.Time
	Payload   map[string]any
}

var welfareTitles = map[string]string{
	welfare.ReasonNeverWeighed:         "Flock never weighed",
	welfare.ReasonWeighingGapEmergency: "Weighing urgently overdue",
	welfare.ReasonWeighingGapAdvisory:  "Weighing due",
	welfare.ReasonOnsetApproaching:     "Lay onset approaching",
	welfare.ReasonOnsetOverdue:         "Laying has not started",
	welfare.ReasonCollectionStopped:    "Egg collection stopped",
	welfare.ReasonNeverCollected:       "No egg collection on record",
	welfare.ReasonCollectionEmergency:  "Egg collection urgently overdue",
	welfare.ReasonCollectionAdvisory:   "Egg collection due",
	welfare.ReasonMortalityEmergency:   "Critical mortality",
	welfare.ReasonMortalityAdvisory:    "Elevated mortality",
}

var recommendations = map[welfare.Concern][]string{
	welfare.ConcernWeighing: {
		"Weigh a representative sample of the flock",
		"Record the weight in the app",
		"Review feed and water intake",
	},
	welfare.ConcernCollection: {
		"Check nests and laying conditions",
		"Record the daily collection",
		"Review the flock's lighting and feeding schedule",
	},
	welfare.ConcernMortality: {
		"Inspect the flock for signs of disease",
		"Isolate sick birds",
		"Consult a veterinarian",
	},
}

// FromVerdict maps a welfare verdict into a candidate alert. Pure; no side
// effects.
func FromVerdict(lot models.Lot, ownerID uuid.UUID, verdict welfare.Verdict) Candidate {
	title := welfareTitles[verdict.Reason]
	if title == "" {
		title = "Welfare alert"
	}

	lotID := lot.ID
	return Candidate{
		Category: enums.AlertCategoryProduction,
		Severity: verdict.Severity,
		Title:    title,
		Message:  verdict.Message,
		DedupKey: DedupKey(enums.AlertCategoryProduction, title, lot.ID, verdict.Reason),
		UserID:   ownerID,
		LotID:    &lotID,
		SendPush: verdict.Severity.Rank() >= enums.AlertSeverityHigh.Rank(),
		Payload: map[string]any{
			"lot_id":          lot.ID.String(),
			"lot_name":        lot.Name,
			"concern":         string(verdict.Concern),
			"reason":          verdict.Reason,
			"recommendations": recommendations[verdict.Concern],
		},
	}
}

// FromComparison maps a benchmark comparison that needs attention into a
// candidate alert. Comparisons inside the acceptable bands produce no alert.
func FromComparison(lot models.Lot, ownerID uuid.UUID, result benchmark.Result) *Candidate {
	if !result.NeedsAttention {
		return nil
	}

	severity := enums.AlertSeverityHigh
	if result.Tier == enums.PerformanceTierCritical {
		severity = enums.AlertSeverityCritical
	}

	title := comparisonTitle(result.Metric)
	reason := fmt.Sprintf("benchmark_%s_%s", result.Metric, result.Tier)
	lotID := lot.ID
	return &Candidate{
		Category: enums.AlertCategoryProduction,
		Severity: severity,
		Title:    title,
		Message:  result.Message,
		DedupKey: DedupKey(enums.AlertCategoryProduction, title, lot.ID, reason),
		UserID:   ownerID,
		LotID:    &lotID,
		SendPush: true,
		Payload: map[string]any{
			"lot_id":              lot.ID.String(),
			"lot_name":            lot.Name,
			"metric":              string(result.Metric),
			"actual":              result.Actual,
			"expected":            result.Expected,
			"percent_of_expected": result.PercentOfExpected,
			"tier":                string(result.Tier),
		},
	}
}

// DedupKey derives the correlation identity used for duplicate detection.
func DedupKey(category enums.AlertCategory, title string, lotID uuid.UUID, reason string) string {
	return fmt.Sprintf("%s|%s|%s|%s", category, title, lotID, reason)
}

func comparisonTitle(metric enums.MetricKind) string {
	switch metric {
	case enums.MetricKindWeight:
		return "Weight below target"
	case enums.MetricKindProduction:
		return "Lay rate below target"
	default:
		return "Mortality above target"
	}
}
