package enums

import "fmt"

// PerformanceTier classifies actual-vs-expected performance for a metric.
type PerformanceTier string

const (
	PerformanceTierExcellent  PerformanceTier = "excellent"
	PerformanceTierGood       PerformanceTier = "good"
	PerformanceTierAcceptable PerformanceTier = "acceptable"
	PerformanceTierBelow      PerformanceTier = "below"
	PerformanceTierCritical   PerformanceTier = "critical"
)

var validPerformanceTiers = []PerformanceTier{
	PerformanceTierExcellent,
	PerformanceTierGood,
	PerformanceTierAcceptable,
	PerformanceTierBelow,
	PerformanceTierCritical,
}

// IsValid checks whether the given tier matches the canonical enum.
func (p PerformanceTier) IsValid() bool {
	for _, candidate := range validPerformanceTiers {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePerformanceTier converts raw strings into PerformanceTier.
func ParsePerformanceTier(value string) (PerformanceTier, error) {
	for _, candidate := range validPerformanceTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid performance tier %q", value)
}

// NeedsAttention reports whether the tier warrants an alert.
func (p PerformanceTier) NeedsAttention() bool {
	return p == PerformanceTierBelow || p == PerformanceTierCritical
}
