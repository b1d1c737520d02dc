package enums

import "fmt"

// AlertSeverity maps to the alert_severity enum in Postgres.
type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

var validAlertSeverities = []AlertSeverity{
	AlertSeverityLow,
	AlertSeverityMedium,
	AlertSeverityHigh,
	AlertSeverityCritical,
}

// IsValid checks whether the given severity matches the canonical enum.
func (a AlertSeverity) IsValid() bool {
	for _, candidate := range validAlertSeverities {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAlertSeverity converts raw strings into AlertSeverity.
func ParseAlertSeverity(value string) (AlertSeverity, error) {
	for _, candidate := range validAlertSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert severity %q", value)
}

// Rank orders severities from low (0) to critical (3) for comparisons.
func (a AlertSeverity) Rank() int {
	switch a {
	case AlertSeverityCritical:
		return 3
	case AlertSeverityHigh:
		return 2
	case AlertSeverityMedium:
		return 1
	default:
		return 0
	}
}
