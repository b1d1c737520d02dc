package enums

import "fmt"

// MetricKind identifies which measurement a benchmark comparison covers.
type MetricKind string

const (
	MetricKindWeight     MetricKind = "weight"
	MetricKindProduction MetricKind = "production"
	MetricKindMortality  MetricKind = "mortality"
)

var validMetricKinds = []MetricKind{
	MetricKindWeight,
	MetricKindProduction,
	MetricKindMortality,
}

// IsValid checks whether the given kind matches the canonical enum.
func (m MetricKind) IsValid() bool {
	for _, candidate := range validMetricKinds {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMetricKind converts raw strings into MetricKind.
func ParseMetricKind(value string) (MetricKind, error) {
	for _, candidate := range validMetricKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid metric kind %q", value)
}
