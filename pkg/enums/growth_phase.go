package enums

import "fmt"

// GrowthPhase is the age-derived production phase of a layer lot. Phases are
// contiguous and non-overlapping; exactly one applies at any age.
type GrowthPhase string

const (
	GrowthPhaseDevelopment GrowthPhase = "development"
	GrowthPhasePreLay      GrowthPhase = "pre_lay"
	GrowthPhaseLayOnset    GrowthPhase = "lay_onset"
	GrowthPhaseFullLay     GrowthPhase = "full_lay"
)

var validGrowthPhases = []GrowthPhase{
	GrowthPhaseDevelopment,
	GrowthPhasePreLay,
	GrowthPhaseLayOnset,
	GrowthPhaseFullLay,
}

// IsValid checks whether the given phase matches the canonical enum.
func (g GrowthPhase) IsValid() bool {
	for _, candidate := range validGrowthPhases {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGrowthPhase converts raw strings into GrowthPhase.
func ParseGrowthPhase(value string) (GrowthPhase, error) {
	for _, candidate := range validGrowthPhases {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid growth phase %q", value)
}
