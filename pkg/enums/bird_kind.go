package enums

import "fmt"

// BirdKind maps to the bird_kind enum in Postgres.
type BirdKind string

const (
	BirdKindLayer   BirdKind = "layer"
	BirdKindBroiler BirdKind = "broiler"
	BirdKindPullet  BirdKind = "pullet"
)

var validBirdKinds = []BirdKind{
	BirdKindLayer,
	BirdKindBroiler,
	BirdKindPullet,
}

// IsValid checks whether the given kind matches the canonical enum.
func (b BirdKind) IsValid() bool {
	for _, candidate := range validBirdKinds {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBirdKind converts raw strings into BirdKind.
func ParseBirdKind(value string) (BirdKind, error) {
	for _, candidate := range validBirdKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bird kind %q", value)
}
