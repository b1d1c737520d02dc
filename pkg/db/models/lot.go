package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
)

// Lot is a tracked production unit (a cohort of birds of one kind/breed).
// The alerting core only reads lots; measurement recording mutates them.
type Lot struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	FarmID           uuid.UUID      `gorm:"type:uuid;not null"`
	OwnerID          uuid.UUID      `gorm:"type:uuid;not null"`
	Name             string         `gorm:"type:text;not null"`
	Kind             enums.BirdKind `gorm:"type:bird_kind;not null"`
	Breed            string         `gorm:"type:text;not null"`
	BirthDate        time.Time      `gorm:"type:date"`
	InitialCount     int            `gorm:"not null"`
	CurrentCount     int            `gorm:"not null"`
	LastWeightLb     *float64       `gorm:"type:numeric"`
	LastWeighedAt    *time.Time     `gorm:"type:timestamptz"`
	LastCollectionAt *time.Time     `gorm:"type:timestamptz"`
	Active           bool           `gorm:"not null;default:true"`
	CreatedAt        time.Time      `gorm:"type:timestamptz;default:now()"`
	UpdatedAt        time.Time      `gorm:"type:timestamptz;default:now()"`
}

// AgeDays returns the lot age in whole days at the given instant, or -1 when
// the birth date is missing or in the future.
func (l Lot) AgeDays(now time.Time) int {
	if l.BirthDate.IsZero() || l.BirthDate.After(now) {
		return -1
	}
	return int(now.Sub(l.BirthDate).Hours() / 24)
}

// Deaths returns the cumulative head loss since the lot started.
func (l Lot) Deaths() int {
	if l.InitialCount <= 0 || l.CurrentCount > l.InitialCount {
		return 0
	}
	return l.InitialCount - l.CurrentCount
}

// MortalityPct returns cumulative mortality as a percentage of the initial
// head count, or -1 when the initial count is unusable.
func (l Lot) MortalityPct() float64 {
	if l.InitialCount <= 0 {
		return -1
	}
	return float64(l.Deaths()) / float64(l.InitialCount) * 100
}
