package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken is a user's registered push endpoint. A user without a row
// simply receives no push delivery.
type DeviceToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Token     string    `gorm:"type:text;not null"`
	Platform  string    `gorm:"type:text;not null;default:expo"`
	CreatedAt time.Time `gorm:"type:timestamptz;default:now()"`
	UpdatedAt time.Time `gorm:"type:timestamptz;default:now()"`
}
