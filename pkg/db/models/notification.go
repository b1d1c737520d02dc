package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/lomonchiapp/gallinapp-user-sub001/pkg/enums"
)

// Notification stores a delivered alert scoped to a user. Created once by the
// delivery pipeline; read/archive transitions come from the client apps.
type Notification struct {
	ID                uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID                `gorm:"type:uuid;not null"`
	LotID             *uuid.UUID               `gorm:"type:uuid"`
	Category          enums.AlertCategory      `gorm:"type:alert_category;not null"`
	Severity          enums.AlertSeverity      `gorm:"type:alert_severity;not null"`
	Title             string                   `gorm:"type:text;not null"`
	Message           string                   `gorm:"type:text;not null"`
	DedupKey          string                   `gorm:"type:text;not null;index"`
	Status            enums.NotificationStatus `gorm:"type:notification_status;not null;default:unread"`
	Consolidated      bool                     `gorm:"not null;default:false"`
	ConsolidatedCount int                      `gorm:"not null;default:0"`
	Data              []byte                   `gorm:"type:jsonb"`
	SendPush          bool                     `gorm:"not null;default:false"`
	SentToPush        bool                     `gorm:"not null;default:false"`
	PushDelivered     bool                     `gorm:"not null;default:false"`
	LastPushError     *string                  `gorm:"type:text"`
	PushSentAt        *time.Time               `gorm:"type:timestamptz"`
	ExpiresAt         *time.Time               `gorm:"type:timestamptz"`
	ReadAt            *time.Time               `gorm:"type:timestamptz"`
	ArchivedAt        *time.Time               `gorm:"type:timestamptz"`
	CreatedAt         time.Time                `gorm:"type:timestamptz;default:now()"`
}
