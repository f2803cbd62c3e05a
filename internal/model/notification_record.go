package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationRecord is the history of emitted notifications (cold table).
type NotificationRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EmittedAt time.Time `gorm:"not null;index;primaryKey" json:"emittedAt"`
	LockID    string    `gorm:"size:64;not null;index" json:"lockId"`
	Kind      string    `gorm:"size:32;not null" json:"kind"`
	Source    string    `gorm:"size:128" json:"source,omitempty"`
	Detail    string    `gorm:"size:512" json:"detail,omitempty"`
}
