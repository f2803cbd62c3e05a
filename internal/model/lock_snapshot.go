package model

import "time"

// LockSnapshot is the cached state of a lock together with its timestamp ledger (hot table).
// It is restored on startup so stale events stay rejected across restarts.
type LockSnapshot struct {
	LockID         string    `gorm:"primaryKey;size:64"`
	LockState      string    `gorm:"size:16;not null"`
	DoorContact    string    `gorm:"size:16;not null"`
	SecureLock     bool      `gorm:"not null"`
	BatteryWarning bool      `gorm:"not null"`
	Synced         bool      `gorm:"not null"`
	Available      bool      `gorm:"not null"`
	BatteryTS      int64     `gorm:"column:battery_ts;not null;default:0"`
	LockStateTS    int64     `gorm:"column:lock_state_ts;not null;default:0"`
	DoorStateTS    int64     `gorm:"column:door_state_ts;not null;default:0"`
	SystemStatusTS int64     `gorm:"column:system_status_ts;not null;default:0"`
	DoorbellTS     int64     `gorm:"column:doorbell_ts;not null;default:0"`
	UpdatedAt      time.Time `gorm:"not null"`
}
