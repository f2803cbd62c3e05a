package model

import "time"

// Lock is a managed smart lock.
type Lock struct {
	ID        string    `gorm:"primaryKey;size:64"` // Vendor lock id
	Name      string    `gorm:"size:128;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Snapshot *LockSnapshot `gorm:"foreignKey:LockID;constraint:OnDelete:CASCADE" json:",omitempty"`
}
