package model

import "time"

// License statuses.
const (
	LicenseActive  = "active"
	LicenseRevoked = "revoked"
)

// License is a bridge credential. Every active license key doubles as a
// broadcast channel for device commands, so one command fans out to all
// registered bridges.
type License struct {
	ID         int64     `gorm:"primaryKey"`
	Key        string    `gorm:"uniqueIndex;size:64;not null"`
	Name       string    `gorm:"size:128;not null"`
	Status     string    `gorm:"size:10;not null;default:'active'"`
	ExpiresAt  time.Time `gorm:"not null"`
	LastUsedAt *time.Time
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// Valid reports whether the license may authenticate a bridge at the given
// instant.
func (l *License) Valid(now time.Time) bool {
	return l.Status == LicenseActive && now.Before(l.ExpiresAt)
}
