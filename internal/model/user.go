package model

import "time"

// Operator roles.
const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// User is a staff operator account.
type User struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"size:128;not null"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string    `gorm:"size:128;not null"`
	Role         string    `gorm:"size:10;not null;default:'cashier'"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}
