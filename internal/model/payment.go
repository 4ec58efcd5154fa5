package model

import "time"

// Payment statuses.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentOverdue = "overdue"
)

// Payment methods.
const (
	MethodCash     = "cash"
	MethodQRIS     = "qris"
	MethodTransfer = "transfer"
)

// Payment is the bill record for a rental, logically 1:1. Amount tracks the
// rental's grand total as of the last mutation; it is updated alongside cost
// changes rather than atomically with them.
type Payment struct {
	ID            int64     `gorm:"primaryKey"`
	RentalID      int64     `gorm:"uniqueIndex;not null"`
	Amount        float64   `gorm:"not null;default:0"`
	Status        string    `gorm:"size:10;not null;default:'pending'"`
	PaymentMethod string    `gorm:"size:10;not null;default:'cash'"`
	ShiftID       *int64    `gorm:"index"`
	DueDate       time.Time `gorm:"not null"`
	PaidDate      *time.Time
	Notes         string    `gorm:"size:256"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}
