package model

import "time"

// Shift statuses.
const (
	ShiftActive    = "active"
	ShiftCompleted = "completed"
)

// Shift is one cashier accounting period. The Active flag is true while the
// shift is open and NULL once closed; the unique index on it turns "at most
// one active shift" into a database constraint instead of a check-then-act.
type Shift struct {
	ID           int64     `gorm:"primaryKey"`
	OperatorID   int64     `gorm:"index;not null"`
	OperatorName string    `gorm:"size:128;not null"`
	Status       string    `gorm:"size:10;not null;default:'active'"`
	Active       *bool     `gorm:"uniqueIndex"`
	StartTime    time.Time `gorm:"not null"`
	EndTime      *time.Time

	// Aggregated at close from paid payments attached to this shift.
	TransactionCount int64
	TotalRevenue     float64

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
