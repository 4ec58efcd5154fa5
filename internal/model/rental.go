package model

import "time"

// Rental types.
const (
	RentalHourly  = "hourly"
	RentalRegular = "regular"
)

// Rental statuses. Completed is terminal.
const (
	RentalActive    = "active"
	RentalPaused    = "paused"
	RentalCompleted = "completed"
)

// Rental is one rental session on a TV unit.
type Rental struct {
	ID              int64  `gorm:"primaryKey"`
	TVUnitID        int64  `gorm:"index;not null"`
	PublicAccessKey string `gorm:"uniqueIndex;size:128;not null"`

	CustomerName  string `gorm:"size:128;not null"`
	CustomerPhone string `gorm:"size:32;not null"`
	CustomerEmail string `gorm:"size:128"`

	Type   string `gorm:"size:10;not null"`
	Status string `gorm:"size:10;not null;default:'active'"`

	// StartTime is the immutable customer arrival time. BillingEpoch is
	// the reference instant for all elapsed/remaining arithmetic; it is
	// shifted forward on resume so that now-BillingEpoch stays equal to
	// the time actually used, with pause gaps excluded.
	StartTime    time.Time `gorm:"not null"`
	BillingEpoch time.Time `gorm:"not null"`
	EndTime      *time.Time

	// DurationMs is the planned package length (hourly only, 0 for
	// regular). RemainingMs is frozen at pause time for hourly rentals.
	// AccumulatedMs banks elapsed time across pauses for regular rentals.
	DurationMs    int64 `gorm:"not null;default:0"`
	RemainingMs   int64 `gorm:"not null;default:0"`
	AccumulatedMs int64 `gorm:"not null;default:0"`
	PausedAt      *time.Time

	// GrandTotal is the canonical customer-facing bill and must equal
	// RentalCost+AddOnsCost after every mutation. The legacy total_price
	// column is folded into grand_total by a startup migration.
	RentalCost float64 `gorm:"not null;default:0"`
	AddOnsCost float64 `gorm:"not null;default:0"`
	GrandTotal float64 `gorm:"not null;default:0"`

	AddOns []AddOn `gorm:"foreignKey:RentalID"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AddOn is one food/beverage line item attached to a rental, with the menu
// item's name and price captured at purchase time.
type AddOn struct {
	ID         int64     `gorm:"primaryKey"`
	RentalID   int64     `gorm:"index;not null"`
	MenuItemID int64     `gorm:"not null"`
	Name       string    `gorm:"size:128;not null"`
	Price      float64   `gorm:"not null"`
	Quantity   int       `gorm:"not null"`
	LineTotal  float64   `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}
