package model

import "time"

// MenuItem is a food/beverage product sellable as a rental add-on.
type MenuItem struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"size:128;not null"`
	Category  string    `gorm:"size:64"`
	Price     float64   `gorm:"not null"`
	Available bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
