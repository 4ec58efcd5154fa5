package model

import "time"

// TV unit operational statuses.
const (
	UnitAvailable   = "available"
	UnitInUse       = "in_use"
	UnitOffline     = "offline"
	UnitMaintenance = "maintenance"
)

// TVUnit represents one rentable console/TV station.
type TVUnit struct {
	ID           int64   `gorm:"primaryKey"`
	Name         string  `gorm:"size:128;not null"`
	IPAddress    string  `gorm:"uniqueIndex;size:64;not null"`
	MACAddress   string  `gorm:"size:32"` // optional, for remote wake
	PricePerHour float64 `gorm:"not null;default:0"`
	Status       string  `gorm:"size:20;not null;default:'available'"`

	// Power/liveness state as last reported by the bridge. Readers must
	// treat the unit as offline once LastChecked exceeds the staleness
	// threshold, whatever IsOnline says.
	IsOnline    bool
	IsReachable bool
	LastChecked time.Time

	CurrentRentalID *int64
	// Display countdown seed in milliseconds, refreshed by sync for
	// hourly rentals.
	CountdownMs int64

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// StaleAfter is the default liveness staleness threshold.
const StaleAfter = 30 * time.Second

// Live reports whether the unit should be shown as powered on, deriving
// offline when the last bridge report is stale.
func (u *TVUnit) Live(now time.Time, staleAfter time.Duration) bool {
	if staleAfter <= 0 {
		staleAfter = StaleAfter
	}
	if now.Sub(u.LastChecked) > staleAfter {
		return false
	}
	return u.IsOnline
}
