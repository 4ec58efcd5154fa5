// Package billing computes rental time and cost figures. Everything here is
// a pure function of a rental snapshot and a caller-supplied instant: the
// engine never mutates its input and never touches storage, so read paths
// can call it to get a live figure without side effects.
package billing

import (
	"math"
	"time"

	"ps-rental-backend/internal/model"
)

// Remaining returns the time left on an hourly rental at the given instant.
// While paused the value is frozen at whatever was snapshotted at pause time.
// Never negative.
func Remaining(r *model.Rental, now time.Time) time.Duration {
	if r.Status == model.RentalPaused || r.Status == model.RentalCompleted {
		return time.Duration(r.RemainingMs) * time.Millisecond
	}
	rem := time.Duration(r.DurationMs)*time.Millisecond - now.Sub(r.BillingEpoch)
	if rem < 0 {
		return 0
	}
	return rem
}

// Elapsed returns the time used by a regular rental at the given instant.
// While paused or after completion the banked accumulated duration is the
// answer; while active the billing epoch has already been shifted so that
// now-epoch covers every previous active period.
func Elapsed(r *model.Rental, now time.Time) time.Duration {
	if r.Status == model.RentalPaused || r.Status == model.RentalCompleted {
		return time.Duration(r.AccumulatedMs) * time.Millisecond
	}
	e := now.Sub(r.BillingEpoch)
	if e < 0 {
		return 0
	}
	return e
}

// ElapsedOrRemaining returns the rental's display figure: time remaining for
// hourly rentals, time used for regular ones.
func ElapsedOrRemaining(r *model.Rental, now time.Time) time.Duration {
	if r.Type == model.RentalHourly {
		return Remaining(r, now)
	}
	return Elapsed(r, now)
}

// PackagePrice is the prepaid price of an hourly package. The customer pays
// for the package regardless of early or late finish.
func PackagePrice(durationMinutes int, pricePerHour float64) float64 {
	return float64(durationMinutes) / 60 * pricePerHour
}

// RentalCost returns the rental (time) portion of the bill at the given
// instant. Hourly rentals keep the package price fixed at creation; regular
// rentals are metered, rounded up to the next whole currency unit.
func RentalCost(r *model.Rental, now time.Time, pricePerHour float64) float64 {
	if r.Type == model.RentalHourly {
		if r.RentalCost > 0 {
			return r.RentalCost
		}
		// Legacy records carry only the total.
		return r.GrandTotal - r.AddOnsCost
	}
	hours := Elapsed(r, now).Hours()
	return math.Ceil(hours * pricePerHour)
}

// GrandTotal returns the customer-facing bill at the given instant.
func GrandTotal(r *model.Rental, now time.Time, pricePerHour float64) float64 {
	return RentalCost(r, now, pricePerHour) + r.AddOnsCost
}

// Expired reports whether an hourly rental has run out of time. Regular
// rentals never expire on their own.
func Expired(r *model.Rental, now time.Time) bool {
	if r.Type != model.RentalHourly || r.Status != model.RentalActive {
		return false
	}
	return Remaining(r, now) <= 0
}
