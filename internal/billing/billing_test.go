package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ps-rental-backend/internal/model"
)

func hourlyRental(start time.Time, durationMinutes int) *model.Rental {
	return &model.Rental{
		Type:         model.RentalHourly,
		Status:       model.RentalActive,
		StartTime:    start,
		BillingEpoch: start,
		DurationMs:   int64(durationMinutes) * 60 * 1000,
		RemainingMs:  int64(durationMinutes) * 60 * 1000,
	}
}

func regularRental(start time.Time) *model.Rental {
	return &model.Rental{
		Type:         model.RentalRegular,
		Status:       model.RentalActive,
		StartTime:    start,
		BillingEpoch: start,
	}
}

func TestPackagePrice(t *testing.T) {
	assert.Equal(t, 50000.0, PackagePrice(60, 50000))
	assert.Equal(t, 25000.0, PackagePrice(30, 50000))
	assert.Equal(t, 75000.0, PackagePrice(90, 50000))
}

func TestRemaining_Monotonic(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := hourlyRental(start, 60)

	prev := Remaining(r, start)
	for _, offset := range []time.Duration{10 * time.Minute, 30 * time.Minute, 59 * time.Minute} {
		cur := Remaining(r, start.Add(offset))
		assert.True(t, cur < prev, "remaining must decrease over time")
		prev = cur
	}

	// Reaches exactly zero at start+duration and stays there.
	assert.Equal(t, time.Duration(0), Remaining(r, start.Add(60*time.Minute)))
	assert.Equal(t, time.Duration(0), Remaining(r, start.Add(2*time.Hour)))
}

func TestRemaining_FrozenWhilePaused(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := hourlyRental(start, 60)
	r.Status = model.RentalPaused
	r.RemainingMs = 45 * 60 * 1000

	// Any amount of wall time later, the snapshot holds.
	assert.Equal(t, 45*time.Minute, Remaining(r, start.Add(3*time.Hour)))
}

func TestElapsed_Regular(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := regularRental(start)

	assert.Equal(t, 90*time.Minute, Elapsed(r, start.Add(90*time.Minute)))

	r.Status = model.RentalPaused
	r.AccumulatedMs = 90 * 60 * 1000
	assert.Equal(t, 90*time.Minute, Elapsed(r, start.Add(5*time.Hour)))
}

func TestRentalCost_HourlyFixed(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := hourlyRental(start, 60)
	r.RentalCost = 50000

	// The package price does not move with elapsed time.
	assert.Equal(t, 50000.0, RentalCost(r, start.Add(10*time.Minute), 50000))
	assert.Equal(t, 50000.0, RentalCost(r, start.Add(3*time.Hour), 50000))
}

func TestRentalCost_HourlyLegacyFallback(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := hourlyRental(start, 60)
	r.RentalCost = 0
	r.AddOnsCost = 15000
	r.GrandTotal = 65000

	assert.Equal(t, 50000.0, RentalCost(r, start, 50000))
}

func TestRentalCost_RegularMetered(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := regularRental(start)

	// ceil(1.5h * 60000) = 90000
	assert.Equal(t, 90000.0, RentalCost(r, start.Add(90*time.Minute), 60000))
	// ceil(2.0h * 60000) = 120000
	assert.Equal(t, 120000.0, RentalCost(r, start.Add(2*time.Hour), 60000))
	// Fractional hour rounds the bill up to the next whole unit.
	assert.Equal(t, 60001.0, RentalCost(r, start.Add(time.Hour+time.Minute), 60000))
}

func TestRentalCost_Idempotent(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := regularRental(start)
	at := start.Add(47 * time.Minute)

	first := RentalCost(r, at, 60000)
	second := RentalCost(r, at, 60000)
	assert.Equal(t, first, second)
}

func TestGrandTotal_Invariant(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := hourlyRental(start, 60)
	r.RentalCost = 50000
	r.AddOnsCost = 15000

	at := start.Add(10 * time.Minute)
	assert.Equal(t, RentalCost(r, at, 50000)+r.AddOnsCost, GrandTotal(r, at, 50000))
	assert.Equal(t, 65000.0, GrandTotal(r, at, 50000))
}

func TestPauseResumeRoundTrip_Hourly(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := hourlyRental(start, 60)

	// Pause after 20 minutes of use.
	pauseAt := start.Add(20 * time.Minute)
	r.RemainingMs = int64(Remaining(r, pauseAt) / time.Millisecond)
	r.Status = model.RentalPaused

	// Resume 2 hours later: shift the epoch so the elapsed formula is
	// ignorant of the gap.
	resumeAt := start.Add(2*time.Hour + 20*time.Minute)
	r.BillingEpoch = resumeAt.Add(-time.Duration(r.DurationMs-r.RemainingMs) * time.Millisecond)
	r.Status = model.RentalActive

	assert.Equal(t, 40*time.Minute, Remaining(r, resumeAt))
}

func TestPauseResumeRoundTrip_Regular(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	r := regularRental(start)

	// Pause after 1.5h of use.
	pauseAt := start.Add(90 * time.Minute)
	r.AccumulatedMs = int64(Elapsed(r, pauseAt) / time.Millisecond)
	r.Status = model.RentalPaused
	assert.EqualValues(t, 5400000, r.AccumulatedMs)

	// Resume after an arbitrary gap, then use 30 more minutes.
	resumeAt := start.Add(4 * time.Hour)
	r.BillingEpoch = resumeAt.Add(-time.Duration(r.AccumulatedMs) * time.Millisecond)
	r.Status = model.RentalActive

	assert.Equal(t, 2*time.Hour, Elapsed(r, resumeAt.Add(30*time.Minute)))
	assert.Equal(t, 120000.0, RentalCost(r, resumeAt.Add(30*time.Minute), 60000))
}

func TestExpired(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	hourly := hourlyRental(start, 30)
	assert.False(t, Expired(hourly, start.Add(29*time.Minute)))
	assert.True(t, Expired(hourly, start.Add(31*time.Minute)))

	regular := regularRental(start)
	assert.False(t, Expired(regular, start.Add(100*time.Hour)))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatDuration(0))
	assert.Equal(t, "00:00:00", FormatDuration(-time.Minute))
	assert.Equal(t, "01:30:45", FormatDuration(time.Hour+30*time.Minute+45*time.Second))
	assert.Equal(t, "25:00:00", FormatDuration(25*time.Hour))
}
