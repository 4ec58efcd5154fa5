package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ps-rental-backend/internal/device"
	"ps-rental-backend/internal/model"
	"ps-rental-backend/internal/store"
)

var dsnSeq atomic.Int64

// testDSN names a fresh shared-cache in-memory database per call so every
// pooled connection within one test sees the same schema.
func testDSN() string {
	return fmt.Sprintf("file:lifecycletest%d?mode=memory&cache=shared", dsnSeq.Add(1))
}

type fixture struct {
	store   store.Store
	gateway *device.FakeGateway
	ctrl    *Controller
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(testDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection serializes concurrent test writes instead of
	// tripping sqlite's busy error.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.TVUnit{}, &model.Rental{}, &model.AddOn{}, &model.MenuItem{},
		&model.Payment{}, &model.Shift{}, &model.User{}, &model.License{},
		&model.PushSubscription{},
	))

	f := &fixture{
		store:   store.NewGormStore(db),
		gateway: device.NewFakeGateway(),
		now:     time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	f.ctrl = NewController(f.store, f.gateway, nil, time.Minute)
	f.ctrl.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) addUnit(t *testing.T, name, ip string, price float64) *model.TVUnit {
	t.Helper()
	u := &model.TVUnit{Name: name, IPAddress: ip, PricePerHour: price}
	require.NoError(t, f.store.CreateTVUnit(context.Background(), u))
	return u
}

func (f *fixture) addMenuItem(t *testing.T, name string, price float64) *model.MenuItem {
	t.Helper()
	m := &model.MenuItem{Name: name, Price: price, Available: true}
	require.NoError(t, f.store.CreateMenuItem(context.Background(), m))
	return m
}

func TestCreate_Hourly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 60,
	})
	require.NoError(t, err)

	assert.Equal(t, model.RentalActive, r.Status)
	assert.Equal(t, 50000.0, r.RentalCost)
	assert.Equal(t, 50000.0, r.GrandTotal)
	assert.EqualValues(t, 3600000, r.DurationMs)
	assert.NotEmpty(t, r.PublicAccessKey)

	// Unit is occupied and referencing exactly this rental.
	u, err := f.store.GetTVUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnitInUse, u.Status)
	require.NotNil(t, u.CurrentRentalID)
	assert.Equal(t, r.ID, *u.CurrentRentalID)

	// Pending payment due 24h past the planned end.
	p, err := f.store.GetPaymentByRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, 50000.0, p.Amount)
	assert.WithinDuration(t, f.now.Add(time.Hour+24*time.Hour), p.DueDate, time.Second)

	// Best-effort sleep timer was attempted.
	timers := f.gateway.OfType(device.CmdSleepTimer)
	require.Len(t, timers, 1)
	assert.Equal(t, "10.0.0.11", timers[0].TargetAddress)
	assert.Equal(t, 60, timers[0].Minutes)
}

func TestCreate_DeviceFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)
	f.gateway.SendError = assert.AnError

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 30,
	})
	require.NoError(t, err)

	// Business records exist despite the failed hardware command.
	_, err = f.store.GetPaymentByRental(ctx, r.ID)
	assert.NoError(t, err)
	u, _ := f.store.GetTVUnit(ctx, unit.ID)
	assert.Equal(t, model.UnitInUse, u.Status)
}

func TestCreate_UnitNotAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	first, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalRegular,
	})
	require.NoError(t, err)

	_, err = f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Ani", CustomerPhone: "0813",
		Type: model.RentalRegular,
	})
	assert.ErrorIs(t, err, ErrUnitNotAvailable)

	// Unit still references the winner only.
	u, _ := f.store.GetTVUnit(ctx, unit.ID)
	require.NotNil(t, u.CurrentRentalID)
	assert.Equal(t, first.ID, *u.CurrentRentalID)
}

func TestCreate_ConcurrentSameUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	params := CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 60,
	}

	type outcome struct {
		rental *model.Rental
		err    error
	}
	results := make(chan outcome, 2)
	var gate sync.WaitGroup
	gate.Add(1)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gate.Wait()
			r, err := f.ctrl.Create(ctx, params)
			results <- outcome{r, err}
		}()
	}
	gate.Done()
	wg.Wait()
	close(results)

	var winner *model.Rental
	var losses int
	for res := range results {
		if res.err == nil {
			require.Nil(t, winner, "both creates claimed the same unit")
			winner = res.rental
		} else {
			assert.ErrorIs(t, res.err, ErrUnitNotAvailable)
			losses++
		}
	}
	require.NotNil(t, winner)
	assert.Equal(t, 1, losses)

	// The loser leaves nothing behind: one rental row, one payment row,
	// and the unit references the winner.
	rentals, err := f.store.ListRentals(ctx)
	require.NoError(t, err)
	require.Len(t, rentals, 1)
	assert.Equal(t, winner.ID, rentals[0].ID)

	p, err := f.store.GetPaymentByRental(ctx, winner.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 50000, p.Amount)

	u, err := f.store.GetTVUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.UnitInUse, u.Status)
	require.NotNil(t, u.CurrentRentalID)
	assert.Equal(t, winner.ID, *u.CurrentRentalID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	_, err := f.ctrl.Create(ctx, CreateParams{TVUnitID: unit.ID, Type: "weekly"})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = f.ctrl.Create(ctx, CreateParams{TVUnitID: unit.ID, Type: model.RentalHourly})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = f.ctrl.Create(ctx, CreateParams{TVUnitID: 999, Type: model.RentalRegular})
	assert.ErrorIs(t, err, ErrUnitNotFound)

	// Powered-on gate: the unit has never reported in, so it is stale.
	_, err = f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, Type: model.RentalRegular, RequirePoweredOn: true,
	})
	assert.ErrorIs(t, err, ErrUnitPoweredOff)
}

// Property: hourly full lifecycle keeps the package price fixed and the cost
// invariant intact through add-ons and early finish.
func TestHourlyFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)
	snack := f.addMenuItem(t, "Nasi Goreng", 15000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, 50000.0, r.RentalCost)

	r, err = f.ctrl.AddAddOns(ctx, r.ID, []AddOnRequest{{MenuItemID: snack.ID, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, 15000.0, r.AddOnsCost)
	assert.Equal(t, 65000.0, r.GrandTotal)

	f.advance(10 * time.Minute)
	r, err = f.ctrl.ForceFinish(ctx, r.ID, "", true)
	require.NoError(t, err)

	// Early finish does not touch the package price.
	assert.Equal(t, model.RentalCompleted, r.Status)
	assert.Equal(t, 50000.0, r.RentalCost)
	assert.Equal(t, 65000.0, r.GrandTotal)
	assert.Equal(t, r.RentalCost+r.AddOnsCost, r.GrandTotal)
	require.NotNil(t, r.EndTime)
	assert.WithinDuration(t, f.now, *r.EndTime, time.Second)

	u, _ := f.store.GetTVUnit(ctx, unit.ID)
	assert.Equal(t, model.UnitAvailable, u.Status)
	assert.Nil(t, u.CurrentRentalID)

	p, _ := f.store.GetPaymentByRental(ctx, r.ID)
	assert.Equal(t, 65000.0, p.Amount)

	assert.Len(t, f.gateway.OfType(device.CmdPowerOff), 1)
}

// Property: regular rentals are metered across pause/resume; pause time is
// never billed.
func TestRegularMeteredLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 2", "10.0.0.12", 60000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Ani", CustomerPhone: "0813",
		Type: model.RentalRegular,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.RentalCost)

	// Pause at exactly 1.5h.
	f.advance(90 * time.Minute)
	r, err = f.ctrl.Pause(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RentalPaused, r.Status)
	assert.EqualValues(t, 5400000, r.AccumulatedMs)
	assert.Equal(t, 90000.0, r.RentalCost)
	assert.Equal(t, 90000.0, r.GrandTotal)

	p, _ := f.store.GetPaymentByRental(ctx, r.ID)
	assert.Equal(t, 90000.0, p.Amount)

	// A long paused gap is free.
	f.advance(6 * time.Hour)
	r, err = f.ctrl.Resume(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RentalActive, r.Status)

	// 30 more active minutes, then finish: 2.0h total.
	f.advance(30 * time.Minute)
	r, err = f.ctrl.ForceFinish(ctx, r.ID, "", true)
	require.NoError(t, err)
	assert.Equal(t, 120000.0, r.RentalCost)
	assert.Equal(t, 120000.0, r.GrandTotal)
	assert.EqualValues(t, 7200000, r.AccumulatedMs)
}

// Property: pausing an hourly rental freezes remaining time; pause duration
// contributes zero elapsed time.
func TestHourlyPauseResumeRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 60,
	})
	require.NoError(t, err)

	f.advance(20 * time.Minute)
	r, err = f.ctrl.Pause(ctx, r.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 40*60*1000, r.RemainingMs)

	f.advance(2 * time.Hour)
	r, err = f.ctrl.Resume(ctx, r.ID)
	require.NoError(t, err)

	proj, err := f.ctrl.Project(ctx, r.PublicAccessKey)
	require.NoError(t, err)
	assert.EqualValues(t, 40*60*1000, proj.TimeMs)
	require.NotNil(t, r.EndTime)
	assert.WithinDuration(t, f.now.Add(40*time.Minute), *r.EndTime, time.Second)
}

func TestPauseResume_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 60,
	})
	require.NoError(t, err)

	_, err = f.ctrl.Resume(ctx, r.ID)
	assert.ErrorIs(t, err, ErrRentalNotPaused)

	_, err = f.ctrl.Pause(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.ctrl.Pause(ctx, r.ID)
	assert.ErrorIs(t, err, ErrRentalNotActive)
}

// Property: natural expiry completes the rental, frees the unit and powers
// off exactly once, however many times sync runs.
func TestNaturalExpiry_IdempotentSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 30,
	})
	require.NoError(t, err)
	created := f.now

	f.advance(31 * time.Minute)
	require.NoError(t, f.ctrl.SyncOnce(ctx))
	require.NoError(t, f.ctrl.SyncOnce(ctx))
	require.NoError(t, f.ctrl.SyncOnce(ctx))

	got, err := f.store.GetRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RentalCompleted, got.Status)
	require.NotNil(t, got.EndTime)
	assert.WithinDuration(t, created.Add(30*time.Minute), *got.EndTime, time.Second)
	assert.EqualValues(t, 0, got.RemainingMs)

	u, _ := f.store.GetTVUnit(ctx, unit.ID)
	assert.Equal(t, model.UnitAvailable, u.Status)

	assert.Len(t, f.gateway.OfType(device.CmdPowerOff), 1)
}

func TestRegularNeverExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalRegular,
	})
	require.NoError(t, err)

	f.advance(100 * time.Hour)
	require.NoError(t, f.ctrl.SyncOnce(ctx))

	got, _ := f.store.GetRental(ctx, r.ID)
	assert.Equal(t, model.RentalActive, got.Status)
}

func TestSync_RefreshesCountdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	_, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 60,
	})
	require.NoError(t, err)

	f.advance(15 * time.Minute)
	require.NoError(t, f.ctrl.SyncOnce(ctx))

	u, _ := f.store.GetTVUnit(ctx, unit.ID)
	assert.EqualValues(t, 45*60*1000, u.CountdownMs)
}

func TestSync_RepairsOrphanedUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	// Simulate a crash between "rental completed" and "unit freed".
	require.NoError(t, f.store.AcquireTVUnit(ctx, unit.ID, 0))
	require.NoError(t, f.store.UpdateTVUnit(ctx, unit.ID, map[string]any{"current_rental_id": int64(12345)}))

	require.NoError(t, f.ctrl.SyncOnce(ctx))

	u, _ := f.store.GetTVUnit(ctx, unit.ID)
	assert.Equal(t, model.UnitAvailable, u.Status)
	assert.Nil(t, u.CurrentRentalID)
}

func TestAddAddOns_RejectedAfterCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)
	snack := f.addMenuItem(t, "Es Teh", 5000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 60,
	})
	require.NoError(t, err)

	_, err = f.ctrl.ForceFinish(ctx, r.ID, "", true)
	require.NoError(t, err)

	_, err = f.ctrl.AddAddOns(ctx, r.ID, []AddOnRequest{{MenuItemID: snack.ID, Quantity: 1}})
	assert.ErrorIs(t, err, ErrRentalCompleted)
}

func TestAddAddOns_UnknownItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalRegular,
	})
	require.NoError(t, err)

	_, err = f.ctrl.AddAddOns(ctx, r.ID, []AddOnRequest{{MenuItemID: 999, Quantity: 1}})
	assert.ErrorIs(t, err, ErrMenuItemUnknown)
}

func TestForceFinish_CustomerAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 1", "10.0.0.11", 50000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalRegular,
	})
	require.NoError(t, err)

	_, err = f.ctrl.ForceFinish(ctx, r.ID, "WRONG-KEY", false)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = f.ctrl.ForceFinish(ctx, r.ID, r.PublicAccessKey, false)
	require.NoError(t, err)

	_, err = f.ctrl.ForceFinish(ctx, r.ID, r.PublicAccessKey, false)
	assert.ErrorIs(t, err, ErrRentalCompleted)
}

func TestProject_LiveCostAndReaderExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := f.addUnit(t, "TV 2", "10.0.0.12", 60000)

	r, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit.ID, CustomerName: "Ani", CustomerPhone: "0813",
		Type: model.RentalRegular,
	})
	require.NoError(t, err)

	// Live metering: the stored snapshot still says zero, the projection
	// recomputes.
	f.advance(90 * time.Minute)
	proj, err := f.ctrl.Project(ctx, r.PublicAccessKey)
	require.NoError(t, err)
	assert.Equal(t, 90000.0, proj.RentalCost)
	assert.Equal(t, proj.GrandTotal, proj.TotalPrice)
	assert.Equal(t, "01:30:00", proj.TimeDisplay)

	// Reader-triggered expiry for a due hourly rental.
	unit2 := f.addUnit(t, "TV 3", "10.0.0.13", 50000)
	r2, err := f.ctrl.Create(ctx, CreateParams{
		TVUnitID: unit2.ID, CustomerName: "Budi", CustomerPhone: "0812",
		Type: model.RentalHourly, DurationMinutes: 30,
	})
	require.NoError(t, err)

	f.advance(45 * time.Minute)
	proj2, err := f.ctrl.Project(ctx, r2.PublicAccessKey)
	require.NoError(t, err)
	assert.Equal(t, model.RentalCompleted, proj2.Status)

	u, _ := f.store.GetTVUnit(ctx, unit2.ID)
	assert.Equal(t, model.UnitAvailable, u.Status)
}
