// Package lifecycle implements the rental state machine: create, pause,
// resume, add-on purchase, forced finish, natural expiry and the periodic
// reconciliation pass. It orchestrates the store, the billing engine and the
// device gateway. Store failures abort a transition; device-command failures
// never do.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"ps-rental-backend/internal/accesskey"
	"ps-rental-backend/internal/billing"
	"ps-rental-backend/internal/device"
	"ps-rental-backend/internal/model"
	"ps-rental-backend/internal/notification"
	"ps-rental-backend/internal/store"
)

// Business-rule violations surfaced to the API layer.
var (
	ErrUnitNotFound     = errors.New("tv unit not found")
	ErrUnitNotAvailable = errors.New("tv unit is not available")
	ErrUnitPoweredOff   = errors.New("tv unit is not powered on")
	ErrRentalNotFound   = errors.New("rental not found")
	ErrRentalNotActive  = errors.New("rental is not active")
	ErrRentalNotPaused  = errors.New("rental is not paused")
	ErrRentalCompleted  = errors.New("rental is already completed")
	ErrInvalidType      = errors.New("invalid rental type")
	ErrInvalidDuration  = errors.New("hourly rental needs a positive duration")
	ErrMenuItemUnknown  = errors.New("menu item not found or unavailable")
	ErrNotAuthorized    = errors.New("not authorized for this rental")
)

// Controller drives rental state transitions.
type Controller struct {
	store   store.Store
	gateway device.Gateway
	pool    *notification.WorkerPool

	interval time.Duration

	// now is swappable so tests can move the clock.
	now func() time.Time
}

// NewController creates a lifecycle controller. The notification pool may be
// nil; completion alerts are then skipped.
func NewController(s store.Store, g device.Gateway, pool *notification.WorkerPool, syncInterval time.Duration) *Controller {
	if syncInterval <= 0 {
		syncInterval = time.Minute
	}
	return &Controller{
		store:    s,
		gateway:  g,
		pool:     pool,
		interval: syncInterval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the controller's clock. Test hook.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// CreateParams carries the operator's input for starting a rental.
type CreateParams struct {
	TVUnitID        int64
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	Type            string
	DurationMinutes int
	// RequirePoweredOn gates creation on the unit's reported power state
	// for flows where the hardware must already be up.
	RequirePoweredOn bool
}

// Create starts a rental on an available unit: the unit is claimed first,
// then the rental and its payment are persisted and a best-effort sleep
// timer is armed for hourly packages. The business transaction is complete
// once the records are written; hardware delivery is not part of it.
func (c *Controller) Create(ctx context.Context, p CreateParams) (*model.Rental, error) {
	now := c.now()

	if p.Type != model.RentalHourly && p.Type != model.RentalRegular {
		return nil, ErrInvalidType
	}
	if p.Type == model.RentalHourly && p.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}

	unit, err := c.store.GetTVUnit(ctx, p.TVUnitID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	// Fast reject; the real exclusion is the conditional acquire below.
	if unit.Status != model.UnitAvailable {
		return nil, ErrUnitNotAvailable
	}
	if p.RequirePoweredOn && !unit.Live(now, 0) {
		return nil, ErrUnitPoweredOff
	}

	var durationMs int64
	var rentalCost float64
	if p.Type == model.RentalHourly {
		durationMs = int64(p.DurationMinutes) * 60 * 1000
		rentalCost = billing.PackagePrice(p.DurationMinutes, unit.PricePerHour)
	}

	// Claim the unit before writing anything else; the loser of a
	// concurrent create stops here with no rental row to clean up.
	if err := c.store.AcquireTVUnit(ctx, unit.ID, durationMs); err != nil {
		if errors.Is(err, store.ErrUnitNotAvailable) {
			return nil, ErrUnitNotAvailable
		}
		return nil, err
	}

	rental := &model.Rental{
		TVUnitID:      unit.ID,
		CustomerName:  p.CustomerName,
		CustomerPhone: p.CustomerPhone,
		CustomerEmail: p.CustomerEmail,
		Type:          p.Type,
		Status:        model.RentalActive,
		StartTime:     now,
		BillingEpoch:  now,
		DurationMs:    durationMs,
		RemainingMs:   durationMs,
		RentalCost:    rentalCost,
		GrandTotal:    rentalCost,
	}
	if p.Type == model.RentalHourly {
		end := now.Add(time.Duration(durationMs) * time.Millisecond)
		rental.EndTime = &end
	}

	minted := 0
	mintKey := func(id int64) string {
		minted++
		key := accesskey.Derive(id, p.CustomerName, unit.Name)
		if minted > 1 {
			key = accesskey.Salt(key)
		}
		return key
	}
	if err := c.store.CreateRental(ctx, rental, mintKey); err != nil {
		if rerr := c.store.ReleaseTVUnit(ctx, unit.ID); rerr != nil {
			log.Printf("lifecycle: releasing unit %d after failed create: %v", unit.ID, rerr)
		}
		return nil, err
	}

	if err := c.store.UpdateTVUnit(ctx, unit.ID, map[string]any{"current_rental_id": rental.ID}); err != nil {
		// The unit is held but unstamped; the sync pass treats it as
		// orphaned and frees it, so log rather than abort the rental.
		log.Printf("lifecycle: stamping rental %d on unit %d: %v", rental.ID, unit.ID, err)
	}

	dueBase := now
	if p.Type == model.RentalHourly {
		dueBase = now.Add(time.Duration(durationMs) * time.Millisecond)
	}
	payment := &model.Payment{
		RentalID: rental.ID,
		Amount:   rental.GrandTotal,
		Status:   model.PaymentPending,
		DueDate:  dueBase.Add(24 * time.Hour),
	}
	if err := c.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment for rental %d: %w", rental.ID, err)
	}

	if p.Type == model.RentalHourly {
		c.sendCommand(ctx, device.SleepTimer(unit.IPAddress, p.DurationMinutes, now))
	}

	return rental, nil
}

// AddOnRequest is one requested line item, priced at purchase time from the
// current menu.
type AddOnRequest struct {
	MenuItemID int64 `json:"menu_item_id" binding:"required"`
	Quantity   int   `json:"quantity" binding:"required,gt=0"`
}

// AddAddOns attaches a batch of add-ons to a rental and bumps the bill. The
// cost fields are incremented atomically in the store so concurrent batches
// cannot clobber each other. Completed rentals reject the batch.
func (c *Controller) AddAddOns(ctx context.Context, rentalID int64, reqs []AddOnRequest) (*model.Rental, error) {
	now := c.now()

	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.MenuItemID)
	}
	menu, err := c.store.GetMenuItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]model.AddOn, 0, len(reqs))
	var sum float64
	for _, r := range reqs {
		item, ok := menu[r.MenuItemID]
		if !ok || !item.Available {
			return nil, ErrMenuItemUnknown
		}
		items = append(items, model.AddOn{
			MenuItemID: item.ID,
			Name:       item.Name,
			Price:      item.Price,
			Quantity:   r.Quantity,
			CreatedAt:  now,
		})
		sum += item.Price * float64(r.Quantity)
	}

	if err := c.store.AppendAddOns(ctx, rentalID, items); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			return nil, ErrRentalCompleted
		}
		return nil, err
	}

	if err := c.store.IncrementPaymentAmountByRental(ctx, rentalID, sum); err != nil {
		// The rental side already landed; the payment mirror is eventual
		// and will be re-synced on the next cost write.
		log.Printf("lifecycle: payment increment for rental %d: %v", rentalID, err)
	}

	return c.getRental(ctx, rentalID)
}

// Pause freezes an active rental. Hourly rentals snapshot their remaining
// time; regular rentals bank elapsed time and store a provisional metered
// cost.
func (c *Controller) Pause(ctx context.Context, rentalID int64) (*model.Rental, error) {
	now := c.now()

	r, err := c.getRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if r.Status != model.RentalActive {
		return nil, ErrRentalNotActive
	}

	fields := map[string]any{
		"status":    model.RentalPaused,
		"paused_at": now,
	}
	if r.Type == model.RentalHourly {
		fields["remaining_ms"] = int64(billing.Remaining(r, now) / time.Millisecond)
	} else {
		unit, err := c.store.GetTVUnit(ctx, r.TVUnitID)
		if err != nil {
			return nil, err
		}
		accumulated := billing.Elapsed(r, now)
		cost := billing.RentalCost(r, now, unit.PricePerHour)
		fields["accumulated_ms"] = int64(accumulated / time.Millisecond)
		fields["remaining_ms"] = 0
		fields["rental_cost"] = cost
		// add_ons_cost may move concurrently; let the database keep the
		// total consistent with it.
		fields["grand_total"] = gorm.Expr("? + add_ons_cost", cost)
	}

	if err := c.store.TransitionRental(ctx, rentalID, model.RentalActive, fields); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			return nil, ErrRentalNotActive
		}
		return nil, err
	}

	r, err = c.getRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if r.Type == model.RentalRegular {
		if err := c.store.SetPaymentAmountByRental(ctx, rentalID, r.GrandTotal); err != nil {
			log.Printf("lifecycle: payment sync for rental %d: %v", rentalID, err)
		}
	}
	return r, nil
}

// Resume reactivates a paused rental by shifting the billing epoch so that
// now-epoch equals the time actually used, leaving the pause gap unbilled.
func (c *Controller) Resume(ctx context.Context, rentalID int64) (*model.Rental, error) {
	now := c.now()

	r, err := c.getRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if r.Status != model.RentalPaused {
		return nil, ErrRentalNotPaused
	}

	fields := map[string]any{
		"status":    model.RentalActive,
		"paused_at": gorm.Expr("NULL"),
	}
	if r.Type == model.RentalHourly {
		used := time.Duration(r.DurationMs-r.RemainingMs) * time.Millisecond
		fields["billing_epoch"] = now.Add(-used)
		fields["end_time"] = now.Add(time.Duration(r.RemainingMs) * time.Millisecond)
	} else {
		fields["billing_epoch"] = now.Add(-time.Duration(r.AccumulatedMs) * time.Millisecond)
	}

	if err := c.store.TransitionRental(ctx, rentalID, model.RentalPaused, fields); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			return nil, ErrRentalNotPaused
		}
		return nil, err
	}
	return c.getRental(ctx, rentalID)
}

// ForceFinish terminates a rental early. Operators call it with
// authorized=true; customers must present the rental's access key. The final
// rental cost is computed at the instant of the call: package price for
// hourly, metered for regular.
func (c *Controller) ForceFinish(ctx context.Context, rentalID int64, key string, authorized bool) (*model.Rental, error) {
	now := c.now()

	r, err := c.getRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if !authorized && r.PublicAccessKey != key {
		return nil, ErrNotAuthorized
	}
	if r.Status == model.RentalCompleted {
		return nil, ErrRentalCompleted
	}

	unit, err := c.store.GetTVUnit(ctx, r.TVUnitID)
	if err != nil {
		return nil, err
	}

	finalCost := billing.RentalCost(r, now, unit.PricePerHour)
	fields := map[string]any{
		"status":       model.RentalCompleted,
		"end_time":     now,
		"remaining_ms": 0,
		"paused_at":    gorm.Expr("NULL"),
		"rental_cost":  finalCost,
		"grand_total":  gorm.Expr("? + add_ons_cost", finalCost),
	}
	if r.Type == model.RentalRegular {
		fields["accumulated_ms"] = int64(billing.Elapsed(r, now) / time.Millisecond)
	}

	if err := c.store.TransitionRental(ctx, rentalID, r.Status, fields); err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			return nil, ErrRentalCompleted
		}
		return nil, err
	}

	c.finishSideEffects(ctx, rentalID, unit, now)
	return c.getRental(ctx, rentalID)
}

// completeExpired transitions a due hourly rental through natural expiry.
// The status CAS makes it idempotent: only the caller that wins the
// transition performs the side effects, so repeated syncs power off once.
func (c *Controller) completeExpired(ctx context.Context, r *model.Rental) error {
	expiredAt := r.BillingEpoch.Add(time.Duration(r.DurationMs) * time.Millisecond)

	err := c.store.TransitionRental(ctx, r.ID, model.RentalActive, map[string]any{
		"status":       model.RentalCompleted,
		"end_time":     expiredAt,
		"remaining_ms": 0,
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			return nil // someone else already completed it
		}
		return err
	}

	unit, err := c.store.GetTVUnit(ctx, r.TVUnitID)
	if err != nil {
		return err
	}
	c.finishSideEffects(ctx, r.ID, unit, expiredAt)
	return nil
}

// finishSideEffects frees the unit, re-syncs the payment amount, powers the
// hardware off and alerts subscribed operators. All best-effort except the
// unit release, which sync will repair if it is missed.
func (c *Controller) finishSideEffects(ctx context.Context, rentalID int64, unit *model.TVUnit, now time.Time) {
	if err := c.store.ReleaseTVUnit(ctx, unit.ID); err != nil {
		log.Printf("lifecycle: releasing unit %d: %v", unit.ID, err)
	}

	if r, err := c.getRental(ctx, rentalID); err == nil {
		if err := c.store.SetPaymentAmountByRental(ctx, rentalID, r.GrandTotal); err != nil {
			log.Printf("lifecycle: payment sync for rental %d: %v", rentalID, err)
		}
	}

	c.sendCommand(ctx, device.PowerOff(unit.IPAddress, now))

	if c.pool != nil {
		c.pool.Dispatch(rentalID)
	}
}

// SyncOnce is the idempotent reconciliation pass: it expires due hourly
// rentals, refreshes displayed countdowns and frees units whose referenced
// rental is no longer open. Safe to run at any frequency.
func (c *Controller) SyncOnce(ctx context.Context) error {
	now := c.now()

	active, err := c.store.ListRentals(ctx, model.RentalActive)
	if err != nil {
		return fmt.Errorf("list active rentals: %w", err)
	}

	var expired int
	for i := range active {
		r := &active[i]
		if billing.Expired(r, now) {
			if err := c.completeExpired(ctx, r); err != nil {
				log.Printf("sync: expiring rental %d: %v", r.ID, err)
				continue
			}
			expired++
		} else if r.Type == model.RentalHourly {
			remaining := int64(billing.Remaining(r, now) / time.Millisecond)
			if err := c.store.UpdateTVUnit(ctx, r.TVUnitID, map[string]any{"countdown_ms": remaining}); err != nil {
				log.Printf("sync: countdown for unit %d: %v", r.TVUnitID, err)
			}
		}
	}

	// Repair drift: an in-use unit whose rental is gone or closed is
	// freed here rather than surfaced as an error.
	inUse, err := c.store.ListUnitsInUse(ctx)
	if err != nil {
		return fmt.Errorf("list in-use units: %w", err)
	}
	var repaired int
	for _, u := range inUse {
		open := false
		if u.CurrentRentalID != nil {
			if r, err := c.store.GetRental(ctx, *u.CurrentRentalID); err == nil {
				open = r.Status == model.RentalActive || r.Status == model.RentalPaused
			}
		}
		if !open {
			if err := c.store.ReleaseTVUnit(ctx, u.ID); err != nil {
				log.Printf("sync: repairing unit %d: %v", u.ID, err)
				continue
			}
			repaired++
		}
	}

	if expired > 0 || repaired > 0 {
		log.Printf("sync: %d rentals expired, %d units repaired", expired, repaired)
	}
	return nil
}

// Run drives SyncOnce at the configured interval until the context is
// cancelled.
func (c *Controller) Run(ctx context.Context) {
	log.Println("Starting rental sync loop...")

	if err := c.SyncOnce(ctx); err != nil {
		log.Printf("sync: %v", err)
	}

	timer := time.NewTimer(c.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Rental sync loop shutting down.")
			return
		case <-timer.C:
			if err := c.SyncOnce(ctx); err != nil {
				log.Printf("sync: %v", err)
			}
			timer.Reset(c.interval)
		}
	}
}

// Projection is the customer-facing read model for a rental, recomputed live
// so a stale persisted snapshot cannot drift the displayed bill.
type Projection struct {
	RentalID    int64      `json:"rental_id"`
	UnitName    string     `json:"unit_name"`
	Customer    string     `json:"customer"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	TimeDisplay string     `json:"time_display"`
	TimeMs      int64      `json:"time_ms"`
	RentalCost  float64    `json:"rental_cost"`
	AddOnsCost  float64    `json:"add_ons_cost"`
	GrandTotal  float64    `json:"grand_total"`
	// Legacy alias, always equal to grand_total.
	TotalPrice float64       `json:"total_price"`
	AddOns     []model.AddOn `json:"add_ons"`
}

// Project builds the customer status payload for the rental behind an
// access key. Cost figures come from the billing engine at this instant,
// not from the stored snapshot.
func (c *Controller) Project(ctx context.Context, key string) (*Projection, error) {
	now := c.now()

	r, err := c.store.GetRentalByAccessKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRentalNotFound
		}
		return nil, err
	}

	unit, err := c.store.GetTVUnit(ctx, r.TVUnitID)
	if err != nil {
		return nil, err
	}

	// A due hourly rental observed by a reader completes right here; the
	// sync loop is only the catch-up for rentals nobody looked at.
	if billing.Expired(r, now) {
		if err := c.completeExpired(ctx, r); err != nil {
			log.Printf("project: expiring rental %d: %v", r.ID, err)
		}
		if r, err = c.store.GetRentalByAccessKey(ctx, key); err != nil {
			return nil, err
		}
	}

	d := billing.ElapsedOrRemaining(r, now)
	rentalCost := billing.RentalCost(r, now, unit.PricePerHour)
	grand := rentalCost + r.AddOnsCost

	return &Projection{
		RentalID:    r.ID,
		UnitName:    unit.Name,
		Customer:    r.CustomerName,
		Type:        r.Type,
		Status:      r.Status,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		TimeDisplay: billing.FormatDuration(d),
		TimeMs:      int64(d / time.Millisecond),
		RentalCost:  rentalCost,
		AddOnsCost:  r.AddOnsCost,
		GrandTotal:  grand,
		TotalPrice:  grand,
		AddOns:      r.AddOns,
	}, nil
}

func (c *Controller) getRental(ctx context.Context, id int64) (*model.Rental, error) {
	r, err := c.store.GetRental(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRentalNotFound
		}
		return nil, err
	}
	return r, nil
}

// sendCommand performs a best-effort hardware command. Failures are logged
// and swallowed: hardware reachability is inherently unreliable and must not
// block a persisted business transition.
func (c *Controller) sendCommand(ctx context.Context, cmd device.Command) {
	if c.gateway == nil {
		return
	}
	if err := c.gateway.Send(ctx, cmd); err != nil {
		log.Printf("device: %s to %s: %v", cmd.Type, cmd.TargetAddress, err)
	}
}
