package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ps-rental-backend/internal/billing"
	"ps-rental-backend/internal/lifecycle"
	"ps-rental-backend/internal/model"
)

// AddOnResponse is one add-on line item.
type AddOnResponse struct {
	ID         int64   `json:"id"`
	MenuItemID int64   `json:"menuItemId"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	LineTotal  float64 `json:"lineTotal"`
}

// RentalResponse represents the API response for a single rental. Time and
// cost figures are recomputed at response time so the console never shows a
// stale snapshot.
type RentalResponse struct {
	ID              int64      `json:"id"`
	TVUnitID        int64      `json:"tvUnitId"`
	PublicAccessKey string     `json:"publicAccessKey"`
	CustomerName    string     `json:"customerName"`
	CustomerPhone   string     `json:"customerPhone"`
	CustomerEmail   string     `json:"customerEmail,omitempty"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationMs      int64      `json:"durationMs"`
	TimeMs          int64      `json:"timeMs"`
	TimeDisplay     string     `json:"timeDisplay"`
	RentalCost      float64    `json:"rentalCost"`
	AddOnsCost      float64    `json:"addOnsCost"`
	GrandTotal      float64    `json:"grandTotal"`
	// Legacy alias, always equal to grandTotal.
	TotalPrice float64         `json:"totalPrice"`
	AddOns     []AddOnResponse `json:"addOns"`
}

func (h *Handler) rentalResponse(r *model.Rental, pricePerHour float64, now time.Time) RentalResponse {
	d := billing.ElapsedOrRemaining(r, now)
	cost := billing.RentalCost(r, now, pricePerHour)
	grand := cost + r.AddOnsCost

	addOns := make([]AddOnResponse, 0, len(r.AddOns))
	for _, a := range r.AddOns {
		addOns = append(addOns, AddOnResponse{
			ID:         a.ID,
			MenuItemID: a.MenuItemID,
			Name:       a.Name,
			Price:      a.Price,
			Quantity:   a.Quantity,
			LineTotal:  a.LineTotal,
		})
	}

	return RentalResponse{
		ID:              r.ID,
		TVUnitID:        r.TVUnitID,
		PublicAccessKey: r.PublicAccessKey,
		CustomerName:    r.CustomerName,
		CustomerPhone:   r.CustomerPhone,
		CustomerEmail:   r.CustomerEmail,
		Type:            r.Type,
		Status:          r.Status,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationMs:      r.DurationMs,
		TimeMs:          int64(d / time.Millisecond),
		TimeDisplay:     billing.FormatDuration(d),
		RentalCost:      cost,
		AddOnsCost:      r.AddOnsCost,
		GrandTotal:      grand,
		TotalPrice:      grand,
		AddOns:          addOns,
	}
}

// respondRental loads the unit's rate and writes the rental payload.
func (h *Handler) respondRental(c *gin.Context, status int, r *model.Rental) {
	unit, err := h.store.GetTVUnit(c.Request.Context(), r.TVUnitID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(status, h.rentalResponse(r, unit.PricePerHour, h.now()))
}

// lifecycleError maps controller errors onto HTTP statuses.
func lifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrUnitNotFound),
		errors.Is(err, lifecycle.ErrRentalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrUnitNotAvailable),
		errors.Is(err, lifecycle.ErrUnitPoweredOff),
		errors.Is(err, lifecycle.ErrRentalNotActive),
		errors.Is(err, lifecycle.ErrRentalNotPaused),
		errors.Is(err, lifecycle.ErrRentalCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrInvalidType),
		errors.Is(err, lifecycle.ErrInvalidDuration),
		errors.Is(err, lifecycle.ErrMenuItemUnknown):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, lifecycle.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type createRentalRequest struct {
	TVUnitID         int64  `json:"tvUnitId" binding:"required"`
	CustomerName     string `json:"customerName" binding:"required"`
	CustomerPhone    string `json:"customerPhone" binding:"required"`
	CustomerEmail    string `json:"customerEmail"`
	Type             string `json:"type" binding:"required,oneof=hourly regular"`
	DurationMinutes  int    `json:"durationMinutes"`
	RequirePoweredOn bool   `json:"requirePoweredOn"`
}

// CreateRental starts a rental session.
func (h *Handler) CreateRental(c *gin.Context) {
	var req createRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.ctrl.Create(c.Request.Context(), lifecycle.CreateParams{
		TVUnitID:         req.TVUnitID,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerEmail:    req.CustomerEmail,
		Type:             req.Type,
		DurationMinutes:  req.DurationMinutes,
		RequirePoweredOn: req.RequirePoweredOn,
	})
	if err != nil {
		lifecycleError(c, err)
		return
	}
	h.respondRental(c, http.StatusCreated, r)
}

// ListRentals handles the GET /api/rentals request, optionally filtered by
// ?status=. The listing doubles as an expiry checkpoint: due rentals are
// completed before the snapshot is taken, so the console never shows an
// hourly session past its end.
func (h *Handler) ListRentals(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.ctrl.SyncOnce(ctx); err != nil {
		log.Printf("api: opportunistic sync: %v", err)
	}

	var statuses []string
	if s := c.Query("status"); s != "" {
		statuses = append(statuses, s)
	}
	rentals, err := h.store.ListRentals(ctx, statuses...)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve rentals"})
		return
	}

	// One pass over the unit table instead of a lookup per rental.
	units, err := h.store.ListTVUnits(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve units"})
		return
	}
	rates := make(map[int64]float64, len(units))
	for _, u := range units {
		rates[u.ID] = u.PricePerHour
	}

	now := h.now()
	responses := make([]RentalResponse, 0, len(rentals))
	for i := range rentals {
		r := &rentals[i]
		responses = append(responses, h.rentalResponse(r, rates[r.TVUnitID], now))
	}
	c.JSON(http.StatusOK, responses)
}

// GetRental handles the GET /api/rentals/:id request.
func (h *Handler) GetRental(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rental id"})
		return
	}
	r, err := h.store.GetRental(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rental not found"})
		return
	}
	h.respondRental(c, http.StatusOK, r)
}

// PauseRental handles POST /api/rentals/:id/pause.
func (h *Handler) PauseRental(c *gin.Context) {
	h.transition(c, h.ctrl.Pause)
}

// ResumeRental handles POST /api/rentals/:id/resume.
func (h *Handler) ResumeRental(c *gin.Context) {
	h.transition(c, h.ctrl.Resume)
}

// FinishRental handles POST /api/rentals/:id/finish. Staff tokens are
// authorized for any rental.
func (h *Handler) FinishRental(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rental id"})
		return
	}
	r, err := h.ctrl.ForceFinish(c.Request.Context(), id, "", true)
	if err != nil {
		lifecycleError(c, err)
		return
	}
	h.respondRental(c, http.StatusOK, r)
}

type addAddOnsRequest struct {
	Items []lifecycle.AddOnRequest `json:"items" binding:"required,min=1,dive"`
}

// AddAddOns handles POST /api/rentals/:id/addons.
func (h *Handler) AddAddOns(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rental id"})
		return
	}

	var req addAddOnsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.ctrl.AddAddOns(c.Request.Context(), id, req.Items)
	if err != nil {
		lifecycleError(c, err)
		return
	}
	h.respondRental(c, http.StatusOK, r)
}

// RunSync handles POST /api/sync, the manual reconciliation trigger.
func (h *Handler) RunSync(c *gin.Context) {
	if err := h.ctrl.SyncOnce(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) transition(c *gin.Context, op func(context.Context, int64) (*model.Rental, error)) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rental id"})
		return
	}
	r, err := op(c.Request.Context(), id)
	if err != nil {
		lifecycleError(c, err)
		return
	}
	h.respondRental(c, http.StatusOK, r)
}
