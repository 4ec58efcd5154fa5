package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ps-rental-backend/internal/model"
	"ps-rental-backend/internal/store"
)

// UnitResponse represents the API response for a single TV unit. The online
// flag is derived: a unit whose last bridge report is stale shows offline
// regardless of what the report said.
type UnitResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	IPAddress       string    `json:"ipAddress"`
	PricePerHour    float64   `json:"pricePerHour"`
	Status          string    `json:"status"`
	IsOnline        bool      `json:"isOnline"`
	IsReachable     bool      `json:"isReachable"`
	LastChecked     time.Time `json:"lastChecked"`
	CurrentRentalID *int64    `json:"currentRentalId,omitempty"`
	CountdownMs     int64     `json:"countdownMs"`
}

func (h *Handler) unitResponse(u *model.TVUnit, now time.Time) UnitResponse {
	return UnitResponse{
		ID:              u.ID,
		Name:            u.Name,
		IPAddress:       u.IPAddress,
		PricePerHour:    u.PricePerHour,
		Status:          u.Status,
		IsOnline:        u.Live(now, h.staleAfter),
		IsReachable:     u.IsReachable,
		LastChecked:     u.LastChecked,
		CurrentRentalID: u.CurrentRentalID,
		CountdownMs:     u.CountdownMs,
	}
}

// ListUnits handles the GET /api/units request.
func (h *Handler) ListUnits(c *gin.Context) {
	units, err := h.store.ListTVUnits(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve units"})
		return
	}

	now := h.now()
	responses := make([]UnitResponse, 0, len(units))
	for i := range units {
		responses = append(responses, h.unitResponse(&units[i], now))
	}
	c.JSON(http.StatusOK, responses)
}

type createUnitRequest struct {
	Name         string  `json:"name" binding:"required"`
	IPAddress    string  `json:"ipAddress" binding:"required"`
	MACAddress   string  `json:"macAddress"`
	PricePerHour float64 `json:"pricePerHour" binding:"required,gt=0"`
}

// CreateUnit registers a new TV unit.
func (h *Handler) CreateUnit(c *gin.Context) {
	var req createUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	unit := &model.TVUnit{
		Name:         req.Name,
		IPAddress:    req.IPAddress,
		MACAddress:   req.MACAddress,
		PricePerHour: req.PricePerHour,
		Status:       model.UnitAvailable,
	}
	if err := h.store.CreateTVUnit(c.Request.Context(), unit); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "could not create unit"})
		return
	}

	c.JSON(http.StatusCreated, h.unitResponse(unit, h.now()))
}

type updateUnitRequest struct {
	Name         *string  `json:"name"`
	PricePerHour *float64 `json:"pricePerHour"`
	Status       *string  `json:"status" binding:"omitempty,oneof=available offline maintenance"`
}

// UpdateUnit edits a unit's catalog fields. Occupancy transitions
// (available/in_use) belong to the rental lifecycle and are not accepted
// here, except for taking an idle unit in and out of maintenance.
func (h *Handler) UpdateUnit(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit id"})
		return
	}

	var req updateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.PricePerHour != nil {
		fields["price_per_hour"] = *req.PricePerHour
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	if err := h.store.UpdateTVUnit(c.Request.Context(), id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unit not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	unit, err := h.store.GetTVUnit(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.unitResponse(unit, h.now()))
}
