package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ps-rental-backend/internal/model"
	"ps-rental-backend/internal/store"
)

// ShiftResponse represents the API response for a cashier shift.
type ShiftResponse struct {
	ID               int64      `json:"id"`
	OperatorID       int64      `json:"operatorId"`
	OperatorName     string     `json:"operatorName"`
	Status           string     `json:"status"`
	StartTime        time.Time  `json:"startTime"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	TransactionCount int64      `json:"transactionCount"`
	TotalRevenue     float64    `json:"totalRevenue"`
}

func shiftResponse(s *model.Shift) ShiftResponse {
	return ShiftResponse{
		ID:               s.ID,
		OperatorID:       s.OperatorID,
		OperatorName:     s.OperatorName,
		Status:           s.Status,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		TransactionCount: s.TransactionCount,
		TotalRevenue:     s.TotalRevenue,
	}
}

// OpenShift handles POST /api/shifts/open. The operator comes from the
// session token; at most one shift can be open at a time.
func (h *Handler) OpenShift(c *gin.Context) {
	uid := operatorID(c)
	user, err := h.store.GetUser(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown operator"})
		return
	}

	shift := &model.Shift{
		OperatorID:   user.ID,
		OperatorName: user.Name,
		StartTime:    h.now(),
	}
	if err := h.store.OpenShift(c.Request.Context(), shift); err != nil {
		if errors.Is(err, store.ErrShiftAlreadyOpen) {
			c.JSON(http.StatusConflict, gin.H{"error": "another shift is already active"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, shiftResponse(shift))
}

// CloseShift handles POST /api/shifts/close, completing the active shift and
// rolling up its paid payments.
func (h *Handler) CloseShift(c *gin.Context) {
	active, err := h.store.GetActiveShift(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "no active shift"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	closed, err := h.store.CloseShift(c.Request.Context(), active.ID, h.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "shift already closed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, shiftResponse(closed))
}

// GetActiveShift handles GET /api/shifts/active.
func (h *Handler) GetActiveShift(c *gin.Context) {
	active, err := h.store.GetActiveShift(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active shift"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, shiftResponse(active))
}
