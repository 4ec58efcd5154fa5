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

// PaymentResponse represents the API response for a payment record.
type PaymentResponse struct {
	ID            int64      `json:"id"`
	RentalID      int64      `json:"rentalId"`
	Amount        float64    `json:"amount"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"paymentMethod"`
	ShiftID       *int64     `json:"shiftId,omitempty"`
	DueDate       time.Time  `json:"dueDate"`
	PaidDate      *time.Time `json:"paidDate,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

func paymentResponse(p *model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		RentalID:      p.RentalID,
		Amount:        p.Amount,
		Status:        p.Status,
		PaymentMethod: p.PaymentMethod,
		ShiftID:       p.ShiftID,
		DueDate:       p.DueDate,
		PaidDate:      p.PaidDate,
		Notes:         p.Notes,
	}
}

type updatePaymentRequest struct {
	Status        *string `json:"status" binding:"omitempty,oneof=pending paid overdue"`
	PaymentMethod *string `json:"paymentMethod" binding:"omitempty,oneof=cash qris transfer"`
	Notes         *string `json:"notes"`
}

// UpdatePayment handles PATCH /api/payments/:id, typically marking a bill
// paid at the register. Marking paid stamps the paid date and attaches the
// payment to the currently active shift so the close-of-shift rollup counts
// it.
func (h *Handler) UpdatePayment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment id"})
		return
	}

	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]any{}
	if req.PaymentMethod != nil {
		fields["payment_method"] = *req.PaymentMethod
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.Status != nil {
		fields["status"] = *req.Status
		if *req.Status == model.PaymentPaid {
			fields["paid_date"] = h.now()
			if shift, err := h.store.GetActiveShift(c.Request.Context()); err == nil {
				fields["shift_id"] = shift.ID
			}
		}
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	if err := h.store.UpdatePayment(c.Request.Context(), id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// ListShiftPayments handles GET /api/payments?shift_id=N.
func (h *Handler) ListShiftPayments(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Query("shift_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shift_id is required"})
		return
	}

	payments, err := h.store.ListPaymentsByShift(c.Request.Context(), shiftID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	responses := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		responses = append(responses, paymentResponse(&payments[i]))
	}
	c.JSON(http.StatusOK, responses)
}
