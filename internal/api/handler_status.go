package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ps-rental-backend/internal/lifecycle"
)

// GetCustomerStatus handles GET /api/status/:key, the customer-facing rental
// view. The access key in the URL is the whole capability; no session is
// involved.
func (h *Handler) GetCustomerStatus(c *gin.Context) {
	proj, err := h.ctrl.Project(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, lifecycle.ErrRentalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rental not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proj)
}

// CustomerFinish handles POST /api/status/:key/finish, the self-checkout.
// Possession of the key authorizes finishing exactly this rental.
func (h *Handler) CustomerFinish(c *gin.Context) {
	key := c.Param("key")

	proj, err := h.ctrl.Project(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, lifecycle.ErrRentalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rental not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.ctrl.ForceFinish(c.Request.Context(), proj.RentalID, key, false); err != nil {
		lifecycleError(c, err)
		return
	}

	proj, err = h.ctrl.Project(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proj)
}
