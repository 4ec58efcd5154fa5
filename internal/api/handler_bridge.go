package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ps-rental-backend/internal/store"
)

type bridgeStatusRequest struct {
	Units []store.LivenessReport `json:"units" binding:"required,dive"`
}

// BridgeStatus handles POST /api/bridge/status, the batch liveness report a
// bridge daemon posts on its polling interval. Reports for addresses not in
// the unit table are ignored rather than rejected; the bridge scans its
// whole subnet.
func (h *Handler) BridgeStatus(c *gin.Context) {
	var req bridgeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateUnitLiveness(c.Request.Context(), h.now(), req.Units)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
