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

// LicenseResponse represents the API response for a bridge license.
type LicenseResponse struct {
	ID         int64      `json:"id"`
	Key        string     `json:"key"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

func licenseResponse(l *model.License) LicenseResponse {
	return LicenseResponse{
		ID:         l.ID,
		Key:        l.Key,
		Name:       l.Name,
		Status:     l.Status,
		ExpiresAt:  l.ExpiresAt,
		LastUsedAt: l.LastUsedAt,
	}
}

// ListLicenses handles GET /api/licenses. Admin only.
func (h *Handler) ListLicenses(c *gin.Context) {
	licenses, err := h.store.ListLicenses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	responses := make([]LicenseResponse, 0, len(licenses))
	for i := range licenses {
		responses = append(responses, licenseResponse(&licenses[i]))
	}
	c.JSON(http.StatusOK, responses)
}

type createLicenseRequest struct {
	Name      string `json:"name" binding:"required"`
	ExpiresAt string `json:"expiresAt" binding:"required"`
}

// CreateLicense handles POST /api/licenses. The key is minted server-side
// and shown once in the response; it doubles as the bridge's command topic.
func (h *Handler) CreateLicense(c *gin.Context) {
	var req createLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expires, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expiresAt must be RFC3339"})
		return
	}
	if !expires.After(h.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expiresAt must be in the future"})
		return
	}

	lic := &model.License{
		Name:      req.Name,
		ExpiresAt: expires,
	}
	if err := h.store.CreateLicense(c.Request.Context(), lic); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, licenseResponse(lic))
}

// RevokeLicense handles POST /api/licenses/:id/revoke. Revocation cuts the
// bridge off immediately: its next status post fails auth and device
// commands stop being published to its topic.
func (h *Handler) RevokeLicense(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license id"})
		return
	}

	if err := h.store.RevokeLicense(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": model.LicenseRevoked})
}
