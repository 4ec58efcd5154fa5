package mw

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ps-rental-backend/internal/auth"
	"ps-rental-backend/internal/model"
	"ps-rental-backend/internal/store"
)

// Context keys set by the auth middleware.
const (
	CtxUserID = "userID"
	CtxRole   = "role"
)

// RequireAuth validates the Bearer token and stores the caller's identity in
// the request context.
func RequireAuth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// RequireAdmin rejects callers whose token does not carry the admin role.
// Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRole) != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// RequireLicense authenticates bridge daemons by license key. A valid key is
// touched so operators can see which installations are alive.
func RequireLicense(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-License-Key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing license key"})
			return
		}
		now := time.Now().UTC()
		lic, err := s.GetLicenseByKey(c.Request.Context(), key)
		if err != nil || !lic.Valid(now) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired license"})
			return
		}
		// Liveness bookkeeping only; failure is not a reason to reject.
		_ = s.TouchLicense(c.Request.Context(), lic.ID, now)
		c.Next()
	}
}
