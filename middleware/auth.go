package middleware

import (
	"net/http"
	"strings"

	"attestation-backend/models"
	"attestation-backend/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	ContextStaffID = "staffID"
	ContextHotelID = "hotelID"
)

// StaffAuth resolves the staff context for clerk-facing endpoints. A valid
// Bearer session token must map to a live staff row; the staff and hotel IDs
// are injected into the request context for handlers.
func StaffAuth(tokens *services.TokenService, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "error.unauthorized", "message": "missing bearer token"},
			})
			return
		}

		claims, ok := tokens.VerifyStaffSession(strings.TrimPrefix(header, "Bearer "))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "error.unauthorized", "message": "invalid or expired session"},
			})
			return
		}

		var staff models.Staff
		if err := db.First(&staff, claims.StaffID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"code": "error.unauthorized", "message": "unknown staff account"},
			})
			return
		}

		c.Set(ContextStaffID, staff.ID)
		c.Set(ContextHotelID, staff.HotelID)
		c.Next()
	}
}

// HotelID returns the authenticated staff's hotel scope.
func HotelID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextHotelID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// StaffID returns the authenticated staff account id.
func StaffID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextStaffID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
