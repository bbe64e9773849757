package controllers

import (
	"net/http"
	"strings"

	"attestation-backend/middleware"
	"attestation-backend/models"
	"attestation-backend/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthController struct {
	DB     *gorm.DB
	Tokens *services.TokenService
}

func NewAuthController(db *gorm.DB, tokens *services.TokenService) *AuthController {
	return &AuthController{DB: db, Tokens: tokens}
}

// POST /api/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	username := strings.TrimSpace(payload.Username)
	password := payload.Password
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	var staff models.Staff
	if err := ctrl.DB.Where("username = ?", username).First(&staff).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(staff.Password), []byte(password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := ctrl.Tokens.IssueStaffSession(staff.ID, staff.HotelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate session token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"staff": gin.H{
			"id":        staff.ID,
			"hotel_id":  staff.HotelID,
			"full_name": staff.FullName,
			"username":  staff.Username,
		},
	})
}

// GET /api/auth/me
func (ctrl *AuthController) Me(c *gin.Context) {
	staffID, ok := middleware.StaffID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no staff context"})
		return
	}

	var staff models.Staff
	if err := ctrl.DB.First(&staff, staffID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown staff account"})
		return
	}
	c.JSON(http.StatusOK, staff)
}
