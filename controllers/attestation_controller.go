package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"attestation-backend/middleware"
	"attestation-backend/services"

	"github.com/gin-gonic/gin"
)

// ---------------------------
// Payload / DTOs
// ---------------------------

type SendAttestationPayload struct {
	FullName      string `json:"fullName" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	LicenseNumber string `json:"licenseNumber"`
	LicenseState  string `json:"licenseState"`
	CheckIn       string `json:"checkIn" binding:"required"`
	CheckOut      string `json:"checkOut" binding:"required"`
	CardLast4     string `json:"ccLast4" binding:"required"`
	PolicyText    string `json:"policyText"`
	RequestID     string `json:"requestId"`
}

type VerifyCodePayload struct {
	Code string `json:"code" binding:"required"`
}

// ---------------------------
// Controller
// ---------------------------

type AttestationController struct {
	Svc    *services.AttestationService
	Events *services.AttestationEventService
	Policy *services.PolicyService
}

func NewAttestationController(svc *services.AttestationService, events *services.AttestationEventService, policy *services.PolicyService) *AttestationController {
	return &AttestationController{Svc: svc, Events: events, Policy: policy}
}

func requireHotelID(c *gin.Context) (uint, bool) {
	hotelID, ok := middleware.HotelID(c)
	if !ok || hotelID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{"code": "error.unauthorized", "message": "no hotel context"},
		})
		return 0, false
	}
	return hotelID, true
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	return t, err == nil
}

// POST /api/attestations
func (ctrl *AttestationController) Send(c *gin.Context) {
	hotelID, ok := requireHotelID(c)
	if !ok {
		return
	}

	var payload SendAttestationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "error.invalidPayload",
				"message": "missing required check-in fields",
				"details": err.Error(),
			},
		})
		return
	}

	var badDates []string
	checkIn, ok := parseDate(payload.CheckIn)
	if !ok {
		badDates = append(badDates, "checkIn")
	}
	checkOut, ok := parseDate(payload.CheckOut)
	if !ok {
		badDates = append(badDates, "checkOut")
	}
	if len(badDates) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "error.validation",
				"message": "dates must be YYYY-MM-DD",
				"fields":  badDates,
			},
		})
		return
	}

	policyText := strings.TrimSpace(payload.PolicyText)
	if policyText == "" {
		// Staff form can omit the text to use the current template.
		latest, err := ctrl.Policy.Latest()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "error.validation", "message": "no policy text provided and no template configured", "fields": []string{"policyText"}},
			})
			return
		}
		policyText = latest.Body
	}

	// Header takes precedence over the body field for deduplication keys.
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if idemKey == "" {
		idemKey = strings.TrimSpace(payload.RequestID)
	}

	result, err := ctrl.Svc.Send(hotelID, services.SendInput{
		Guest: services.GuestInput{
			FullName:      payload.FullName,
			Phone:         payload.Phone,
			LicenseNumber: payload.LicenseNumber,
			LicenseState:  payload.LicenseState,
		},
		Stay: services.StayInput{
			CheckIn:   checkIn,
			CheckOut:  checkOut,
			CardLast4: payload.CardLast4,
		},
		PolicyText:     policyText,
		IdempotencyKey: idemKey,
	})

	if err != nil {
		var vErr *services.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "error.validation",
					"message": "one or more fields are invalid",
					"fields":  vErr.Fields,
				},
			})
			return

		case errors.Is(err, services.ErrNotifyFailed):
			// Attestation exists; staff relay the link and code manually.
			c.JSON(http.StatusPartialContent, gin.H{
				"status": "warning",
				"data": gin.H{
					"attestationId": result.Attestation.ID,
					"guestId":       result.Attestation.GuestID,
					"guestUrl":      result.GuestURL,
					"code":          result.Code,
				},
				"error": gin.H{
					"code":    "error.smsSendFailed",
					"message": "attestation created but the SMS could not be sent",
				},
			})
			return

		default:
			log.Printf("SendAttestation error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"code": "error.internal", "message": "failed to create attestation"},
			})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"attestationId": result.Attestation.ID,
		"guestId":       result.Attestation.GuestID,
		"guestUrl":      result.GuestURL,
		"code":          result.Code,
	})
}

// POST /api/attestations/:id/verify
func (ctrl *AttestationController) VerifyCode(c *gin.Context) {
	hotelID, ok := requireHotelID(c)
	if !ok {
		return
	}

	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "error.invalidPayload", "message": "attestation id must be numeric"},
		})
		return
	}

	var payload VerifyCodePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "error.invalidPayload", "message": "code is required"},
		})
		return
	}

	result, err := ctrl.Svc.VerifyClerkCode(hotelID, uint(id64), payload.Code)
	if err != nil {
		if errors.Is(err, services.ErrAttestationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "error.attestationNotFound", "message": "attestation not found"},
			})
			return
		}
		log.Printf("VerifyClerkCode error for attestation %d: %v", id64, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "error.internal", "message": "verification failed"},
		})
		return
	}

	if !result.OK {
		c.JSON(http.StatusOK, gin.H{"ok": false, "reason": result.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "verifiedAt": result.VerifiedAt})
}

// GET /api/attestations
func (ctrl *AttestationController) List(c *gin.Context) {
	hotelID, ok := requireHotelID(c)
	if !ok {
		return
	}

	attestations, err := ctrl.Svc.ListByHotel(hotelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "error.internal", "message": "failed to load attestations"},
		})
		return
	}
	c.JSON(http.StatusOK, attestations)
}

// GET /api/attestations/:id
func (ctrl *AttestationController) Get(c *gin.Context) {
	hotelID, ok := requireHotelID(c)
	if !ok {
		return
	}

	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "error.invalidPayload", "message": "attestation id must be numeric"},
		})
		return
	}

	att, err := ctrl.Svc.GetByID(hotelID, uint(id64))
	if err != nil {
		if errors.Is(err, services.ErrAttestationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "error.attestationNotFound", "message": "attestation not found"},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "error.internal", "message": "failed to load attestation"},
		})
		return
	}
	c.JSON(http.StatusOK, att)
}

// GET /api/attestations/:id/events
func (ctrl *AttestationController) ListEvents(c *gin.Context) {
	hotelID, ok := requireHotelID(c)
	if !ok {
		return
	}

	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "error.invalidPayload", "message": "attestation id must be numeric"},
		})
		return
	}

	// Scope check before exposing the trail.
	if _, err := ctrl.Svc.GetByID(hotelID, uint(id64)); err != nil {
		if errors.Is(err, services.ErrAttestationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "error.attestationNotFound", "message": "attestation not found"},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "error.internal", "message": "failed to load attestation"},
		})
		return
	}

	events, err := ctrl.Events.ListByAttestation(uint(id64))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "error.internal", "message": "failed to load events"},
		})
		return
	}
	c.JSON(http.StatusOK, events)
}
