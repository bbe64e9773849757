package controllers

import (
	"net/http"

	"attestation-backend/services"

	"github.com/gin-gonic/gin"
)

// CheckinController serves the public guest-facing endpoints reached from
// the SMS link. Failures are always the same neutral shape: a guest (or an
// attacker probing tokens) learns nothing about why a link did not work.

type InitSessionPayload struct {
	Token string `json:"token" binding:"required"`
}

type ConfirmConsentPayload struct {
	Token    string `json:"token" binding:"required"`
	Accepted *bool  `json:"accepted" binding:"required"`
}

type CheckinController struct {
	Svc *services.AttestationService
}

func NewCheckinController(svc *services.AttestationService) *CheckinController {
	return &CheckinController{Svc: svc}
}

func clientMeta(c *gin.Context) services.ClientMeta {
	return services.ClientMeta{
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Geolocation: c.GetHeader("X-Geolocation"),
	}
}

// POST /api/checkin/session
func (ctrl *CheckinController) InitSession(c *gin.Context) {
	var payload InitSessionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	policyText, ok := ctrl.Svc.InitGuestSession(payload.Token, clientMeta(c))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "policyText": policyText})
}

// POST /api/checkin/consent
func (ctrl *CheckinController) ConfirmConsent(c *gin.Context) {
	var payload ConfirmConsentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false})
		return
	}

	code, ok := ctrl.Svc.ConfirmConsent(payload.Token, *payload.Accepted, clientMeta(c))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "code": code})
}
