package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"attestation-backend/models"
	"attestation-backend/services"
	"attestation-backend/utils"

	"github.com/gin-gonic/gin"
)

// PolicyController manages the consent policy templates staff start from.
type PolicyController struct {
	Svc *services.PolicyService
}

func NewPolicyController(svc *services.PolicyService) *PolicyController {
	return &PolicyController{Svc: svc}
}

// GET /api/policies
func (ctrl *PolicyController) List(c *gin.Context) {
	policies, err := ctrl.Svc.List()
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to load policies")
		return
	}
	utils.JSONSuccess(c, http.StatusOK, policies)
}

// POST /api/policies
func (ctrl *PolicyController) Create(c *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required"`
		Slug    string `json:"slug" binding:"required"`
		Body    string `json:"body" binding:"required"`
		Version string `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid payload")
		return
	}

	policy := models.Policy{
		Title:   req.Title,
		Slug:    req.Slug,
		Body:    req.Body,
		Version: strings.TrimSpace(req.Version),
	}
	if err := ctrl.Svc.Create(&policy); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to create policy")
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, policy)
}

// DELETE /api/policies/:id
func (ctrl *PolicyController) Delete(c *gin.Context) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "policy id must be numeric")
		return
	}
	if err := ctrl.Svc.Delete(uint(id64)); err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to delete policy")
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"message": "policy deleted"})
}
