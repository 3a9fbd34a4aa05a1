package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/http/middleware"
	"github.com/openpmo/costcontrol/internal/model"
	"github.com/openpmo/costcontrol/internal/service"
)

type accountTransitionFunc func(ctx context.Context, id uuid.UUID, principal model.Principal) error

type createControlAccountRequest struct {
	ProjectID          string          `json:"project_id" binding:"required"`
	PhaseID            string          `json:"phase_id" binding:"required"`
	WBSElementID       string          `json:"wbs_element_id" binding:"required"`
	CAMUserID          string          `json:"cam_user_id" binding:"required"`
	Code               string          `json:"code" binding:"required"`
	Name               string          `json:"name" binding:"required"`
	BAC                decimal.Decimal `json:"bac"`
	ContingencyReserve decimal.Decimal `json:"contingency_reserve"`
	ManagementReserve  decimal.Decimal `json:"management_reserve"`
	Method             string          `json:"method" binding:"required"`
}

func (h *Handler) createControlAccount(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createControlAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID, err := parseUUID(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return
	}
	phaseID, err := parseUUID(req.PhaseID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phase_id"})
		return
	}
	wbsElementID, err := parseUUID(req.WBSElementID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wbs_element_id"})
		return
	}
	camUserID, err := parseUUID(req.CAMUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cam_user_id"})
		return
	}

	account, err := h.accounts.Create(c.Request.Context(), service.CreateControlAccountInput{
		ProjectID:          projectID,
		PhaseID:            phaseID,
		WBSElementID:       wbsElementID,
		CAMUserID:          camUserID,
		Code:               req.Code,
		Name:               req.Name,
		BAC:                req.BAC,
		ContingencyReserve: req.ContingencyReserve,
		ManagementReserve:  req.ManagementReserve,
		Method:             model.MeasurementMethod(req.Method),
		Principal:          principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

type updateProgressRequest struct {
	PercentComplete decimal.Decimal `json:"percent_complete"`
}

func (h *Handler) updateAccountProgress(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req updateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.accounts.UpdateProgress(c.Request.Context(), id, req.PercentComplete, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) baselineAccount(c *gin.Context) {
	h.accountTransition(c, h.accounts.Baseline)
}

func (h *Handler) unbaselineAccount(c *gin.Context) {
	h.accountTransition(c, h.accounts.Unbaseline)
}

func (h *Handler) closeAccount(c *gin.Context) {
	h.accountTransition(c, h.accounts.Close)
}

func (h *Handler) accountTransition(c *gin.Context, transition accountTransitionFunc) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	if err := transition(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
