package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/http/middleware"
	"github.com/openpmo/costcontrol/internal/model"
	"github.com/openpmo/costcontrol/internal/service"
)

func (h *Handler) advancePlanningPackage(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.workPackages.AdvancePlanningPackage(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type workPackageCandidateRequest struct {
	Code             string          `json:"code" binding:"required"`
	Name             string          `json:"name" binding:"required"`
	Budget           decimal.Decimal `json:"budget"`
	PlannedStartDate string          `json:"planned_start_date" binding:"required"`
	PlannedEndDate   string          `json:"planned_end_date" binding:"required"`
	PlannedHours     decimal.Decimal `json:"planned_hours"`
	Weight           decimal.Decimal `json:"weight"`
}

type convertPlanningPackageRequest struct {
	Candidates []workPackageCandidateRequest `json:"candidates" binding:"required"`
}

func (h *Handler) convertPlanningPackage(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req convertPlanningPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidates := make([]service.WorkPackageCandidate, 0, len(req.Candidates))
	for _, raw := range req.Candidates {
		start, err := parseDate(raw.PlannedStartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid planned_start_date"})
			return
		}
		end, err := parseDate(raw.PlannedEndDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid planned_end_date"})
			return
		}
		candidates = append(candidates, service.WorkPackageCandidate{
			Code:             raw.Code,
			Name:             raw.Name,
			Budget:           raw.Budget,
			PlannedStartDate: start,
			PlannedEndDate:   end,
			PlannedHours:     raw.PlannedHours,
			Weight:           raw.Weight,
		})
	}

	packages, err := h.conversions.Convert(c.Request.Context(), service.ConvertInput{
		PlanningPackageID: id,
		Candidates:        candidates,
		Principal:         principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"work_packages": packages})
}

type groupWorkPackagesRequest struct {
	WorkPackageIDs   []string `json:"work_package_ids" binding:"required"`
	ControlAccountID string   `json:"control_account_id"`
	Code             string   `json:"code" binding:"required"`
	Name             string   `json:"name" binding:"required"`
}

func (h *Handler) groupWorkPackages(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req groupWorkPackagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids := make([]uuid.UUID, 0, len(req.WorkPackageIDs))
	for _, raw := range req.WorkPackageIDs {
		id, err := parseUUID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id in work_package_ids"})
			return
		}
		ids = append(ids, id)
	}

	// An absent control account id is passed through as the zero value so the
	// service can report the validation failure with context.
	controlAccountID := uuid.Nil
	if raw, err := parseOptionalUUID(req.ControlAccountID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid control_account_id"})
		return
	} else if raw != nil {
		controlAccountID = *raw
	}

	grouped, err := h.conversions.Group(c.Request.Context(), service.GroupInput{
		WorkPackageIDs:   ids,
		ControlAccountID: controlAccountID,
		Code:             req.Code,
		Name:             req.Name,
		Principal:        principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, grouped)
}

type workPackageProgressRequest struct {
	Progress    decimal.Decimal `json:"progress"`
	ActualHours decimal.Decimal `json:"actual_hours"`
	ActualCost  decimal.Decimal `json:"actual_cost"`
}

func (h *Handler) updateWorkPackageProgress(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req workPackageProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.workPackages.UpdateProgress(c.Request.Context(), service.ProgressInput{
		WorkPackageID: id,
		Progress:      req.Progress,
		ActualHours:   req.ActualHours,
		ActualCost:    req.ActualCost,
		Principal:     principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type workPackageStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) setWorkPackageStatus(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req workPackageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.workPackages.SetStatus(c.Request.Context(), id, model.WBSStatus(req.Status), principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
