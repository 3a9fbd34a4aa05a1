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

type budgetTransitionFunc func(ctx context.Context, id uuid.UUID, principal model.Principal) error

type createBudgetRequest struct {
	ProjectID         string          `json:"project_id" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	Currency          string          `json:"currency"`
	Contingency       decimal.Decimal `json:"contingency"`
	ManagementReserve decimal.Decimal `json:"management_reserve"`
}

func (h *Handler) createBudget(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	projectID, err := parseUUID(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return
	}

	budget, err := h.budgets.Create(c.Request.Context(), service.CreateBudgetInput{
		ProjectID:         projectID,
		Name:              req.Name,
		Currency:          req.Currency,
		Contingency:       req.Contingency,
		ManagementReserve: req.ManagementReserve,
		Principal:         principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, budget)
}

type budgetItemRequest struct {
	ControlAccountID string          `json:"control_account_id"`
	Description      string          `json:"description" binding:"required"`
	CostType         string          `json:"cost_type"`
	Category         string          `json:"category"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitRate         decimal.Decimal `json:"unit_rate"`
}

func (h *Handler) addBudgetItem(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	budgetID, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req budgetItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	controlAccountID, err := parseOptionalUUID(req.ControlAccountID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid control_account_id"})
		return
	}

	item, err := h.budgets.AddItem(c.Request.Context(), service.BudgetItemInput{
		BudgetID:         budgetID,
		ControlAccountID: controlAccountID,
		Description:      req.Description,
		CostType:         req.CostType,
		Category:         req.Category,
		Quantity:         req.Quantity,
		UnitRate:         req.UnitRate,
		Principal:        principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

type updateBudgetItemRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	UnitRate decimal.Decimal `json:"unit_rate"`
}

func (h *Handler) updateBudgetItem(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	itemID, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req updateBudgetItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.budgets.UpdateItem(c.Request.Context(), itemID, req.Quantity, req.UnitRate, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeBudgetItem(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	itemID, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.budgets.RemoveItem(c.Request.Context(), itemID, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) submitBudget(c *gin.Context) {
	h.budgetTransition(c, h.budgets.SubmitForApproval)
}

func (h *Handler) approveBudget(c *gin.Context) {
	h.budgetTransition(c, h.budgets.Approve)
}

func (h *Handler) returnBudgetToDraft(c *gin.Context) {
	h.budgetTransition(c, h.budgets.ReturnToDraft)
}

func (h *Handler) baselineBudget(c *gin.Context) {
	h.budgetTransition(c, h.budgets.SetAsBaseline)
}

func (h *Handler) lockBudget(c *gin.Context) {
	h.budgetTransition(c, h.budgets.Lock)
}

func (h *Handler) closeRevisionWindow(c *gin.Context) {
	h.budgetTransition(c, h.budgets.CloseRevisionWindow)
}

func (h *Handler) budgetTransition(c *gin.Context, transition budgetTransitionFunc) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	budgetID, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	if err := transition(c.Request.Context(), budgetID, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) rejectBudget(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	budgetID, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.budgets.Reject(c.Request.Context(), budgetID, req.Reason, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createBudgetRevisionRequest struct {
	Reason   string          `json:"reason" binding:"required"`
	NewTotal decimal.Decimal `json:"new_total"`
}

func (h *Handler) createBudgetRevision(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	budgetID, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req createBudgetRevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	revision, err := h.budgets.CreateRevision(c.Request.Context(), budgetID, req.Reason, req.NewTotal, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, revision)
}
