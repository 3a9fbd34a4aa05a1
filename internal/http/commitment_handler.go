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

type commitmentTransitionFunc func(ctx context.Context, id uuid.UUID, principal model.Principal) error

type createCommitmentRequest struct {
	ProjectID         string          `json:"project_id" binding:"required"`
	ControlAccountID  string          `json:"control_account_id"`
	ContractorID      string          `json:"contractor_id"`
	Number            string          `json:"number" binding:"required"`
	Title             string          `json:"title"`
	IsFixedPrice      bool            `json:"is_fixed_price"`
	IsTimeAndMaterial bool            `json:"is_time_and_material"`
	ContractDate      string          `json:"contract_date" binding:"required"`
	StartDate         string          `json:"start_date" binding:"required"`
	EndDate           string          `json:"end_date" binding:"required"`
	Currency          string          `json:"currency"`
	OriginalAmount    decimal.Decimal `json:"original_amount"`
}

func (h *Handler) createCommitment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID, err := parseUUID(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return
	}
	controlAccountID, err := parseOptionalUUID(req.ControlAccountID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid control_account_id"})
		return
	}
	contractorID, err := parseOptionalUUID(req.ContractorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contractor_id"})
		return
	}
	contractDate, err := parseDate(req.ContractDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract_date"})
		return
	}
	startDate, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
		return
	}

	commitment, err := h.commitments.Create(c.Request.Context(), service.CreateCommitmentInput{
		ProjectID:         projectID,
		ControlAccountID:  controlAccountID,
		ContractorID:      contractorID,
		Number:            req.Number,
		Title:             req.Title,
		IsFixedPrice:      req.IsFixedPrice,
		IsTimeAndMaterial: req.IsTimeAndMaterial,
		ContractDate:      contractDate,
		StartDate:         startDate,
		EndDate:           endDate,
		Currency:          req.Currency,
		OriginalAmount:    req.OriginalAmount,
		Principal:         principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, commitment)
}

type commitmentItemRequest struct {
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

func (h *Handler) addCommitmentItem(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req commitmentItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.commitments.AddItem(c.Request.Context(), service.CommitmentItemInput{
		CommitmentID: id,
		Description:  req.Description,
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		Discount:     req.Discount,
		TaxRate:      req.TaxRate,
		Principal:    principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) submitCommitment(c *gin.Context) {
	h.commitmentTransition(c, h.commitments.SubmitForApproval)
}

func (h *Handler) approveCommitment(c *gin.Context) {
	h.commitmentTransition(c, h.commitments.Approve)
}

func (h *Handler) activateCommitment(c *gin.Context) {
	h.commitmentTransition(c, h.commitments.Activate)
}

func (h *Handler) closeCommitment(c *gin.Context) {
	h.commitmentTransition(c, h.commitments.Close)
}

func (h *Handler) commitmentTransition(c *gin.Context, transition commitmentTransitionFunc) {
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

func (h *Handler) rejectCommitment(c *gin.Context) {
	h.commitmentWithReason(c, h.commitments.Reject)
}

func (h *Handler) cancelCommitment(c *gin.Context) {
	h.commitmentWithReason(c, h.commitments.Cancel)
}

func (h *Handler) commitmentWithReason(c *gin.Context, apply func(ctx context.Context, id uuid.UUID, reason string, principal model.Principal) error) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := apply(c.Request.Context(), id, req.Reason, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reviseCommitmentRequest struct {
	NewAmount      decimal.Decimal `json:"new_amount"`
	Reason         string          `json:"reason" binding:"required"`
	ChangeOrderRef string          `json:"change_order_ref"`
}

func (h *Handler) reviseCommitment(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req reviseCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	revision, err := h.commitments.Revise(c.Request.Context(), id, req.NewAmount, req.Reason, req.ChangeOrderRef, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, revision)
}

type allocationRequest struct {
	WBSElementID string          `json:"wbs_element_id" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
}

func (h *Handler) addCommitmentAllocation(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req allocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wbsElementID, err := parseUUID(req.WBSElementID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wbs_element_id"})
		return
	}

	allocation, err := h.commitments.AddWorkPackageAllocation(c.Request.Context(), id, wbsElementID, req.Amount, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, allocation)
}

type invoiceRequest struct {
	InvoiceAmount   decimal.Decimal `json:"invoice_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	RetentionAmount decimal.Decimal `json:"retention_amount"`
}

func (h *Handler) recordCommitmentInvoice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.commitments.RecordInvoice(c.Request.Context(), id, req.InvoiceAmount, req.PaidAmount, req.RetentionAmount, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"commitment":        result.Commitment,
		"is_over_committed": result.IsOverCommitted,
	})
}

func (h *Handler) exportCommitmentDocument(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.exports.ExportCommitmentDocument(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}
