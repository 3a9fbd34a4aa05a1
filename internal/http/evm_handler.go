package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/http/middleware"
)

type costPostingRequest struct {
	WBSElementID string          `json:"wbs_element_id"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	PostedAt     string          `json:"posted_at" binding:"required"`
}

func (h *Handler) recordActualCost(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	accountID, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req costPostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	wbsElementID, err := parseOptionalUUID(req.WBSElementID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wbs_element_id"})
		return
	}
	postedAt, err := parseDate(req.PostedAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid posted_at"})
		return
	}

	posting, err := h.evm.RecordActualCost(c.Request.Context(), accountID, wbsElementID, req.Amount, req.Description, postedAt, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, posting)
}

type generateEVMRequest struct {
	Year  int `json:"year" binding:"required"`
	Month int `json:"month" binding:"required"`
}

func (h *Handler) generateMonthlyEVM(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	projectID, ok := parsePathUUID(c, "project_id")
	if !ok {
		return
	}

	var req generateEVMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.evm.GenerateMonthlyEVM(c.Request.Context(), projectID, req.Year, time.Month(req.Month), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"records":  result.Records,
		"warnings": result.Warnings,
	})
}

func (h *Handler) projectEVMSummary(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	projectID, ok := parsePathUUID(c, "project_id")
	if !ok {
		return
	}
	asOf, ok := parseAsOfQuery(c)
	if !ok {
		return
	}

	summary, err := h.evm.ProjectSummary(c.Request.Context(), projectID, asOf, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) accountEVMSeries(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	accountID, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	records, err := h.evm.AccountSeries(c.Request.Context(), accountID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) exportPerformanceReport(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	projectID, ok := parsePathUUID(c, "project_id")
	if !ok {
		return
	}
	asOf, ok := parseAsOfQuery(c)
	if !ok {
		return
	}

	result, err := h.exports.ExportPerformanceReport(c.Request.Context(), projectID, asOf, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentType, result.Content)
}

// parseAsOfQuery reads the optional as_of query parameter, defaulting to now.
func parseAsOfQuery(c *gin.Context) (time.Time, bool) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Now().UTC(), true
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), true
	}
	asOf, err := parseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of"})
		return time.Time{}, false
	}
	return asOf, true
}
