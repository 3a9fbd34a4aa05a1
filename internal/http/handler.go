package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openpmo/costcontrol/internal/service"
)

type Handler struct {
	wbs          *service.WBSService
	accounts     *service.ControlAccountService
	budgets      *service.BudgetService
	conversions  *service.ConversionService
	workPackages *service.WorkPackageService
	commitments  *service.CommitmentService
	evm          *service.EVMService
	exports      *service.ExportService
	log          zerolog.Logger
}

func NewHandler(
	wbs *service.WBSService,
	accounts *service.ControlAccountService,
	budgets *service.BudgetService,
	conversions *service.ConversionService,
	workPackages *service.WorkPackageService,
	commitments *service.CommitmentService,
	evm *service.EVMService,
	exports *service.ExportService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		wbs:          wbs,
		accounts:     accounts,
		budgets:      budgets,
		conversions:  conversions,
		workPackages: workPackages,
		commitments:  commitments,
		evm:          evm,
		exports:      exports,
		log:          log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/wbs", h.createWBSElement)
	protected.GET("/projects/:project_id/wbs", h.traverseWBS)
	protected.POST("/wbs/:id/move", h.moveWBSElement)
	protected.POST("/wbs/:id/reorder", h.reorderWBSChildren)
	protected.DELETE("/wbs/:id", h.deleteWBSElement)

	protected.POST("/control-accounts", h.createControlAccount)
	protected.PATCH("/control-accounts/:id/progress", h.updateAccountProgress)
	protected.POST("/control-accounts/:id/baseline", h.baselineAccount)
	protected.POST("/control-accounts/:id/unbaseline", h.unbaselineAccount)
	protected.POST("/control-accounts/:id/close", h.closeAccount)

	protected.POST("/budgets", h.createBudget)
	protected.POST("/budgets/:id/items", h.addBudgetItem)
	protected.PATCH("/budget-items/:id", h.updateBudgetItem)
	protected.DELETE("/budget-items/:id", h.removeBudgetItem)
	protected.POST("/budgets/:id/submit", h.submitBudget)
	protected.POST("/budgets/:id/approve", h.approveBudget)
	protected.POST("/budgets/:id/reject", h.rejectBudget)
	protected.POST("/budgets/:id/return-to-draft", h.returnBudgetToDraft)
	protected.POST("/budgets/:id/baseline", h.baselineBudget)
	protected.POST("/budgets/:id/lock", h.lockBudget)
	protected.POST("/budgets/:id/revisions", h.createBudgetRevision)
	protected.POST("/budgets/:id/close-revision-window", h.closeRevisionWindow)

	protected.POST("/planning-packages/:id/advance", h.advancePlanningPackage)
	protected.POST("/planning-packages/:id/convert", h.convertPlanningPackage)
	protected.POST("/work-packages/group", h.groupWorkPackages)
	protected.PATCH("/work-packages/:id/progress", h.updateWorkPackageProgress)
	protected.PATCH("/work-packages/:id/status", h.setWorkPackageStatus)

	protected.POST("/commitments", h.createCommitment)
	protected.POST("/commitments/:id/items", h.addCommitmentItem)
	protected.POST("/commitments/:id/submit", h.submitCommitment)
	protected.POST("/commitments/:id/approve", h.approveCommitment)
	protected.POST("/commitments/:id/reject", h.rejectCommitment)
	protected.POST("/commitments/:id/activate", h.activateCommitment)
	protected.POST("/commitments/:id/revisions", h.reviseCommitment)
	protected.POST("/commitments/:id/allocations", h.addCommitmentAllocation)
	protected.POST("/commitments/:id/invoices", h.recordCommitmentInvoice)
	protected.POST("/commitments/:id/close", h.closeCommitment)
	protected.POST("/commitments/:id/cancel", h.cancelCommitment)
	protected.GET("/commitments/:id/document", h.exportCommitmentDocument)

	protected.POST("/control-accounts/:id/cost-postings", h.recordActualCost)
	protected.GET("/control-accounts/:id/evm", h.accountEVMSeries)
	protected.POST("/projects/:project_id/evm/generate", h.generateMonthlyEVM)
	protected.GET("/projects/:project_id/evm/summary", h.projectEVMSummary)
	protected.POST("/projects/:project_id/evm/export", h.exportPerformanceReport)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDependencyBlocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvariantViolation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parsePathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(raw))
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrValidation
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrValidation
}
