package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openpmo/costcontrol/internal/http/middleware"
	"github.com/openpmo/costcontrol/internal/model"
	"github.com/openpmo/costcontrol/internal/service"
)

type createWBSElementRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	ParentID  string `json:"parent_id"`
	Type      string `json:"type" binding:"required"`
	Code      string `json:"code" binding:"required"`
	Name      string `json:"name" binding:"required"`
}

func (h *Handler) createWBSElement(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createWBSElementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projectID, err := parseUUID(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id"})
		return
	}
	parentID, err := parseOptionalUUID(req.ParentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent_id"})
		return
	}

	element, err := h.wbs.CreateElement(c.Request.Context(), service.CreateElementInput{
		ProjectID: projectID,
		ParentID:  parentID,
		Type:      model.WBSElementType(req.Type),
		Code:      req.Code,
		Name:      req.Name,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, element)
}

func (h *Handler) traverseWBS(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	projectID, ok := parsePathUUID(c, "project_id")
	if !ok {
		return
	}

	elements, err := h.wbs.Traverse(c.Request.Context(), projectID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"elements": elements})
}

type moveWBSElementRequest struct {
	NewParentID string `json:"new_parent_id" binding:"required"`
}

func (h *Handler) moveWBSElement(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req moveWBSElementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newParentID, err := parseUUID(req.NewParentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid new_parent_id"})
		return
	}

	if err := h.wbs.Move(c.Request.Context(), id, newParentID, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type reorderWBSChildrenRequest struct {
	OrderedIDs []string `json:"ordered_ids" binding:"required"`
}

func (h *Handler) reorderWBSChildren(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	parentID, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	var req reorderWBSChildrenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	orderedIDs := make([]uuid.UUID, 0, len(req.OrderedIDs))
	for _, raw := range req.OrderedIDs {
		id, err := parseUUID(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id in ordered_ids"})
			return
		}
		orderedIDs = append(orderedIDs, id)
	}

	if err := h.wbs.Reorder(c.Request.Context(), parentID, orderedIDs, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteWBSElement(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	id, ok := parsePathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.wbs.Delete(c.Request.Context(), id, principal); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
