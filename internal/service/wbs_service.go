package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/openpmo/costcontrol/internal/model"
)

// WBSRepository is the persistence boundary for work-breakdown elements. All
// read methods exclude soft-deleted rows.
type WBSRepository interface {
	GetElement(ctx context.Context, id uuid.UUID) (*model.WBSElement, error)
	GetElementByCode(ctx context.Context, projectID uuid.UUID, code string) (*model.WBSElement, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.WBSElement, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.WBSElement, error)
	CreateElement(ctx context.Context, element model.WBSElement) (*model.WBSElement, error)
	UpdateElement(ctx context.Context, element model.WBSElement) error
	UpdatePositions(ctx context.Context, parentID uuid.UUID, ids []uuid.UUID) error
	SoftDeleteElement(ctx context.Context, id uuid.UUID, by uuid.UUID) error
	CountActiveChildren(ctx context.Context, id uuid.UUID) (int64, error)
	CountBudgetItemRefs(ctx context.Context, wbsElementID uuid.UUID) (int64, error)
	CountAllocationRefs(ctx context.Context, wbsElementID uuid.UUID) (int64, error)
}

type WBSService struct {
	repo WBSRepository
}

func NewWBSService(repo WBSRepository) *WBSService {
	return &WBSService{repo: repo}
}

type CreateElementInput struct {
	ProjectID uuid.UUID
	ParentID  *uuid.UUID
	Type      model.WBSElementType
	Code      string
	Name      string
	Principal model.Principal
}

func (s *WBSService) CreateElement(ctx context.Context, input CreateElementInput) (*model.WBSElement, error) {
	if !input.Principal.HasProjectAccess(input.ProjectID, model.RoleProjectManager) {
		return nil, ErrPermissionDenied
	}
	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown element type %q", ErrValidation, input.Type)
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	if input.ParentID == nil {
		if input.Type != model.WBSTypeProject {
			return nil, fmt.Errorf("%w: invalid hierarchy: only a project element may be a root", ErrValidation)
		}
	} else {
		parent, err := s.repo.GetElement(ctx, *input.ParentID)
		if err != nil {
			return nil, mapRepoErr(err)
		}
		if !parent.Type.CanHaveChildren() {
			return nil, fmt.Errorf("%w: invalid hierarchy: %s elements cannot have children", ErrValidation, parent.Type)
		}
		if parent.ProjectID != input.ProjectID {
			return nil, fmt.Errorf("%w: parent belongs to a different project", ErrValidation)
		}
	}

	existing, err := s.repo.GetElementByCode(ctx, input.ProjectID, code)
	if err != nil && !errors.Is(mapRepoErr(err), ErrNotFound) {
		return nil, mapRepoErr(err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: duplicate code %q in project", ErrValidation, code)
	}

	position := 0
	if input.ParentID != nil {
		siblings, err := s.repo.ListChildren(ctx, *input.ParentID)
		if err != nil {
			return nil, mapRepoErr(err)
		}
		position = len(siblings)
	}

	element := model.WBSElement{
		ID:        uuid.New(),
		ProjectID: input.ProjectID,
		ParentID:  input.ParentID,
		Type:      input.Type,
		Code:      code,
		Name:      strings.TrimSpace(input.Name),
		Position:  position,
		Status:    model.WBSStatusNotStarted,
	}
	element.CreatedBy = input.Principal.UserID

	created, err := s.repo.CreateElement(ctx, element)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return created, nil
}

// Move reparents an element. A parent assignment that would make the element
// its own ancestor is rejected, which keeps the tree acyclic and every
// traversal finite.
func (s *WBSService) Move(ctx context.Context, id, newParentID uuid.UUID, principal model.Principal) error {
	element, err := s.repo.GetElement(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(element.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}
	if id == newParentID {
		return fmt.Errorf("%w: element cannot be its own parent", ErrInvariantViolation)
	}

	parent, err := s.repo.GetElement(ctx, newParentID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !parent.Type.CanHaveChildren() {
		return fmt.Errorf("%w: invalid hierarchy: %s elements cannot have children", ErrValidation, parent.Type)
	}
	if parent.ProjectID != element.ProjectID {
		return fmt.Errorf("%w: cannot move across projects", ErrValidation)
	}

	// Walk up from the new parent; finding the moved element means the
	// assignment would create a cycle.
	cursor := parent
	for cursor.ParentID != nil {
		if *cursor.ParentID == id {
			return fmt.Errorf("%w: move would make element its own ancestor", ErrInvariantViolation)
		}
		cursor, err = s.repo.GetElement(ctx, *cursor.ParentID)
		if err != nil {
			return mapRepoErr(err)
		}
	}

	siblings, err := s.repo.ListChildren(ctx, newParentID)
	if err != nil {
		return mapRepoErr(err)
	}

	element.ParentID = &newParentID
	element.Position = len(siblings)
	element.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateElement(ctx, *element))
}

// Reorder renumbers the children of parentID to match orderedIDs. The update
// is atomic: either all siblings are renumbered or none are.
func (s *WBSService) Reorder(ctx context.Context, parentID uuid.UUID, orderedIDs []uuid.UUID, principal model.Principal) error {
	parent, err := s.repo.GetElement(ctx, parentID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(parent.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}

	children, err := s.repo.ListChildren(ctx, parentID)
	if err != nil {
		return mapRepoErr(err)
	}
	if len(orderedIDs) != len(children) {
		return fmt.Errorf("%w: reorder must list all %d children, got %d", ErrValidation, len(children), len(orderedIDs))
	}
	current := make(map[uuid.UUID]struct{}, len(children))
	for _, child := range children {
		current[child.ID] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if _, ok := current[id]; !ok {
			return fmt.Errorf("%w: element %s is not a child of %s", ErrValidation, id, parentID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: element %s listed twice", ErrValidation, id)
		}
		seen[id] = struct{}{}
	}

	return mapRepoErr(s.repo.UpdatePositions(ctx, parentID, orderedIDs))
}

// Delete soft-deletes an element. Active children or financial references
// block the delete so audit trails stay intact.
func (s *WBSService) Delete(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	element, err := s.repo.GetElement(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(element.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}

	children, err := s.repo.CountActiveChildren(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if children > 0 {
		return fmt.Errorf("%w: element has %d active children", ErrDependencyBlocked, children)
	}
	budgetRefs, err := s.repo.CountBudgetItemRefs(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if budgetRefs > 0 {
		return fmt.Errorf("%w: element is referenced by %d budget items", ErrDependencyBlocked, budgetRefs)
	}
	allocationRefs, err := s.repo.CountAllocationRefs(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if allocationRefs > 0 {
		return fmt.Errorf("%w: element is referenced by %d commitment allocations", ErrDependencyBlocked, allocationRefs)
	}

	return mapRepoErr(s.repo.SoftDeleteElement(ctx, id, principal.UserID))
}

// Traverse returns the project tree depth-first: parent before children,
// siblings in position order. Repeated traversal of an unmodified tree yields
// the same sequence.
func (s *WBSService) Traverse(ctx context.Context, projectID uuid.UUID, principal model.Principal) ([]model.WBSElement, error) {
	if !principal.HasProjectAccess(projectID, model.RoleViewer) {
		return nil, ErrPermissionDenied
	}

	elements, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	byParent := make(map[uuid.UUID][]model.WBSElement)
	var roots []model.WBSElement
	for _, element := range elements {
		if element.ParentID == nil {
			roots = append(roots, element)
			continue
		}
		byParent[*element.ParentID] = append(byParent[*element.ParentID], element)
	}
	sortSiblings(roots)
	for parent := range byParent {
		sortSiblings(byParent[parent])
	}

	ordered := make([]model.WBSElement, 0, len(elements))
	var walk func(node model.WBSElement)
	walk = func(node model.WBSElement) {
		ordered = append(ordered, node)
		for _, child := range byParent[node.ID] {
			walk(child)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return ordered, nil
}

func sortSiblings(siblings []model.WBSElement) {
	sort.SliceStable(siblings, func(i, j int) bool {
		if siblings[i].Position != siblings[j].Position {
			return siblings[i].Position < siblings[j].Position
		}
		return siblings[i].Code < siblings[j].Code
	})
}
