package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/config"
	"github.com/openpmo/costcontrol/internal/model"
)

// ConversionRepository is the persistence boundary for the planning/work
// package conversion paths. Batch methods are all-or-nothing: no intermediate
// state is observable outside the transaction.
type ConversionRepository interface {
	GetPlanningPackage(ctx context.Context, id uuid.UUID) (*model.PlanningPackage, error)
	GetWBSElement(ctx context.Context, id uuid.UUID) (*model.WBSElement, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]model.WBSElement, error)
	ConvertPlanningPackage(ctx context.Context, converted model.PlanningPackage, elements []model.WBSElement, packages []model.WorkPackage) error
	ListWorkPackagesByIDs(ctx context.Context, ids []uuid.UUID) ([]model.WorkPackage, error)
	GroupWorkPackages(ctx context.Context, grouped model.PlanningPackage, element model.WBSElement, retired []model.WorkPackage) error
}

type ConversionService struct {
	repo ConversionRepository
	cfg  *config.Config
}

func NewConversionService(repo ConversionRepository, cfg *config.Config) *ConversionService {
	return &ConversionService{repo: repo, cfg: cfg}
}

// WorkPackageCandidate describes one executable work package to be carved out
// of a planning package.
type WorkPackageCandidate struct {
	Code             string
	Name             string
	Budget           decimal.Decimal
	PlannedStartDate time.Time
	PlannedEndDate   time.Time
	PlannedHours     decimal.Decimal
	Weight           decimal.Decimal
}

type ConvertInput struct {
	PlanningPackageID uuid.UUID
	Candidates        []WorkPackageCandidate
	Principal         model.Principal
}

// Convert details a planning package into executable work packages. All
// validations are evaluated before any write and reported together; a failure
// leaves zero side effects.
func (s *ConversionService) Convert(ctx context.Context, input ConvertInput) ([]model.WorkPackage, error) {
	pp, err := s.repo.GetPlanningPackage(ctx, input.PlanningPackageID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !input.Principal.HasProjectAccess(pp.ProjectID, model.RoleProjectManager) {
		return nil, ErrPermissionDenied
	}
	if !pp.Status.Convertible() {
		return nil, fmt.Errorf("%w: planning package in status %s cannot be converted", ErrInvalidTransition, pp.Status)
	}
	if len(input.Candidates) == 0 {
		return nil, fmt.Errorf("%w: at least one work package candidate is required", ErrValidation)
	}

	var violations []string
	total := decimal.Zero
	for i, candidate := range input.Candidates {
		total = total.Add(candidate.Budget)
		if strings.TrimSpace(candidate.Name) == "" {
			violations = append(violations, fmt.Sprintf("candidate %d: name is required", i+1))
		}
		if strings.TrimSpace(candidate.Code) == "" {
			violations = append(violations, fmt.Sprintf("candidate %d: code is required", i+1))
		}
		if candidate.Budget.IsNegative() {
			violations = append(violations, fmt.Sprintf("candidate %d: budget must not be negative", i+1))
		}
		if !candidate.PlannedEndDate.After(candidate.PlannedStartDate) {
			violations = append(violations, fmt.Sprintf("candidate %d: planned end date must be after planned start date", i+1))
		}
		if candidate.Weight.IsNegative() || candidate.Weight.GreaterThan(decimal.NewFromInt(1)) {
			violations = append(violations, fmt.Sprintf("candidate %d: weight must be within [0,1]", i+1))
		}
	}
	if len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(violations, "; "))
	}

	diff := total.Sub(pp.Budget).Abs()
	if diff.GreaterThan(s.cfg.Policy.ConversionTolerance) {
		return nil, fmt.Errorf("%w: conservation failed: candidate budgets sum to %s, planning package holds %s",
			ErrInvariantViolation, total, pp.Budget)
	}

	parentElement, err := s.repo.GetWBSElement(ctx, pp.WBSElementID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	parentID := parentElement.ParentID
	if parentID == nil {
		return nil, fmt.Errorf("%w: planning package element has no parent to attach work packages under", ErrInvariantViolation)
	}
	// New leaves append after the parent's existing children, same as
	// CreateElement.
	siblings, err := s.repo.ListChildren(ctx, *parentID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	elements := make([]model.WBSElement, 0, len(input.Candidates))
	packages := make([]model.WorkPackage, 0, len(input.Candidates))
	for i, candidate := range input.Candidates {
		element := model.WBSElement{
			ID:        uuid.New(),
			ProjectID: pp.ProjectID,
			ParentID:  parentID,
			Type:      model.WBSTypeWorkPackage,
			Code:      strings.TrimSpace(candidate.Code),
			Name:      strings.TrimSpace(candidate.Name),
			Position:  len(siblings) + i,
			Status:    model.WBSStatusNotStarted,
			Budget:    candidate.Budget,
		}
		element.CreatedBy = input.Principal.UserID
		elements = append(elements, element)

		wp := model.WorkPackage{
			ID:               uuid.New(),
			ProjectID:        pp.ProjectID,
			WBSElementID:     element.ID,
			ControlAccountID: pp.ControlAccountID,
			Name:             element.Name,
			Budget:           candidate.Budget,
			Progress:         decimal.Zero,
			PlannedStartDate: candidate.PlannedStartDate,
			PlannedEndDate:   candidate.PlannedEndDate,
			PlannedHours:     candidate.PlannedHours,
			Weight:           candidate.Weight,
			Status:           model.WBSStatusNotStarted,
			Discipline:       pp.Discipline,
			ResponsibleUser:  pp.ResponsibleUser,
		}
		wp.CreatedBy = input.Principal.UserID
		packages = append(packages, wp)
	}

	// Converted planning packages keep their row for history but hold no
	// budget, so funds are never counted twice.
	converted := *pp
	converted.Status = model.PlanningConverted
	converted.Budget = decimal.Zero
	converted.UpdatedBy = &input.Principal.UserID

	if err := s.repo.ConvertPlanningPackage(ctx, converted, elements, packages); err != nil {
		return nil, mapRepoErr(err)
	}
	return packages, nil
}

type GroupInput struct {
	WorkPackageIDs []uuid.UUID
	// ControlAccountID must be supplied explicitly: the grouped package has
	// no schedule detail to derive it from.
	ControlAccountID uuid.UUID
	Code             string
	Name             string
	Principal        model.Principal
}

// Group is the reverse path: regroup undetailed future work packages back
// into a planning package under the same conservation rule.
func (s *ConversionService) Group(ctx context.Context, input GroupInput) (*model.PlanningPackage, error) {
	// Missing input is a validation failure, not NotFound.
	if input.ControlAccountID == uuid.Nil {
		return nil, fmt.Errorf("%w: control account id is required for grouping", ErrValidation)
	}
	if len(input.WorkPackageIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one work package is required", ErrValidation)
	}
	if strings.TrimSpace(input.Code) == "" || strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: code and name are required", ErrValidation)
	}

	packages, err := s.repo.ListWorkPackagesByIDs(ctx, input.WorkPackageIDs)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if len(packages) != len(input.WorkPackageIDs) {
		return nil, fmt.Errorf("%w: %d of %d work packages", ErrNotFound, len(input.WorkPackageIDs)-len(packages), len(input.WorkPackageIDs))
	}

	projectID := packages[0].ProjectID
	if !input.Principal.HasProjectAccess(projectID, model.RoleProjectManager) {
		return nil, ErrPermissionDenied
	}

	var violations []string
	for _, wp := range packages {
		if wp.ProjectID != projectID {
			violations = append(violations, fmt.Sprintf("work package %s belongs to a different project", wp.ID))
		}
		if wp.Status != model.WBSStatusNotStarted {
			violations = append(violations, fmt.Sprintf("work package %s has started (%s) and cannot be regrouped", wp.ID, wp.Status))
		}
		if !wp.ActualCost.IsZero() || !wp.ActualHours.IsZero() {
			violations = append(violations, fmt.Sprintf("work package %s has posted actuals", wp.ID))
		}
	}
	if len(violations) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrValidation, strings.Join(violations, "; "))
	}

	firstElement, err := s.repo.GetWBSElement(ctx, packages[0].WBSElementID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	parentID := firstElement.ParentID
	for _, wp := range packages[1:] {
		element, err := s.repo.GetWBSElement(ctx, wp.WBSElementID)
		if err != nil {
			return nil, mapRepoErr(err)
		}
		if (element.ParentID == nil) != (parentID == nil) || (parentID != nil && *element.ParentID != *parentID) {
			return nil, fmt.Errorf("%w: work packages must share the same parent element", ErrValidation)
		}
	}

	// Conservation in the opposite direction: the grouped budget is exactly
	// the sum of the regrouped work packages.
	total := model.WorkPackagesTotal(packages)
	start := packages[0].PlannedStartDate
	end := packages[0].PlannedEndDate
	for _, wp := range packages[1:] {
		if wp.PlannedStartDate.Before(start) {
			start = wp.PlannedStartDate
		}
		if wp.PlannedEndDate.After(end) {
			end = wp.PlannedEndDate
		}
	}

	element := model.WBSElement{
		ID:        uuid.New(),
		ProjectID: projectID,
		ParentID:  parentID,
		Type:      model.WBSTypePlanningPackage,
		Code:      strings.TrimSpace(input.Code),
		Name:      strings.TrimSpace(input.Name),
		Position:  firstElement.Position,
		Status:    model.WBSStatusNotStarted,
		Budget:    total,
	}
	element.CreatedBy = input.Principal.UserID

	grouped := model.PlanningPackage{
		ID:               uuid.New(),
		ProjectID:        projectID,
		WBSElementID:     element.ID,
		ControlAccountID: input.ControlAccountID,
		Name:             element.Name,
		Budget:           total,
		PlannedStartDate: start,
		PlannedEndDate:   end,
		Status:           model.PlanningFuture,
		Discipline:       packages[0].Discipline,
		ResponsibleUser:  packages[0].ResponsibleUser,
	}
	grouped.CreatedBy = input.Principal.UserID

	retired := make([]model.WorkPackage, 0, len(packages))
	for _, wp := range packages {
		wp.Status = model.WBSStatusCancelled
		wp.Budget = decimal.Zero
		wp.UpdatedBy = &input.Principal.UserID
		retired = append(retired, wp)
	}

	if err := s.repo.GroupWorkPackages(ctx, grouped, element, retired); err != nil {
		return nil, mapRepoErr(err)
	}
	return &grouped, nil
}
