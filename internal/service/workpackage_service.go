package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/model"
)

// WorkPackageRepository is the persistence boundary for work packages and
// planning package status progression.
type WorkPackageRepository interface {
	GetWorkPackage(ctx context.Context, id uuid.UUID) (*model.WorkPackage, error)
	UpdateWorkPackage(ctx context.Context, wp model.WorkPackage) error
	GetPlanningPackage(ctx context.Context, id uuid.UUID) (*model.PlanningPackage, error)
	UpdatePlanningPackage(ctx context.Context, pp model.PlanningPackage) error
}

type WorkPackageService struct {
	repo WorkPackageRepository
}

func NewWorkPackageService(repo WorkPackageRepository) *WorkPackageService {
	return &WorkPackageService{repo: repo}
}

type ProgressInput struct {
	WorkPackageID uuid.UUID
	Progress      decimal.Decimal
	ActualHours   decimal.Decimal
	ActualCost    decimal.Decimal
	Principal     model.Principal
}

// UpdateProgress records measured progress and actuals on a work package and
// moves its status along: 0 stays NotStarted, 100 completes it.
func (s *WorkPackageService) UpdateProgress(ctx context.Context, input ProgressInput) error {
	wp, err := s.repo.GetWorkPackage(ctx, input.WorkPackageID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !input.Principal.HasProjectAccess(wp.ProjectID, model.RoleCAM) {
		return ErrPermissionDenied
	}
	if wp.Status.IsTerminal() {
		return fmt.Errorf("%w: work package is %s and no longer accepts progress", ErrInvalidTransition, wp.Status)
	}
	if input.Progress.IsNegative() || input.Progress.GreaterThan(hundred) {
		return fmt.Errorf("%w: progress must be within [0,100]", ErrValidation)
	}
	if input.ActualHours.IsNegative() || input.ActualCost.IsNegative() {
		return fmt.Errorf("%w: actuals must not be negative", ErrValidation)
	}
	if input.Progress.LessThan(wp.Progress) {
		return fmt.Errorf("%w: progress cannot decrease from %s to %s", ErrInvariantViolation, wp.Progress, input.Progress)
	}

	wp.Progress = input.Progress
	wp.ActualHours = wp.ActualHours.Add(input.ActualHours)
	wp.ActualCost = wp.ActualCost.Add(input.ActualCost)
	switch {
	case input.Progress.Equal(hundred):
		wp.Status = model.WBSStatusCompleted
	case input.Progress.IsPositive():
		wp.Status = model.WBSStatusInProgress
	}
	wp.UpdatedBy = &input.Principal.UserID
	return mapRepoErr(s.repo.UpdateWorkPackage(ctx, *wp))
}

// SetStatus applies a manual status override (hold, cancel, flag at risk).
func (s *WorkPackageService) SetStatus(ctx context.Context, id uuid.UUID, status model.WBSStatus, principal model.Principal) error {
	wp, err := s.repo.GetWorkPackage(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(wp.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if wp.Status.IsTerminal() {
		return fmt.Errorf("%w: work package is already %s", ErrInvalidTransition, wp.Status)
	}

	wp.Status = status
	wp.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateWorkPackage(ctx, *wp))
}

var planningAdvance = map[model.PlanningPackageStatus]model.PlanningPackageStatus{
	model.PlanningFuture:   model.PlanningNearTerm,
	model.PlanningNearTerm: model.PlanningReadyForConversion,
}

// AdvancePlanningPackage matures a planning package one step towards
// conversion readiness. Conversion itself is owned by ConversionService.
func (s *WorkPackageService) AdvancePlanningPackage(ctx context.Context, id uuid.UUID, principal model.Principal) error {
	pp, err := s.repo.GetPlanningPackage(ctx, id)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(pp.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}

	next, ok := planningAdvance[pp.Status]
	if !ok {
		return fmt.Errorf("%w: planning package in status %s cannot advance", ErrInvalidTransition, pp.Status)
	}
	pp.Status = next
	pp.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdatePlanningPackage(ctx, *pp))
}
