package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/config"
	"github.com/openpmo/costcontrol/internal/model"
)

// BudgetRepository is the persistence boundary for budgets, their items and
// their revisions. Methods that touch an item and the owning budget together
// must apply both writes in one transaction.
type BudgetRepository interface {
	GetBudget(ctx context.Context, id uuid.UUID) (*model.Budget, error)
	GetCurrentBaseline(ctx context.Context, projectID uuid.UUID) (*model.Budget, error)
	CreateBudget(ctx context.Context, budget model.Budget) (*model.Budget, error)
	UpdateBudget(ctx context.Context, budget model.Budget) error
	SwapBaseline(ctx context.Context, demoteID *uuid.UUID, promote model.Budget) error
	ListItems(ctx context.Context, budgetID uuid.UUID) ([]model.BudgetItem, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*model.BudgetItem, error)
	SaveItemAndBudget(ctx context.Context, item model.BudgetItem, budget model.Budget) error
	DeleteItemAndBudget(ctx context.Context, itemID uuid.UUID, budget model.Budget) error
	AppendRevision(ctx context.Context, revision model.BudgetRevision, budget model.Budget) error
	ListRevisions(ctx context.Context, budgetID uuid.UUID) ([]model.BudgetRevision, error)
}

// RateProvider looks up an exchange rate by currency and date. The core
// consumes the rate; it never computes or caches one.
type RateProvider interface {
	GetRate(ctx context.Context, currency string, at time.Time) (decimal.Decimal, error)
}

type BudgetService struct {
	repo  BudgetRepository
	rates RateProvider
	cfg   *config.Config
}

func NewBudgetService(repo BudgetRepository, rates RateProvider, cfg *config.Config) *BudgetService {
	return &BudgetService{repo: repo, rates: rates, cfg: cfg}
}

type CreateBudgetInput struct {
	ProjectID         uuid.UUID
	Name              string
	Currency          string
	Contingency       decimal.Decimal
	ManagementReserve decimal.Decimal
	Principal         model.Principal
}

func (s *BudgetService) Create(ctx context.Context, input CreateBudgetInput) (*model.Budget, error) {
	if !input.Principal.HasProjectAccess(input.ProjectID, model.RoleCostController) {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if input.Contingency.IsNegative() || input.ManagementReserve.IsNegative() {
		return nil, fmt.Errorf("%w: reserves must not be negative", ErrValidation)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.cfg.Policy.BaseCurrency
	}
	rate := decimal.NewFromInt(1)
	if currency != s.cfg.Policy.BaseCurrency {
		var err error
		rate, err = s.rates.GetRate(ctx, currency, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("%w: exchange rate lookup for %s: %v", ErrPersistence, currency, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: non-positive exchange rate for %s", ErrValidation, currency)
		}
	}

	budget := model.Budget{
		ID:                uuid.New(),
		ProjectID:         input.ProjectID,
		Name:              strings.TrimSpace(input.Name),
		BudgetVersion:     1,
		Status:            model.BudgetDraft,
		TotalAmount:       decimal.Zero,
		Contingency:       input.Contingency,
		ManagementReserve: input.ManagementReserve,
		Currency:          currency,
		ExchangeRate:      rate,
	}
	budget.CreatedBy = input.Principal.UserID

	created, err := s.repo.CreateBudget(ctx, budget)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return created, nil
}

type BudgetItemInput struct {
	BudgetID         uuid.UUID
	ControlAccountID *uuid.UUID
	Description      string
	CostType         string
	Category         string
	Quantity         decimal.Decimal
	UnitRate         decimal.Decimal
	Principal        model.Principal
}

// AddItem is permitted only in Draft. The item amount is derived as
// quantity x unit rate and propagated into the budget total in the same
// transaction.
func (s *BudgetService) AddItem(ctx context.Context, input BudgetItemInput) (*model.BudgetItem, error) {
	budget, err := s.repo.GetBudget(ctx, input.BudgetID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !input.Principal.HasProjectAccess(budget.ProjectID, model.RoleCostController) {
		return nil, ErrPermissionDenied
	}
	if budget.Status != model.BudgetDraft {
		return nil, fmt.Errorf("%w: items can only be added in %s, budget is %s", ErrInvalidTransition, model.BudgetDraft, budget.Status)
	}
	if err := validateItemFactors(input.Quantity, input.UnitRate); err != nil {
		return nil, err
	}

	item := model.BudgetItem{
		ID:               uuid.New(),
		BudgetID:         budget.ID,
		ControlAccountID: input.ControlAccountID,
		Description:      strings.TrimSpace(input.Description),
		CostType:         input.CostType,
		Category:         input.Category,
		Quantity:         input.Quantity,
		UnitRate:         input.UnitRate,
	}
	item.CreatedBy = input.Principal.UserID

	budget.TotalAmount = budget.TotalAmount.Add(item.Amount())
	budget.UpdatedBy = &input.Principal.UserID
	if err := s.repo.SaveItemAndBudget(ctx, item, *budget); err != nil {
		return nil, mapRepoErr(err)
	}
	return &item, nil
}

// UpdateItem allows full edits in Draft. After Lock, only quantity and unit
// rate may change, and only inside an open revision window; the edit must
// keep the item sum reconciled with the revised total.
func (s *BudgetService) UpdateItem(ctx context.Context, itemID uuid.UUID, quantity, unitRate decimal.Decimal, principal model.Principal) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return mapRepoErr(err)
	}
	budget, err := s.repo.GetBudget(ctx, item.BudgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if !budget.ItemsMutable() {
		return fmt.Errorf("%w: budget %s does not accept item updates in status %s", ErrInvalidTransition, budget.ID, budget.Status)
	}
	if err := validateItemFactors(quantity, unitRate); err != nil {
		return err
	}

	previousAmount := item.Amount()
	item.Quantity = quantity
	item.UnitRate = unitRate
	item.UpdatedBy = &principal.UserID

	switch budget.Status {
	case model.BudgetDraft:
		// Draft totals follow the items.
		budget.TotalAmount = budget.TotalAmount.Sub(previousAmount).Add(item.Amount())
	case model.BudgetLocked:
		// Revision window: the revised total is authoritative and the edit
		// must reconcile against it.
		items, err := s.repo.ListItems(ctx, budget.ID)
		if err != nil {
			return mapRepoErr(err)
		}
		sum := decimal.Zero
		for _, existing := range items {
			if existing.ID == item.ID {
				sum = sum.Add(item.Amount())
				continue
			}
			sum = sum.Add(existing.Amount())
		}
		if sum.Sub(budget.TotalAmount).Abs().GreaterThan(s.cfg.Policy.ReconciliationTolerance) {
			return fmt.Errorf("%w: item sum %s does not reconcile with revised total %s", ErrInvariantViolation, sum, budget.TotalAmount)
		}
	}

	budget.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.SaveItemAndBudget(ctx, *item, *budget))
}

// RemoveItem is permitted only in Draft.
func (s *BudgetService) RemoveItem(ctx context.Context, itemID uuid.UUID, principal model.Principal) error {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return mapRepoErr(err)
	}
	budget, err := s.repo.GetBudget(ctx, item.BudgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if budget.Status != model.BudgetDraft {
		return fmt.Errorf("%w: items can only be removed in %s, budget is %s", ErrInvalidTransition, model.BudgetDraft, budget.Status)
	}

	budget.TotalAmount = budget.TotalAmount.Sub(item.Amount())
	budget.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.DeleteItemAndBudget(ctx, itemID, *budget))
}

func (s *BudgetService) SubmitForApproval(ctx context.Context, budgetID uuid.UUID, principal model.Principal) error {
	budget, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if budget.Status != model.BudgetDraft {
		return fmt.Errorf("%w: cannot submit from status %s", ErrInvalidTransition, budget.Status)
	}

	items, err := s.repo.ListItems(ctx, budgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if len(items) == 0 || !budget.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: empty budget: at least one item and a positive total are required", ErrValidation)
	}
	if !budget.Reconciles(items, s.cfg.Policy.ReconciliationTolerance) {
		return fmt.Errorf("%w: item sum does not reconcile with budget total %s", ErrInvariantViolation, budget.TotalAmount)
	}

	budget.Status = model.BudgetSubmitted
	budget.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateBudget(ctx, *budget))
}

func (s *BudgetService) Approve(ctx context.Context, budgetID uuid.UUID, principal model.Principal) error {
	budget, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}
	if budget.Status != model.BudgetSubmitted {
		return fmt.Errorf("%w: cannot approve from status %s", ErrInvalidTransition, budget.Status)
	}

	now := time.Now().UTC()
	budget.Status = model.BudgetApproved
	budget.ApprovedBy = &principal.UserID
	budget.ApprovedAt = &now
	budget.RejectionReason = nil
	budget.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateBudget(ctx, *budget))
}

func (s *BudgetService) Reject(ctx context.Context, budgetID uuid.UUID, reason string, principal model.Principal) error {
	budget, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}
	if budget.Status != model.BudgetSubmitted {
		return fmt.Errorf("%w: cannot reject from status %s", ErrInvalidTransition, budget.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	budget.Status = model.BudgetRejected
	budget.RejectionReason = &reason
	budget.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateBudget(ctx, *budget))
}

// ReturnToDraft is the rework loop after a rejection.
func (s *BudgetService) ReturnToDraft(ctx context.Context, budgetID uuid.UUID, principal model.Principal) error {
	budget, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleCostController) {
		return ErrPermissionDenied
	}
	if budget.Status != model.BudgetRejected {
		return fmt.Errorf("%w: cannot return to draft from status %s", ErrInvalidTransition, budget.Status)
	}

	budget.Status = model.BudgetDraft
	budget.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateBudget(ctx, *budget))
}

// SetAsBaseline promotes an approved budget to the project's current
// baseline. The previous baseline, if any, is demoted in the same transaction;
// its history stays intact.
func (s *BudgetService) SetAsBaseline(ctx context.Context, budgetID uuid.UUID, principal model.Principal) error {
	budget, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}
	if budget.Status != model.BudgetApproved {
		return fmt.Errorf("%w: cannot baseline from status %s", ErrInvalidTransition, budget.Status)
	}

	var demoteID *uuid.UUID
	prior, err := s.repo.GetCurrentBaseline(ctx, budget.ProjectID)
	if err != nil {
		if mapped := mapRepoErr(err); !errors.Is(mapped, ErrNotFound) {
			return mapped
		}
	} else if prior != nil && prior.ID != budget.ID {
		demoteID = &prior.ID
	}

	budget.Status = model.BudgetBaselined
	budget.IsCurrentBaseline = true
	budget.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.SwapBaseline(ctx, demoteID, *budget))
}

// Lock freezes direct item mutation; subsequent changes go through
// CreateRevision.
func (s *BudgetService) Lock(ctx context.Context, budgetID uuid.UUID, principal model.Principal) error {
	budget, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}
	if budget.Status != model.BudgetBaselined {
		return fmt.Errorf("%w: cannot lock from status %s", ErrInvalidTransition, budget.Status)
	}

	budget.Status = model.BudgetLocked
	budget.RevisionWindowOpen = false
	budget.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateBudget(ctx, *budget))
}

// CreateRevision appends an immutable BudgetRevision, moves the budget total
// to newTotal and opens the revision window for quantity/rate updates.
func (s *BudgetService) CreateRevision(ctx context.Context, budgetID uuid.UUID, reason string, newTotal decimal.Decimal, principal model.Principal) (*model.BudgetRevision, error) {
	budget, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleProjectManager) {
		return nil, ErrPermissionDenied
	}
	if budget.Status != model.BudgetLocked {
		return nil, fmt.Errorf("%w: revisions require a locked budget, status is %s", ErrInvalidTransition, budget.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: revision reason is required", ErrValidation)
	}
	if !newTotal.IsPositive() {
		return nil, fmt.Errorf("%w: revised total must be positive", ErrValidation)
	}

	revisions, err := s.repo.ListRevisions(ctx, budgetID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	revision := model.BudgetRevision{
		ID:             uuid.New(),
		BudgetID:       budget.ID,
		RevisionNumber: len(revisions) + 1,
		PreviousTotal:  budget.TotalAmount,
		NewTotal:       newTotal,
		Reason:         reason,
		ApprovedBy:     principal.UserID,
	}

	budget.TotalAmount = newTotal
	budget.BudgetVersion++
	budget.RevisionWindowOpen = true
	budget.UpdatedBy = &principal.UserID
	if err := s.repo.AppendRevision(ctx, revision, *budget); err != nil {
		return nil, mapRepoErr(err)
	}
	return &revision, nil
}

// CloseRevisionWindow re-validates reconciliation and ends the revision
// window opened by CreateRevision.
func (s *BudgetService) CloseRevisionWindow(ctx context.Context, budgetID uuid.UUID, principal model.Principal) error {
	budget, err := s.repo.GetBudget(ctx, budgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !principal.HasProjectAccess(budget.ProjectID, model.RoleProjectManager) {
		return ErrPermissionDenied
	}
	if budget.Status != model.BudgetLocked || !budget.RevisionWindowOpen {
		return fmt.Errorf("%w: no open revision window", ErrInvalidTransition)
	}

	items, err := s.repo.ListItems(ctx, budgetID)
	if err != nil {
		return mapRepoErr(err)
	}
	if !budget.Reconciles(items, s.cfg.Policy.ReconciliationTolerance) {
		return fmt.Errorf("%w: item sum %s does not reconcile with revised total %s",
			ErrInvariantViolation, model.ItemsTotal(items), budget.TotalAmount)
	}

	budget.RevisionWindowOpen = false
	budget.UpdatedBy = &principal.UserID
	return mapRepoErr(s.repo.UpdateBudget(ctx, *budget))
}

func validateItemFactors(quantity, unitRate decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if unitRate.IsNegative() {
		return fmt.Errorf("%w: unit rate must not be negative", ErrValidation)
	}
	return nil
}
